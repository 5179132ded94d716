package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloak/internal/app/cloak"
)

type hubCall struct {
	kind string
	name string
	data string
	s    cloak.Session
}

// recordingHub forwards every callback onto a channel.
type recordingHub struct {
	calls chan hubCall
}

func newRecordingHub() *recordingHub {
	return &recordingHub{calls: make(chan hubCall, 32)}
}

func (h *recordingHub) HandleConnect(s cloak.Session) {
	h.calls <- hubCall{kind: "connect", s: s}
}

func (h *recordingHub) HandleDisconnect(s cloak.Session) {
	h.calls <- hubCall{kind: "disconnect", s: s}
}

func (h *recordingHub) HandleBegin(s cloak.Session, data json.RawMessage) {
	h.calls <- hubCall{kind: "begin", data: string(data), s: s}
}

func (h *recordingHub) HandleResume(s cloak.Session, data json.RawMessage) {
	h.calls <- hubCall{kind: "resume", data: string(data), s: s}
}

func (h *recordingHub) HandleMessage(s cloak.Session, name string, data json.RawMessage) {
	h.calls <- hubCall{kind: "message", name: name, data: string(data), s: s}
}

func (h *recordingHub) next(t *testing.T) hubCall {
	t.Helper()
	select {
	case c := <-h.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub call")
		return hubCall{}
	}
}

func newTestServer(t *testing.T, hub Hub) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewConn(ws, hub).Serve()
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return server, client
}

func TestConn_RoutesInboundEvents(t *testing.T) {
	hub := newRecordingHub()
	_, client := newTestServer(t, hub)

	connect := hub.next(t)
	require.Equal(t, "connect", connect.kind)
	assert.True(t, strings.HasPrefix(connect.s.ID(), "sess_"))

	frames := []string{
		`not json`,
		`{"event":"cloak-begin","data":{"team":"red"}}`,
		`{"event":"mystery"}`,
		`{"event":"message-"}`,
		`{"event":"cloak-resume","data":{"uid":"u-1"}}`,
		`{"event":"message-chat","data":"hello"}`,
	}
	for _, f := range frames {
		require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	begin := hub.next(t)
	assert.Equal(t, "begin", begin.kind)
	assert.JSONEq(t, `{"team":"red"}`, begin.data)
	assert.Same(t, connect.s, begin.s)

	resume := hub.next(t)
	assert.Equal(t, "resume", resume.kind)
	assert.JSONEq(t, `{"uid":"u-1"}`, resume.data)

	msg := hub.next(t)
	assert.Equal(t, "message", msg.kind)
	assert.Equal(t, "chat", msg.name)
	assert.Equal(t, `"hello"`, msg.data)

	require.NoError(t, client.Close())
	assert.Equal(t, "disconnect", hub.next(t).kind)
}

func TestConn_SendWritesEnvelope(t *testing.T) {
	hub := newRecordingHub()
	_, client := newTestServer(t, hub)
	session := hub.next(t).s

	require.NoError(t, session.Send("cloak-roomCreated", 3))
	require.NoError(t, session.Send("message-chat", map[string]string{"text": "hi"}))

	var env Envelope
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, "cloak-roomCreated", env.Event)
	assert.JSONEq(t, `3`, string(env.Data))

	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, "message-chat", env.Event)
	assert.JSONEq(t, `{"text":"hi"}`, string(env.Data))
}

func TestConn_CloseSendsKickCode(t *testing.T) {
	hub := newRecordingHub()
	_, client := newTestServer(t, hub)
	session := hub.next(t).s

	require.NoError(t, session.Send("message-last", "bye"))
	require.NoError(t, session.Close())
	require.NoError(t, session.Close(), "closing twice is harmless")
	assert.ErrorIs(t, session.Send("message-late", nil), ErrClosed)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env Envelope
	require.NoError(t, client.ReadJSON(&env), "queued frames are flushed before the close frame")
	assert.Equal(t, "message-last", env.Event)

	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseCodeSessionKicked, closeErr.Code)

	assert.Equal(t, "disconnect", hub.next(t).kind)
}

func TestConn_SendQueueFull(t *testing.T) {
	c := &Conn{id: "sess_test", send: make(chan []byte, 1), logger: zerolog.Nop()}

	require.NoError(t, c.Send("message-a", 1))
	assert.ErrorIs(t, c.Send("message-b", 2), ErrQueueFull)
}

func TestConn_ConcurrentSendAndClose(t *testing.T) {
	hub := newRecordingHub()
	_, _ = newTestServer(t, hub)
	session := hub.next(t).s

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				_ = session.Send("message-n", i)
			}
		}()
	}
	require.NotPanics(t, func() { _ = session.Close() })
	wg.Wait()
}
