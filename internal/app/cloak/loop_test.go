package cloak

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloak/internal/pkg/errs"
)

type fakeTransport struct {
	closed atomic.Bool
	err    error
}

func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return f.err
}

type panickingTransport struct{}

func (panickingTransport) Close() error { panic("transport exploded") }

// startLoop runs the event loop in the background and returns a channel closed when Run returns.
func startLoop(t *testing.T, c *Cloak, ctx context.Context) <-chan struct{} {
	t.Helper()
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		c.Run(ctx)
	}()
	return exited
}

func TestRun_DoExecutesOnLoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	c, _ := newTestCloak(t, cfg, Options{})
	exited := startLoop(t, c, context.Background())
	defer func() {
		c.Shutdown(nil)
		<-exited
	}()

	var rooms int
	require.NoError(t, c.Do(context.Background(), func() {
		c.CreateRoom("from-do", 0)
		rooms = c.RoomCount()
	}))
	assert.Equal(t, 1, rooms)

	require.NoError(t, c.Do(context.Background(), func() { panic("recovered") }))
}

func TestRun_HandlesTransportEventsAndTicks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	cfg.AutoCreateRooms = true
	cfg.MinRoomMembers = 2

	joined := make(chan string, 4)
	c, _ := newTestCloak(t, cfg, Options{
		Messages: map[string]MessageHandler{
			"ping": func(u *User, _ json.RawMessage) error {
				if u != nil {
					u.Message("pong", u.ID())
				}
				return nil
			},
		},
		Rooms: RoomHooks{MemberJoined: func(r *Room, u *User) { joined <- u.ID() }},
	})
	exited := startLoop(t, c, context.Background())
	defer func() {
		c.Shutdown(nil)
		<-exited
	}()

	s1, s2 := newFakeSession("s1"), newFakeSession("s2")
	c.HandleConnect(s1)
	c.HandleConnect(s2)
	c.HandleBegin(s1, nil)
	c.HandleBegin(s2, nil)
	c.HandleMessage(s1, "ping", nil)

	require.Eventually(t, func() bool {
		var count int
		_ = c.Do(context.Background(), func() { count = c.RoomCount() })
		return count == 1
	}, time.Second, 5*time.Millisecond)

	assert.Len(t, joined, 2)
	assert.Len(t, s1.events("message-pong"), 1)

	c.HandleDisconnect(s2)
	require.Eventually(t, func() bool {
		var connected bool
		_ = c.Do(context.Background(), func() {
			u, ok := c.User("id-3")
			connected = ok && u.Connected()
		})
		return !connected
	}, time.Second, 5*time.Millisecond)
}

func TestShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	var deleted atomic.Int32
	c, _ := newTestCloak(t, cfg, Options{
		Rooms: RoomHooks{Deleted: func(*Room) { deleted.Add(1) }},
	})
	exited := startLoop(t, c, context.Background())

	s := newFakeSession("s1")
	c.HandleBegin(s, nil)
	require.NoError(t, c.Do(context.Background(), func() {
		room := c.CreateRoom("r", 0)
		u, ok := c.users.BySession(s)
		require.True(t, ok)
		require.Nil(t, room.AddMember(u))
	}))

	transport := &fakeTransport{err: errors.New("listener already closed")}
	c.Shutdown(transport)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("event loop did not exit")
	}

	assert.True(t, transport.closed.Load(), "transport is closed even when it reports an error")
	assert.True(t, s.isClosed())
	assert.Equal(t, int32(1), deleted.Load())
	assert.Equal(t, 0, c.UserCount())
	assert.Equal(t, 0, c.RoomCount())

	err := c.Do(context.Background(), func() {})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrShuttingDown))

	require.NotPanics(t, func() { c.Shutdown(panickingTransport{}) }, "shutdown is idempotent")
	c.HandleBegin(newFakeSession("late"), nil)
}

func TestShutdown_WithoutRun(t *testing.T) {
	c, _ := newTestCloak(t, DefaultConfig(), Options{})
	_, s := beginUser(t, c, "s1")
	c.CreateRoom("r", 0)

	c.Shutdown(nil)

	assert.True(t, s.isClosed())
	assert.Equal(t, 0, c.RoomCount())

	exited := startLoop(t, c, context.Background())
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("Run after Shutdown should return immediately")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	c, _ := newTestCloak(t, cfg, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	s := newFakeSession("s1")
	exited := startLoop(t, c, ctx)
	c.HandleBegin(s, nil)
	require.NoError(t, c.Do(context.Background(), func() {}))

	cancel()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("event loop did not exit")
	}
	assert.True(t, s.isClosed())

	err := c.Do(context.Background(), func() {})
	assert.True(t, errs.Is(err, errs.ErrShuttingDown))
}

func TestDo_ContextCancelled(t *testing.T) {
	c, _ := newTestCloak(t, DefaultConfig(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for n := 0; n < eventQueueSize; n++ {
		c.post(func() {})
	}

	err := c.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)
}
