package cloak

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin(t *testing.T) {
	var begun []*User
	c, _ := newTestCloak(t, DefaultConfig(), Options{
		Sessions: SessionHooks{Begin: func(u *User) { begun = append(begun, u) }},
	})

	u, s := beginUser(t, c, "s1")

	responses := s.events("cloak-beginResponse")
	require.Len(t, responses, 1)
	resp := responses[0].(beginResponse)
	assert.Equal(t, u.ID(), resp.UID)
	assert.Equal(t, c.Config().Client(), resp.Config)

	assert.True(t, c.Lobby().HasMember(u))
	assert.Equal(t, []*User{u}, begun)
	assert.JSONEq(t, `{"team":"red"}`, string(u.Data()))
}

func TestBegin_MalformedPayloadIgnored(t *testing.T) {
	c, _ := newTestCloak(t, DefaultConfig(), Options{})

	for _, payload := range []string{`[1,2]`, `"name"`, `{"broken"`, `42`} {
		s := newFakeSession("s-" + payload)
		c.begin(s, json.RawMessage(payload))

		assert.Empty(t, s.events("cloak-beginResponse"), "payload %s", payload)
		_, ok := c.users.BySession(s)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, c.UserCount())

	for i, payload := range []string{``, `null`, `{}`} {
		s := newFakeSession("ok-" + string(rune('a'+i)))
		c.begin(s, json.RawMessage(payload))
		assert.Len(t, s.events("cloak-beginResponse"), 1, "payload %q", payload)
	}
	assert.Equal(t, 3, c.UserCount())
}

func TestBegin_TwiceOnSameSession(t *testing.T) {
	c, _ := newTestCloak(t, DefaultConfig(), Options{})
	first, s := beginUser(t, c, "s1")

	c.begin(s, nil)

	second, ok := c.users.BySession(s)
	require.True(t, ok)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.False(t, first.Connected(), "the previous identity is treated as disconnected")
	assert.False(t, s.isClosed(), "the session itself stays open")
	assert.Equal(t, 2, c.UserCount())
}

func TestResume(t *testing.T) {
	var resumed []*User
	c, _ := newTestCloak(t, DefaultConfig(), Options{
		Sessions: SessionHooks{Resume: func(u *User) { resumed = append(resumed, u) }},
	})

	u, s1 := beginUser(t, c, "s1")
	c.disconnect(s1)
	require.False(t, u.Connected())

	s2 := newFakeSession("s2")
	c.resume(s2, json.RawMessage(`{"uid":"`+u.ID()+`"}`))

	responses := s2.events("cloak-resumeResponse")
	require.Len(t, responses, 1)
	resp := responses[0].(resumeResponse)
	assert.True(t, resp.Valid)
	require.NotNil(t, resp.Config)
	assert.Equal(t, c.Config().Client(), *resp.Config)

	assert.True(t, u.Connected())
	bound, ok := c.users.BySession(s2)
	require.True(t, ok)
	assert.Same(t, u, bound)
	assert.Equal(t, []*User{u}, resumed)
	assert.True(t, c.Lobby().HasMember(u), "room membership survives the reconnect")
}

func TestResume_KeepsRoomMembership(t *testing.T) {
	c, clock := newTestCloak(t, DefaultConfig(), Options{})
	room := c.CreateRoom("arena", 0)

	u, s1 := beginUser(t, c, "s1")
	other, _ := beginUser(t, c, "s2")
	require.NoError(t, u.JoinRoom(room))
	require.NoError(t, other.JoinRoom(room))

	c.disconnect(s1)
	clock.Advance(500 * time.Millisecond)
	c.Tick()

	s3 := newFakeSession("s3")
	c.resume(s3, json.RawMessage(`{"uid":"`+u.ID()+`"}`))

	assert.True(t, u.Connected())
	assert.Same(t, room, u.Room())
	assert.True(t, room.HasMember(u))
	assert.False(t, c.Lobby().HasMember(u))
	assert.Equal(t, userIDs([]*User{u, other}), userIDs(room.Members()))
}

func TestResume_Rejected(t *testing.T) {
	c, _ := newTestCloak(t, DefaultConfig(), Options{})
	beginUser(t, c, "s1")

	for _, payload := range []string{`{"uid":"missing"}`, `{}`, `not json`, `[]`} {
		s := newFakeSession("r-" + payload)
		c.resume(s, json.RawMessage(payload))

		responses := s.events("cloak-resumeResponse")
		require.Len(t, responses, 1, "payload %s", payload)
		assert.Equal(t, resumeResponse{Valid: false}, responses[0])

		_, ok := c.users.BySession(s)
		assert.False(t, ok)
	}
}

func TestResume_ReplacesLiveSession(t *testing.T) {
	c, _ := newTestCloak(t, DefaultConfig(), Options{})
	u, old := beginUser(t, c, "old")

	fresh := newFakeSession("fresh")
	c.resume(fresh, json.RawMessage(`{"uid":"`+u.ID()+`"}`))

	assert.True(t, old.isClosed())
	bound, ok := c.users.BySession(fresh)
	require.True(t, ok)
	assert.Same(t, u, bound)

	c.disconnect(old)
	assert.True(t, u.Connected(), "a late disconnect from the replaced session is ignored")
}

func TestResume_SameSession(t *testing.T) {
	c, _ := newTestCloak(t, DefaultConfig(), Options{})
	u, s := beginUser(t, c, "s1")

	c.resume(s, json.RawMessage(`{"uid":"`+u.ID()+`"}`))

	responses := s.events("cloak-resumeResponse")
	require.Len(t, responses, 1)
	assert.True(t, responses[0].(resumeResponse).Valid)
	assert.False(t, s.isClosed())
	assert.True(t, u.Connected())
}

func TestDisconnect(t *testing.T) {
	var dropped []*User
	c, clock := newTestCloak(t, DefaultConfig(), Options{
		Sessions: SessionHooks{Disconnect: func(u *User) { dropped = append(dropped, u) }},
	})
	u, s := beginUser(t, c, "s1")

	c.disconnect(s)
	c.disconnect(s)
	c.disconnect(newFakeSession("unknown"))

	assert.Equal(t, []*User{u}, dropped)
	assert.Equal(t, clock.Now(), u.DisconnectedSince())
	assert.True(t, c.Lobby().HasMember(u), "disconnect keeps room membership")
}

func TestDispatch(t *testing.T) {
	type call struct {
		user    *User
		payload string
	}
	var calls []call

	c, _ := newTestCloak(t, DefaultConfig(), Options{
		Messages: map[string]MessageHandler{
			"move": func(u *User, payload json.RawMessage) error {
				calls = append(calls, call{user: u, payload: string(payload)})
				return nil
			},
			"explode": func(*User, json.RawMessage) error { panic("kaboom") },
			"fail":    func(*User, json.RawMessage) error { return errors.New("bad move") },
		},
	})
	u, s := beginUser(t, c, "s1")
	stranger := newFakeSession("anon")

	require.NotPanics(t, func() {
		c.dispatch(s, "explode", nil)
		c.dispatch(s, "fail", nil)
		c.dispatch(s, "unknown", json.RawMessage(`1`))
	})

	c.dispatch(s, "move", json.RawMessage(`{"x":1}`))
	c.dispatch(stranger, "move", json.RawMessage(`{"x":2}`))

	require.Len(t, calls, 2)
	assert.Same(t, u, calls[0].user)
	assert.Equal(t, `{"x":1}`, calls[0].payload)
	assert.Nil(t, calls[1].user, "sessions without an identity reach handlers with a nil user")
	assert.Equal(t, `{"x":2}`, calls[1].payload)
}

func TestMessageEvent(t *testing.T) {
	assert.Equal(t, "message-chat", MessageEvent("chat"))
	assert.Equal(t, "cloak-begin", EventBegin)
	assert.Equal(t, "cloak-resume", EventResume)
}
