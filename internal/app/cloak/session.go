package cloak

import (
	"encoding/json"
	"time"
)

// Session is a live transport connection as seen by the orchestrator.
// Send is fire-and-forget; Close forcibly disconnects the peer.
type Session interface {
	ID() string
	Send(event string, payload any) error
	Close() error
}

// MessageHandler handles a named application message. user is nil when the
// session has not begun or resumed a user.
type MessageHandler func(user *User, payload json.RawMessage) error

// SessionHooks are notified of user session lifecycle events.
type SessionHooks struct {
	Begin      func(user *User)
	Resume     func(user *User)
	Disconnect func(user *User)
}

// RoomHooks are notified of room lifecycle events. Pulse runs on every tick the room survives.
type RoomHooks struct {
	Created      func(room *Room)
	Pulse        func(room *Room, now time.Time)
	MemberJoined func(room *Room, user *User)
	MemberLeft   func(room *Room, user *User)
	Deleted      func(room *Room)
}

// Options carries the embedder-supplied collaborators of a Cloak.
type Options struct {
	// Messages maps application message names to their handlers.
	Messages map[string]MessageHandler

	Sessions SessionHooks
	Rooms    RoomHooks
	Lobby    RoomHooks

	// NewID mints user and room identifiers. Defaults to randx.ID.
	NewID func() string

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}
