/*
Package cloak is the session and room orchestration core.

This file defines the User entity and the Registry that owns every known user,
their connection state, and the mapping from live sessions to users.
*/
package cloak

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"cloak/internal/pkg/logx"
)

// User is a participant identity that can outlive any single session through resume.
type User struct {
	id   string
	name string
	data json.RawMessage

	session           Session
	disconnectedSince time.Time

	// room is the non-lobby room containing the user, nil when roomless.
	room *Room

	deleted bool
}

// UserSummary is the JSON form of a user.
type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ID returns the immutable user identifier.
func (u *User) ID() string { return u.id }

// Name returns the display name.
func (u *User) Name() string { return u.name }

// SetName changes the display name.
func (u *User) SetName(name string) { u.name = name }

// Data returns the payload the client supplied when the user began.
func (u *User) Data() json.RawMessage { return u.data }

// Room returns the non-lobby room containing the user, or nil.
func (u *User) Room() *Room { return u.room }

// Connected reports whether the user currently has a live session.
func (u *User) Connected() bool { return u.disconnectedSince.IsZero() }

// DisconnectedSince returns when the session dropped; zero while connected.
func (u *User) DisconnectedSince() time.Time { return u.disconnectedSince }

// Summary returns the JSON form of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.id, Name: u.name}
}

// Message sends an application message to the user's session.
func (u *User) Message(name string, payload any) {
	u.send(messagePrefix+name, payload)
}

// JoinRoom adds the user to room.
func (u *User) JoinRoom(room *Room) error {
	if err := room.AddMember(u); err != nil {
		return err
	}
	return nil
}

// LeaveRoom removes the user from its current non-lobby room, if any.
func (u *User) LeaveRoom() {
	if u.room != nil {
		u.room.RemoveMember(u)
	}
}

// serverMessage sends a cloak-level notification to the user's session.
func (u *User) serverMessage(name string, payload any) {
	u.send(serverPrefix+name, payload)
}

func (u *User) send(event string, payload any) {
	if u.session == nil || !u.Connected() {
		return
	}
	if err := u.session.Send(event, payload); err != nil {
		logx.Logger().Debug().Err(err).
			Str("user_id", u.id).
			Str("event", event).
			Msg("Dropped outbound message.")
	}
}

// Registry owns the set of known users and the session to user mapping.
type Registry struct {
	users     map[string]*User
	order     []*User
	bySession map[string]string

	// lobby is set by the orchestrator so deletions can clear lobby membership.
	lobby *Room

	newID  func() string
	now    func() time.Time
	logger zerolog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(newID func() string, now func() time.Time) *Registry {
	return &Registry{
		users:     make(map[string]*User),
		bySession: make(map[string]string),
		newID:     newID,
		now:       now,
		logger:    logx.Component("registry"),
	}
}

// Create registers a new connected user bound to session.
func (reg *Registry) Create(session Session, data json.RawMessage) *User {
	u := &User{
		id:      reg.newID(),
		name:    DefaultUserName,
		data:    data,
		session: session,
	}

	reg.users[u.id] = u
	reg.order = append(reg.order, u)
	reg.bySession[session.ID()] = u.id

	reg.logger.Debug().Str("user_id", u.id).Str("session_id", session.ID()).Msg("User created.")
	return u
}

// Resume rebinds a known user to a new session. It reports false when userID is unknown.
// A different session still bound to the user is unmapped and closed.
func (reg *Registry) Resume(userID string, session Session) (*User, bool) {
	u, ok := reg.users[userID]
	if !ok {
		return nil, false
	}

	if old := u.session; old != nil && old.ID() != session.ID() {
		if reg.bySession[old.ID()] == u.id {
			delete(reg.bySession, old.ID())
			reg.logger.Info().
				Str("user_id", u.id).
				Str("session_id", old.ID()).
				Msg("Closing replaced session.")
			if err := old.Close(); err != nil {
				reg.logger.Debug().Err(err).Msg("Replaced session close error.")
			}
		}
	}

	u.session = session
	u.disconnectedSince = time.Time{}
	reg.bySession[session.ID()] = u.id

	return u, true
}

// MarkDisconnected records that session dropped. It returns the affected user,
// or nil when the session was not mapped (e.g. a duplicate disconnect).
func (reg *Registry) MarkDisconnected(session Session) *User {
	uid, ok := reg.bySession[session.ID()]
	if !ok {
		return nil
	}
	delete(reg.bySession, session.ID())

	u, ok := reg.users[uid]
	if !ok {
		return nil
	}
	u.disconnectedSince = reg.now()
	return u
}

// Detach unbinds session from its user without closing it, marking the user
// disconnected. It returns the affected user or nil.
func (reg *Registry) Detach(session Session) *User {
	u := reg.MarkDisconnected(session)
	if u != nil {
		u.session = nil
	}
	return u
}

// Delete removes u from its room and the lobby, closes its session and forgets it.
// It returns false for a user this registry does not currently hold.
func (reg *Registry) Delete(u *User) bool {
	if u == nil {
		return false
	}
	if cur, ok := reg.users[u.id]; !ok || cur != u {
		return false
	}

	if u.Connected() {
		u.disconnectedSince = reg.now()
	}

	u.LeaveRoom()
	if reg.lobby != nil {
		reg.lobby.RemoveMember(u)
	}

	if u.session != nil {
		if reg.bySession[u.session.ID()] == u.id {
			delete(reg.bySession, u.session.ID())
		}
		if err := u.session.Close(); err != nil {
			reg.logger.Debug().Err(err).Str("user_id", u.id).Msg("Session close error during user deletion.")
		}
	}

	delete(reg.users, u.id)
	reg.order = slices.DeleteFunc(reg.order, func(o *User) bool { return o == u })
	u.deleted = true

	reg.logger.Info().Str("user_id", u.id).Msg("User deleted.")
	return true
}

// ExpirePass deletes disconnected users whose grace period has elapsed at now.
// roomlessGrace applies to users without a room when set, defaultGrace otherwise;
// a nil grace never expires. It returns the number of deleted users.
func (reg *Registry) ExpirePass(now time.Time, roomlessGrace, defaultGrace *time.Duration) int {
	if roomlessGrace == nil && defaultGrace == nil {
		return 0
	}

	expired := 0
	for _, u := range slices.Clone(reg.order) {
		if u.Connected() {
			continue
		}

		grace := defaultGrace
		if u.room == nil && roomlessGrace != nil {
			grace = roomlessGrace
		}
		if grace == nil {
			continue
		}

		if now.Sub(u.disconnectedSince) >= *grace {
			if reg.Delete(u) {
				expired++
			}
		}
	}
	return expired
}

// Get returns the user with the given id.
func (reg *Registry) Get(id string) (*User, bool) {
	u, ok := reg.users[id]
	return u, ok
}

// BySession returns the user currently bound to session.
func (reg *Registry) BySession(session Session) (*User, bool) {
	uid, ok := reg.bySession[session.ID()]
	if !ok {
		return nil, false
	}
	return reg.Get(uid)
}

// All returns the users in creation order.
func (reg *Registry) All() []*User {
	return slices.Clone(reg.order)
}

// Count returns the number of registered users.
func (reg *Registry) Count() int {
	return len(reg.users)
}
