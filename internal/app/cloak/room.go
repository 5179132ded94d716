/*
Package cloak is the session and room orchestration core.

This file defines the Room, which owns one room's ordered membership, capacity,
age and emptiness bookkeeping, and the minimum-member threshold. The lobby is a
Room that can never be deleted.
*/
package cloak

import (
	"slices"
	"time"

	"github.com/rs/zerolog"

	"cloak/internal/pkg/errs"
	"cloak/internal/pkg/logx"
)

// roomTable is the owner of non-lobby rooms.
type roomTable interface {
	removeRoom(r *Room)
	roomCount() int
}

// roomSettings is the construction-time configuration of a Room.
type roomSettings struct {
	capacity   int
	minMembers int
	lobby      *Room
	hooks      RoomHooks
	notify     bool
	owner      roomTable
	now        func() time.Time
	guard      func(hook string, fn func())
}

// Room is a named, optionally bounded group of users.
type Room struct {
	id      string
	name    string
	isLobby bool
	members []*User

	created        time.Time
	lastEmptyAt    time.Time
	reachedMinimum bool
	deleted        bool

	settings roomSettings
	logger   zerolog.Logger
}

// RoomSummary is the JSON form of a room.
type RoomSummary struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Members []UserSummary `json:"members"`
	Size    *int          `json:"size"`
}

func newRoom(id, name string, isLobby bool, settings roomSettings) *Room {
	now := settings.now()
	return &Room{
		id:          id,
		name:        name,
		isLobby:     isLobby,
		members:     make([]*User, 0),
		created:     now,
		lastEmptyAt: now,
		settings:    settings,
		logger: logx.Logger().With().
			Str("room_id", id).
			Bool("lobby", isLobby).
			Logger(),
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// IsLobby reports whether this room is the lobby.
func (r *Room) IsLobby() bool { return r.isLobby }

// Capacity returns the member limit, 0 when unbounded.
func (r *Room) Capacity() int { return r.settings.capacity }

// Created returns the construction time.
func (r *Room) Created() time.Time { return r.created }

// LastEmptyAt returns when the room last became empty, or its creation time.
func (r *Room) LastEmptyAt() time.Time { return r.lastEmptyAt }

// ReachedMinimum reports whether membership ever met the minimum threshold.
func (r *Room) ReachedMinimum() bool { return r.reachedMinimum }

// Deleted reports whether the room has been removed from the table.
func (r *Room) Deleted() bool { return r.deleted }

// Members returns the members in join order.
func (r *Room) Members() []*User { return slices.Clone(r.members) }

// MemberCount returns the number of members.
func (r *Room) MemberCount() int { return len(r.members) }

// HasMember reports whether u is a member.
func (r *Room) HasMember(u *User) bool { return slices.Contains(r.members, u) }

// IsFull reports whether the capacity is set and reached.
func (r *Room) IsFull() bool {
	return r.settings.capacity > 0 && len(r.members) >= r.settings.capacity
}

// Summary returns the JSON form of the room.
func (r *Room) Summary() RoomSummary {
	members := make([]UserSummary, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m.Summary())
	}

	s := RoomSummary{ID: r.id, Name: r.name, Members: members}
	if r.settings.capacity > 0 {
		size := r.settings.capacity
		s.Size = &size
	}
	return s
}

// AddMember appends u to the room. Joining a room leaves the user's previous room,
// and joining a non-lobby room also leaves the lobby.
func (r *Room) AddMember(u *User) *errs.CustomError {
	switch {
	case r.deleted:
		return errs.NewError(errs.ErrRoomNotFound)
	case u.deleted:
		return errs.NewError(errs.ErrUserNotFound)
	case r.HasMember(u):
		return errs.NewError(errs.ErrAlreadyInRoom)
	case r.IsFull():
		r.logger.Debug().Str("user_id", u.id).Int("capacity", r.settings.capacity).Msg("Room is full. Member rejected.")
		return errs.NewError(errs.ErrRoomIsFull)
	}

	if u.room != nil && u.room != r {
		u.room.RemoveMember(u)
	}
	if !r.isLobby && r.settings.lobby != nil {
		r.settings.lobby.RemoveMember(u)
	}

	r.members = append(r.members, u)
	if !r.isLobby {
		u.room = r
	}

	if threshold := r.settings.minMembers; threshold > 0 && !r.reachedMinimum && len(r.members) >= threshold {
		r.reachedMinimum = true
	}

	r.logger.Debug().Str("user_id", u.id).Int("total_users", len(r.members)).Msg("Member joined.")

	r.serverMessageOthers(u, r.eventName("MemberJoined"), u.Summary())
	u.serverMessage("joinedRoom", map[string]string{"id": r.id, "name": r.name})

	if hook := r.settings.hooks.MemberJoined; hook != nil {
		r.settings.guard("room.memberJoined", func() { hook(r, u) })
	}
	return nil
}

// RemoveMember removes u if present.
func (r *Room) RemoveMember(u *User) {
	idx := slices.Index(r.members, u)
	if idx < 0 {
		return
	}

	r.members = slices.Delete(r.members, idx, idx+1)
	if u.room == r {
		u.room = nil
	}
	if len(r.members) == 0 {
		r.lastEmptyAt = r.settings.now()
	}

	r.logger.Debug().Str("user_id", u.id).Int("total_users", len(r.members)).Msg("Member left.")

	r.serverMessageOthers(u, r.eventName("MemberLeft"), u.Summary())
	u.serverMessage("leftRoom", map[string]string{"id": r.id, "name": r.name})

	if hook := r.settings.hooks.MemberLeft; hook != nil {
		r.settings.guard("room.memberLeft", func() { hook(r, u) })
	}
}

// Delete removes every member and drops the room from the table. Members become
// roomless; they are not returned to the lobby. The lobby refuses deletion.
func (r *Room) Delete() *errs.CustomError {
	if r.isLobby {
		r.logger.Warn().Msg("Refusing to delete the lobby.")
		return errs.NewError(errs.ErrLobbyNotDeletable)
	}
	if r.deleted {
		return nil
	}

	for _, m := range slices.Clone(r.members) {
		r.RemoveMember(m)
	}
	r.deleted = true

	if r.settings.owner != nil {
		r.settings.owner.removeRoom(r)
	}

	r.logger.Info().Str("room_name", r.name).Msg("Room deleted.")

	if hook := r.settings.hooks.Deleted; hook != nil {
		r.settings.guard("room.deleted", func() { hook(r) })
	}

	if r.settings.notify && r.settings.lobby != nil && r.settings.owner != nil {
		r.settings.lobby.serverMessageMembers("roomDeleted", r.settings.owner.roomCount())
	}
	return nil
}

// Pulse runs the embedder's per-tick hook.
func (r *Room) Pulse(now time.Time) {
	if hook := r.settings.hooks.Pulse; hook != nil {
		r.settings.guard("room.pulse", func() { hook(r, now) })
	}
}

// MessageMembers sends an application message to every member.
func (r *Room) MessageMembers(name string, payload any) {
	for _, m := range r.members {
		m.Message(name, payload)
	}
}

func (r *Room) serverMessageMembers(name string, payload any) {
	for _, m := range r.members {
		m.serverMessage(name, payload)
	}
}

func (r *Room) serverMessageOthers(except *User, name string, payload any) {
	for _, m := range r.members {
		if m != except {
			m.serverMessage(name, payload)
		}
	}
}

func (r *Room) eventName(suffix string) string {
	if r.isLobby {
		return "lobby" + suffix
	}
	return "room" + suffix
}
