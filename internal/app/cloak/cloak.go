/*
Package cloak is the session and room orchestration core.

This file defines the Cloak orchestrator, which owns the room table, the lobby and the
user registry, and exposes room and user management to the embedding application.
All methods that read or mutate this state must run on the event loop: inside message
handlers and hooks, or through Do.
*/
package cloak

import (
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"cloak/internal/pkg/logx"
	"cloak/internal/pkg/randx"
	"cloak/internal/pkg/timer"
)

const eventQueueSize = 1024

// Cloak coordinates users, rooms and the maintenance tick.
type Cloak struct {
	config Config
	opts   Options

	users     *Registry
	rooms     map[string]*Room
	roomOrder []*Room
	lobby     *Room

	// roomNum numbers auto-created rooms.
	roomNum int

	events   chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	closed   bool

	logger zerolog.Logger
}

// New constructs a Cloak and its lobby. Call Run to start the event loop.
func New(cfg Config, opts Options) *Cloak {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if opts.NewID == nil {
		opts.NewID = randx.ID
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	c := &Cloak{
		config: cfg,
		opts:   opts,
		rooms:  make(map[string]*Room),
		events: make(chan func(), eventQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logx.Component("cloak"),
	}

	c.users = NewRegistry(opts.NewID, opts.Clock)
	c.lobby = newRoom(opts.NewID(), LobbyName, true, roomSettings{
		hooks: opts.Lobby,
		now:   opts.Clock,
		guard: c.guard,
	})
	c.users.lobby = c.lobby

	if hook := opts.Lobby.Created; hook != nil {
		c.guard("lobby.created", func() { hook(c.lobby) })
	}

	c.logger.Info().
		Dur("tick_interval", cfg.TickInterval).
		Bool("auto_create_rooms", cfg.AutoCreateRooms).
		Int("min_room_members", cfg.MinRoomMembers).
		Msg("Cloak initialized.")

	return c
}

// Config returns the orchestrator configuration.
func (c *Cloak) Config() Config {
	return c.config
}

// CreateRoom creates a room. An empty name uses DefaultRoomName; size <= 0 uses
// the configured default room size.
func (c *Cloak) CreateRoom(name string, size int) *Room {
	if name == "" {
		name = DefaultRoomName
	}
	if size <= 0 {
		size = c.config.DefaultRoomSize
	}

	room := newRoom(c.opts.NewID(), name, false, roomSettings{
		capacity:   size,
		minMembers: c.config.MinRoomMembers,
		lobby:      c.lobby,
		hooks:      c.opts.Rooms,
		notify:     c.config.NotifyRoomChanges,
		owner:      c,
		now:        c.opts.Clock,
		guard:      c.guard,
	})

	c.rooms[room.id] = room
	c.roomOrder = append(c.roomOrder, room)

	c.logger.Info().
		Str("room_id", room.id).
		Str("room_name", name).
		Int("capacity", size).
		Msg("Room created.")

	if hook := c.opts.Rooms.Created; hook != nil {
		c.guard("room.created", func() { hook(room) })
	}

	if c.config.NotifyRoomChanges {
		c.lobby.serverMessageMembers("roomCreated", c.roomCount())
	}
	return room
}

func (c *Cloak) removeRoom(r *Room) {
	if _, ok := c.rooms[r.id]; !ok {
		return
	}
	delete(c.rooms, r.id)
	c.roomOrder = slices.DeleteFunc(c.roomOrder, func(o *Room) bool { return o == r })
}

func (c *Cloak) roomCount() int {
	return len(c.rooms)
}

// Room returns the room with the given id. The lobby is not in the room table.
func (c *Cloak) Room(id string) (*Room, bool) {
	r, ok := c.rooms[id]
	return r, ok
}

// Rooms returns the rooms in creation order.
func (c *Cloak) Rooms() []*Room {
	return slices.Clone(c.roomOrder)
}

// RoomSummaries returns the JSON form of every room.
func (c *Cloak) RoomSummaries() []RoomSummary {
	out := make([]RoomSummary, 0, len(c.roomOrder))
	for _, r := range c.roomOrder {
		out = append(out, r.Summary())
	}
	return out
}

// RoomCount returns the number of rooms, excluding the lobby.
func (c *Cloak) RoomCount() int {
	return c.roomCount()
}

// Lobby returns the singleton lobby.
func (c *Cloak) Lobby() *Room {
	return c.lobby
}

// User returns the user with the given id.
func (c *Cloak) User(id string) (*User, bool) {
	return c.users.Get(id)
}

// Users returns the users in creation order.
func (c *Cloak) Users() []*User {
	return c.users.All()
}

// UserSummaries returns the JSON form of every user.
func (c *Cloak) UserSummaries() []UserSummary {
	users := c.users.All()
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out
}

// UserCount returns the number of registered users, connected or not.
func (c *Cloak) UserCount() int {
	return c.users.Count()
}

// DeleteUser removes u from its rooms, disconnects it and forgets it.
func (c *Cloak) DeleteUser(u *User) bool {
	return c.users.Delete(u)
}

// MessageAll sends an application message to every user.
func (c *Cloak) MessageAll(name string, payload any) {
	for _, u := range c.users.All() {
		u.Message(name, payload)
	}
}

// CreateTimer returns a stopped timer for room logic.
func (c *Cloak) CreateTimer(name string, d time.Duration, descending bool) *timer.Timer {
	return timer.New(name, d, descending)
}

// guard runs embedder code, converting a panic into a logged error.
func (c *Cloak) guard(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error().
				Str("hook", name).
				Str("panic", fmt.Sprint(rec)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in embedder code.")
		}
	}()
	fn()
}
