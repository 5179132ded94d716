/*
Package cloak is the session and room orchestration core.

It keeps the user registry, the room table and the lobby in a single Cloak instance whose
event loop serializes transport callbacks and the periodic maintenance tick.

This file defines the recognized configuration options and their defaults.
*/
package cloak

import "time"

const (
	// DefaultTickInterval is how often the maintenance tick runs.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultReconnectWait is the grace period for disconnected users.
	DefaultReconnectWait = 10 * time.Second

	// DefaultRoomName is used when CreateRoom receives an empty name.
	DefaultRoomName = "Nameless Room"

	// DefaultUserName is the display name of a freshly created user.
	DefaultUserName = "Nameless User"

	// LobbyName is the name of the singleton lobby room.
	LobbyName = "Lobby"
)

// Config holds the orchestrator options. It is read-only after New.
// A nil duration disables the corresponding policy.
type Config struct {
	// TickInterval is the maintenance tick period.
	TickInterval time.Duration

	// DefaultRoomSize is the capacity of rooms created without an explicit size. 0 is unbounded.
	DefaultRoomSize int

	// AutoCreateRooms moves MinRoomMembers users out of the lobby into a new room
	// whenever enough are waiting.
	AutoCreateRooms bool

	// MinRoomMembers is the minimum member threshold. 0 disables auto-creation
	// and below-minimum pruning.
	MinRoomMembers int

	// ReconnectWait is how long a disconnected user is kept before deletion.
	ReconnectWait *time.Duration

	// ReconnectWaitRoomless overrides ReconnectWait for users without a room.
	ReconnectWaitRoomless *time.Duration

	// PruneEmptyRooms deletes rooms that stayed empty for this long.
	PruneEmptyRooms *time.Duration

	// RoomLife deletes rooms older than this.
	RoomLife *time.Duration

	// AutoJoinLobby adds every new user to the lobby.
	AutoJoinLobby bool

	// NotifyRoomChanges tells lobby members when rooms are created or deleted.
	NotifyRoomChanges bool
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:      DefaultTickInterval,
		ReconnectWait:     Duration(DefaultReconnectWait),
		AutoJoinLobby:     true,
		NotifyRoomChanges: true,
	}
}

// Duration returns a pointer to d, for the optional Config fields.
func Duration(d time.Duration) *time.Duration {
	return &d
}

// ClientConfig is the configuration echoed to clients in begin and resume responses.
// Durations are in milliseconds, absent values are null.
type ClientConfig struct {
	TickInterval          int64  `json:"gameLoopSpeed"`
	DefaultRoomSize       *int   `json:"defaultRoomSize"`
	AutoCreateRooms       bool   `json:"autoCreateRooms"`
	MinRoomMembers        *int   `json:"minRoomMembers"`
	ReconnectWait         *int64 `json:"reconnectWait"`
	ReconnectWaitRoomless *int64 `json:"reconnectWaitRoomless"`
	PruneEmptyRooms       *int64 `json:"pruneEmptyRooms"`
	RoomLife              *int64 `json:"roomLife"`
	AutoJoinLobby         bool   `json:"autoJoinLobby"`
	NotifyRoomChanges     bool   `json:"notifyRoomChanges"`
}

// Client converts the configuration into its client-facing form.
func (c Config) Client() ClientConfig {
	cc := ClientConfig{
		TickInterval:          c.TickInterval.Milliseconds(),
		AutoCreateRooms:       c.AutoCreateRooms,
		ReconnectWait:         millis(c.ReconnectWait),
		ReconnectWaitRoomless: millis(c.ReconnectWaitRoomless),
		PruneEmptyRooms:       millis(c.PruneEmptyRooms),
		RoomLife:              millis(c.RoomLife),
		AutoJoinLobby:         c.AutoJoinLobby,
		NotifyRoomChanges:     c.NotifyRoomChanges,
	}
	if c.DefaultRoomSize > 0 {
		size := c.DefaultRoomSize
		cc.DefaultRoomSize = &size
	}
	if c.MinRoomMembers > 0 {
		minMembers := c.MinRoomMembers
		cc.MinRoomMembers = &minMembers
	}
	return cc
}

func millis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}
