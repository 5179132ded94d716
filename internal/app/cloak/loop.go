/*
Package cloak is the session and room orchestration core.

This file contains the event loop, the maintenance tick and shutdown. The loop is the only
goroutine that touches the room table, the lobby and the registry, so none of them are locked.
*/
package cloak

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"cloak/internal/pkg/errs"
)

// Run processes queued events and ticks until ctx is cancelled or Shutdown is called.
// On exit it deletes every user and room.
func (c *Cloak) Run(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Warn().Msg("Event loop already running or shut down.")
		return
	}
	defer close(c.done)

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	c.logger.Info().Msg("Event loop started.")

	for {
		select {
		case fn := <-c.events:
			fn()

		case <-ticker.C:
			c.Tick()

		case <-ctx.Done():
			c.teardown()
			c.logger.Info().Msg("Event loop stopped by context.")
			return

		case <-c.stop:
			c.teardown()
			c.logger.Info().Msg("Event loop stopped.")
			return
		}
	}
}

// post enqueues fn on the event loop. Work posted after shutdown is dropped.
func (c *Cloak) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.stop:
	case <-c.done:
	}
}

// Do runs fn on the event loop and waits for it to finish.
func (c *Cloak) Do(ctx context.Context, fn func()) error {
	select {
	case <-c.stop:
		return errs.NewError(errs.ErrShuttingDown)
	case <-c.done:
		return errs.NewError(errs.ErrShuttingDown)
	default:
	}

	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		c.guard("do", fn)
	}

	select {
	case c.events <- task:
	case <-c.stop:
		return errs.NewError(errs.ErrShuttingDown)
	case <-c.done:
		return errs.NewError(errs.ErrShuttingDown)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-c.done:
		return errs.NewError(errs.ErrShuttingDown)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick runs one maintenance pass. Steps are ordered: age/empty pruning, lobby auto-fill,
// below-minimum pruning, then user expiry.
func (c *Cloak) Tick() {
	now := c.opts.Clock()

	c.lobby.Pulse(now)

	for _, room := range slices.Clone(c.roomOrder) {
		if room.deleted {
			continue
		}

		emptyTooLong := c.config.PruneEmptyRooms != nil &&
			len(room.members) == 0 &&
			now.Sub(room.lastEmptyAt) >= *c.config.PruneEmptyRooms
		tooOld := c.config.RoomLife != nil && now.Sub(room.created) >= *c.config.RoomLife

		switch {
		case tooOld:
			c.logger.Info().Str("room_id", room.id).Msg("Room reached its maximum age.")
			room.Delete()
		case emptyTooLong:
			c.logger.Info().Str("room_id", room.id).Msg("Pruning empty room.")
			room.Delete()
		default:
			room.Pulse(now)
		}
	}

	threshold := c.config.MinRoomMembers

	if c.config.AutoCreateRooms && threshold > 0 && len(c.lobby.members) >= threshold {
		c.autoCreateRoom(threshold)
	}

	if threshold > 0 {
		for _, room := range slices.Clone(c.roomOrder) {
			if !room.deleted && room.reachedMinimum && len(room.members) < threshold {
				c.logger.Info().
					Str("room_id", room.id).
					Int("members", len(room.members)).
					Msg("Room fell below minimum members.")
				room.Delete()
			}
		}
	}

	if n := c.users.ExpirePass(now, c.config.ReconnectWaitRoomless, c.config.ReconnectWait); n > 0 {
		c.logger.Info().Int("expired", n).Msg("Expired disconnected users.")
	}
}

// autoCreateRoom moves the first threshold lobby members, in arrival order, into a new room.
// The room is sized to hold at least threshold members.
func (c *Cloak) autoCreateRoom(threshold int) {
	size := c.config.DefaultRoomSize
	if size > 0 && size < threshold {
		size = threshold
	}

	c.roomNum++
	room := c.CreateRoom(fmt.Sprintf("Room %d", c.roomNum), size)

	for _, u := range slices.Clone(c.lobby.members[:threshold]) {
		if err := room.AddMember(u); err != nil {
			c.logger.Warn().Err(err).
				Str("room_id", room.id).
				Str("user_id", u.id).
				Msg("Auto-fill could not move lobby member.")
		}
	}
}

// teardown deletes every user, which disconnects their sessions, and every room.
func (c *Cloak) teardown() {
	if c.closed {
		return
	}
	c.closed = true

	users := c.users.All()
	for _, u := range users {
		c.users.Delete(u)
	}

	rooms := slices.Clone(c.roomOrder)
	for _, r := range rooms {
		r.Delete()
	}

	c.logger.Info().Int("users", len(users)).Int("rooms", len(rooms)).Msg("Orchestrator state cleared.")
}

// Shutdown stops the tick, clears all users and rooms, then closes transport.
// Errors from closing transport are logged and ignored so shutdown always completes.
func (c *Cloak) Shutdown(transport io.Closer) {
	c.logger.Info().Msg("Shutting down orchestrator...")

	c.stopOnce.Do(func() { close(c.stop) })

	if c.running.CompareAndSwap(false, true) {
		c.teardown()
		close(c.done)
	} else {
		<-c.done
	}

	if transport != nil {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					c.logger.Warn().Str("panic", fmt.Sprint(rec)).Msg("Recovered while closing transport.")
				}
			}()
			if err := transport.Close(); err != nil {
				c.logger.Warn().Err(err).Msg("Transport close failed. Ignoring.")
			}
		}()
	}

	c.logger.Info().Msg("Orchestrator shutdown complete.")
}
