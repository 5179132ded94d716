/*
Package cloak is the session and room orchestration core.

This file binds transport events to registry and room mutations. The exported Handle*
methods may be called from any goroutine; they enqueue the work on the event loop.
*/
package cloak

import (
	"bytes"
	"encoding/json"

	"cloak/internal/pkg/errs"
)

const (
	// messagePrefix namespaces application messages on the wire.
	messagePrefix = "message-"

	// serverPrefix namespaces orchestrator notifications on the wire.
	serverPrefix = "cloak-"

	// EventBegin is the inbound event requesting a new identity.
	EventBegin = serverPrefix + "begin"

	// EventResume is the inbound event rebinding an existing identity.
	EventResume = serverPrefix + "resume"
)

// MessageEvent returns the wire event name of application message name.
func MessageEvent(name string) string {
	return messagePrefix + name
}

type beginResponse struct {
	UID    string       `json:"uid"`
	Config ClientConfig `json:"config"`
}

type resumeRequest struct {
	UID string `json:"uid"`
}

type resumeResponse struct {
	Valid  bool          `json:"valid"`
	Config *ClientConfig `json:"config,omitempty"`
}

// HandleConnect records a new transport session.
func (c *Cloak) HandleConnect(s Session) {
	c.post(func() { c.connect(s) })
}

// HandleDisconnect records that a transport session dropped.
func (c *Cloak) HandleDisconnect(s Session) {
	c.post(func() { c.disconnect(s) })
}

// HandleBegin creates a user for the session.
func (c *Cloak) HandleBegin(s Session, data json.RawMessage) {
	c.post(func() { c.begin(s, data) })
}

// HandleResume rebinds an existing user to the session.
func (c *Cloak) HandleResume(s Session, data json.RawMessage) {
	c.post(func() { c.resume(s, data) })
}

// HandleMessage routes a named application message to its handler.
func (c *Cloak) HandleMessage(s Session, name string, data json.RawMessage) {
	c.post(func() { c.dispatch(s, name, data) })
}

func (c *Cloak) connect(s Session) {
	c.logger.Debug().Str("session_id", s.ID()).Msg("Session connected.")
}

func (c *Cloak) disconnect(s Session) {
	u := c.users.MarkDisconnected(s)
	if u == nil {
		return
	}

	c.logger.Info().Str("user_id", u.id).Str("session_id", s.ID()).Msg("User disconnected.")

	if hook := c.opts.Sessions.Disconnect; hook != nil {
		c.guard("session.disconnect", func() { hook(u) })
	}
}

func (c *Cloak) begin(s Session, data json.RawMessage) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) && (data[0] != '{' || !json.Valid(data)) {
		c.logger.Warn().Str("session_id", s.ID()).Msg("Malformed begin payload ignored.")
		return
	}

	c.releaseSession(s)

	u := c.users.Create(s, data)
	if err := s.Send(serverPrefix+"beginResponse", beginResponse{UID: u.id, Config: c.config.Client()}); err != nil {
		c.logger.Debug().Err(err).Str("user_id", u.id).Msg("Failed to send begin response.")
	}

	c.logger.Info().Str("user_id", u.id).Str("session_id", s.ID()).Msg("User began session.")

	if c.config.AutoJoinLobby {
		if err := c.lobby.AddMember(u); err != nil {
			c.logger.Warn().Err(err).Str("user_id", u.id).Msg("Failed to auto-join lobby.")
		}
	}

	if hook := c.opts.Sessions.Begin; hook != nil {
		c.guard("session.begin", func() { hook(u) })
	}
}

func (c *Cloak) resume(s Session, data json.RawMessage) {
	var req resumeRequest
	if err := json.Unmarshal(data, &req); err != nil || req.UID == "" {
		c.rejectResume(s)
		return
	}

	if cur, ok := c.users.BySession(s); ok && cur.id == req.UID {
		c.acceptResume(s, cur)
		return
	}

	if _, ok := c.users.Get(req.UID); !ok {
		c.rejectResume(s)
		return
	}

	c.releaseSession(s)

	u, _ := c.users.Resume(req.UID, s)
	c.acceptResume(s, u)
}

func (c *Cloak) acceptResume(s Session, u *User) {
	cfg := c.config.Client()
	if err := s.Send(serverPrefix+"resumeResponse", resumeResponse{Valid: true, Config: &cfg}); err != nil {
		c.logger.Debug().Err(err).Str("user_id", u.id).Msg("Failed to send resume response.")
	}

	c.logger.Info().Str("user_id", u.id).Str("session_id", s.ID()).Msg("User resumed session.")

	if hook := c.opts.Sessions.Resume; hook != nil {
		c.guard("session.resume", func() { hook(u) })
	}
}

func (c *Cloak) rejectResume(s Session) {
	if err := s.Send(serverPrefix+"resumeResponse", resumeResponse{Valid: false}); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send resume rejection.")
	}
	c.logger.Info().Err(errs.NewError(errs.ErrInvalidResume)).Str("session_id", s.ID()).Msg("Session failed to resume.")
}

// releaseSession detaches s from a user it is already bound to, so one session
// never maps to two users. The previous user is treated as disconnected.
func (c *Cloak) releaseSession(s Session) {
	prev := c.users.Detach(s)
	if prev == nil {
		return
	}
	c.logger.Info().Str("user_id", prev.id).Str("session_id", s.ID()).Msg("Session rebound; previous user detached.")
}

func (c *Cloak) dispatch(s Session, name string, data json.RawMessage) {
	handler, ok := c.opts.Messages[name]
	if !ok {
		c.logger.Debug().Str("message", name).Str("session_id", s.ID()).Msg("No handler for message.")
		return
	}

	u, _ := c.users.BySession(s)

	c.guard("message."+name, func() {
		if err := handler(u, data); err != nil {
			event := c.logger.Error().Err(err).Str("message", name)
			if u != nil {
				event = event.Str("user_id", u.id)
			}
			event.Msg("Message handler failed.")
		}
	})
}
