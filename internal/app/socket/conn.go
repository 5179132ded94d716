/*
Package socket adapts gorilla WebSocket connections to the orchestrator's Session interface.

This file defines the Conn struct, representing one active WebSocket connection. It runs the
read and write loops (ReadPump and WritePump), decodes the {"event","data"} envelope and forwards
inbound events to the Hub.
*/
package socket

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"cloak/internal/app/cloak"
	"cloak/internal/pkg/errs"
	"cloak/internal/pkg/logx"
	"cloak/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 64 << 10

	// capacity of the outbound queue.
	sendQueueSize = 256

	// CloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to tell the client the server ended its session.
	CloseCodeSessionKicked = 4001
)

// ErrClosed is returned by Send once the connection is closing.
var ErrClosed = errors.New("socket: connection closed")

// ErrQueueFull is returned by Send when the peer is not draining its outbound queue.
var ErrQueueFull = errors.New("socket: send queue full")

// Hub receives the events of every connection. *cloak.Cloak satisfies it.
type Hub interface {
	HandleConnect(s cloak.Session)
	HandleDisconnect(s cloak.Session)
	HandleBegin(s cloak.Session, data json.RawMessage)
	HandleResume(s cloak.Session, data json.RawMessage)
	HandleMessage(s cloak.Session, name string, data json.RawMessage)
}

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn is an active WebSocket connection bound to a Hub.
type Conn struct {
	id   string
	conn *websocket.Conn
	hub  Hub

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	// mu guards closed, closeCode and closeReason.
	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string

	logger zerolog.Logger
}

// NewConn wraps an upgraded WebSocket connection.
func NewConn(ws *websocket.Conn, hub Hub) *Conn {
	id := randx.SessionID()
	return &Conn{
		id:     id,
		conn:   ws,
		hub:    hub,
		send:   make(chan []byte, sendQueueSize),
		logger: logx.Logger().With().Str("session_id", id).Logger(),
	}
}

// ID returns the session identifier.
func (c *Conn) ID() string { return c.id }

// Serve registers the connection with the hub and blocks until the peer goes away.
func (c *Conn) Serve() {
	c.hub.HandleConnect(c)
	go c.WritePump()
	c.ReadPump()
}

// Send queues an event for the peer. It never blocks.
func (c *Conn) Send(event string, payload any) error {
	frame, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling outbound event")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Str("event", event).Msg("Send queue full, dropping event")
		return ErrQueueFull
	}
}

// Close ends the session from the server side with close code 4001.
func (c *Conn) Close() error {
	c.Kick(errs.NewError(errs.ErrSessionKicked).Message)
	return nil
}

// Kick drains the queue, then sends a close frame with CloseCodeSessionKicked and reason.
func (c *Conn) Kick(reason string) {
	if !c.shutdown(CloseCodeSessionKicked, reason) {
		return
	}

	c.logger.Warn().
		Int("close_code", CloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Closing session from server.")
}

// shutdown marks the connection closed and stops the write loop. It reports false if
// the connection was already closing.
func (c *Conn) shutdown(code int, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	return true
}

// ReadPump reads envelopes from the connection until it fails, then notifies the hub.
func (c *Conn) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, CloseCodeSessionKicked) {
				c.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			break
		}

		c.processInbound(frame)
	}
}

func (c *Conn) cleanupOnDisconnect() {
	c.logger.Debug().Msg("Connection cleanup starting.")

	c.hub.HandleDisconnect(c)
	c.shutdown(websocket.CloseNormalClosure, "")

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// processInbound routes one decoded envelope to the hub.
func (c *Conn) processInbound(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Int("frame_len", len(frame)).Msg("Client sent invalid JSON")
		return
	}

	switch {
	case env.Event == cloak.EventBegin:
		c.hub.HandleBegin(c, env.Data)

	case env.Event == cloak.EventResume:
		c.hub.HandleResume(c, env.Data)

	case strings.HasPrefix(env.Event, cloak.MessageEvent("")):
		name := strings.TrimPrefix(env.Event, cloak.MessageEvent(""))
		if name == "" {
			c.logger.Warn().Msg("Client sent message event without a name")
			return
		}
		c.hub.HandleMessage(c, name, env.Data)

	default:
		c.logger.Warn().Str("event", env.Event).Msg("Client sent unsupported event")
	}
}

// WritePump writes queued frames and periodic pings until the queue is closed.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueued(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueued writes one frame, or the close frame once the queue is closed.
// Returns false when WritePump should terminate.
func (c *Conn) writeQueued(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		c.mu.Lock()
		code, reason := c.closeCode, c.closeReason
		c.mu.Unlock()

		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

func (c *Conn) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
