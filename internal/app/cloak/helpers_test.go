package cloak

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type sentEvent struct {
	event   string
	payload any
}

// fakeSession records outbound events instead of writing to a connection.
type fakeSession struct {
	mu       sync.Mutex
	id       string
	sent     []sentEvent
	closed   bool
	closeErr error
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	s.sent = append(s.sent, sentEvent{event: event, payload: payload})
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// events returns the payloads sent under the given event name.
func (s *fakeSession) events(event string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, e := range s.sent {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

// manualClock is a clock that only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// newTestCloak builds a Cloak driven by a manual clock and deterministic ids.
// The event loop is not started; tests call the internal handlers directly.
func newTestCloak(t *testing.T, cfg Config, opts Options) (*Cloak, *manualClock) {
	t.Helper()
	clock := newManualClock()
	opts.Clock = clock.Now
	opts.NewID = sequentialIDs()
	return New(cfg, opts), clock
}

// beginUser runs the begin handshake for a new session and returns the created user.
func beginUser(t *testing.T, c *Cloak, sessionID string) (*User, *fakeSession) {
	t.Helper()
	s := newFakeSession(sessionID)
	c.begin(s, json.RawMessage(`{"team":"red"}`))
	u, ok := c.users.BySession(s)
	if !ok {
		t.Fatalf("begin did not register a user for session %s", sessionID)
	}
	return u, s
}

func userIDs(users []*User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID())
	}
	return ids
}
