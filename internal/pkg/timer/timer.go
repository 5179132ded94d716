/*
Package timer provides a pulse-driven countdown / count-up timer for room logic.

A Timer does not read the wall clock. Embedding code advances it by calling Pulse with the
time elapsed since the previous pulse, typically from a room's Pulse hook.
*/
package timer

import "time"

// Timer accumulates elapsed time while running until it reaches its duration.
type Timer struct {
	// Name is a label for the embedding application.
	Name string

	duration   time.Duration
	descending bool
	elapsed    time.Duration
	running    bool
}

// New creates a stopped Timer. A descending timer counts down from duration to zero,
// an ascending one counts up from zero to duration.
func New(name string, duration time.Duration, descending bool) *Timer {
	if duration < 0 {
		duration = 0
	}
	return &Timer{
		Name:       name,
		duration:   duration,
		descending: descending,
	}
}

// Start resumes accumulation. It is a no-op once the timer has expired.
func (t *Timer) Start() {
	if t.Expired() {
		return
	}
	t.running = true
}

// Stop pauses accumulation, keeping the elapsed time.
func (t *Timer) Stop() {
	t.running = false
}

// Reset stops the timer and clears the elapsed time.
func (t *Timer) Reset() {
	t.running = false
	t.elapsed = 0
}

// Pulse advances the timer by elapsed if it is running. Reaching the duration stops it.
func (t *Timer) Pulse(elapsed time.Duration) {
	if !t.running || elapsed <= 0 {
		return
	}

	t.elapsed += elapsed
	if t.elapsed >= t.duration {
		t.elapsed = t.duration
		t.running = false
	}
}

// Remaining returns the time left until expiry.
func (t *Timer) Remaining() time.Duration {
	return t.duration - t.elapsed
}

// Value returns the displayed value: remaining time when descending, elapsed time otherwise.
func (t *Timer) Value() time.Duration {
	if t.descending {
		return t.Remaining()
	}
	return t.elapsed
}

// Expired reports whether the accumulated time has reached the duration.
func (t *Timer) Expired() bool {
	return t.elapsed >= t.duration
}

// Running reports whether the timer is accumulating pulses.
func (t *Timer) Running() bool {
	return t.running
}

// Duration returns the configured duration.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Descending reports the counting direction.
func (t *Timer) Descending() bool {
	return t.descending
}
