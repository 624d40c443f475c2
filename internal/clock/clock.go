// Package clock abstracts time for the emulator so trigger expiry and event
// stamping are deterministic under test.
package clock

import "time"

// Clock supplies nanosecond timestamps.
type Clock interface {
	TimestampNs() int64
}

// Wall reads the system clock.
type Wall struct{}

// TimestampNs returns the current UTC time in nanoseconds.
func (Wall) TimestampNs() int64 {
	return time.Now().UTC().UnixNano()
}

// Manual is a test clock advanced by hand.
type Manual struct {
	now int64
}

// NewManual creates a manual clock starting at the given time.
func NewManual(nowNs int64) *Manual {
	return &Manual{now: nowNs}
}

// TimestampNs returns the current manual time.
func (m *Manual) TimestampNs() int64 { return m.now }

// Set moves the clock to an absolute time.
func (m *Manual) Set(nowNs int64) { m.now = nowNs }

// Advance moves the clock forward.
func (m *Manual) Advance(d time.Duration) { m.now += int64(d) }
