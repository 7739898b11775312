// Package timeutil provides calendar-day helpers for the quest engine.
// Assignment and completion dates are whole days in the school's timezone,
// so every comparison here works on dates, not instants.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DateLayout is the wire and log format for calendar days.
const DateLayout = "2006-01-02"

// DefaultTimezone is the school timezone used when none is configured.
const DefaultTimezone = "Asia/Singapore"

// Clock is the source of "now". Engine code never calls time.Now directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock returns a wall clock for the given location.
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

// Now implements Clock.
func (c SystemClock) Now() time.Time {
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	t time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	return c.t
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

