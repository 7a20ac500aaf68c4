// Package system provides the wall clock used to stamp version records.
package system

import "time"

// Clock implements radar.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to milliseconds, the finest
// precision every storage backend round-trips.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
