// Package timeutil provides a testable clock and a stopwatch for timing
// pipeline stages.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a Clock whose time only moves when told to. With a non-zero
// step it advances by that step after every Now call, which gives each timed
// section a fixed, predictable duration.
type MockClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// NewSteppingClock creates a MockClock that advances by step on every Now.
func NewSteppingClock(t time.Time, step time.Duration) *MockClock {
	return &MockClock{now: t, step: step}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration between t and the current mocked time.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Lap is one named section measured by a Stopwatch.
type Lap struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// Stopwatch records consecutive named sections of work.
type Stopwatch struct {
	clock Clock
	start time.Time
	last  time.Time
	laps  []Lap
}

// StartStopwatch starts timing with clock; a nil clock uses RealClock.
func StartStopwatch(clock Clock) *Stopwatch {
	if clock == nil {
		clock = RealClock{}
	}
	now := clock.Now()
	return &Stopwatch{clock: clock, start: now, last: now}
}

// Lap closes the current section under name and returns its duration.
func (s *Stopwatch) Lap(name string) time.Duration {
	now := s.clock.Now()
	d := now.Sub(s.last)
	s.last = now
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Laps returns a copy of the recorded sections in order.
func (s *Stopwatch) Laps() []Lap {
	out := make([]Lap, len(s.laps))
	copy(out, s.laps)
	return out
}

// Started returns the time the stopwatch was started.
func (s *Stopwatch) Started() time.Time {
	return s.start
}

// Total returns the time from start to the end of the last lap.
func (s *Stopwatch) Total() time.Duration {
	return s.last.Sub(s.start)
}
