package clock

import (
	"context"
	"sync"
	"time"
)

// Mock is an interface for a manipulable clock for use in tests where we want
// to mess with the time
type Mock interface {
	Clock

	// Set allows the caller to set the time of the Mock clock instance
	Set(t time.Time)

	// Add changes the clocks time by the passed in duration
	Add(d time.Duration)

	// Sleeps returns all durations the mock has been asked to sleep for, in
	// call order.
	Sleeps() []time.Duration
}

// NewMock creates a new mock clock initialized to the passed in time
func NewMock(t time.Time) Mock {
	return &mockClock{
		baseTime: t,
	}
}

// mockClock is our manipulable clock instance
type mockClock struct {
	sync.Mutex
	baseTime time.Time
	sleeps   []time.Duration
}

func (m *mockClock) Now() time.Time {
	defer m.Unlock()
	m.Lock()

	return m.baseTime
}

func (m *mockClock) Set(t time.Time) {
	defer m.Unlock()
	m.Lock()

	m.baseTime = t
}

func (m *mockClock) Add(d time.Duration) {
	defer m.Unlock()
	m.Lock()

	m.baseTime = m.baseTime.Add(d)
}

// Sleep records the requested duration and advances the mock time by the same
// amount without blocking. Respects prior cancellation of the context so
// loops under test still observe shutdown.
func (m *mockClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	defer m.Unlock()
	m.Lock()

	m.sleeps = append(m.sleeps, d)
	m.baseTime = m.baseTime.Add(d)

	return nil
}

func (m *mockClock) Sleeps() []time.Duration {
	defer m.Unlock()
	m.Lock()

	sleeps := make([]time.Duration, len(m.sleeps))
	copy(sleeps, m.sleeps)

	return sleeps
}
