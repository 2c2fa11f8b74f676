package clock

import (
	"context"
	"time"
)

// Clock is our interface for a type that can be used to tell the time and to
// block for a duration. Both halves are injectable so the agent loop and the
// wifi connector can be driven deterministically in tests.
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// Sleep blocks for the given duration, or until the passed in context is
	// cancelled, whichever happens first. Returns the context error if the
	// sleep was interrupted, nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error
}

// New returns a new real Clock instance.
func New() Clock {
	return &realClock{}
}

type realClock struct{}

// Now is our implementation of the Now method of the Clock interface. Returns
// the result of time.Now so respects the same monotonicity rules as the real
// time implementation.
func (r *realClock) Now() time.Time {
	return time.Now()
}

// Sleep blocks on a timer for the given duration, waking early if the context
// is cancelled.
func (r *realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
