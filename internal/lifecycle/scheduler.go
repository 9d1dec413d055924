package lifecycle

import (
	"context"
	"sync"
	"time"
)

// Scheduler suspends the caller for a duration. Production code uses
// RealScheduler; tests use ManualScheduler so no test ever sleeps.
type Scheduler interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealScheduler sleeps on a timer and wakes early when ctx is cancelled.
type RealScheduler struct{}

func (RealScheduler) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ManualScheduler returns from Sleep immediately, recording every requested
// delay. OnSleep, if set, runs before Sleep returns with the 1-based call
// number, which lets a test change the world "after" a delay.
type ManualScheduler struct {
	mu      sync.Mutex
	slept   []time.Duration
	OnSleep func(call int, d time.Duration)
}

// NewManualScheduler creates a ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.slept = append(m.slept, d)
	call := len(m.slept)
	hook := m.OnSleep
	m.mu.Unlock()

	if hook != nil {
		hook(call, d)
	}
	return nil
}

// Slept returns the delays requested so far.
func (m *ManualScheduler) Slept() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.slept...)
}

// Elapsed returns the sum of all requested delays.
func (m *ManualScheduler) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total time.Duration
	for _, d := range m.slept {
		total += d
	}
	return total
}
