package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jonaddams/document-generator/internal/fault"
)

// Surface is the part of a container the lifecycle needs to inspect.
type Surface interface {
	Connected() bool
	Size() (width, height int)
}

// PollPolicy bounds how long WaitForSurface polls.
type PollPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultPollPolicy polls 20 times, 100ms apart.
var DefaultPollPolicy = PollPolicy{Attempts: 20, Interval: 100 * time.Millisecond}

// SurfaceReady reports whether s is mounted and laid out.
func SurfaceReady(s Surface) bool {
	if s == nil || !s.Connected() {
		return false
	}
	w, h := s.Size()
	return w > 0 && h > 0
}

// WaitForSurface polls until s is connected with non-zero dimensions.
// Exhausting the policy is a terminal ContainerUnavailable failure.
func WaitForSurface(ctx context.Context, sched Scheduler, s Surface, policy PollPolicy) error {
	if policy.Attempts <= 0 {
		policy = DefaultPollPolicy
	}
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if SurfaceReady(s) {
			return nil
		}
		if err := sched.Sleep(ctx, policy.Interval); err != nil {
			return err
		}
	}
	if SurfaceReady(s) {
		return nil
	}
	return fault.Errorf(fault.ContainerUnavailable, "lifecycle.wait",
		"surface not ready after %d attempts (%s apart)", policy.Attempts, policy.Interval)
}

// BindWithRetry calls create once and, if it fails, waits delay and retries
// exactly once provided the surface is still connected. A second failure is
// a terminal WidgetCreationFailed.
func BindWithRetry[T any](ctx context.Context, sched Scheduler, s Surface, delay time.Duration, create func(context.Context) (T, error)) (T, error) {
	var zero T

	w, err := create(ctx)
	if err == nil {
		return w, nil
	}
	first := err

	if err := sched.Sleep(ctx, delay); err != nil {
		return zero, err
	}
	if s != nil && !s.Connected() {
		return zero, fault.New(fault.WidgetCreationFailed, "lifecycle.bind",
			fmt.Errorf("container detached before retry: %w", first))
	}

	w, err = create(ctx)
	if err != nil {
		return zero, fault.New(fault.WidgetCreationFailed, "lifecycle.bind",
			fmt.Errorf("retry failed: %w", err))
	}
	return w, nil
}
