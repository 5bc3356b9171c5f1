package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single attempt when none is configured.
const DefaultTimeout = 30 * time.Second

// Timeout bounds each attempt with its own deadline.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout wrapper. Non-positive durations use DefaultTimeout.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timeout{d: d}
}

// Duration returns the per-attempt deadline.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// Execute runs op under the deadline. When the deadline passes first, op's
// context is cancelled, op is abandoned and ErrTimeout is returned.
// Cancellation of the parent context is reported as ctx.Err(). A panic in op
// is recovered and returned wrapped in ErrPanic.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrTimeout
		}
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return ErrTimeout
	}
}
