package reconcile

import (
	"context"
	"time"
)

// Delayer waits between external calls.
type Delayer interface {
	Wait(ctx context.Context) error
}

// DelayFunc adapts a function to Delayer.
type DelayFunc func(ctx context.Context) error

func (f DelayFunc) Wait(ctx context.Context) error { return f(ctx) }

// FixedDelay waits d, or until ctx is done. A non-positive d does not wait.
func FixedDelay(d time.Duration) Delayer {
	return DelayFunc(func(ctx context.Context) error {
		if d <= 0 {
			return ctx.Err()
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	})
}

// NoDelay never waits.
var NoDelay Delayer = DelayFunc(func(context.Context) error { return nil })
