package flow

import (
	"context"
	"time"
)

// stepTimeout resolves the timeout duration for a step by precedence:
// the step's own Timeout modifier, else the engine-wide default, else
// zero (unlimited).
func stepTimeout(modifier *TimeoutPolicy, defaultTimeout time.Duration) time.Duration {
	if modifier != nil && modifier.Duration > 0 {
		return modifier.Duration
	}
	if defaultTimeout > 0 {
		return defaultTimeout
	}
	return 0
}

// runWithTimeout wraps a single invocation of body in a derived context
// bounded by timeout. It reports whether the deadline fired so the caller
// can classify the outcome as `timeout` rather than the body's own error.
func runWithTimeout[S State](ctx context.Context, timeout time.Duration, body func(ctx context.Context) (bool, error)) (ok bool, timedOut bool, err error) {
	if timeout <= 0 {
		ok, err = body(ctx)
		return ok, false, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err = body(timeoutCtx)
	if timeoutCtx.Err() == context.DeadlineExceeded {
		return ok, true, err
	}
	return ok, false, err
}
