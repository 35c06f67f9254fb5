package flow

import (
	"math/rand"
	"time"
)

// RetryPolicy is the Retry modifier attached to a Step. A raised failure
// is retried per this policy before the step is treated as step-failed;
// the policy wraps the Timeout modifier, which wraps the step body, so
// every retry attempt gets its own fresh timeout window.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first,
	// so MaxAttempts=1 means "no retries". Must be >= 1.
	MaxAttempts int

	// BaseDelay is the base of the exponential backoff between attempts.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth. Zero means no cap.
	MaxDelay time.Duration

	// Retryable decides whether a given error should be retried at all.
	// A nil Retryable means every error is retryable.
	Retryable func(error) bool
}

// Validate reports whether the policy's fields describe a legal retry
// schedule. Called by the builder at Step-attach time so malformed
// policies fail fast rather than surfacing mid-execution.
func (rp *RetryPolicy) Validate() error {
	if rp == nil {
		return nil
	}
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

func (rp *RetryPolicy) retryable(err error) bool {
	if rp.Retryable == nil {
		return true
	}
	return rp.Retryable(err)
}

// TimeoutPolicy is the Timeout modifier attached to a Step: a duration
// that bounds the step body and whose firing is reported as a `timeout`
// error kind rather than `step-failed`.
type TimeoutPolicy struct {
	Duration time.Duration
}

// computeBackoff returns the delay before the attempt-th retry (zero
// based: 0 is the delay before the second overall attempt), using
// exponential growth capped at maxDelay plus jitter in [0, base) to avoid
// synchronized retry storms across concurrent flow instances.
//
// Delay = min(base*2^attempt, maxDelay) + jitter(0, base).
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}
	return delay + jitter
}
