package flow

import "errors"

// Build-time (validation) errors from the definition builder.
var (
	ErrUnmatchedClose     = errors.New("flow: closing call with no matching open block")
	ErrUnmatchedOpen      = errors.New("flow: definition built with an unclosed block")
	ErrModifierOnNonStep  = errors.New("flow: modifier attached to a non-step node")
	ErrDuplicateModifier  = errors.New("flow: modifier already attached to the preceding step")
	ErrMultipleDefaults   = errors.New("flow: switch already has a default arm")
	ErrInvalidParallelism = errors.New("flow: parallelism degree must be >= 1")
	ErrInvalidRetryPolicy = errors.New("flow: invalid retry policy")
	ErrMissingFlowID      = errors.New("flow: state returned an empty flow id")
	ErrEmptyDefinition    = errors.New("flow: definition has no root node")
)

// Execution-time sentinel errors. Store-level not-found/idempotency
// failures are declared in flow/store, which executor.go checks for with
// errors.Is directly; the two sentinels below are raised by the executor
// itself rather than by a Store.
var (
	// ErrBackpressureTimeout is returned by the concurrency controller
	// when a ForEach item cannot acquire a permit within the configured
	// backpressure timeout.
	ErrBackpressureTimeout = errors.New("flow: backpressure timeout acquiring parallel item permit")

	// ErrMaxAttemptsExceeded marks a step that exhausted its retry
	// policy without a successful attempt.
	ErrMaxAttemptsExceeded = errors.New("flow: max retry attempts exceeded")
)
