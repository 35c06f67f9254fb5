package emit

import "context"

// Emitter receives observability events from flow execution. Pluggable
// backends fan events out to logs, traces, metrics, or test buffers.
//
// Implementations should be non-blocking, safe for concurrent use (a
// parallel ForEach emits from multiple goroutines), and resilient:
// Emit must never panic or propagate a backend failure into the running
// flow.
type Emitter interface {
	// Emit sends a single event. Must not block the caller meaningfully
	// or panic.
	Emit(event Event)

	// EmitBatch sends multiple events, preserving their order. Returns
	// an error only on catastrophic, configuration-level failures;
	// per-event delivery failures should be logged internally instead.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events have been sent or ctx is
	// done. Safe to call multiple times.
	Flush(ctx context.Context) error
}
