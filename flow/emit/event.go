// Package emit provides event emission and observability for flow execution.
package emit

// Event is an observability event emitted during flow execution: step
// start/end, branch decisions, retries, compensation, checkpoint I/O.
type Event struct {
	// FlowID identifies the flow instance that emitted this event.
	FlowID string

	// StepID is a monotonically increasing counter of checkpoint
	// boundaries crossed so far in this run. Flow-level events (start,
	// complete, error) carry the counter as it stands when they are
	// emitted: zero for the start of a fresh run, the checkpointed value
	// for the start of a resumed one.
	StepID int

	// NodeID identifies the node that emitted this event. Empty for
	// flow-level events.
	NodeID string

	// Msg is a short, stable event name ("step_start", "step_end",
	// "branch_chosen", "compensation_ok", "compensation_failed",
	// "checkpoint_saved", ...), not a free-form sentence.
	Msg string

	// Meta carries additional structured data specific to this event,
	// e.g. "duration_ms", "error", "attempt", "arm_index".
	Meta map[string]interface{}
}
