package flow

import (
	"context"
	"errors"
)

// compensationEntry is one pushed (step identifier, compensation body)
// pair, captured at the moment its step completed successfully.
type compensationEntry[S State] struct {
	stepID string
	name   string
	fn     CompensateFunc[S]
}

// compensationStack is the LIFO rollback log: entries are pushed in
// forward completion order and popped in reverse during rollback.
// Modeled on the saga pattern's completed-step list, where compensation
// runs newest-first and a failing compensation body is logged and
// skipped rather than aborting the rest of the rollback.
type compensationStack[S State] struct {
	entries []compensationEntry[S]
}

func (cs *compensationStack[S]) push(e compensationEntry[S]) {
	cs.entries = append(cs.entries, e)
}

func (cs *compensationStack[S]) len() int { return len(cs.entries) }

// ids returns the step identifiers on the stack, outermost-pushed first,
// for persistence into a Checkpoint.
func (cs *compensationStack[S]) ids() []string {
	ids := make([]string, len(cs.entries))
	for i, e := range cs.entries {
		ids[i] = e.stepID
	}
	return ids
}

// rollback invokes every pushed compensation body in reverse completion
// order. A compensation body that raises is recorded into the joined
// error and skipped; rollback always proceeds to the remaining entries.
// Returns the (possibly mutated-by-compensations) state and a non-nil
// error only if at least one compensation body raised.
func (cs *compensationStack[S]) rollback(ctx context.Context, state S, emitter emitFunc) (S, error) {
	var compErrs []error
	for i := len(cs.entries) - 1; i >= 0; i-- {
		entry := cs.entries[i]
		if err := entry.fn(ctx, state); err != nil {
			emitter("compensation_failed", entry.stepID, err)
			compErrs = append(compErrs, err)
			continue
		}
		emitter("compensation_ok", entry.stepID, nil)
	}
	cs.entries = nil
	if len(compErrs) == 0 {
		return state, nil
	}
	return state, errors.Join(compErrs...)
}

// emitFunc is the minimal shape compensation needs from the engine's
// observability layer; kept as a plain func type here so this file has
// no import-cycle dependency on the emit package's Event type.
type emitFunc func(msg, stepID string, err error)
