package flow

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Checkpoint is the durable snapshot persisted after every step
// completion, branch-entry decision, and completed item of a sequential
// ForEach (a parallel ForEach persists one checkpoint per loop, once it
// completes or settles after cancellation). It is the engine's
// serialized (state, cursor, compensation-stack) tuple; the blob a Store
// saves and loads is this structure encoded as JSON.
type Checkpoint[S State] struct {
	// FlowID identifies the flow instance this checkpoint belongs to.
	FlowID string `json:"flow_id"`

	// StepID is a monotonically increasing counter of checkpoint
	// boundaries crossed within this run, used only for the idempotency
	// key; it carries no resume semantics of its own (the Cursor does).
	StepID int `json:"step_id"`

	// State is the current accumulated user state.
	State S `json:"state"`

	// Cursor is the resumable program counter at this boundary.
	Cursor Cursor `json:"cursor"`

	// CompensationStack is the ordered list of step identifiers whose
	// compensation bodies are pending, referencing the definition.
	CompensationStack []string `json:"compensation_stack"`

	// IdempotencyKey prevents a duplicate commit of the same checkpoint
	// content, computed from (FlowID, StepID, Cursor, State).
	IdempotencyKey string `json:"idempotency_key"`

	// Timestamp records when this checkpoint was produced.
	Timestamp time.Time `json:"timestamp"`
}

// computeIdempotencyKey hashes the checkpoint's identifying content so a
// Store can reject a duplicate commit of an already-persisted boundary.
// Hashes the cursor frames directly (already an ordered, deterministic
// sequence, so no sort step is needed) alongside the flow id, step
// counter, and marshaled state.
func computeIdempotencyKey[S State](flowID string, stepID int, cursor Cursor, state S) (string, error) {
	h := sha256.New()
	h.Write([]byte(flowID))

	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(stepID))
	h.Write(stepBytes)

	for _, f := range cursor.Frames {
		h.Write([]byte(f.NodeID))
		idxBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(idxBytes, uint64(f.Index))
		h.Write(idxBytes)
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	h.Write(stateJSON)

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
