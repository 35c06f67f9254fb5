package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sagaflow/sagaflow-go/flow/emit"
	"github.com/sagaflow/sagaflow-go/flow/store"
)

// stopSignal is returned by the recursive walker the instant a step
// settles on anything other than "advance": it short-circuits the rest
// of the tree and drives the run straight to rollback.
type stopSignal struct {
	kind   ErrorKind
	detail string
	cause  error
}

func (s *stopSignal) errorDetail() string {
	if s == nil {
		return ""
	}
	if s.cause != nil {
		return fmt.Sprintf("%s: %v", s.detail, s.cause)
	}
	return s.detail
}

func (s *stopSignal) asError() error {
	if s == nil {
		return nil
	}
	if s.cause != nil {
		return s.cause
	}
	return &EngineError{Kind: s.kind, Detail: s.detail}
}

// runState is the mutable execution frame threaded through one
// Execute/Resume call: the accumulating user state, the resumable
// cursor, the pending compensation log, and the checkpoint-boundary
// counter.
type runState[S State] struct {
	flowID      string
	state       S
	cursor      Cursor
	comp        *compensationStack[S]
	stepCounter int
}

type executor[S State] struct {
	def *Definition[S]
	cfg *config[S]
	rng *rand.Rand
}

func newExecutor[S State](cfg *config[S], def *Definition[S]) *executor[S] {
	return &executor[S]{
		def: def,
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- retry jitter, not security
	}
}

func identityQualify(id string) string { return id }

// Execute runs def from scratch against state, which must return a
// non-empty FlowID. It returns once the run reaches a terminal outcome:
// clean completion, a rejected/failed/timed-out/cancelled step (after
// best-effort rollback), or a build/store error.
func Execute[S State](ctx context.Context, def *Definition[S], state S, opts ...Option[S]) Result[S] {
	cfg, err := buildConfig(opts)
	if err != nil {
		return failResult(state, KindValidation, err.Error())
	}
	flowID := state.FlowID()
	if flowID == "" {
		return failResult(state, KindValidation, ErrMissingFlowID.Error())
	}

	ex := newExecutor(cfg, def)
	rs := &runState[S]{flowID: flowID, state: state, cursor: newCursor(), comp: &compensationStack[S]{}}
	return ex.run(ctx, rs, nil)
}

// Resume loads the last checkpoint for flowID and continues execution
// from exactly the branch, iteration, or item it last reached, without
// re-evaluating predicates or re-selecting already-frozen ForEach
// collections.
func Resume[S State](ctx context.Context, def *Definition[S], flowID string, opts ...Option[S]) Result[S] {
	var zero S
	cfg, err := buildConfig(opts)
	if err != nil {
		return failResult(zero, KindValidation, err.Error())
	}

	blob, err := loadCheckpointBlob(ctx, cfg.store, flowID, cfg.logger)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failResult(zero, KindValidation, "no checkpoint found for flow id "+flowID)
		}
		return failResult(zero, KindStoreIO, err.Error())
	}

	var cp Checkpoint[S]
	if err := json.Unmarshal(blob.Data, &cp); err != nil {
		return failResult(zero, KindStoreIO, "corrupt checkpoint: "+err.Error())
	}

	ex := newExecutor(cfg, def)
	comp := &compensationStack[S]{}
	index := buildCompensationIndex[S](def.root, cp.Cursor)
	for _, id := range cp.CompensationStack {
		if step, ok := index[id]; ok && step.compensation != nil {
			comp.push(compensationEntry[S]{stepID: id, name: step.name, fn: step.compensation})
		}
	}

	rs := &runState[S]{flowID: flowID, state: cp.State, cursor: cp.Cursor, comp: comp, stepCounter: cp.StepID}
	return ex.run(ctx, rs, newResumeCursor(cp.Cursor))
}

func (ex *executor[S]) run(ctx context.Context, rs *runState[S], resume *resumeCursor) Result[S] {
	runCtx := ctx
	if ex.cfg.runWallClockBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, ex.cfg.runWallClockBudget)
		defer cancel()
	}

	ex.emit(rs, "flow_start", "", nil)
	ex.cfg.logger.Debug("flow run starting", "flow_id", rs.flowID)

	sig := ex.runNode(runCtx, ex.def.root, rs, identityQualify, resume)
	if sig == nil {
		ex.emit(rs, "flow_complete", "", nil)
		ex.cfg.logger.Debug("flow run completed", "flow_id", rs.flowID)
		if err := ex.cfg.store.Delete(ctx, rs.flowID); err != nil {
			ex.cfg.logger.Warn("checkpoint delete on completion failed", "flow_id", rs.flowID, "error", err)
		}
		return okResult(rs.state)
	}

	ex.emit(rs, "flow_failed", "", map[string]interface{}{"kind": string(sig.kind), "detail": sig.errorDetail()})
	ex.cfg.logger.Warn("flow run stopped", "flow_id", rs.flowID, "kind", string(sig.kind), "detail", sig.errorDetail())

	state, rollbackErr := rs.comp.rollback(ctx, rs.state, func(msg, stepID string, err error) {
		meta := map[string]interface{}{"step_id": stepID}
		if err != nil {
			meta["error"] = err.Error()
		}
		ex.emit(rs, msg, stepID, meta)
		if ex.cfg.metrics != nil {
			outcome := "ok"
			if err != nil {
				outcome = "failed"
			}
			ex.cfg.metrics.IncrementRollback(rs.flowID, stepID, outcome)
		}
	})
	rs.state = state

	if rollbackErr != nil {
		return failResult(rs.state, KindCompensationIncomplete, sig.errorDetail()+"; rollback: "+rollbackErr.Error())
	}
	return failResult(rs.state, sig.kind, sig.errorDetail())
}

func (ex *executor[S]) emit(rs *runState[S], msg, nodeID string, meta map[string]interface{}) {
	ex.cfg.emitter.Emit(emit.Event{FlowID: rs.flowID, StepID: rs.stepCounter, NodeID: nodeID, Msg: msg, Meta: meta})
}

// checkpoint persists the current (state, cursor, compensation-stack)
// tuple. Called after every step completion and branch-entry decision,
// after every completed item of a sequential (degree<=1) ForEach, and
// once for a parallel ForEach — after the whole loop completes or after
// cancellation settles, not per item — never mid-step. Steps and branch
// decisions inside a parallel ForEach item write no checkpoint of their
// own; the loop's single checkpoint covers them.
func (ex *executor[S]) checkpoint(ctx context.Context, rs *runState[S]) *stopSignal {
	if ctx.Value(parallelItemKey{}) != nil {
		return nil
	}
	rs.stepCounter++
	cp := Checkpoint[S]{
		FlowID:            rs.flowID,
		StepID:            rs.stepCounter,
		State:             rs.state,
		Cursor:            rs.cursor.clone(),
		CompensationStack: rs.comp.ids(),
		Timestamp:         time.Now(),
	}

	key, err := computeIdempotencyKey[S](rs.flowID, cp.StepID, cp.Cursor, cp.State)
	if err != nil {
		return &stopSignal{kind: KindStoreIO, detail: "computing idempotency key", cause: err}
	}
	cp.IdempotencyKey = key

	data, err := json.Marshal(cp)
	if err != nil {
		return &stopSignal{kind: KindStoreIO, detail: "marshaling checkpoint", cause: err}
	}

	if err := saveCheckpointBlob(ctx, ex.cfg.store, store.Blob{FlowID: rs.flowID, IdempotencyKey: key, Data: data}, ex.cfg.logger); err != nil {
		if errors.Is(err, store.ErrIdempotencyViolation) {
			return nil
		}
		return &stopSignal{kind: KindStoreIO, detail: "saving checkpoint", cause: err}
	}
	ex.emit(rs, "checkpoint_saved", "", map[string]interface{}{"step_id": cp.StepID})
	return nil
}

// parallelItemKey marks the context handed to one item of a parallel
// ForEach, so checkpoint can tell it is running inside such an item.
type parallelItemKey struct{}

// storeIOMaxAttempts bounds the retry budget the engine gives a checkpoint
// store fault before surfacing it terminally, per the store-io error kind's
// "retryable host-level fault" contract: one retry after the first failure,
// then give up.
const storeIOMaxAttempts = 2

// saveCheckpointBlob retries a Store.Save against transient host-level
// faults. ErrIdempotencyViolation is not a fault — it means the checkpoint
// is already durably committed — so it is returned immediately without
// consuming a retry.
func saveCheckpointBlob(ctx context.Context, s store.Store, blob store.Blob, logger *slog.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= storeIOMaxAttempts; attempt++ {
		lastErr = s.Save(ctx, blob)
		if lastErr == nil || errors.Is(lastErr, store.ErrIdempotencyViolation) {
			return lastErr
		}
		if attempt < storeIOMaxAttempts {
			logger.Warn("checkpoint save failed, retrying", "flow_id", blob.FlowID, "attempt", attempt, "error", lastErr)
		}
	}
	logger.Error("checkpoint save exhausted retries", "flow_id", blob.FlowID, "attempts", storeIOMaxAttempts, "error", lastErr)
	return lastErr
}

// loadCheckpointBlob retries a Store.Load against transient host-level
// faults. ErrNotFound is not a fault — it means no checkpoint exists — so
// it is returned immediately without consuming a retry.
func loadCheckpointBlob(ctx context.Context, s store.Store, flowID string, logger *slog.Logger) (store.Blob, error) {
	var blob store.Blob
	var lastErr error
	for attempt := 1; attempt <= storeIOMaxAttempts; attempt++ {
		blob, lastErr = s.Load(ctx, flowID)
		if lastErr == nil || errors.Is(lastErr, store.ErrNotFound) {
			return blob, lastErr
		}
		if attempt < storeIOMaxAttempts {
			logger.Warn("checkpoint load failed, retrying", "flow_id", flowID, "attempt", attempt, "error", lastErr)
		}
	}
	logger.Error("checkpoint load exhausted retries", "flow_id", flowID, "attempts", storeIOMaxAttempts, "error", lastErr)
	return blob, lastErr
}

// runNode dispatches on the sealed Node variant. qualify turns a step's
// static definition id into the runtime-unique id its compensation
// entry is pushed under; it only changes inside a ForEach item body,
// where the same static subtree is regenerated once per item.
func (ex *executor[S]) runNode(ctx context.Context, n Node[S], rs *runState[S], qualify func(string) string, resume *resumeCursor) *stopSignal {
	if n == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &stopSignal{kind: KindCancelled, detail: "context cancelled", cause: err}
	}

	switch t := n.(type) {
	case *stepNode[S]:
		return ex.runStep(ctx, t, rs, qualify)
	case *sequenceNode[S]:
		return ex.runSequence(ctx, t, rs, qualify, resume)
	case *ifNode[S]:
		return ex.runIf(ctx, t, rs, qualify, resume)
	case *switchNode[S]:
		return ex.runSwitch(ctx, t, rs, qualify, resume)
	case *whileNode[S]:
		return ex.runWhile(ctx, t, rs, qualify, resume)
	case *forEachNode[S]:
		return ex.runForEach(ctx, t, rs, qualify, resume)
	}
	return nil
}

func (ex *executor[S]) runSequence(ctx context.Context, t *sequenceNode[S], rs *runState[S], qualify func(string) string, resume *resumeCursor) *stopSignal {
	start := 0
	if f, ok := resume.next(t.id); ok {
		resume.consume()
		start = f.Index
	} else {
		rs.cursor.push(Frame{NodeID: t.id, Index: 0})
	}

	for i := start; i < len(t.children); i++ {
		var childResume *resumeCursor
		if i == start {
			childResume = resume
		}
		if sig := ex.runNode(ctx, t.children[i], rs, qualify, childResume); sig != nil {
			return sig
		}
		rs.cursor.updateTop(i + 1)
	}
	rs.cursor.pop()
	return nil
}

func (ex *executor[S]) runStep(ctx context.Context, t *stepNode[S], rs *runState[S], qualify func(string) string) *stopSignal {
	timeout := stepTimeout(t.timeout, ex.cfg.defaultStepTimeout)

	maxAttempts := 1
	var retry *RetryPolicy
	if t.retry != nil {
		retry = t.retry
		maxAttempts = retry.MaxAttempts
	}

	var lastErr error
	var ok, timedOut bool
	attempts := 0
	start := time.Now()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		attempts = attempt + 1
		if attempt > 0 {
			delay := computeBackoff(attempt-1, retry.BaseDelay, retry.MaxDelay, ex.rng)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return &stopSignal{kind: KindCancelled, detail: "context cancelled during retry backoff", cause: ctx.Err()}
				}
			}
			if ex.cfg.metrics != nil {
				ex.cfg.metrics.IncrementRetries(rs.flowID, t.id)
			}
			ex.emit(rs, "step_retry", t.id, map[string]interface{}{"attempt": attempt, "name": t.name})
		}

		ex.emit(rs, "step_start", t.id, map[string]interface{}{"name": t.name})
		if ex.cfg.metrics != nil {
			ex.cfg.metrics.SetInflightSteps(1)
		}
		ok, timedOut, lastErr = runWithTimeout[S](ctx, timeout, func(innerCtx context.Context) (bool, error) {
			return t.body(innerCtx, rs.state)
		})
		if ex.cfg.metrics != nil {
			ex.cfg.metrics.SetInflightSteps(0)
		}

		if lastErr == nil || timedOut {
			break
		}
		if retry == nil || !retry.retryable(lastErr) {
			break
		}
	}

	latency := time.Since(start)

	switch {
	case timedOut:
		if ex.cfg.metrics != nil {
			ex.cfg.metrics.RecordStepLatency(rs.flowID, t.id, latency, "timeout")
		}
		ex.emit(rs, "step_timeout", t.id, map[string]interface{}{"name": t.name, "duration_ms": latency.Milliseconds()})
		return &stopSignal{kind: KindTimeout, detail: t.name, cause: lastErr}

	case lastErr != nil && ctx.Err() != nil:
		return &stopSignal{kind: KindCancelled, detail: t.name, cause: lastErr}

	case lastErr != nil:
		if ex.cfg.metrics != nil {
			ex.cfg.metrics.RecordStepLatency(rs.flowID, t.id, latency, "failed")
		}
		if retry != nil && maxAttempts > 1 && attempts == maxAttempts {
			lastErr = fmt.Errorf("%w: %v", ErrMaxAttemptsExceeded, lastErr)
		}
		ex.emit(rs, "step_failed", t.id, map[string]interface{}{"name": t.name, "error": lastErr.Error()})
		return &stopSignal{kind: KindStepFailed, detail: t.name, cause: lastErr}

	case !ok:
		if ex.cfg.metrics != nil {
			ex.cfg.metrics.RecordStepLatency(rs.flowID, t.id, latency, "rejected")
		}
		ex.emit(rs, "step_rejected", t.id, map[string]interface{}{"name": t.name})
		return &stopSignal{kind: KindStepRejected, detail: t.name}
	}

	if ex.cfg.metrics != nil {
		ex.cfg.metrics.RecordStepLatency(rs.flowID, t.id, latency, "success")
	}
	ex.emit(rs, "step_end", t.id, map[string]interface{}{"name": t.name, "duration_ms": latency.Milliseconds()})

	if t.compensation != nil {
		rs.comp.push(compensationEntry[S]{stepID: qualify(t.id), name: t.name, fn: t.compensation})
	}

	return ex.checkpoint(ctx, rs)
}

func (ex *executor[S]) runIf(ctx context.Context, t *ifNode[S], rs *runState[S], qualify func(string) string, resume *resumeCursor) *stopSignal {
	var armIdx int
	var body Node[S]

	if f, ok := resume.next(t.id); ok {
		resume.consume()
		armIdx = f.Index
		if armIdx < len(t.arms) {
			body = t.arms[armIdx].body
		} else {
			body = t.elseBody
		}
		rs.cursor.push(Frame{NodeID: t.id, Index: armIdx})
	} else {
		armIdx = len(t.arms)
		for i, arm := range t.arms {
			if arm.predicate(rs.state) {
				armIdx = i
				body = arm.body
				break
			}
		}
		if armIdx == len(t.arms) {
			body = t.elseBody
		}
		rs.cursor.push(Frame{NodeID: t.id, Index: armIdx})
		ex.emit(rs, "branch_chosen", t.id, map[string]interface{}{"arm_index": armIdx})
		if sig := ex.checkpoint(ctx, rs); sig != nil {
			rs.cursor.pop()
			return sig
		}
		resume = nil
	}

	if sig := ex.runNode(ctx, body, rs, qualify, resume); sig != nil {
		return sig
	}
	rs.cursor.pop()
	return nil
}

func (ex *executor[S]) runSwitch(ctx context.Context, t *switchNode[S], rs *runState[S], qualify func(string) string, resume *resumeCursor) *stopSignal {
	var armIdx int
	var body Node[S]

	if f, ok := resume.next(t.id); ok {
		resume.consume()
		armIdx = f.Index
		if armIdx < len(t.cases) {
			body = t.cases[armIdx].body
		} else {
			body = t.defaultBody
		}
		rs.cursor.push(Frame{NodeID: t.id, Index: armIdx})
	} else {
		key := t.keySelector(rs.state)
		armIdx = len(t.cases)
		for i, c := range t.cases {
			if c.value == key {
				armIdx = i
				body = c.body
				break
			}
		}
		if armIdx == len(t.cases) {
			body = t.defaultBody
		}
		rs.cursor.push(Frame{NodeID: t.id, Index: armIdx})
		ex.emit(rs, "branch_chosen", t.id, map[string]interface{}{"arm_index": armIdx})
		if sig := ex.checkpoint(ctx, rs); sig != nil {
			rs.cursor.pop()
			return sig
		}
		resume = nil
	}

	if sig := ex.runNode(ctx, body, rs, qualify, resume); sig != nil {
		return sig
	}
	rs.cursor.pop()
	return nil
}

func (ex *executor[S]) runWhile(ctx context.Context, t *whileNode[S], rs *runState[S], qualify func(string) string, resume *resumeCursor) *stopSignal {
	iter := 0
	if f, ok := resume.next(t.id); ok {
		resume.consume()
		iter = f.Index
	}
	rs.cursor.push(Frame{NodeID: t.id, Index: iter})

	if resume.active() {
		// An iteration was already in progress when the checkpoint this
		// resume replays was taken; finish it before re-evaluating the
		// predicate for anything new.
		if sig := ex.runNode(ctx, t.body, rs, qualify, resume); sig != nil {
			return sig
		}
		iter++
		rs.cursor.updateTop(iter)
	}

	for t.predicate(rs.state) {
		if sig := ex.runNode(ctx, t.body, rs, qualify, nil); sig != nil {
			return sig
		}
		iter++
		rs.cursor.updateTop(iter)
	}
	rs.cursor.pop()
	return nil
}

func (ex *executor[S]) runForEach(ctx context.Context, t *forEachNode[S], rs *runState[S], qualify func(string) string, resume *resumeCursor) *stopSignal {
	var items []any
	start := 0
	var itemResume *resumeCursor

	if f, ok := resume.next(t.id); ok {
		resume.consume()
		items = f.Items
		start = f.Index
		itemResume = resume
		rs.cursor.push(Frame{NodeID: t.id, Index: start, Len: f.Len, Items: items})
	} else {
		items = t.collection(rs.state)
		rs.cursor.push(Frame{NodeID: t.id, Index: 0, Len: len(items), Items: items})
		ex.emit(rs, "foreach_entered", t.id, map[string]interface{}{"len": len(items)})
	}

	degree := t.parallelism
	if ex.cfg.maxConcurrentCeiling > 0 && degree > ex.cfg.maxConcurrentCeiling {
		degree = ex.cfg.maxConcurrentCeiling
	}

	itemQualify := func(idx int) func(string) string {
		return func(id string) string { return fmt.Sprintf("%s#%d#%s", t.id, idx, qualify(id)) }
	}

	if degree <= 1 {
		for i := start; i < len(items); i++ {
			var ir *resumeCursor
			if i == start {
				ir = itemResume
			}
			body := t.itemBody(items[i], i)
			sig := ex.runNode(ctx, body, rs, itemQualify(i), ir)
			if sig != nil {
				ex.emit(rs, "foreach_item_error", t.id, map[string]interface{}{"index": i, "kind": string(sig.kind)})
				if !t.continueOnFailure {
					rs.cursor.pop()
					return sig
				}
			} else {
				ex.emit(rs, "foreach_item_done", t.id, map[string]interface{}{"index": i})
			}
			rs.cursor.updateTop(i + 1)
			if sig := ex.checkpoint(ctx, rs); sig != nil {
				rs.cursor.pop()
				return sig
			}
		}
		rs.cursor.pop()
		return nil
	}

	if ex.cfg.metrics != nil {
		ex.cfg.metrics.SetParallelQueueDepth(len(items) - start)
	}

	outcome := runParallel[S](
		ctx, items, start, degree, ex.cfg.backpressureTimeout, ex.cfg.queueDepth, t.continueOnFailure,
		func(pctx context.Context, item any, idx int) (bool, error) {
			var ir *resumeCursor
			if idx == start {
				ir = itemResume
			}
			body := t.itemBody(item, idx)
			pctx = context.WithValue(pctx, parallelItemKey{}, true)
			sig := ex.runNode(pctx, body, rs, itemQualify(idx), ir)
			if sig == nil {
				ex.emit(rs, "foreach_item_done", t.id, map[string]interface{}{"index": idx})
				return true, nil
			}
			ex.emit(rs, "foreach_item_error", t.id, map[string]interface{}{"index": idx, "kind": string(sig.kind)})
			if sig.kind == KindStepRejected {
				return false, nil
			}
			return false, sig.asError()
		},
		func(next int) error {
			// Cheap in-memory bookkeeping only; the durable checkpoint for a
			// parallel ForEach is written once below, after the whole loop
			// completes or cancellation has settled, not per item.
			rs.cursor.updateTop(next)
			if ex.cfg.metrics != nil {
				ex.cfg.metrics.SetParallelQueueDepth(len(items) - next)
			}
			return nil
		},
	)

	if sig := ex.checkpoint(ctx, rs); sig != nil {
		rs.cursor.pop()
		return sig
	}

	rs.cursor.pop()

	if outcome.Err != nil {
		if errors.Is(outcome.Err, ErrBackpressureTimeout) && ex.cfg.metrics != nil {
			ex.cfg.metrics.IncrementBackpressure(rs.flowID)
		}
		return &stopSignal{kind: KindStepFailed, detail: t.id, cause: outcome.Err}
	}
	if outcome.Rejected && !t.continueOnFailure {
		return &stopSignal{kind: KindStepRejected, detail: t.id}
	}
	return nil
}

func buildConfig[S State](opts []Option[S]) (*config[S], error) {
	cfg := defaultConfig[S]()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// buildCompensationIndex rebuilds a lookup from runtime-qualified step
// id to *stepNode for every step reachable from root, given the cursor
// a checkpoint was saved with. For steps inside a ForEach, the item
// subtree is regenerated from the frame's frozen Items via the same
// itemBody factory the original run used, so the qualified ids line up
// exactly with what runStep computed when it pushed the compensation
// entry.
func buildCompensationIndex[S State](root Node[S], cursor Cursor) map[string]*stepNode[S] {
	out := make(map[string]*stepNode[S])
	var walk func(n Node[S], qualify func(string) string)
	walk = func(n Node[S], qualify func(string) string) {
		if n == nil {
			return
		}
		switch t := n.(type) {
		case *stepNode[S]:
			out[qualify(t.id)] = t
		case *sequenceNode[S]:
			for _, c := range t.children {
				walk(c, qualify)
			}
		case *ifNode[S]:
			for _, a := range t.arms {
				walk(a.body, qualify)
			}
			walk(t.elseBody, qualify)
		case *switchNode[S]:
			for _, c := range t.cases {
				walk(c.body, qualify)
			}
			walk(t.defaultBody, qualify)
		case *whileNode[S]:
			walk(t.body, qualify)
		case *forEachNode[S]:
			frame, ok := frameFor(cursor, t.id)
			if !ok {
				return
			}
			for idx, item := range frame.Items {
				idx, item := idx, item
				itemRoot := t.itemBody(item, idx)
				walk(itemRoot, func(id string) string {
					return fmt.Sprintf("%s#%d#%s", t.id, idx, qualify(id))
				})
			}
		}
	}
	walk(root, identityQualify)
	return out
}

func frameFor(cursor Cursor, nodeID string) (Frame, bool) {
	for _, f := range cursor.Frames {
		if f.NodeID == nodeID {
			return f, true
		}
	}
	return Frame{}, false
}
