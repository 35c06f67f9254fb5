package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sagaflow/sagaflow-go/flow/store"
)

func TestExecuteSagaRollback(t *testing.T) {
	var log []string
	s := &testState{ID: "saga-1"}

	def, err := New[*testState]().
		Step("reserve_inventory", func(_ context.Context, st *testState) (bool, error) {
			log = append(log, "reserve")
			return true, nil
		}).Compensate(func(_ context.Context, st *testState) error {
		log = append(log, "release_inventory")
		return nil
	}).
		Step("charge_payment", func(_ context.Context, st *testState) (bool, error) {
			log = append(log, "charge")
			return true, nil
		}).Compensate(func(_ context.Context, st *testState) error {
		log = append(log, "refund_payment")
		return nil
	}).
		Step("ship_order", func(_ context.Context, st *testState) (bool, error) {
			log = append(log, "ship")
			return false, errors.New("carrier rejected shipment")
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != KindStepFailed {
		t.Fatalf("expected step-failed, got %s", res.ErrorKind)
	}

	want := []string{"reserve", "charge", "ship", "refund_payment", "release_inventory"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q (full log %v)", i, log[i], want[i], log)
		}
	}
}

func TestExecuteStepRejectionNoCompensation(t *testing.T) {
	s := &testState{ID: "reject-1"}
	var compensated bool

	def, err := New[*testState]().
		Step("gate", func(_ context.Context, st *testState) (bool, error) {
			return false, nil
		}).Compensate(func(_ context.Context, st *testState) error {
		compensated = true
		return nil
	}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if res.OK {
		t.Fatal("expected rejection")
	}
	if res.ErrorKind != KindStepRejected {
		t.Fatalf("expected step-rejected, got %s", res.ErrorKind)
	}
	if compensated {
		t.Fatal("a step that never returned true must never push its own compensation")
	}
}

func TestExecuteBoundedParallelism(t *testing.T) {
	s := &testState{ID: "parallel-1"}
	var inflight int32
	var maxInflight int32

	items := func(_ *testState) []any {
		out := make([]any, 20)
		for i := range out {
			out[i] = i
		}
		return out
	}

	itemBody := func(item any, idx int) Node[*testState] {
		n, _ := New[*testState]().Step("work", func(_ context.Context, st *testState) (bool, error) {
			cur := atomic.AddInt32(&inflight, 1)
			for {
				m := atomic.LoadInt32(&maxInflight)
				if cur <= m || atomic.CompareAndSwapInt32(&maxInflight, m, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inflight, -1)
			return true, nil
		}).BuildNode()
		return n
	}

	def, err := New[*testState]().
		ForEach(items, itemBody, WithParallelism[*testState](4)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if !res.OK {
		t.Fatalf("expected success, got %s: %s", res.ErrorKind, res.ErrorDetail)
	}
	if atomic.LoadInt32(&maxInflight) > 4 {
		t.Fatalf("observed %d concurrently in flight, want <= 4", maxInflight)
	}
	if atomic.LoadInt32(&maxInflight) < 2 {
		t.Fatalf("observed only %d concurrently in flight, parallel dispatch did not overlap", maxInflight)
	}
}

func TestExecuteInterruptAndResume(t *testing.T) {
	st := store.NewMemStore()
	var step3Calls int32

	build := func() *Definition[*testState] {
		def, err := New[*testState]().
			Step("step1", func(_ context.Context, s *testState) (bool, error) { return true, nil }).
			Step("step2", func(_ context.Context, s *testState) (bool, error) { return true, nil }).
			Step("step3", func(_ context.Context, s *testState) (bool, error) {
				atomic.AddInt32(&step3Calls, 1)
				if atomic.LoadInt32(&step3Calls) == 1 {
					return false, errors.New("transient failure")
				}
				return true, nil
			}).
			Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return def
	}

	s := &testState{ID: "resume-1"}
	def := build()

	res := Execute[*testState](context.Background(), def, s, WithStore[*testState](st))
	if res.OK {
		t.Fatal("expected first attempt to fail at step3")
	}

	def2 := build()
	res2 := Resume[*testState](context.Background(), def2, "resume-1", WithStore[*testState](st))
	if !res2.OK {
		t.Fatalf("expected resume to succeed, got %s: %s", res2.ErrorKind, res2.ErrorDetail)
	}
	if atomic.LoadInt32(&step3Calls) != 2 {
		t.Fatalf("expected step3 to have been observed exactly twice, got %d", step3Calls)
	}
}

func TestExecuteElseIfChainElseOnly(t *testing.T) {
	var chosen string
	s := &testState{ID: "elseif-1", Count: -5}

	def, err := New[*testState]().
		If(func(st *testState) bool { return st.Count > 100 }, func(b *Builder[*testState]) {
			b.Step("huge", func(_ context.Context, st *testState) (bool, error) { chosen = "huge"; return true, nil })
		}).
		ElseIf(func(st *testState) bool { return st.Count > 0 }, func(b *Builder[*testState]) {
			b.Step("positive", func(_ context.Context, st *testState) (bool, error) { chosen = "positive"; return true, nil })
		}).
		Else(func(b *Builder[*testState]) {
			b.Step("fallback", func(_ context.Context, st *testState) (bool, error) { chosen = "fallback"; return true, nil })
		}).
		EndIf().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if !res.OK {
		t.Fatalf("expected success, got %s", res.ErrorKind)
	}
	if chosen != "fallback" {
		t.Fatalf("chosen = %q, want fallback", chosen)
	}
}

func TestExecuteDeepNestingOrderedLog(t *testing.T) {
	var log []string
	s := &testState{ID: "deep-1"}

	def, err := New[*testState]().
		Step("outer", func(_ context.Context, st *testState) (bool, error) { log = append(log, "outer"); return true, nil }).
		If(func(st *testState) bool { return true }, func(b *Builder[*testState]) {
			b.Step("l1", func(_ context.Context, st *testState) (bool, error) { log = append(log, "l1"); return true, nil })
			b.If(func(st *testState) bool { return true }, func(b2 *Builder[*testState]) {
				b2.Step("l2", func(_ context.Context, st *testState) (bool, error) { log = append(log, "l2"); return true, nil })
				b2.While(func(st *testState) bool { return st.Count < 2 }, func(b3 *Builder[*testState]) {
					b3.Step("loop", func(_ context.Context, st *testState) (bool, error) {
						st.Count++
						log = append(log, "loop")
						return true, nil
					})
				}).EndWhile()
			}).EndIf()
		}).
		EndIf().
		Step("trailing", func(_ context.Context, st *testState) (bool, error) { log = append(log, "trailing"); return true, nil }).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if !res.OK {
		t.Fatalf("expected success, got %s: %s", res.ErrorKind, res.ErrorDetail)
	}
	want := []string{"outer", "l1", "l2", "loop", "loop", "trailing"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q (full log %v)", i, log[i], want[i], log)
		}
	}
}

func TestExecuteEmptyForEach(t *testing.T) {
	s := &testState{ID: "empty-foreach"}
	var ran bool

	def, err := New[*testState]().
		ForEach(
			func(st *testState) []any { return nil },
			func(item any, idx int) Node[*testState] {
				ran = true
				n, _ := New[*testState]().Step("never", noopStep("never")).BuildNode()
				return n
			},
		).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if !res.OK {
		t.Fatalf("expected success, got %s", res.ErrorKind)
	}
	if ran {
		t.Fatal("item body factory must not be invoked for an empty collection")
	}
}

func TestExecuteWhileNeverTrue(t *testing.T) {
	s := &testState{ID: "while-never"}
	var ran bool

	def, err := New[*testState]().
		While(func(st *testState) bool { return false }, func(b *Builder[*testState]) {
			b.Step("body", func(_ context.Context, st *testState) (bool, error) {
				ran = true
				return true, nil
			})
		}).
		EndWhile().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if !res.OK {
		t.Fatalf("expected success, got %s", res.ErrorKind)
	}
	if ran {
		t.Fatal("while body must not run when the predicate is false at entry")
	}
}

func TestExecuteSwitchNoMatchNoDefault(t *testing.T) {
	s := &testState{ID: "switch-nomatch"}
	var ran bool

	def, err := New[*testState]().
		Switch(func(st *testState) any { return "unmatched" }).
		Case("a", func(b *Builder[*testState]) { b.Step("a", func(_ context.Context, st *testState) (bool, error) { ran = true; return true, nil }) }).
		Case("b", func(b *Builder[*testState]) { b.Step("b", func(_ context.Context, st *testState) (bool, error) { ran = true; return true, nil }) }).
		EndSwitch().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if !res.OK {
		t.Fatalf("expected success, got %s", res.ErrorKind)
	}
	if ran {
		t.Fatal("no case matched and there was no default: nothing should have run")
	}
}

func TestExecuteHundredSequentialSteps(t *testing.T) {
	s := &testState{ID: "hundred"}
	b := New[*testState]()
	for i := 0; i < 100; i++ {
		b.Step("s", func(_ context.Context, st *testState) (bool, error) {
			st.Count++
			return true, nil
		})
	}
	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if !res.OK {
		t.Fatalf("expected success, got %s", res.ErrorKind)
	}
	if res.State.Count != 100 {
		t.Fatalf("Count = %d, want 100", res.State.Count)
	}
}

func TestExecuteMissingFlowID(t *testing.T) {
	s := &testState{ID: ""}
	def, err := New[*testState]().Step("a", noopStep("a")).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res := Execute[*testState](context.Background(), def, s)
	if res.OK || res.ErrorKind != KindValidation {
		t.Fatalf("expected validation failure, got OK=%v kind=%s", res.OK, res.ErrorKind)
	}
}

func TestExecuteRetrySucceedsBeforeExhaustion(t *testing.T) {
	s := &testState{ID: "retry-1"}
	var attempts int

	def, err := New[*testState]().
		Step("flaky", func(_ context.Context, st *testState) (bool, error) {
			attempts++
			if attempts < 3 {
				return false, errors.New("not yet")
			}
			return true, nil
		}).Retry(RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if !res.OK {
		t.Fatalf("expected eventual success, got %s: %s", res.ErrorKind, res.ErrorDetail)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteStepTimeout(t *testing.T) {
	s := &testState{ID: "timeout-1"}

	def, err := New[*testState]().
		Step("slow", func(ctx context.Context, st *testState) (bool, error) {
			select {
			case <-time.After(50 * time.Millisecond):
				return true, nil
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}).Timeout(TimeoutPolicy{Duration: 5 * time.Millisecond}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s)
	if res.OK || res.ErrorKind != KindTimeout {
		t.Fatalf("expected timeout, got OK=%v kind=%s", res.OK, res.ErrorKind)
	}
}

// countingStore wraps a MemStore to count Save calls, so tests can assert
// on checkpoint frequency without inspecting engine internals.
type countingStore struct {
	*store.MemStore
	saves int32
}

func newCountingStore() *countingStore {
	return &countingStore{MemStore: store.NewMemStore()}
}

func (c *countingStore) Save(ctx context.Context, blob store.Blob) error {
	atomic.AddInt32(&c.saves, 1)
	return c.MemStore.Save(ctx, blob)
}

func TestExecuteParallelForEachChecksPointOnceNotPerItem(t *testing.T) {
	s := &testState{ID: "parallel-checkpoint-1"}
	cs := newCountingStore()

	items := func(_ *testState) []any {
		out := make([]any, 12)
		for i := range out {
			out[i] = i
		}
		return out
	}
	itemBody := func(item any, idx int) Node[*testState] {
		n, _ := New[*testState]().Step("work", noopStep("work")).BuildNode()
		return n
	}

	def, err := New[*testState]().
		ForEach(items, itemBody, WithParallelism[*testState](4)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s, WithStore[*testState](cs))
	if !res.OK {
		t.Fatalf("expected success, got %s: %s", res.ErrorKind, res.ErrorDetail)
	}
	if got := atomic.LoadInt32(&cs.saves); got != 1 {
		t.Fatalf("parallel ForEach issued %d checkpoint saves, want exactly 1 (once at loop completion)", got)
	}
}

func TestExecuteSequentialForEachChecksPointPerItem(t *testing.T) {
	s := &testState{ID: "sequential-checkpoint-1"}
	cs := newCountingStore()

	items := func(_ *testState) []any {
		out := make([]any, 5)
		for i := range out {
			out[i] = i
		}
		return out
	}
	itemBody := func(item any, idx int) Node[*testState] {
		n, _ := New[*testState]().Step("work", noopStep("work")).BuildNode()
		return n
	}

	def, err := New[*testState]().
		ForEach(items, itemBody).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := Execute[*testState](context.Background(), def, s, WithStore[*testState](cs))
	if !res.OK {
		t.Fatalf("expected success, got %s: %s", res.ErrorKind, res.ErrorDetail)
	}
	if got := atomic.LoadInt32(&cs.saves); got != 10 {
		t.Fatalf("sequential ForEach issued %d checkpoint saves, want exactly 10 (one per step completion plus one per item)", got)
	}
}
