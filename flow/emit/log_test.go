package emit

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogEmitter_Emit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{}))
	e := NewLogEmitter(logger)

	e.Emit(Event{
		FlowID: "flow-1",
		StepID: 2,
		NodeID: "debit_account",
		Msg:    "step_end",
		Meta:   map[string]interface{}{"attempt": 1},
	})

	out := buf.String()
	for _, want := range []string{"step_end", "flow_id=flow-1", "step_id=2", "node_id=debit_account", "attempt=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %q", out, want)
		}
	}
}

func TestLogEmitter_NilLoggerFallsBackToDefault(t *testing.T) {
	e := NewLogEmitter(nil)
	if e.logger == nil {
		t.Fatal("expected a default logger")
	}
}

func TestLogEmitter_EmitBatchPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewLogEmitter(logger)

	err := e.EmitBatch(context.Background(), []Event{
		{Msg: "first"},
		{Msg: "second"},
	})
	if err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}

	out := buf.String()
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Fatalf("expected first before second in %q", out)
	}
}
