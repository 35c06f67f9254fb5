package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOtelEmitter_Emit(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer("test")
	emitter := NewOtelEmitter(tracer)

	emitter.Emit(Event{
		FlowID: "flow-001",
		StepID: 1,
		NodeID: "debit_account",
		Msg:    "step_end",
		Meta:   map[string]interface{}{"attempt": 1},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "step_end" {
		t.Fatalf("expected span name step_end, got %q", spans[0].Name)
	}
}

func TestOtelEmitter_EmitSetsErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer("test")
	emitter := NewOtelEmitter(tracer)

	emitter.Emit(Event{
		FlowID: "flow-001",
		Msg:    "step_failed",
		Meta:   map[string]interface{}{"error": "boom"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Description != "boom" {
		t.Fatalf("expected error status description boom, got %q", spans[0].Status.Description)
	}
}

func init() {
	// Avoid a global tracer provider leaking into other emit package
	// tests that don't care about tracing.
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
}
