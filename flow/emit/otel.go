package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OtelEmitter turns each Event into a point-in-time OpenTelemetry span
// named after event.Msg, carrying the flow/step/node identity and any
// Meta fields as attributes. Events represent instants, not durations, so
// each span is started and immediately ended.
type OtelEmitter struct {
	tracer trace.Tracer
}

// NewOtelEmitter wraps tracer, typically obtained via
// otel.Tracer("sagaflow").
func NewOtelEmitter(tracer trace.Tracer) *OtelEmitter {
	return &OtelEmitter{tracer: tracer}
}

func (o *OtelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()
	o.annotate(span, event)
}

func (o *OtelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

// Flush is a no-op here: span export is the configured SDK batch
// processor's responsibility, not this emitter's.
func (o *OtelEmitter) Flush(context.Context) error { return nil }

func (o *OtelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("flow_id", event.FlowID),
		attribute.Int("step_id", event.StepID),
		attribute.String("node_id", event.NodeID),
	)
	for k, v := range event.Meta {
		span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", v)))
	}
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
