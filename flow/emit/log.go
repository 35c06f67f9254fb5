package emit

import (
	"context"
	"log/slog"
)

// LogEmitter implements Emitter on top of log/slog, so flow events land
// in whatever structured-logging pipeline the host application already
// uses (text handler to stderr in development, JSON handler to stdout in
// production).
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	emitter := emit.NewLogEmitter(logger)
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps logger. A nil logger falls back to slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) Emit(event Event) {
	attrs := []any{
		slog.String("flow_id", event.FlowID),
		slog.Int("step_id", event.StepID),
		slog.String("node_id", event.NodeID),
	}
	for k, v := range event.Meta {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.Info(event.Msg, attrs...)
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: slog.Logger writes synchronously through its handler,
// which owns its own buffering if any.
func (l *LogEmitter) Flush(context.Context) error { return nil }
