package emit

import "context"

// NullEmitter discards every event. Use it where observability overhead
// is unwanted or in tests that don't care about emitted events.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that discards everything, safe for
// concurrent use with zero overhead.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event) {}

func (n *NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (n *NullEmitter) Flush(context.Context) error { return nil }
