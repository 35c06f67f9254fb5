package emit

import (
	"context"
	"testing"
)

func TestNullEmitter_DiscardsEverything(t *testing.T) {
	n := NewNullEmitter()
	n.Emit(Event{Msg: "step_start"})
	if err := n.EmitBatch(context.Background(), []Event{{Msg: "a"}, {Msg: "b"}}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
