package flow

import "testing"

func TestCursorPushPopUpdateTop(t *testing.T) {
	c := newCursor()
	c.push(Frame{NodeID: "if-1", Index: 0})
	c.push(Frame{NodeID: "while-1", Index: 2})

	if len(c.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(c.Frames))
	}

	c.updateTop(5)
	if c.Frames[1].Index != 5 {
		t.Fatalf("updateTop did not touch the innermost frame: %+v", c.Frames[1])
	}
	if c.Frames[0].Index != 0 {
		t.Fatalf("updateTop touched an outer frame: %+v", c.Frames[0])
	}

	c.pop()
	if len(c.Frames) != 1 || c.Frames[0].NodeID != "if-1" {
		t.Fatalf("pop left unexpected state: %+v", c.Frames)
	}

	c.pop()
	c.pop() // popping an empty cursor must not panic
	if len(c.Frames) != 0 {
		t.Fatalf("expected empty cursor, got %+v", c.Frames)
	}
}

func TestCursorCloneIsDeep(t *testing.T) {
	c := newCursor()
	c.push(Frame{NodeID: "foreach-1", Items: []any{"a", "b"}})

	clone := c.clone()
	clone.Frames[0].Items[0] = "mutated"

	if c.Frames[0].Items[0] != "a" {
		t.Fatalf("clone shares backing array with original: %+v", c.Frames[0])
	}
}

func TestResumeCursorNilIsInert(t *testing.T) {
	var r *resumeCursor
	if r.active() {
		t.Fatal("nil resumeCursor should never be active")
	}
	if _, ok := r.next("anything"); ok {
		t.Fatal("nil resumeCursor should never yield a frame")
	}
	r.consume() // must not panic
}

func TestResumeCursorConsumesInOrder(t *testing.T) {
	c := Cursor{Frames: []Frame{
		{NodeID: "if-1", Index: 1},
		{NodeID: "while-1", Index: 3},
	}}
	r := newResumeCursor(c)
	if !r.active() {
		t.Fatal("expected active resume cursor")
	}

	f, ok := r.next("if-1")
	if !ok || f.Index != 1 {
		t.Fatalf("next(if-1) = %+v, %v", f, ok)
	}
	if _, ok := r.next("while-1"); ok {
		t.Fatal("next should only match the head frame's node id")
	}
	r.consume()

	f, ok = r.next("while-1")
	if !ok || f.Index != 3 {
		t.Fatalf("next(while-1) = %+v, %v", f, ok)
	}
	r.consume()

	if r.active() {
		t.Fatal("expected resume cursor to be exhausted")
	}
}

func TestNewResumeCursorEmptyIsNil(t *testing.T) {
	if r := newResumeCursor(newCursor()); r != nil {
		t.Fatalf("expected nil resumeCursor for an empty Cursor, got %+v", r)
	}
}
