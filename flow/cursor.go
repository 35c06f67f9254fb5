package flow

// Frame records one currently-open control node on the path from the
// root to the current execution point. A Cursor is an ordered stack of
// Frames; together with the user state it is the complete information
// needed to resume a flow instance from its last checkpoint.
type Frame struct {
	// NodeID is the definition-order identifier of the open control
	// node this frame belongs to.
	NodeID string `json:"node_id"`

	// Index carries node-kind-specific position information:
	//   - sequenceNode: index of the child currently executing.
	//   - ifNode/switchNode: index of the arm chosen (arms are numbered
	//     0..len(arms)-1; the Else/Default arm is len(arms)).
	//   - whileNode: the iteration number already completed.
	//   - forEachNode: the index of the next item to dispatch.
	Index int `json:"index"`

	// Len is the frozen length of a ForEach's materialized collection,
	// recorded at loop entry so later state mutations cannot change the
	// loop's shape. Unused by other node kinds.
	Len int `json:"len,omitempty"`

	// Items holds the ForEach collection itself, snapshotted once at
	// loop entry. Carrying the materialized items (not just Len) keeps
	// resume deterministic without re-invoking the collection selector
	// against a checkpointed state that may differ from the state seen
	// at original loop entry.
	Items []any `json:"items,omitempty"`
}

// Cursor is the resumable program counter: one Frame per open control
// node on the path from the root to the point execution last reached a
// checkpoint boundary.
type Cursor struct {
	Frames []Frame `json:"frames"`
}

func newCursor() Cursor {
	return Cursor{Frames: nil}
}

// push opens a new frame for a control node being entered.
func (c *Cursor) push(f Frame) {
	c.Frames = append(c.Frames, f)
}

// pop closes the innermost open frame once its control node has finished.
func (c *Cursor) pop() {
	if len(c.Frames) == 0 {
		return
	}
	c.Frames = c.Frames[:len(c.Frames)-1]
}

// updateTop rewrites the index of the innermost open frame, used to
// advance a sequence position, While iteration count, or ForEach item
// index in place without popping/re-pushing.
func (c *Cursor) updateTop(index int) {
	if len(c.Frames) == 0 {
		return
	}
	c.Frames[len(c.Frames)-1].Index = index
}

func (c Cursor) clone() Cursor {
	out := Cursor{Frames: make([]Frame, len(c.Frames))}
	copy(out.Frames, c.Frames)
	for i := range out.Frames {
		if c.Frames[i].Items != nil {
			items := make([]any, len(c.Frames[i].Items))
			copy(items, c.Frames[i].Items)
			out.Frames[i].Items = items
		}
	}
	return out
}

// resumeCursor threads the remaining, not-yet-consumed frames of a loaded
// Cursor through the tree walk so Resume re-enters exactly the branch,
// iteration, and item the original run had reached, without re-evaluating
// predicates or re-selecting already-frozen collections.
//
// A nil resumeCursor means "fresh execution, no position to replay".
type resumeCursor struct {
	frames []Frame
}

func newResumeCursor(c Cursor) *resumeCursor {
	if len(c.Frames) == 0 {
		return nil
	}
	frames := make([]Frame, len(c.Frames))
	copy(frames, c.Frames)
	return &resumeCursor{frames: frames}
}

// next returns the next unconsumed frame for nodeID, if the resume path
// still has one queued for this exact node. The second return reports
// whether a frame was found; the caller is expected to call consume
// afterward once it has acted on the frame.
func (r *resumeCursor) next(nodeID string) (Frame, bool) {
	if r == nil || len(r.frames) == 0 {
		return Frame{}, false
	}
	f := r.frames[0]
	if f.NodeID != nodeID {
		return Frame{}, false
	}
	return f, true
}

// consume drops the frame just acted on. Once frames is empty the resume
// path has been fully replayed and subsequent nodes execute fresh.
func (r *resumeCursor) consume() {
	if r == nil || len(r.frames) == 0 {
		return
	}
	r.frames = r.frames[1:]
}

func (r *resumeCursor) active() bool {
	return r != nil && len(r.frames) > 0
}
