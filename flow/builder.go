package flow

import "fmt"

// Definition is an immutable, shareable workflow definition produced by
// Builder.Build. Construction is one-shot: once built, a Definition is
// frozen and can be executed (or resumed) any number of times, including
// concurrently by distinct flow instances.
type Definition[S State] struct {
	root Node[S]
}

// idSeq hands out stable, definition-order node identifiers shared by a
// top-level Builder and every nested sub-builder spawned while
// populating an If/Switch/While body, so cursor frames stay unique
// across the whole tree rather than just within one nesting level.
type idSeq struct{ n int }

func (s *idSeq) next() string {
	s.n++
	return fmt.Sprintf("n%d", s.n)
}

type ctrlKind int

const (
	ctrlIf ctrlKind = iota
	ctrlSwitch
	ctrlWhile
)

type openConstruct[S State] struct {
	kind ctrlKind

	// ctrlIf
	ifID       string
	ifArms     []ifArm[S]
	ifElse     Node[S]
	ifElseSet  bool

	// ctrlSwitch
	switchID      string
	switchKey     KeySelector[S]
	switchCases   []switchCase[S]
	switchDefault Node[S]
	switchHasDef  bool

	// ctrlWhile
	whileID   string
	whilePred Predicate[S]
	whileBody Node[S]
}

// Builder is the fluent, one-shot definition surface described in §4.1.
// A zero Builder is not usable; construct one with New.
type Builder[S State] struct {
	ids      *idSeq
	err      error
	children []Node[S]
	open     *openConstruct[S]
	lastStep *stepNode[S]
}

// New starts a fresh, empty definition builder for state type S.
func New[S State]() *Builder[S] {
	return &Builder[S]{ids: &idSeq{}}
}

// sub spawns a nested builder sharing this builder's id sequence, used to
// populate the body of an If/ElseIf/Else arm, a Switch Case/Default arm,
// or a While body.
func (b *Builder[S]) sub() *Builder[S] {
	return &Builder[S]{ids: b.ids}
}

func (b *Builder[S]) fail(err error) *Builder[S] {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder[S]) append(n Node[S]) {
	b.children = append(b.children, n)
}

// finish closes a sub-builder populated by a body closure and returns
// its single resulting subtree (nil if the closure appended nothing, a
// legal empty body).
func (b *Builder[S]) finish() (Node[S], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.open != nil {
		return nil, ErrUnmatchedOpen
	}
	switch len(b.children) {
	case 0:
		return nil, nil
	case 1:
		return b.children[0], nil
	default:
		return &sequenceNode[S]{id: b.ids.next(), children: b.children}, nil
	}
}

// runBody builds one body subtree with a fresh sub-builder and folds any
// error from it into b, matching the fail-fast-at-Build-time contract.
func (b *Builder[S]) runBody(populate func(*Builder[S])) Node[S] {
	if b.err != nil {
		return nil
	}
	sb := b.sub()
	if populate != nil {
		populate(sb)
	}
	body, err := sb.finish()
	if err != nil {
		b.fail(err)
		return nil
	}
	return body
}

// Step appends a named step to the current nesting level. Attach
// modifiers with Compensate, Retry, or Timeout immediately afterward;
// each may be attached at most once per step.
func (b *Builder[S]) Step(name string, body StepFunc[S]) *Builder[S] {
	if b.err != nil {
		return b
	}
	n := &stepNode[S]{id: b.ids.next(), name: name, body: body}
	b.append(n)
	b.lastStep = n
	return b
}

// Compensate attaches a Compensation modifier to the step that was just
// appended. It is a build-time error to call this when no step
// immediately precedes, or when the preceding step already has one.
func (b *Builder[S]) Compensate(fn CompensateFunc[S]) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.lastStep == nil {
		return b.fail(ErrModifierOnNonStep)
	}
	if b.lastStep.compensation != nil {
		return b.fail(ErrDuplicateModifier)
	}
	b.lastStep.compensation = fn
	return b
}

// Retry attaches a Retry modifier to the immediately preceding step.
func (b *Builder[S]) Retry(policy RetryPolicy) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.lastStep == nil {
		return b.fail(ErrModifierOnNonStep)
	}
	if b.lastStep.retry != nil {
		return b.fail(ErrDuplicateModifier)
	}
	if err := policy.Validate(); err != nil {
		return b.fail(err)
	}
	p := policy
	b.lastStep.retry = &p
	return b
}

// Timeout attaches a Timeout modifier to the immediately preceding step.
func (b *Builder[S]) Timeout(policy TimeoutPolicy) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.lastStep == nil {
		return b.fail(ErrModifierOnNonStep)
	}
	if b.lastStep.timeout != nil {
		return b.fail(ErrDuplicateModifier)
	}
	p := policy
	b.lastStep.timeout = &p
	return b
}

// If opens an If construct: pred gates the then-subtree populated by
// then. Chain ElseIf/Else arms, and close with EndIf.
func (b *Builder[S]) If(pred Predicate[S], then func(*Builder[S])) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open != nil {
		return b.fail(ErrUnmatchedOpen)
	}
	b.lastStep = nil
	id := b.ids.next()
	body := b.runBody(then)
	if b.err != nil {
		return b
	}
	b.open = &openConstruct[S]{
		kind:   ctrlIf,
		ifID:   id,
		ifArms: []ifArm[S]{{predicate: pred, body: body}},
	}
	return b
}

// ElseIf adds another arm to the innermost open If.
func (b *Builder[S]) ElseIf(pred Predicate[S], then func(*Builder[S])) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open == nil || b.open.kind != ctrlIf {
		return b.fail(ErrUnmatchedClose)
	}
	if b.open.ifElseSet {
		return b.fail(ErrUnmatchedOpen)
	}
	body := b.runBody(then)
	if b.err != nil {
		return b
	}
	b.open.ifArms = append(b.open.ifArms, ifArm[S]{predicate: pred, body: body})
	return b
}

// Else adds the terminal, unconditional arm to the innermost open If.
func (b *Builder[S]) Else(then func(*Builder[S])) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open == nil || b.open.kind != ctrlIf {
		return b.fail(ErrUnmatchedClose)
	}
	if b.open.ifElseSet {
		return b.fail(ErrUnmatchedOpen)
	}
	body := b.runBody(then)
	if b.err != nil {
		return b
	}
	b.open.ifElse = body
	b.open.ifElseSet = true
	return b
}

// EndIf closes the innermost open If, appending it at the nesting level
// If was opened from.
func (b *Builder[S]) EndIf() *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open == nil || b.open.kind != ctrlIf {
		return b.fail(ErrUnmatchedClose)
	}
	o := b.open
	b.open = nil
	b.append(&ifNode[S]{id: o.ifID, arms: o.ifArms, elseBody: o.ifElse})
	return b
}

// Switch opens a Switch construct keyed by sel. Add arms with Case and
// Default, and close with EndSwitch.
func (b *Builder[S]) Switch(sel KeySelector[S]) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open != nil {
		return b.fail(ErrUnmatchedOpen)
	}
	b.lastStep = nil
	b.open = &openConstruct[S]{kind: ctrlSwitch, switchID: b.ids.next(), switchKey: sel}
	return b
}

// Case adds an equality-matched arm to the innermost open Switch.
func (b *Builder[S]) Case(value any, then func(*Builder[S])) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open == nil || b.open.kind != ctrlSwitch {
		return b.fail(ErrUnmatchedClose)
	}
	body := b.runBody(then)
	if b.err != nil {
		return b
	}
	b.open.switchCases = append(b.open.switchCases, switchCase[S]{value: value, body: body})
	return b
}

// Default adds the fallback arm to the innermost open Switch. At most
// one Default is allowed per Switch.
func (b *Builder[S]) Default(then func(*Builder[S])) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open == nil || b.open.kind != ctrlSwitch {
		return b.fail(ErrUnmatchedClose)
	}
	if b.open.switchHasDef {
		return b.fail(ErrMultipleDefaults)
	}
	body := b.runBody(then)
	if b.err != nil {
		return b
	}
	b.open.switchDefault = body
	b.open.switchHasDef = true
	return b
}

// EndSwitch closes the innermost open Switch.
func (b *Builder[S]) EndSwitch() *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open == nil || b.open.kind != ctrlSwitch {
		return b.fail(ErrUnmatchedClose)
	}
	o := b.open
	b.open = nil
	var def Node[S]
	if o.switchHasDef {
		def = o.switchDefault
	}
	b.append(&switchNode[S]{id: o.switchID, keySelector: o.switchKey, cases: o.switchCases, defaultBody: def})
	return b
}

// While opens a While construct: pred is re-evaluated after every body
// completion. Close with EndWhile.
func (b *Builder[S]) While(pred Predicate[S], body func(*Builder[S])) *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open != nil {
		return b.fail(ErrUnmatchedOpen)
	}
	b.lastStep = nil
	id := b.ids.next()
	built := b.runBody(body)
	if b.err != nil {
		return b
	}
	b.open = &openConstruct[S]{kind: ctrlWhile, whileID: id, whilePred: pred, whileBody: built}
	return b
}

// EndWhile closes the innermost open While.
func (b *Builder[S]) EndWhile() *Builder[S] {
	if b.err != nil {
		return b
	}
	if b.open == nil || b.open.kind != ctrlWhile {
		return b.fail(ErrUnmatchedClose)
	}
	o := b.open
	b.open = nil
	b.append(&whileNode[S]{id: o.whileID, predicate: o.whilePred, body: o.whileBody})
	return b
}

// ForEachOption configures a ForEach node appended by Builder.ForEach.
type ForEachOption[S State] func(*forEachNode[S]) error

// WithParallelism sets the ForEach's bounded-parallel degree. N must be
// >= 1; N == 1 (the default) runs items sequentially.
func WithParallelism[S State](n int) ForEachOption[S] {
	return func(f *forEachNode[S]) error {
		if n < 1 {
			return ErrInvalidParallelism
		}
		f.parallelism = n
		return nil
	}
}

// WithContinueOnFailure tolerates individual item failures instead of
// triggering rollback: the loop succeeds iff all items eventually
// resolve, whether by their own success or their own internal recovery.
func WithContinueOnFailure[S State]() ForEachOption[S] {
	return func(f *forEachNode[S]) error {
		f.continueOnFailure = true
		return nil
	}
}

// ForEach appends a bounded-parallel-or-sequential loop over the items
// collection materializes, running itemBody once per item.
func (b *Builder[S]) ForEach(collection CollectionSelector[S], itemBody ItemBodyFactory[S], opts ...ForEachOption[S]) *Builder[S] {
	if b.err != nil {
		return b
	}
	b.lastStep = nil
	n := &forEachNode[S]{id: b.ids.next(), collection: collection, itemBody: itemBody, parallelism: 1}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return b.fail(err)
		}
	}
	b.append(n)
	return b
}

// BuildNode freezes the accumulated subtree as a bare Node instead of a
// Definition. It exists so an ItemBodyFactory passed to ForEach — which
// must return a Node, not a Definition — can be authored with the same
// fluent surface as a top-level definition.
func (b *Builder[S]) BuildNode() (Node[S], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.open != nil {
		return nil, ErrUnmatchedOpen
	}
	return b.finish()
}

// Build freezes the accumulated definition. It fails if any earlier
// builder call recorded an error, or if a construct was left open
// without its matching End* call.
func (b *Builder[S]) Build() (*Definition[S], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.open != nil {
		return nil, ErrUnmatchedOpen
	}
	root, err := b.finish()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrEmptyDefinition
	}
	return &Definition[S]{root: root}, nil
}
