package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, keyed by flow id, for
// assertions in tests and for post-execution inspection in development.
// Not meant for long-running production processes: nothing ever evicts
// old runs short of an explicit Clear.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // flowID -> events
}

// HistoryFilter narrows GetHistoryWithFilter. Empty fields are no-ops;
// set fields combine with AND.
type HistoryFilter struct {
	NodeID  string
	Msg     string
	MinStep *int
	MaxStep *int
}

// NewBufferedEmitter returns an empty, concurrency-safe BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.FlowID] = append(b.events[event.FlowID], event)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range events {
		b.events[e.FlowID] = append(b.events[e.FlowID], e)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// GetHistory returns a copy of every event recorded for flowID, in
// emission order.
func (b *BufferedEmitter) GetHistory(flowID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[flowID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// GetHistoryWithFilter returns the subset of flowID's history matching
// every set field of filter.
func (b *BufferedEmitter) GetHistoryWithFilter(flowID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events[flowID] {
		if filter.NodeID != "" && event.NodeID != filter.NodeID {
			continue
		}
		if filter.Msg != "" && event.Msg != filter.Msg {
			continue
		}
		if filter.MinStep != nil && event.StepID < *filter.MinStep {
			continue
		}
		if filter.MaxStep != nil && event.StepID > *filter.MaxStep {
			continue
		}
		result = append(result, event)
	}
	if result == nil {
		return []Event{}
	}
	return result
}

// Clear drops recorded history for flowID, or every flow id if flowID is
// empty.
func (b *BufferedEmitter) Clear(flowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if flowID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, flowID)
}
