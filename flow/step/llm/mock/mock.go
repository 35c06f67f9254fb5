// Package mock provides a ChatModel test double for exercising llm.Step
// without making real API calls.
package mock

import (
	"context"
	"sync"

	"github.com/sagaflow/sagaflow-go/flow/step/llm"
)

// ChatModel is a configurable, thread-safe llm.ChatModel for tests.
//
//	m := &mock.ChatModel{Responses: []llm.ChatOut{{Text: "ok"}}}
//	step := llm.Step(m, nil, buildMessages, applyOutput)
type ChatModel struct {
	// Responses is returned in order, one per call; the last entry repeats
	// once exhausted.
	Responses []llm.ChatOut

	// Err, if set, is returned instead of a response.
	Err error

	// Calls records every invocation for assertions.
	Calls []Call

	mu    sync.Mutex
	index int
}

// Call records a single Chat invocation.
type Call struct {
	Messages []llm.Message
	Tools    []llm.ToolSpec
}

// Chat implements llm.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return llm.ChatOut{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, Call{Messages: messages, Tools: tools})

	if m.Err != nil {
		return llm.ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return llm.ChatOut{}, nil
	}

	idx := m.index
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.index++
	}
	return m.Responses[idx], nil
}

// Reset clears call history and rewinds to the first response.
func (m *ChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.index = 0
}

// CallCount returns how many times Chat has been invoked.
func (m *ChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
