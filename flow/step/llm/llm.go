// Package llm provides StepFunc adapters that wrap a chat-completion call
// as a workflow step body, so retry and timeout modifiers apply to a real
// external I/O boundary the same way they apply to any other step.
package llm

import (
	"context"

	"github.com/sagaflow/sagaflow-go/flow"
)

// ChatModel abstracts the differences between LLM providers so a step body
// does not need to know which one it is talking to.
//
// Implementations should respect context cancellation, translate
// provider-specific errors into a form callers can inspect with errors.As,
// and leave retry/backoff policy to the caller — Step applies the
// workflow's own Retry modifier around Chat, so ChatModel implementations
// should not retry internally unless they need provider-specific handling
// (rate limiting, for instance) that a generic policy can't express.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a conversation.
type Message struct {
	Role    string
	Content string
}

// Standard roles shared across providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a function the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolCall is a single invocation the model requested.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}

// ChatOut is what a ChatModel returns: text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// BuildMessages produces the conversation to send, derived from the
// workflow's current state.
type BuildMessages[S flow.State] func(state S) []Message

// ApplyOutput folds a completion back into state and decides whether the
// step advances. Returning false stops the flow without treating it as a
// failure; returning an error marks the step failed (and is subject to the
// step's Retry policy, if any).
type ApplyOutput[S flow.State] func(state S, out ChatOut) (bool, error)

// Step adapts a ChatModel into a flow.StepFunc: it builds the request from
// state, calls Chat, and folds the response back into state via apply.
// Context cancellation during Chat surfaces as a step error, same as any
// other I/O-bound step body.
func Step[S flow.State](model ChatModel, tools []ToolSpec, build BuildMessages[S], apply ApplyOutput[S]) flow.StepFunc[S] {
	return func(ctx context.Context, state S) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		out, err := model.Chat(ctx, build(state), tools)
		if err != nil {
			return false, err
		}
		return apply(state, out)
	}
}
