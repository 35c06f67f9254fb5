package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/sagaflow/sagaflow-go/flow/step/llm"
)

func TestChatModelReturnsConfiguredResponse(t *testing.T) {
	m := &ChatModel{Responses: []llm.ChatOut{{Text: "hello"}}}

	out, err := m.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "hello" {
		t.Errorf("Text = %q, want %q", out.Text, "hello")
	}
}

func TestChatModelRepeatsLastResponse(t *testing.T) {
	m := &ChatModel{Responses: []llm.ChatOut{{Text: "only"}}}

	for i := 0; i < 3; i++ {
		out, err := m.Chat(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("Chat: %v", err)
		}
		if out.Text != "only" {
			t.Errorf("call %d: Text = %q, want %q", i, out.Text, "only")
		}
	}
	if m.CallCount() != 3 {
		t.Fatalf("CallCount = %d, want 3", m.CallCount())
	}
}

func TestChatModelReturnsConfiguredError(t *testing.T) {
	want := errors.New("boom")
	m := &ChatModel{Err: want}

	_, err := m.Chat(context.Background(), nil, nil)
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestChatModelResetClearsHistory(t *testing.T) {
	m := &ChatModel{Responses: []llm.ChatOut{{Text: "a"}, {Text: "b"}}}
	_, _ = m.Chat(context.Background(), nil, nil)
	_, _ = m.Chat(context.Background(), nil, nil)

	m.Reset()

	if m.CallCount() != 0 {
		t.Fatalf("CallCount after Reset = %d, want 0", m.CallCount())
	}
	out, _ := m.Chat(context.Background(), nil, nil)
	if out.Text != "a" {
		t.Fatalf("after Reset, first response = %q, want %q", out.Text, "a")
	}
}
