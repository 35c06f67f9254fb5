// Package openai adapts OpenAI's chat completions API to llm.ChatModel.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sagaflow/sagaflow-go/flow/step/llm"
)

// ChatModel implements llm.ChatModel for OpenAI, retrying transient errors
// (timeouts, 5xx, rate limits) internally before surfacing a failure to
// the step's own Retry policy. The delay between attempts is the fixed
// retry delay, growing linearly with the attempt number for rate limits.
type ChatModel struct {
	apiKey     string
	modelName  string
	client     client
	maxRetries int
	retryDelay time.Duration
}

type client interface {
	createChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error)
}

// NewChatModel builds a ChatModel for the given model name ("" selects a
// default), with 3 internal retries at a 1 second base delay.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &ChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		client:     &defaultClient{apiKey: apiKey, modelName: modelName},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Chat implements llm.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return llm.ChatOut{}, err
	}

	var lastErr error
	retries := 0
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		out, err := m.client.createChatCompletion(ctx, messages, tools)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt >= m.maxRetries {
			break
		}
		retries++

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return llm.ChatOut{}, ctx.Err()
		}
	}
	return llm.ChatOut{}, fmt.Errorf("openai API failed after %d retries: %w", retries, lastErr)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rle *rateLimitError
	if errors.As(err, &rle) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rle *rateLimitError
	return errors.As(err, &rle)
}

type rateLimitError struct{ message string }

func (e *rateLimitError) Error() string { return e.message }

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	if c.apiKey == "" {
		return llm.ChatOut{}, errors.New("openai API key is required")
	}

	sdkClient := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := sdkClient.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.ChatOut{}, fmt.Errorf("openai API error: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []llm.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			result[i] = openaisdk.SystemMessage(msg.Content)
		case llm.RoleAssistant:
			result[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			result[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return result
}

func convertTools(tools []llm.ToolSpec) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		result[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openaisdk.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Schema),
			},
		}
	}
	return result
}

func convertResponse(resp *openaisdk.ChatCompletion) llm.ChatOut {
	out := llm.ChatOut{}
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content
	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = make([]llm.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			out.ToolCalls[i] = llm.ToolCall{
				Name:  tc.Function.Name,
				Input: map[string]interface{}{"_raw": tc.Function.Arguments},
			}
		}
	}
	return out
}
