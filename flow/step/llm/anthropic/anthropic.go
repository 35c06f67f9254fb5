// Package anthropic adapts Anthropic's Claude API to llm.ChatModel.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sagaflow/sagaflow-go/flow/step/llm"
)

// ChatModel implements llm.ChatModel against Claude, extracting the system
// prompt into Anthropic's separate system parameter since Claude does not
// accept it inline with the message array.
type ChatModel struct {
	apiKey    string
	modelName string
	client    client
}

type client interface {
	createMessage(ctx context.Context, systemPrompt string, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error)
}

// NewChatModel builds a ChatModel for the given model name ("" selects a
// default).
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements llm.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return llm.ChatOut{}, err
	}

	systemPrompt, rest := extractSystemPrompt(messages)
	return m.client.createMessage(ctx, systemPrompt, rest, tools)
}

func extractSystemPrompt(messages []llm.Message) (string, []llm.Message) {
	var systemPrompt string
	var rest []llm.Message
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return systemPrompt, rest
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createMessage(ctx context.Context, systemPrompt string, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	if c.apiKey == "" {
		return llm.ChatOut{}, errors.New("anthropic API key is required")
	}

	sdkClient := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  convertMessages(messages),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := sdkClient.Messages.New(ctx, params)
	if err != nil {
		return llm.ChatOut{}, fmt.Errorf("anthropic API error: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []llm.Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case llm.RoleAssistant:
			result[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			result[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return result
}

func convertTools(tools []llm.ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, tool := range tools {
		var properties any
		var required []string
		if tool.Schema != nil {
			if props, ok := tool.Schema["properties"]; ok {
				properties = props
			}
			if req, ok := tool.Schema["required"].([]string); ok {
				required = req
			} else if req, ok := tool.Schema["required"].([]interface{}); ok {
				required = make([]string, len(req))
				for j, v := range req {
					if s, ok := v.(string); ok {
						required[j] = s
					}
				}
			}
		}
		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Name,
				Description: anthropicsdk.String(tool.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		}
	}
	return result
}

func convertResponse(resp *anthropicsdk.Message) llm.ChatOut {
	out := llm.ChatOut{}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		case anthropicsdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				Name:  b.Name,
				Input: convertToolInput(b.Input),
			})
		}
	}
	return out
}

func convertToolInput(input interface{}) map[string]interface{} {
	if input == nil {
		return nil
	}
	if m, ok := input.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"_raw": input}
}
