// Package google adapts Google's Gemini API to llm.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/sagaflow/sagaflow-go/flow/step/llm"
	"google.golang.org/api/option"
)

// ChatModel implements llm.ChatModel for Gemini, translating safety-filter
// blocks into SafetyFilterError so callers can distinguish them from other
// API failures with errors.As.
type ChatModel struct {
	apiKey    string
	modelName string
	client    client
}

type client interface {
	generateContent(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error)
}

// NewChatModel builds a ChatModel for the given model name ("" selects a
// default).
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
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
	return m.client.generateContent(ctx, messages, tools)
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	if c.apiKey == "" {
		return llm.ChatOut{}, errors.New("google API key is required")
	}

	sdkClient, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return llm.ChatOut{}, fmt.Errorf("failed to create google client: %w", err)
	}
	defer sdkClient.Close()

	genModel := sdkClient.GenerativeModel(c.modelName)
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	resp, err := genModel.GenerateContent(ctx, convertMessages(messages)...)
	if err != nil {
		return llm.ChatOut{}, fmt.Errorf("google API error: %w", err)
	}
	return convertResponse(resp)
}

func convertMessages(messages []llm.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

func convertTools(tools []llm.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchema(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func convertSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		properties := make(map[string]*genai.Schema)
		for key, val := range props {
			propMap, ok := val.(map[string]interface{})
			if !ok {
				continue
			}
			propSchema := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				propSchema.Type = convertType(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				propSchema.Description = desc
			}
			properties[key] = propSchema
		}
		result.Properties = properties
	}
	if required, ok := schema["required"].([]interface{}); ok {
		for _, v := range required {
			if s, ok := v.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}
	return result
}

func convertType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertResponse(resp *genai.GenerateContentResponse) (llm.ChatOut, error) {
	out := llm.ChatOut{}
	if len(resp.Candidates) == 0 {
		return out, nil
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		if reason := candidate.FinishReason; reason == genai.FinishReasonSafety {
			return out, &SafetyFilterError{reason: reason.String()}
		}
		return out, nil
	}
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	return out, nil
}

// SafetyFilterError reports that Gemini blocked a response under its
// safety filters.
type SafetyFilterError struct {
	reason string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.reason
}

// Reason returns the safety category that triggered the block.
func (e *SafetyFilterError) Reason() string { return e.reason }
