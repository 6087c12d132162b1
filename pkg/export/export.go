// Package export converts registered tools into the function-calling formats
// of LLM provider SDKs.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/theapemachine/mcp-pod/core"
	"github.com/theapemachine/mcp-pod/pkg/schema"
)

// Parameters returns the JSON schema of a tool's arguments, listing the
// non-optional ones under "required".
func Parameters(tool core.Tool) map[string]any {
	properties := make(map[string]any, len(tool.Arguments))
	required := []string{}

	for _, key := range schema.Keys(tool.Arguments) {
		s := tool.Arguments[key]
		properties[key] = schema.Describe(s)

		if !s.Optional() {
			required = append(required, key)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// OpenAI converts a tool to OpenAI format
func OpenAI(tool core.Tool) openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(tool.Name),
			Description: openai.String(tool.Description),
			Parameters:  openai.F(openai.FunctionParameters(Parameters(tool))),
		}),
	}
}

// OpenAITools converts a slice of tools to OpenAI format
func OpenAITools(tools []core.Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))

	for i, tool := range tools {
		out[i] = OpenAI(tool)
	}

	return out
}

// Anthropic converts a tool to Anthropic format
func Anthropic(tool core.Tool) (anthropic.ToolParam, error) {
	param := anthropic.ToolParam{
		Name: anthropic.F(tool.Name),
	}

	if tool.Description != "" {
		param.Description = anthropic.F(tool.Description)
	}

	// Round-trip so nested schema values are plain JSON types.
	var inputSchema map[string]interface{}

	buf, err := json.Marshal(Parameters(tool))
	if err != nil {
		return param, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	if err := json.Unmarshal(buf, &inputSchema); err != nil {
		return param, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	param.InputSchema = anthropic.F[interface{}](inputSchema)
	return param, nil
}

// AnthropicTools converts a slice of tools to Anthropic format
func AnthropicTools(tools []core.Tool) ([]anthropic.ToolParam, error) {
	out := make([]anthropic.ToolParam, 0, len(tools))

	for _, tool := range tools {
		param, err := Anthropic(tool)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", tool.Name, err)
		}

		out = append(out, param)
	}

	return out, nil
}
