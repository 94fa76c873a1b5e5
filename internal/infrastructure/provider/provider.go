// Package provider adapts the upstream model APIs behind one completion
// contract. Each adapter owns its wire shapes, including how tool results are
// fed back: Anthropic takes tool_result blocks inside a single user message
// while OpenAI takes one tool-role message per call.
package provider

import (
	"context"
	"encoding/json"

	"github.com/infinyte/mcp-server/internal/domain/tool"
)

// Message is a provider-neutral conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []*tool.Definition
	MaxTokens int
}

// ToolUse is a normalized tool invocation directive from a model reply.
type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult carries one executed tool call's outcome back to the model.
type ToolResult struct {
	ID      string
	Name    string
	Content any
	IsError bool
}

// Response is a normalized completion reply. Raw preserves the provider's
// response object for passthrough to the caller.
type Response struct {
	Raw        any
	Text       string
	ToolUses   []ToolUse
	StopReason string
}

// UsedTools reports whether the reply contains tool invocation directives.
func (r *Response) UsedTools() bool {
	return r != nil && len(r.ToolUses) > 0
}

// Client is one upstream model provider.
type Client interface {
	// Name is the provider identifier used in routes and telemetry.
	Name() string
	// DefaultModel is used when the request does not name a model.
	DefaultModel() string
	// Complete issues one completion call.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Followup re-issues the conversation extended with the assistant's tool
	// use and the tool results, in the provider's own wire shape.
	Followup(ctx context.Context, req Request, reply *Response, results []ToolResult) (*Response, error)
}

// encodeResultContent serializes a tool result payload for the wire. Strings
// pass through; everything else is JSON.
func encodeResultContent(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
