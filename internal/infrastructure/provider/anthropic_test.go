package provider_test

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/provider"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

type mockMessages struct {
	lastParams sdk.MessageNewParams
	response   *sdk.Message
	err        error
}

func (m *mockMessages) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	m.lastParams = body
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func textMessage(text string) *sdk.Message {
	return &sdk.Message{
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: text}},
		StopReason: "end_turn",
	}
}

func TestAnthropicCompleteBuildsParams(t *testing.T) {
	mock := &mockMessages{response: textMessage("hello")}
	client := provider.NewAnthropicClient(mock, "claude-3-7-sonnet-20250219", 1024)

	resp, err := client.Complete(context.Background(), provider.Request{
		System:   "be terse",
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
		Tools: []*tool.Definition{{
			Name:        "web_search",
			Description: "search the web",
			Parameters: tool.Parameters{
				Properties: map[string]*tool.Property{
					"query": {Type: "string"},
				},
				Required: []string{"query"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello" || resp.UsedTools() {
		t.Fatalf("unexpected response: %+v", resp)
	}

	params := mock.lastParams
	if params.Model != "claude-3-7-sonnet-20250219" {
		t.Fatalf("model = %q", params.Model)
	}
	if params.MaxTokens != 1024 {
		t.Fatalf("maxTokens = %d", params.MaxTokens)
	}
	if len(params.System) != 1 || params.System[0].Text != "be terse" {
		t.Fatalf("system block missing: %+v", params.System)
	}
	if len(params.Messages) != 1 || params.Messages[0].Role != "user" {
		t.Fatalf("unexpected conversation: %+v", params.Messages)
	}
	if len(params.Tools) != 1 {
		t.Fatalf("tools not advertised: %+v", params.Tools)
	}
}

func TestAnthropicCompleteNormalizesToolUse(t *testing.T) {
	mock := &mockMessages{response: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "let me check"},
			{Type: "tool_use", ID: "toolu_1", Name: "web_search", Input: []byte(`{"query":"golang"}`)},
		},
		StopReason: "tool_use",
	}}
	client := provider.NewAnthropicClient(mock, "claude-3-7-sonnet-20250219", 1024)

	resp, err := client.Complete(context.Background(), provider.Request{Messages: []provider.Message{{Role: "user", Content: "search"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !resp.UsedTools() || len(resp.ToolUses) != 1 {
		t.Fatalf("tool use not detected: %+v", resp)
	}
	use := resp.ToolUses[0]
	if use.ID != "toolu_1" || use.Name != "web_search" || use.Input["query"] != "golang" {
		t.Fatalf("unexpected tool use: %+v", use)
	}
	if resp.StopReason != "tool_use" {
		t.Fatalf("stop reason = %q", resp.StopReason)
	}
}

func TestAnthropicFollowupMessageShape(t *testing.T) {
	mock := &mockMessages{response: textMessage("final")}
	client := provider.NewAnthropicClient(mock, "claude-3-7-sonnet-20250219", 1024)

	req := provider.Request{Messages: []provider.Message{{Role: "user", Content: "search golang"}}}
	reply := &provider.Response{
		Text: "let me check",
		ToolUses: []provider.ToolUse{
			{ID: "toolu_1", Name: "web_search", Input: map[string]any{"query": "golang"}},
			{ID: "toolu_2", Name: "web_content", Input: map[string]any{"url": "https://go.dev"}},
		},
	}
	results := []provider.ToolResult{
		{ID: "toolu_1", Name: "web_search", Content: "result one"},
		{ID: "toolu_2", Name: "web_content", Content: map[string]any{"error": "fetch failed"}, IsError: true},
	}

	if _, err := client.Followup(context.Background(), req, reply, results); err != nil {
		t.Fatalf("Followup: %v", err)
	}

	// Conversation: original user turn, assistant tool_use turn, then a
	// single user turn carrying every tool_result block.
	msgs := mock.lastParams.Messages
	if len(msgs) != 3 {
		t.Fatalf("conversation length = %d, want 3", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" || msgs[2].Role != "user" {
		t.Fatalf("unexpected roles: %v %v %v", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
	// Assistant turn: text block plus one tool_use block per call.
	if len(msgs[1].Content) != 3 {
		t.Fatalf("assistant blocks = %d, want 3", len(msgs[1].Content))
	}
	// Result turn: one tool_result block per call, not one message per call.
	if len(msgs[2].Content) != 2 {
		t.Fatalf("result blocks = %d, want 2", len(msgs[2].Content))
	}
}

func TestAnthropicErrorWrapped(t *testing.T) {
	mock := &mockMessages{err: context.DeadlineExceeded}
	client := provider.NewAnthropicClient(mock, "claude-3-7-sonnet-20250219", 1024)

	_, err := client.Complete(context.Background(), provider.Request{Messages: []provider.Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !platformerrors.IsType(err, platformerrors.ErrorTypeExternal) {
		t.Fatalf("expected an external error, got %v", err)
	}
}
