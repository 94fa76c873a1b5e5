package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/infinyte/mcp-server/internal/domain/dispatch"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/memstore"
	"github.com/infinyte/mcp-server/internal/infrastructure/provider"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	"github.com/infinyte/mcp-server/internal/utils/crypto"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// mockClient scripts provider responses for orchestration tests.
type mockClient struct {
	name         string
	completeFunc func(ctx context.Context, req provider.Request) (*provider.Response, error)
	followupFunc func(ctx context.Context, req provider.Request, reply *provider.Response, results []provider.ToolResult) (*provider.Response, error)

	completeCalls int
	followupCalls int
	lastResults   []provider.ToolResult
}

func (m *mockClient) Name() string         { return m.name }
func (m *mockClient) DefaultModel() string { return "mock-model" }

func (m *mockClient) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	m.completeCalls++
	return m.completeFunc(ctx, req)
}

func (m *mockClient) Followup(ctx context.Context, req provider.Request, reply *provider.Response, results []provider.ToolResult) (*provider.Response, error) {
	m.followupCalls++
	m.lastResults = results
	if m.followupFunc != nil {
		return m.followupFunc(ctx, req, reply, results)
	}
	return &provider.Response{Raw: "followup", Text: "final answer"}, nil
}

func newTestState(t *testing.T) (*state.Manager, *memstore.MemoryStore) {
	t.Helper()
	s := memstore.New(store.NewCipher(crypto.NewKeyResolver("dispatch-test-key")))
	m := state.NewManager(context.Background(), s, nil)
	if _, err := m.SaveTool(context.Background(), &tool.Definition{
		Name:        "web_search",
		Description: "search the web",
		Category:    tool.CategoryWeb,
		Enabled:     true,
	}); err != nil {
		t.Fatalf("SaveTool: %v", err)
	}
	return m, s
}

func textResponse(text string) *provider.Response {
	return &provider.Response{Raw: map[string]any{"content": text}, Text: text, StopReason: "end_turn"}
}

func toolUseResponse(uses ...provider.ToolUse) *provider.Response {
	return &provider.Response{Raw: "initial", Text: "", ToolUses: uses, StopReason: "tool_use"}
}

func TestDispatchUnsupportedProvider(t *testing.T) {
	manager, _ := newTestState(t)
	o := dispatch.NewOrchestrator(nil, dispatch.NewRegistry(), manager)

	_, err := o.Dispatch(context.Background(), "gemini", dispatch.Request{Prompt: "hi"}, execution.Metadata{})
	if err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if !platformerrors.IsType(err, platformerrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDispatchPromptMessagesValidation(t *testing.T) {
	manager, _ := newTestState(t)
	client := &mockClient{name: "anthropic", completeFunc: func(context.Context, provider.Request) (*provider.Response, error) {
		return textResponse("ok"), nil
	}}
	o := dispatch.NewOrchestrator([]provider.Client{client}, dispatch.NewRegistry(), manager)

	tests := []struct {
		name    string
		req     dispatch.Request
		wantErr bool
	}{
		{name: "neither", req: dispatch.Request{}, wantErr: true},
		{name: "both", req: dispatch.Request{Prompt: "hi", Messages: []provider.Message{{Role: "user", Content: "hi"}}}, wantErr: true},
		{name: "prompt only", req: dispatch.Request{Prompt: "hi"}},
		{name: "messages only", req: dispatch.Request{Messages: []provider.Message{{Role: "user", Content: "hi"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Dispatch(context.Background(), "anthropic", tt.req, execution.Metadata{})
			if tt.wantErr {
				if !platformerrors.IsType(err, platformerrors.ErrorTypeValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
		})
	}
}

func TestDispatchNoToolUse(t *testing.T) {
	manager, s := newTestState(t)
	client := &mockClient{name: "anthropic", completeFunc: func(context.Context, provider.Request) (*provider.Response, error) {
		return textResponse("plain answer"), nil
	}}
	o := dispatch.NewOrchestrator([]provider.Client{client}, dispatch.NewRegistry(), manager)

	result, err := o.Dispatch(context.Background(), "anthropic", dispatch.Request{Prompt: "hello"}, execution.Metadata{})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.UsedTools {
		t.Fatalf("expected no tool use")
	}
	if result.SessionID == "" {
		t.Fatalf("expected a session id")
	}
	if client.followupCalls != 0 {
		t.Fatalf("follow-up must not run without tool use")
	}

	// The parent record is terminal.
	stats, err := s.GetToolExecutionStats(context.Background(), execution.StatsQuery{Period: execution.PeriodDay, ToolName: "mcp"})
	if err != nil {
		t.Fatalf("GetToolExecutionStats: %v", err)
	}
	if stats.TotalCount != 1 || stats.SuccessCount != 1 {
		t.Fatalf("parent record not completed: %+v", stats)
	}
}

func TestDispatchToolUseLoop(t *testing.T) {
	manager, s := newTestState(t)
	client := &mockClient{name: "anthropic", completeFunc: func(context.Context, provider.Request) (*provider.Response, error) {
		return toolUseResponse(provider.ToolUse{ID: "call_1", Name: "web_search", Input: map[string]any{"query": "golang"}}), nil
	}}

	registry := dispatch.NewRegistry()
	registry.Register(dispatch.HandlerFunc{ToolName: "web_search", Fn: func(_ context.Context, input map[string]any) (any, error) {
		if input["query"] != "golang" {
			t.Fatalf("handler received wrong input: %v", input)
		}
		return map[string]any{"results": []string{"go.dev"}}, nil
	}})

	o := dispatch.NewOrchestrator([]provider.Client{client}, registry, manager)
	result, err := o.Dispatch(context.Background(), "anthropic", dispatch.Request{Prompt: "search golang"}, execution.Metadata{})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if !result.UsedTools {
		t.Fatalf("expected tool use")
	}
	if result.Response != "followup" {
		t.Fatalf("expected the follow-up response, got %v", result.Response)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "web_search" || result.ToolCalls[0].Error != "" {
		t.Fatalf("unexpected tool calls: %+v", result.ToolCalls)
	}
	if client.followupCalls != 1 {
		t.Fatalf("expected exactly one follow-up call")
	}
	if len(client.lastResults) != 1 || client.lastResults[0].ID != "call_1" || client.lastResults[0].IsError {
		t.Fatalf("unexpected tool results fed back: %+v", client.lastResults)
	}

	// Parent plus one child record.
	stats, err := s.GetToolExecutionStats(context.Background(), execution.StatsQuery{Period: execution.PeriodDay})
	if err != nil {
		t.Fatalf("GetToolExecutionStats: %v", err)
	}
	if stats.TotalCount != 2 || stats.SuccessCount != 2 {
		t.Fatalf("expected two successful records, got %+v", stats)
	}

	// Usage counters bumped on the definition.
	def, err := s.GetToolByName(context.Background(), "web_search")
	if err != nil || def == nil {
		t.Fatalf("GetToolByName: %v", err)
	}
	if def.Metadata.UsageCount != 1 {
		t.Fatalf("usage count = %d, want 1", def.Metadata.UsageCount)
	}
}

func TestDispatchUnknownToolDoesNotAbortSiblings(t *testing.T) {
	manager, s := newTestState(t)
	client := &mockClient{name: "openai", completeFunc: func(context.Context, provider.Request) (*provider.Response, error) {
		return toolUseResponse(
			provider.ToolUse{ID: "call_1", Name: "nonexistent_tool", Input: map[string]any{}},
			provider.ToolUse{ID: "call_2", Name: "web_search", Input: map[string]any{"query": "x"}},
		), nil
	}}

	registry := dispatch.NewRegistry()
	registry.Register(dispatch.HandlerFunc{ToolName: "web_search", Fn: func(context.Context, map[string]any) (any, error) {
		return "ok", nil
	}})

	o := dispatch.NewOrchestrator([]provider.Client{client}, registry, manager)
	result, err := o.Dispatch(context.Background(), "openai", dispatch.Request{Prompt: "go"}, execution.Metadata{})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected both calls recorded, got %+v", result.ToolCalls)
	}
	if result.ToolCalls[0].Error != "Unknown tool: nonexistent_tool" {
		t.Fatalf("unexpected unknown-tool error: %q", result.ToolCalls[0].Error)
	}
	if result.ToolCalls[1].Error != "" || result.ToolCalls[1].Result != "ok" {
		t.Fatalf("sibling call was not executed: %+v", result.ToolCalls[1])
	}

	// The failed call is surfaced to the model as an error result.
	if len(client.lastResults) != 2 || !client.lastResults[0].IsError || client.lastResults[1].IsError {
		t.Fatalf("unexpected result errors: %+v", client.lastResults)
	}

	// The unknown call still gets its own failure record.
	stats, err := s.GetToolExecutionStats(context.Background(), execution.StatsQuery{Period: execution.PeriodDay, ToolName: "nonexistent_tool"})
	if err != nil {
		t.Fatalf("GetToolExecutionStats: %v", err)
	}
	if stats.TotalCount != 1 || stats.FailureCount != 1 {
		t.Fatalf("unknown tool call not logged as a failure: %+v", stats)
	}
}

func TestDispatchHandlerErrorBecomesToolResult(t *testing.T) {
	manager, _ := newTestState(t)
	client := &mockClient{name: "anthropic", completeFunc: func(context.Context, provider.Request) (*provider.Response, error) {
		return toolUseResponse(provider.ToolUse{ID: "call_1", Name: "web_search", Input: map[string]any{}}), nil
	}}

	registry := dispatch.NewRegistry()
	registry.Register(dispatch.HandlerFunc{ToolName: "web_search", Fn: func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("upstream timeout")
	}})

	o := dispatch.NewOrchestrator([]provider.Client{client}, registry, manager)
	result, err := o.Dispatch(context.Background(), "anthropic", dispatch.Request{Prompt: "go"}, execution.Metadata{})
	if err != nil {
		t.Fatalf("a tool failure must not fail the dispatch: %v", err)
	}
	if result.ToolCalls[0].Error != "upstream timeout" {
		t.Fatalf("unexpected outcome: %+v", result.ToolCalls[0])
	}
	if !client.lastResults[0].IsError {
		t.Fatalf("error result not flagged for the model")
	}
}

func TestDispatchProviderFailureCompletesParent(t *testing.T) {
	manager, s := newTestState(t)
	client := &mockClient{name: "anthropic", completeFunc: func(context.Context, provider.Request) (*provider.Response, error) {
		return nil, errors.New("provider down")
	}}

	o := dispatch.NewOrchestrator([]provider.Client{client}, dispatch.NewRegistry(), manager)
	_, err := o.Dispatch(context.Background(), "anthropic", dispatch.Request{Prompt: "go"}, execution.Metadata{})
	if err == nil {
		t.Fatalf("expected the provider error to surface")
	}

	stats, statsErr := s.GetToolExecutionStats(context.Background(), execution.StatsQuery{Period: execution.PeriodDay, ToolName: "mcp"})
	if statsErr != nil {
		t.Fatalf("GetToolExecutionStats: %v", statsErr)
	}
	if stats.TotalCount != 1 || stats.FailureCount != 1 {
		t.Fatalf("parent record not completed as failure: %+v", stats)
	}
}
