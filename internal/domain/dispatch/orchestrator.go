package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
	"github.com/infinyte/mcp-server/internal/infrastructure/metrics"
	"github.com/infinyte/mcp-server/internal/infrastructure/provider"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// parentToolName labels the parent execution record covering a whole dispatch.
const parentToolName = "mcp"

// Request is one dispatch call. Exactly one of Prompt and Messages must be
// set.
type Request struct {
	Prompt   string             `json:"prompt,omitempty"`
	Messages []provider.Message `json:"messages,omitempty"`
	// Tools optionally restricts the advertised tools by name; empty means
	// every enabled tool.
	Tools   []string `json:"tools,omitempty"`
	Context string   `json:"context,omitempty"`
	Model   string   `json:"model,omitempty"`
}

// CallOutcome records one executed tool call within a dispatch.
type CallOutcome struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the dispatch outcome. Response is the raw provider reply: the
// follow-up completion when tools ran, the initial one otherwise.
type Result struct {
	Response  any           `json:"response"`
	UsedTools bool          `json:"usedTools"`
	ToolCalls []CallOutcome `json:"toolCalls,omitempty"`
	SessionID string        `json:"sessionId"`
}

// Orchestrator drives the complete / execute-tools / follow-up state machine.
type Orchestrator struct {
	providers map[string]provider.Client
	registry  *Registry
	state     *state.Manager
}

// NewOrchestrator wires the provider clients, tool registry and state
// manager.
func NewOrchestrator(clients []provider.Client, registry *Registry, stateManager *state.Manager) *Orchestrator {
	providers := make(map[string]provider.Client, len(clients))
	for _, client := range clients {
		providers[client.Name()] = client
	}
	return &Orchestrator{providers: providers, registry: registry, state: stateManager}
}

// Providers returns the configured provider names.
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for name := range o.providers {
		names = append(names, name)
	}
	return names
}

// Dispatch runs one round: model call, tool execution, follow-up. The parent
// execution record transitions out of pending exactly once, before the caller
// sees the result or the error.
func (o *Orchestrator) Dispatch(ctx context.Context, providerName string, req Request, meta execution.Metadata) (*Result, error) {
	client, ok := o.providers[providerName]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported provider: %s", providerName), nil)
	}
	if err := validateRequest(ctx, req); err != nil {
		return nil, err
	}

	messages := req.Messages
	if req.Prompt != "" {
		messages = []provider.Message{{Role: "user", Content: req.Prompt}}
	}

	model := req.Model
	if model == "" {
		model = client.DefaultModel()
	}
	meta.ModelName = model

	toolDefs := o.resolveTools(ctx, req.Tools)
	providerReq := provider.Request{
		Model:    model,
		System:   req.Context,
		Messages: messages,
		Tools:    toolDefs,
	}

	parentRec := &execution.Record{
		ToolName: parentToolName,
		Provider: execution.Provider(providerName),
		Inputs: map[string]any{
			"prompt":       req.Prompt,
			"messageCount": len(req.Messages),
			"model":        model,
			"toolCount":    len(toolDefs),
		},
		Metadata: meta,
	}
	parent := o.state.LogExecution(ctx, parentRec)
	sessionID := parentRec.SessionID

	started := time.Now()
	reply, err := client.Complete(ctx, providerReq)
	metrics.RecordDispatch(providerName, model, time.Since(started).Seconds())
	if err != nil {
		parent.Complete(nil, err)
		return nil, err
	}

	if !reply.UsedTools() {
		parent.Complete(map[string]any{"usedTools": false, "stopReason": reply.StopReason}, nil)
		return &Result{Response: reply.Raw, UsedTools: false, SessionID: sessionID}, nil
	}

	outcomes, results := o.executeToolUses(ctx, providerName, sessionID, reply.ToolUses, meta)

	followup, err := client.Followup(ctx, providerReq, reply, results)
	if err != nil {
		parent.Complete(nil, err)
		return nil, err
	}

	usedNames := make([]string, 0, len(reply.ToolUses))
	for _, use := range reply.ToolUses {
		usedNames = append(usedNames, use.Name)
	}
	parent.Complete(map[string]any{"usedTools": usedNames, "followupResponse": true}, nil)

	return &Result{
		Response:  followup.Raw,
		UsedTools: true,
		ToolCalls: outcomes,
		SessionID: sessionID,
	}, nil
}

func validateRequest(ctx context.Context, req Request) error {
	hasPrompt := req.Prompt != ""
	hasMessages := len(req.Messages) > 0
	if hasPrompt == hasMessages {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"exactly one of prompt and messages is required", nil)
	}
	return nil
}

// resolveTools loads the enabled tool definitions, optionally restricted to
// the requested names. Unknown requested names are skipped.
func (o *Orchestrator) resolveTools(ctx context.Context, names []string) []*tool.Definition {
	all := o.state.GetAllTools(ctx, tool.Filter{EnabledOnly: true})
	if len(names) == 0 {
		return all
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	selected := make([]*tool.Definition, 0, len(names))
	for _, def := range all {
		if _, ok := wanted[def.Name]; ok {
			selected = append(selected, def)
		}
	}
	return selected
}

// executeToolUses runs each tool call independently: a registry miss or a
// handler error becomes that call's error result and never aborts siblings.
func (o *Orchestrator) executeToolUses(ctx context.Context, providerName, sessionID string, uses []provider.ToolUse, meta execution.Metadata) ([]CallOutcome, []provider.ToolResult) {
	log := logger.GetLogger()
	outcomes := make([]CallOutcome, 0, len(uses))
	results := make([]provider.ToolResult, 0, len(uses))

	for _, use := range uses {
		outcome := CallOutcome{ID: use.ID, Name: use.Name}
		result := provider.ToolResult{ID: use.ID, Name: use.Name}

		handler, ok := o.registry.Get(use.Name)
		if !ok {
			message := fmt.Sprintf("Unknown tool: %s", use.Name)
			outcome.Error = message
			result.Content = map[string]any{"error": message}
			result.IsError = true
			handle := o.state.LogExecution(ctx, &execution.Record{
				ToolName:  use.Name,
				Provider:  execution.Provider(providerName),
				SessionID: sessionID,
				Inputs:    use.Input,
				Metadata:  meta,
			})
			handle.Complete(nil, errors.New(message))
			metrics.RecordToolCall(use.Name, providerName, "unknown", 0)
			outcomes = append(outcomes, outcome)
			results = append(results, result)
			continue
		}

		rec := &execution.Record{
			ToolName:  use.Name,
			Provider:  execution.Provider(providerName),
			SessionID: sessionID,
			Inputs:    use.Input,
			Metadata:  meta,
		}
		handle := o.state.LogExecution(ctx, rec)

		started := time.Now()
		output, err := handler.Execute(ctx, use.Input)
		elapsed := time.Since(started)
		handle.Complete(output, err)
		o.recordToolUsage(ctx, use.Name)

		if err != nil {
			log.Warn().Err(err).Str("tool", use.Name).Msg("Tool execution failed")
			outcome.Error = err.Error()
			result.Content = map[string]any{"error": err.Error()}
			result.IsError = true
			metrics.RecordToolCall(use.Name, providerName, "failure", elapsed.Seconds())
		} else {
			outcome.Result = output
			result.Content = output
			metrics.RecordToolCall(use.Name, providerName, "success", elapsed.Seconds())
		}
		outcomes = append(outcomes, outcome)
		results = append(results, result)
	}
	return outcomes, results
}

func (o *Orchestrator) recordToolUsage(ctx context.Context, name string) {
	def := o.state.GetTool(ctx, name)
	if def == nil {
		return
	}
	def.RecordUsage(time.Now().UTC())
	if _, err := o.state.SaveTool(ctx, def); err != nil {
		log := logger.GetLogger()
		log.Debug().Err(err).Str("tool", name).Msg("Failed to record tool usage")
	}
}
