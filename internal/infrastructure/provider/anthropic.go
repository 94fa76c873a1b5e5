package provider

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/metrics"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// MessagesClient is the subset of the Anthropic SDK used here. *sdk.MessageService
// satisfies it, so tests can substitute a mock.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Client on the Anthropic Messages API.
type AnthropicClient struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropicClient builds the adapter over an existing Messages client.
func NewAnthropicClient(msg MessagesClient, defaultModel string, maxTokens int) *AnthropicClient {
	return &AnthropicClient{msg: msg, defaultModel: defaultModel, maxTokens: maxTokens}
}

// NewAnthropicClientFromAPIKey constructs the adapter with the default SDK
// HTTP client.
func NewAnthropicClientFromAPIKey(apiKey, defaultModel string, maxTokens int) *AnthropicClient {
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicClient(&ac.Messages, defaultModel, maxTokens)
}

func (c *AnthropicClient) Name() string         { return "anthropic" }
func (c *AnthropicClient) DefaultModel() string { return c.defaultModel }

// Complete issues one Messages.New call and normalizes the reply.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	params, err := c.buildParams(req, nil, nil)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, params)
}

// Followup replays the conversation extended with the assistant's tool_use
// blocks and a single user message aggregating one tool_result block per call.
func (c *AnthropicClient) Followup(ctx context.Context, req Request, reply *Response, results []ToolResult) (*Response, error) {
	params, err := c.buildParams(req, reply, results)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, params)
}

func (c *AnthropicClient) send(ctx context.Context, params *sdk.MessageNewParams) (*Response, error) {
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		metrics.RecordProviderError(c.Name(), "completion")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "anthropic completion failed", err)
	}
	return normalizeAnthropic(msg)
}

func (c *AnthropicClient) buildParams(req Request, reply *Response, results []ToolResult) (*sdk.MessageNewParams, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	conversation := make([]sdk.MessageParam, 0, len(req.Messages)+2)
	for _, m := range req.Messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case "assistant":
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	if reply != nil {
		assistantBlocks := make([]sdk.ContentBlockParamUnion, 0, len(reply.ToolUses)+1)
		if reply.Text != "" {
			assistantBlocks = append(assistantBlocks, sdk.NewTextBlock(reply.Text))
		}
		for _, use := range reply.ToolUses {
			assistantBlocks = append(assistantBlocks, sdk.NewToolUseBlock(use.ID, use.Input, use.Name))
		}
		conversation = append(conversation, sdk.NewAssistantMessage(assistantBlocks...))

		resultBlocks := make([]sdk.ContentBlockParamUnion, 0, len(results))
		for _, result := range results {
			resultBlocks = append(resultBlocks, sdk.NewToolResultBlock(result.ID, encodeResultContent(result.Content), result.IsError))
		}
		conversation = append(conversation, sdk.NewUserMessage(resultBlocks...))
	}

	params := &sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  conversation,
		Model:     sdk.Model(modelID),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	toolParams, err := encodeAnthropicTools(req.Tools)
	if err != nil {
		return nil, err
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}
	return params, nil
}

func encodeAnthropicTools(defs []*tool.Definition) ([]sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	toolList := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		schema := sdk.ToolInputSchemaParam{ExtraFields: def.Parameters.JSONSchema()}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil && def.Description != "" {
			u.OfTool.Description = sdk.String(def.Description)
		}
		toolList = append(toolList, u)
	}
	return toolList, nil
}

func normalizeAnthropic(msg *sdk.Message) (*Response, error) {
	if msg == nil {
		return nil, fmt.Errorf("anthropic: response message is nil")
	}
	resp := &Response{Raw: msg, StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			input := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					input = map[string]any{"raw": string(block.Input)}
				}
			}
			resp.ToolUses = append(resp.ToolUses, ToolUse{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	return resp, nil
}
