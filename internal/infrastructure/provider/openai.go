package provider

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/metrics"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// ChatClient is the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Client on the OpenAI Chat Completions API.
type OpenAIClient struct {
	chat         ChatClient
	defaultModel string
	maxTokens    int
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient builds the adapter over an existing chat client.
func NewOpenAIClient(chat ChatClient, defaultModel string, maxTokens int) *OpenAIClient {
	return &OpenAIClient{chat: chat, defaultModel: defaultModel, maxTokens: maxTokens}
}

// NewOpenAIClientFromAPIKey constructs the adapter with the default go-openai
// HTTP client.
func NewOpenAIClientFromAPIKey(apiKey, defaultModel string, maxTokens int) *OpenAIClient {
	return NewOpenAIClient(openai.NewClient(apiKey), defaultModel, maxTokens)
}

func (c *OpenAIClient) Name() string         { return "openai" }
func (c *OpenAIClient) DefaultModel() string { return c.defaultModel }

// Complete issues one chat completion call and normalizes the reply.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	request, err := c.buildRequest(req, nil, nil)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, request)
}

// Followup replays the conversation extended with the assistant's tool_calls
// message and one tool-role message per call id.
func (c *OpenAIClient) Followup(ctx context.Context, req Request, reply *Response, results []ToolResult) (*Response, error) {
	request, err := c.buildRequest(req, reply, results)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, request)
}

func (c *OpenAIClient) send(ctx context.Context, request *openai.ChatCompletionRequest) (*Response, error) {
	response, err := c.chat.CreateChatCompletion(ctx, *request)
	if err != nil {
		metrics.RecordProviderError(c.Name(), "completion")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "openai completion failed", err)
	}
	return normalizeOpenAI(response)
}

func (c *OpenAIClient) buildRequest(req Request, reply *Response, results []ToolResult) (*openai.ChatCompletionRequest, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+len(results)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		if m.Content == "" {
			continue
		}
		role := m.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	if reply != nil {
		assistant := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: reply.Text,
		}
		for _, use := range reply.ToolUses {
			arguments, err := json.Marshal(use.Input)
			if err != nil {
				return nil, fmt.Errorf("openai: marshal tool call arguments: %w", err)
			}
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
				ID:   use.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      use.Name,
					Arguments: string(arguments),
				},
			})
		}
		messages = append(messages, assistant)

		for _, result := range results {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    encodeResultContent(result.Content),
				ToolCallID: result.ID,
			})
		}
	}

	tools, err := encodeOpenAITools(req.Tools)
	if err != nil {
		return nil, err
	}

	return &openai.ChatCompletionRequest{
		Model:     modelID,
		Messages:  messages,
		MaxTokens: maxTokens,
		Tools:     tools,
	}, nil
}

func encodeOpenAITools(defs []*tool.Definition) ([]openai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		params, err := json.Marshal(def.Parameters.JSONSchema())
		if err != nil {
			return nil, fmt.Errorf("openai: marshal tool %s schema: %w", def.Name, err)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}
	return tools, nil
}

func normalizeOpenAI(resp openai.ChatCompletionResponse) (*Response, error) {
	out := &Response{Raw: resp}
	if len(resp.Choices) == 0 {
		return out, nil
	}
	choice := resp.Choices[0]
	out.Text = choice.Message.Content
	out.StopReason = string(choice.FinishReason)
	for _, call := range choice.Message.ToolCalls {
		input := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				input = map[string]any{"raw": call.Function.Arguments}
			}
		}
		out.ToolUses = append(out.ToolUses, ToolUse{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}
	return out, nil
}
