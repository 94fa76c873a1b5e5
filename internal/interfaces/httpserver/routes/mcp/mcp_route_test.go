package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/infinyte/mcp-server/internal/domain/dispatch"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/infrastructure/memstore"
	"github.com/infinyte/mcp-server/internal/infrastructure/provider"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	mcproute "github.com/infinyte/mcp-server/internal/interfaces/httpserver/routes/mcp"
	"github.com/infinyte/mcp-server/internal/utils/crypto"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

type scriptedClient struct {
	name     string
	response *provider.Response
	err      error
}

func (c *scriptedClient) Name() string         { return c.name }
func (c *scriptedClient) DefaultModel() string { return "test-model" }

func (c *scriptedClient) Complete(context.Context, provider.Request) (*provider.Response, error) {
	return c.response, c.err
}

func (c *scriptedClient) Followup(context.Context, provider.Request, *provider.Response, []provider.ToolResult) (*provider.Response, error) {
	return c.response, c.err
}

func newMCPRouter(t *testing.T, clients ...provider.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := memstore.New(store.NewCipher(crypto.NewKeyResolver("mcp-route-test-key")))
	manager := state.NewManager(context.Background(), s, nil)
	orchestrator := dispatch.NewOrchestrator(clients, dispatch.NewRegistry(), manager)

	engine := gin.New()
	mcproute.NewMCPRoute(orchestrator).RegisterRouter(engine)
	return engine
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	return rec
}

func TestDispatchUnsupportedProviderIs400(t *testing.T) {
	engine := newMCPRouter(t)

	rec := postJSON(engine, "/mcp/gemini", `{"prompt":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestDispatchValidationIs400(t *testing.T) {
	client := &scriptedClient{name: "anthropic", response: &provider.Response{Raw: "raw", Text: "ok"}}
	engine := newMCPRouter(t, client)

	tests := []struct {
		name string
		body string
	}{
		{name: "neither prompt nor messages", body: `{}`},
		{name: "both prompt and messages", body: `{"prompt":"hi","messages":[{"role":"user","content":"hi"}]}`},
		{name: "malformed json", body: `{"prompt":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(engine, "/mcp/anthropic", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDispatchProviderFailureIs500(t *testing.T) {
	client := &scriptedClient{name: "anthropic", err: platformerrors.NewError(context.Background(),
		platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "anthropic completion failed", nil)}
	engine := newMCPRouter(t, client)

	rec := postJSON(engine, "/mcp/anthropic", `{"prompt":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Success || body.Error == "" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestDispatchSuccess(t *testing.T) {
	client := &scriptedClient{name: "anthropic", response: &provider.Response{
		Raw:        map[string]any{"content": "answer"},
		Text:       "answer",
		StopReason: "end_turn",
	}}
	engine := newMCPRouter(t, client)

	rec := postJSON(engine, "/mcp/anthropic", `{"prompt":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		UsedTools bool   `json:"usedTools"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.UsedTools || body.SessionID == "" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
