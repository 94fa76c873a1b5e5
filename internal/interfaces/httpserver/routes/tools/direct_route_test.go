package tools_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/infrastructure/imagegen"
	"github.com/infinyte/mcp-server/internal/infrastructure/memstore"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	"github.com/infinyte/mcp-server/internal/infrastructure/websearch"
	"github.com/infinyte/mcp-server/internal/interfaces/httpserver/routes/tools"
	"github.com/infinyte/mcp-server/internal/utils/crypto"
)

func newDirectRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := memstore.New(store.NewCipher(crypto.NewKeyResolver("direct-route-test-key")))
	manager := state.NewManager(context.Background(), s, nil)
	web := websearch.NewClient(websearch.ClientConfig{})
	images := imagegen.NewClientFromAPIKeys("", "", 0)

	engine := gin.New()
	tools.NewDirectRoute(web, images, manager).RegisterRouter(engine)
	return engine
}

func TestDirectRoutesRejectInvalidInput(t *testing.T) {
	engine := newDirectRouter(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "search without query", path: "/tools/web/search", body: `{"limit":3}`},
		{name: "search malformed json", path: "/tools/web/search", body: `{"query":`},
		{name: "content without url", path: "/tools/web/content", body: `{}`},
		{name: "batch without urls", path: "/tools/web/batch", body: `{"urls":[]}`},
		{name: "generate without prompt", path: "/tools/image/generate", body: `{"provider":"openai"}`},
		{name: "edit without prompt", path: "/tools/image/edit", body: `{"imagePath":"/tmp/in.png"}`},
		{name: "edit without image path", path: "/tools/image/edit", body: `{"prompt":"add a hat"}`},
		{name: "variation without image path", path: "/tools/image/variation", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			engine.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDirectGenerateUnconfiguredBackendIs400(t *testing.T) {
	engine := newDirectRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/image/generate",
		strings.NewReader(`{"prompt":"a lighthouse at dusk","provider":"openai"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "not configured") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
