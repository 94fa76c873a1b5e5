package memstore_test

import (
	"context"
	"strings"
	"testing"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/memstore"
	"github.com/infinyte/mcp-server/internal/utils/crypto"
)

func newTestStore() *memstore.MemoryStore {
	resolver := crypto.NewKeyResolver("unit-test-key")
	return memstore.New(store.NewCipher(resolver))
}

func testTool(name string, category tool.Category, enabled bool) *tool.Definition {
	return &tool.Definition{
		Name:        name,
		Description: "test tool " + name,
		Category:    category,
		Enabled:     enabled,
	}
}

func TestSaveToolDefinitionUpsert(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	saved, err := s.SaveToolDefinition(ctx, testTool("alpha", tool.CategoryWeb, true))
	if err != nil {
		t.Fatalf("SaveToolDefinition: %v", err)
	}
	if saved.Version != tool.DefaultVersion {
		t.Fatalf("expected default version, got %q", saved.Version)
	}
	createdAt := saved.Metadata.CreatedAt

	update := testTool("alpha", tool.CategoryWeb, false)
	update.Description = "updated"
	saved, err = s.SaveToolDefinition(ctx, update)
	if err != nil {
		t.Fatalf("SaveToolDefinition update: %v", err)
	}
	if saved.Description != "updated" || saved.Enabled {
		t.Fatalf("update not applied: %+v", saved)
	}
	if !saved.Metadata.CreatedAt.Equal(createdAt) {
		t.Fatalf("upsert must preserve creation time")
	}

	got, err := s.GetToolByName(ctx, "alpha")
	if err != nil {
		t.Fatalf("GetToolByName: %v", err)
	}
	if got == nil || got.Description != "updated" {
		t.Fatalf("stored copy mismatch: %+v", got)
	}
}

func TestSaveToolDefinitionValidation(t *testing.T) {
	s := newTestStore()

	if _, err := s.SaveToolDefinition(context.Background(), &tool.Definition{}); err == nil {
		t.Fatalf("expected validation error for unnamed tool")
	}

	def := testTool("bad-required", tool.CategoryUtility, true)
	def.Parameters.Required = []string{"missing"}
	if _, err := s.SaveToolDefinition(context.Background(), def); err == nil {
		t.Fatalf("expected validation error for undeclared required parameter")
	}
}

func TestGetAllToolsFilterAndOrder(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	for _, def := range []*tool.Definition{
		testTool("zeta", tool.CategoryWeb, true),
		testTool("alpha", tool.CategoryImage, true),
		testTool("mid", tool.CategoryWeb, false),
	} {
		if _, err := s.SaveToolDefinition(ctx, def); err != nil {
			t.Fatalf("SaveToolDefinition: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter tool.Filter
		want   []string
	}{
		{name: "all sorted by name", filter: tool.Filter{}, want: []string{"alpha", "mid", "zeta"}},
		{name: "category", filter: tool.Filter{Category: tool.CategoryWeb}, want: []string{"mid", "zeta"}},
		{name: "enabled only", filter: tool.Filter{EnabledOnly: true}, want: []string{"alpha", "zeta"}},
		{name: "category and enabled", filter: tool.Filter{Category: tool.CategoryWeb, EnabledOnly: true}, want: []string{"zeta"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := s.GetAllTools(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetAllTools: %v", err)
			}
			var names []string
			for _, def := range defs {
				names = append(names, def.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("got %v want %v", names, tt.want)
			}
		})
	}
}

func TestDeleteToolDefinition(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if _, err := s.SaveToolDefinition(ctx, testTool("gone", tool.CategoryUtility, true)); err != nil {
		t.Fatalf("SaveToolDefinition: %v", err)
	}

	existed, err := s.DeleteToolDefinition(ctx, "gone")
	if err != nil || !existed {
		t.Fatalf("delete existing: existed=%v err=%v", existed, err)
	}
	existed, err = s.DeleteToolDefinition(ctx, "gone")
	if err != nil || existed {
		t.Fatalf("delete missing: existed=%v err=%v", existed, err)
	}
}

func TestConfigurationEncryption(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	cfg, err := s.UpdateConfiguration(ctx, "ANTHROPIC_API_KEY", "sk-ant-secret", true, store.ConfigUpdate{
		Category: configuration.CategoryAPIKey,
	})
	if err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}
	if !cfg.IsEncrypted {
		t.Fatalf("expected encrypted entry")
	}
	if cfg.Value == "sk-ant-secret" {
		t.Fatalf("stored value must not be plaintext")
	}

	raw, found, err := s.GetConfiguration(ctx, "ANTHROPIC_API_KEY", false)
	if err != nil || !found {
		t.Fatalf("GetConfiguration raw: found=%v err=%v", found, err)
	}
	if raw == "sk-ant-secret" {
		t.Fatalf("raw read must return ciphertext")
	}

	plain, found, err := s.GetConfiguration(ctx, "ANTHROPIC_API_KEY", true)
	if err != nil || !found {
		t.Fatalf("GetConfiguration decrypted: found=%v err=%v", found, err)
	}
	if plain != "sk-ant-secret" {
		t.Fatalf("got %q want decrypted plaintext", plain)
	}
}

func TestGetConfigurationMissing(t *testing.T) {
	s := newTestStore()

	_, found, err := s.GetConfiguration(context.Background(), "NOPE", true)
	if err != nil {
		t.Fatalf("GetConfiguration: %v", err)
	}
	if found {
		t.Fatalf("expected found=false for missing key")
	}
}

func TestGetConfigurationsByCategory(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if _, err := s.UpdateConfiguration(ctx, "A", "1", false, store.ConfigUpdate{Category: configuration.CategoryServer}); err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}
	if _, err := s.UpdateConfiguration(ctx, "B", "2", false, store.ConfigUpdate{Category: configuration.CategoryAPIKey}); err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}

	configs, err := s.GetConfigurationsByCategory(ctx, configuration.CategoryServer)
	if err != nil {
		t.Fatalf("GetConfigurationsByCategory: %v", err)
	}
	if len(configs) != 1 || configs[0].Key != "A" {
		t.Fatalf("unexpected listing: %+v", configs)
	}
}

func TestLogToolExecutionCompleteOnce(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	rec := &execution.Record{
		ToolName:  "web_search",
		Provider:  execution.ProviderAnthropic,
		SessionID: "session_1",
		Inputs:    map[string]any{"query": "golang"},
	}
	handle, err := s.LogToolExecution(ctx, rec)
	if err != nil {
		t.Fatalf("LogToolExecution: %v", err)
	}

	done := handle.Complete(map[string]any{"count": 3}, nil)
	if done.ID == "" {
		t.Fatalf("expected an assigned execution id")
	}
	if done.Status != execution.StatusSuccess {
		t.Fatalf("expected success, got %q", done.Status)
	}
	if done.SessionID != "session_1" {
		t.Fatalf("session id not preserved: %q", done.SessionID)
	}

	// Later completions are ignored.
	again := handle.Complete(nil, context.DeadlineExceeded)
	if again.Status != execution.StatusSuccess {
		t.Fatalf("second Complete changed status to %q", again.Status)
	}
}

func TestGetToolExecutionStats(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	log := func(toolName string, fail bool) {
		handle, err := s.LogToolExecution(ctx, &execution.Record{ToolName: toolName, Provider: execution.ProviderDirect})
		if err != nil {
			t.Fatalf("LogToolExecution: %v", err)
		}
		if fail {
			handle.Complete(nil, context.DeadlineExceeded)
		} else {
			handle.Complete("ok", nil)
		}
	}

	log("web_search", false)
	log("web_search", false)
	log("web_content", true)

	stats, err := s.GetToolExecutionStats(ctx, execution.StatsQuery{Period: execution.PeriodDay})
	if err != nil {
		t.Fatalf("GetToolExecutionStats: %v", err)
	}
	if stats.TotalCount != 3 || stats.SuccessCount != 2 || stats.FailureCount != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.SuccessRate < 0.66 || stats.SuccessRate > 0.67 {
		t.Fatalf("unexpected success rate: %v", stats.SuccessRate)
	}
	if len(stats.TopTools) == 0 || stats.TopTools[0].Name != "web_search" || stats.TopTools[0].Count != 2 {
		t.Fatalf("unexpected top tools: %+v", stats.TopTools)
	}

	filtered, err := s.GetToolExecutionStats(ctx, execution.StatsQuery{Period: execution.PeriodDay, ToolName: "web_content"})
	if err != nil {
		t.Fatalf("GetToolExecutionStats filtered: %v", err)
	}
	if filtered.TotalCount != 1 || filtered.FailureCount != 1 {
		t.Fatalf("unexpected filtered stats: %+v", filtered)
	}
}

func TestSaveToolDefinitionReturnsCopy(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	saved, err := s.SaveToolDefinition(ctx, testTool("isolated", tool.CategoryUtility, true))
	if err != nil {
		t.Fatalf("SaveToolDefinition: %v", err)
	}
	saved.Description = "mutated"
	saved.Metadata.UsageCount = 99

	got, err := s.GetToolByName(ctx, "isolated")
	if err != nil {
		t.Fatalf("GetToolByName: %v", err)
	}
	if got.Description == "mutated" || got.Metadata.UsageCount == 99 {
		t.Fatalf("store handed out an aliased definition")
	}
}
