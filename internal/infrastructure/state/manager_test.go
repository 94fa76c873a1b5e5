package state_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/memstore"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
)

type fixedHealth struct{ degraded bool }

func (f *fixedHealth) Degraded() bool { return f.degraded }

func TestManagerSaveToolWriteThrough(t *testing.T) {
	s := memstore.New(newCipher())
	ctx := context.Background()
	m := state.NewManager(ctx, s, nil)

	saved, err := m.SaveTool(ctx, &tool.Definition{Name: "alpha", Enabled: true})
	if err != nil {
		t.Fatalf("SaveTool: %v", err)
	}
	if saved.Name != "alpha" {
		t.Fatalf("unexpected definition: %+v", saved)
	}

	stored, err := s.GetToolByName(ctx, "alpha")
	if err != nil || stored == nil {
		t.Fatalf("write-through missed the store: def=%v err=%v", stored, err)
	}
}

func TestManagerSaveToolDefersOnStoreFailure(t *testing.T) {
	flaky := &flakyStore{Store: memstore.New(newCipher())}
	ctx := context.Background()
	m := state.NewManager(ctx, flaky, nil)

	flaky.err = unavailable()

	// Store failures never surface from SaveTool; the write is deferred.
	saved, err := m.SaveTool(ctx, &tool.Definition{Name: "deferred", Enabled: true})
	if err != nil {
		t.Fatalf("SaveTool during outage: %v", err)
	}
	if saved == nil || saved.Name != "deferred" {
		t.Fatalf("expected the cached definition back, got %+v", saved)
	}
	if got := m.GetTool(ctx, "deferred"); got == nil {
		t.Fatalf("cache lost the deferred definition")
	}
	if m.Status().DirtyTools != 1 {
		t.Fatalf("expected one dirty tool, status=%+v", m.Status())
	}

	// Recovery: the next flush drains the dirty set.
	flaky.err = nil
	if err := m.SaveState(ctx); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if m.Status().DirtyTools != 0 {
		t.Fatalf("flush left dirty entries: %+v", m.Status())
	}
	stored, err := flaky.GetToolByName(ctx, "deferred")
	if err != nil || stored == nil {
		t.Fatalf("flush did not reach the store: def=%v err=%v", stored, err)
	}
}

func TestManagerDegradedWritesStayDirty(t *testing.T) {
	health := &fixedHealth{degraded: true}
	ctx := context.Background()
	m := state.NewManager(ctx, memstore.New(newCipher()), health)

	// The store accepts the write, but while degraded it only reached the
	// fallback, so the entry must stay dirty.
	if _, err := m.SaveTool(ctx, &tool.Definition{Name: "parked", Enabled: true}); err != nil {
		t.Fatalf("SaveTool: %v", err)
	}
	if err := m.SetConfig(ctx, "PARKED_KEY", "v", false, store.ConfigUpdate{}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if status := m.Status(); status.DirtyTools != 1 || status.DirtyConfig != 1 {
		t.Fatalf("degraded writes must stay dirty: %+v", status)
	}

	// A flush while still degraded defers without error and keeps the dirty
	// set intact.
	if err := m.SaveState(ctx); err != nil {
		t.Fatalf("SaveState while degraded: %v", err)
	}
	if status := m.Status(); status.DirtyTools != 1 || status.DirtyConfig != 1 {
		t.Fatalf("degraded flush must keep dirty entries: %+v", status)
	}

	// Once the store is healthy again the next flush drains everything.
	health.degraded = false
	if err := m.SaveState(ctx); err != nil {
		t.Fatalf("SaveState after recovery: %v", err)
	}
	if status := m.Status(); status.DirtyTools != 0 || status.DirtyConfig != 0 {
		t.Fatalf("recovered flush left dirty entries: %+v", status)
	}
}

func TestManagerOutageWritesReachRecoveredPrimary(t *testing.T) {
	cipher := newCipher()
	primary := &flakyStore{Store: memstore.New(cipher)}
	failover := state.NewFailoverStore(primary, memstore.New(cipher))
	ctx := context.Background()
	m := state.NewManager(ctx, failover, failover)

	// Save during a primary outage: the failover masks the failure, but the
	// definition must stay dirty so it is not lost when the primary returns.
	primary.err = unavailable()
	if _, err := m.SaveTool(ctx, &tool.Definition{Name: "survivor", Enabled: true}); err != nil {
		t.Fatalf("SaveTool during outage: %v", err)
	}
	if m.Status().DirtyTools != 1 {
		t.Fatalf("outage write must stay dirty: %+v", m.Status())
	}

	// Primary recovers; the flush lands the definition durably.
	primary.err = nil
	if err := m.SaveState(ctx); err != nil {
		t.Fatalf("SaveState after recovery: %v", err)
	}
	if m.Status().DirtyTools != 0 {
		t.Fatalf("flush left dirty entries: %+v", m.Status())
	}
	stored, err := primary.Store.GetToolByName(ctx, "survivor")
	if err != nil || stored == nil {
		t.Fatalf("outage write never reached the recovered primary: def=%v err=%v", stored, err)
	}
}

func TestManagerGetAllToolsFilterConsultsStore(t *testing.T) {
	s := memstore.New(newCipher())
	ctx := context.Background()
	m := state.NewManager(ctx, s, nil)

	if _, err := m.SaveTool(ctx, &tool.Definition{Name: "early", Category: tool.CategoryWeb, Enabled: true}); err != nil {
		t.Fatalf("SaveTool: %v", err)
	}
	// Written behind the cache, as a backup restore would.
	if _, err := s.SaveToolDefinition(ctx, &tool.Definition{Name: "late", Category: tool.CategoryWeb, Enabled: true}); err != nil {
		t.Fatalf("SaveToolDefinition: %v", err)
	}

	got := m.GetAllTools(ctx, tool.Filter{Category: tool.CategoryWeb})
	names := make(map[string]bool, len(got))
	for _, def := range got {
		names[def.Name] = true
	}
	if !names["early"] || !names["late"] {
		t.Fatalf("filtered listing missed store-side definitions: %v", names)
	}

	// The merge also makes the late definition visible by name.
	if m.GetTool(ctx, "late") == nil {
		t.Fatalf("merged definition not cached")
	}
}

func TestManagerSaveToolRejectsInvalid(t *testing.T) {
	m := state.NewManager(context.Background(), memstore.New(newCipher()), nil)

	if _, err := m.SaveTool(context.Background(), &tool.Definition{}); err == nil {
		t.Fatalf("expected validation error for unnamed tool")
	}
}

func TestManagerDeleteTool(t *testing.T) {
	s := memstore.New(newCipher())
	ctx := context.Background()
	m := state.NewManager(ctx, s, nil)

	if _, err := m.SaveTool(ctx, &tool.Definition{Name: "victim", Enabled: true}); err != nil {
		t.Fatalf("SaveTool: %v", err)
	}
	if !m.DeleteTool(ctx, "victim") {
		t.Fatalf("expected delete to report true")
	}
	if m.DeleteTool(ctx, "victim") {
		t.Fatalf("expected delete of missing tool to report false")
	}
	if m.GetTool(ctx, "victim") != nil {
		t.Fatalf("deleted tool still served from cache")
	}
}

func TestManagerGetConfigEnvFallback(t *testing.T) {
	m := state.NewManager(context.Background(), memstore.New(newCipher()), nil)

	t.Setenv("MANAGER_TEST_ONLY_KEY", "from-env")
	if got := m.GetConfig(context.Background(), "MANAGER_TEST_ONLY_KEY"); got != "from-env" {
		t.Fatalf("got %q, want the environment fallback", got)
	}
}

func TestManagerSetConfigRoundTrip(t *testing.T) {
	s := memstore.New(newCipher())
	ctx := context.Background()
	m := state.NewManager(ctx, s, nil)

	if err := m.SetConfig(ctx, "FEATURE_X", "on", false, store.ConfigUpdate{}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if got := m.GetConfig(ctx, "FEATURE_X"); got != "on" {
		t.Fatalf("got %q want %q", got, "on")
	}
}

var sessionIDPattern = regexp.MustCompile(`^session_\d+_[0-9a-f]{6}$`)

func TestManagerLogExecutionAssignsSessionID(t *testing.T) {
	m := state.NewManager(context.Background(), memstore.New(newCipher()), nil)

	rec := &execution.Record{ToolName: "web_search", Provider: execution.ProviderDirect}
	handle := m.LogExecution(context.Background(), rec)
	if rec.SessionID == "" || !sessionIDPattern.MatchString(rec.SessionID) {
		t.Fatalf("unexpected session id %q", rec.SessionID)
	}
	if done := handle.Complete("ok", nil); done == nil || done.Status != execution.StatusSuccess {
		t.Fatalf("unexpected completion: %+v", done)
	}

	// Explicit session ids are preserved.
	rec2 := &execution.Record{ToolName: "web_search", Provider: execution.ProviderDirect, SessionID: "session_custom"}
	m.LogExecution(context.Background(), rec2)
	if rec2.SessionID != "session_custom" {
		t.Fatalf("session id overwritten: %q", rec2.SessionID)
	}
}

func TestManagerLogExecutionSurvivesStoreFailure(t *testing.T) {
	flaky := &flakyStore{Store: memstore.New(newCipher())}
	ctx := context.Background()
	m := state.NewManager(ctx, flaky, nil)

	flaky.err = unavailable()
	handle := m.LogExecution(ctx, &execution.Record{ToolName: "web_search", Provider: execution.ProviderDirect})
	if handle == nil {
		t.Fatalf("expected a handle even when logging fails")
	}
	// Completing a no-op handle must not panic.
	handle.Complete("ok", nil)
}
