// Package state keeps the working set of tool definitions and configuration
// in memory, writing through to the record store and periodically flushing
// whatever the store missed.
package state

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
	"github.com/infinyte/mcp-server/internal/infrastructure/metrics"
)

// Degradation reports whether the underlying store is serving from fallback.
type Degradation interface {
	Degraded() bool
}

type alwaysHealthy struct{}

func (alwaysHealthy) Degraded() bool { return false }

type cachedConfig struct {
	value   string
	encrypt bool
	update  store.ConfigUpdate
}

// Manager is the in-memory front for the record store. All public methods
// swallow connectivity errors: callers see cached data or zero values, never
// an outage.
type Manager struct {
	store  store.Store
	health Degradation

	mu           sync.RWMutex
	tools        map[string]*tool.Definition
	configs      map[string]cachedConfig
	dirtyTools   map[string]struct{}
	dirtyConfigs map[string]struct{}
	lastSync     time.Time
}

// NewManager builds the manager and loads the working set. Load failures are
// logged and leave the caches empty; the process still starts.
func NewManager(ctx context.Context, s store.Store, health Degradation) *Manager {
	if health == nil {
		health = alwaysHealthy{}
	}
	m := &Manager{
		store:        s,
		health:       health,
		tools:        make(map[string]*tool.Definition),
		configs:      make(map[string]cachedConfig),
		dirtyTools:   make(map[string]struct{}),
		dirtyConfigs: make(map[string]struct{}),
	}
	m.loadInitialState(ctx)
	return m
}

func (m *Manager) loadInitialState(ctx context.Context) {
	log := logger.GetLogger()

	tools, err := m.store.GetAllTools(ctx, tool.Filter{})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load tool definitions at startup")
	} else {
		m.mu.Lock()
		for _, def := range tools {
			m.tools[def.Name] = def
		}
		m.mu.Unlock()
		log.Info().Int("count", len(tools)).Msg("Loaded tool definitions")
	}

	for _, category := range []configuration.Category{configuration.CategoryAPIKey, configuration.CategoryServer} {
		entries, err := m.store.GetConfigurationsByCategory(ctx, category)
		if err != nil {
			log.Warn().Err(err).Str("category", string(category)).Msg("Failed to load configurations at startup")
			continue
		}
		for _, entry := range entries {
			value, found, err := m.store.GetConfiguration(ctx, entry.Key, true)
			if err != nil || !found {
				if err != nil {
					log.Warn().Err(err).Str("key", entry.Key).Msg("Failed to load configuration value")
				}
				continue
			}
			m.mu.Lock()
			m.configs[entry.Key] = cachedConfig{
				value:   value,
				encrypt: entry.IsEncrypted,
				update:  store.ConfigUpdate{Category: entry.Category, Description: entry.Description},
			}
			m.mu.Unlock()
		}
	}

	m.mu.Lock()
	m.lastSync = time.Now().UTC()
	m.mu.Unlock()
}

// GetTool checks the cache first and falls through to the store, caching any
// hit. Returns nil when the tool is unknown.
func (m *Manager) GetTool(ctx context.Context, name string) *tool.Definition {
	m.mu.RLock()
	if def, ok := m.tools[name]; ok {
		m.mu.RUnlock()
		return def.Clone()
	}
	m.mu.RUnlock()

	def, err := m.store.GetToolByName(ctx, name)
	if err != nil || def == nil {
		if err != nil {
			log := logger.GetLogger()
			log.Debug().Err(err).Str("tool", name).Msg("Store lookup failed")
		}
		return nil
	}

	m.mu.Lock()
	m.tools[def.Name] = def
	m.mu.Unlock()
	return def.Clone()
}

// GetAllTools returns the cached definitions matching the filter, sorted by
// name. The store is consulted when the cache is empty or a filter is given,
// so definitions written behind the cache (restore, another process) show up
// without a restart; results merge back into the cache.
func (m *Manager) GetAllTools(ctx context.Context, filter tool.Filter) []*tool.Definition {
	m.mu.RLock()
	empty := len(m.tools) == 0
	m.mu.RUnlock()

	if empty || filter != (tool.Filter{}) {
		if tools, err := m.store.GetAllTools(ctx, filter); err == nil {
			m.mu.Lock()
			for _, def := range tools {
				m.tools[def.Name] = def
			}
			m.mu.Unlock()
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]*tool.Definition, 0, len(m.tools))
	for _, def := range m.tools {
		if filter.Matches(def) {
			matched = append(matched, def.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched
}

// SaveTool caches the definition, marks it dirty and writes through. A store
// failure defers persistence to the next flush; a validation error propagates.
// A write that lands while the store is degraded only reached the fallback,
// so the dirty flag stays set until a flush reaches the durable store.
func (m *Manager) SaveTool(ctx context.Context, def *tool.Definition) (*tool.Definition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.tools[def.Name] = def.Clone()
	m.dirtyTools[def.Name] = struct{}{}
	m.mu.Unlock()

	saved, err := m.store.SaveToolDefinition(ctx, def)
	if err != nil {
		log := logger.GetLogger()
		log.Warn().Err(err).Str("tool", def.Name).Msg("Write-through failed, deferring to next flush")
		m.mu.RLock()
		cached := m.tools[def.Name].Clone()
		m.mu.RUnlock()
		return cached, nil
	}

	durable := !m.health.Degraded()
	m.mu.Lock()
	m.tools[saved.Name] = saved.Clone()
	if durable {
		delete(m.dirtyTools, saved.Name)
	}
	m.mu.Unlock()
	return saved, nil
}

// DeleteTool removes the definition from the cache and the store.
func (m *Manager) DeleteTool(ctx context.Context, name string) bool {
	m.mu.Lock()
	_, cached := m.tools[name]
	delete(m.tools, name)
	delete(m.dirtyTools, name)
	m.mu.Unlock()

	deleted, err := m.store.DeleteToolDefinition(ctx, name)
	if err != nil {
		log := logger.GetLogger()
		log.Warn().Err(err).Str("tool", name).Msg("Store delete failed")
		return cached
	}
	return deleted || cached
}

// GetConfig resolves a configuration value: cache, then store (decrypted),
// then the process environment as last resort. Empty string means unset.
func (m *Manager) GetConfig(ctx context.Context, key string) string {
	m.mu.RLock()
	if entry, ok := m.configs[key]; ok {
		m.mu.RUnlock()
		return entry.value
	}
	m.mu.RUnlock()

	value, found, err := m.store.GetConfiguration(ctx, key, true)
	if err == nil && found {
		m.mu.Lock()
		m.configs[key] = cachedConfig{value: value}
		m.mu.Unlock()
		return value
	}
	if err != nil {
		log := logger.GetLogger()
		log.Debug().Err(err).Str("key", key).Msg("Configuration lookup failed")
	}

	return os.Getenv(key)
}

// SetConfig caches the plaintext, marks it dirty and writes through with the
// requested encryption. As with SaveTool, a degraded-store write keeps the
// key dirty for the next flush.
func (m *Manager) SetConfig(ctx context.Context, key, value string, encrypt bool, update store.ConfigUpdate) error {
	m.mu.Lock()
	m.configs[key] = cachedConfig{value: value, encrypt: encrypt, update: update}
	m.dirtyConfigs[key] = struct{}{}
	m.mu.Unlock()

	if _, err := m.store.UpdateConfiguration(ctx, key, value, encrypt, update); err != nil {
		log := logger.GetLogger()
		log.Warn().Err(err).Str("key", key).Msg("Write-through failed, deferring to next flush")
		return nil
	}

	if !m.health.Degraded() {
		m.mu.Lock()
		delete(m.dirtyConfigs, key)
		m.mu.Unlock()
	}
	return nil
}

// LogExecution persists a pending execution record, generating a session id
// when the caller did not supply one. Logging failure yields a no-op handle.
func (m *Manager) LogExecution(ctx context.Context, rec *execution.Record) execution.Handle {
	if rec.SessionID == "" {
		rec.SessionID = newSessionID()
	}
	handle, err := m.store.LogToolExecution(ctx, rec)
	if err != nil {
		log := logger.GetLogger()
		log.Warn().Err(err).Str("tool", rec.ToolName).Msg("Failed to log tool execution")
		return execution.NopHandle{}
	}
	return handle
}

// GetExecutionStats proxies to the store; a failure yields empty stats.
func (m *Manager) GetExecutionStats(ctx context.Context, query execution.StatsQuery) *execution.Stats {
	stats, err := m.store.GetToolExecutionStats(ctx, query)
	if err != nil {
		log := logger.GetLogger()
		log.Warn().Err(err).Msg("Failed to load execution stats")
		return &execution.Stats{}
	}
	return stats
}

// SaveState flushes dirty tools and configurations to the store. A no-op
// while everything is clean. The flush runs even when the store is degraded:
// the write attempt is what detects primary recovery, and a write that only
// reaches the fallback keeps its dirty flag, so nothing drains until the
// durable store actually takes it.
func (m *Manager) SaveState(ctx context.Context) error {
	m.mu.RLock()
	dirty := len(m.dirtyTools) > 0 || len(m.dirtyConfigs) > 0
	m.mu.RUnlock()

	if !dirty {
		metrics.RecordStateFlush("clean")
		return nil
	}

	log := logger.GetLogger()

	m.mu.RLock()
	toolNames := make([]string, 0, len(m.dirtyTools))
	for name := range m.dirtyTools {
		toolNames = append(toolNames, name)
	}
	configKeys := make([]string, 0, len(m.dirtyConfigs))
	for key := range m.dirtyConfigs {
		configKeys = append(configKeys, key)
	}
	m.mu.RUnlock()

	var failed, deferred int
	for _, name := range toolNames {
		m.mu.RLock()
		def, ok := m.tools[name]
		if ok {
			def = def.Clone()
		}
		m.mu.RUnlock()
		if !ok {
			m.mu.Lock()
			delete(m.dirtyTools, name)
			m.mu.Unlock()
			continue
		}
		if _, err := m.store.SaveToolDefinition(ctx, def); err != nil {
			log.Warn().Err(err).Str("tool", name).Msg("Flush failed for tool")
			failed++
			continue
		}
		if m.health.Degraded() {
			deferred++
			continue
		}
		m.mu.Lock()
		delete(m.dirtyTools, name)
		m.mu.Unlock()
	}

	for _, key := range configKeys {
		m.mu.RLock()
		entry, ok := m.configs[key]
		m.mu.RUnlock()
		if !ok {
			m.mu.Lock()
			delete(m.dirtyConfigs, key)
			m.mu.Unlock()
			continue
		}
		if _, err := m.store.UpdateConfiguration(ctx, key, entry.value, entry.encrypt, entry.update); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Flush failed for configuration")
			failed++
			continue
		}
		if m.health.Degraded() {
			deferred++
			continue
		}
		m.mu.Lock()
		delete(m.dirtyConfigs, key)
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.lastSync = time.Now().UTC()
	m.mu.Unlock()

	if failed > 0 {
		metrics.RecordStateFlush("partial")
		return fmt.Errorf("state flush left %d dirty entries", failed)
	}
	if deferred > 0 {
		metrics.RecordStateFlush("deferred")
		log.Debug().Int("deferred", deferred).Msg("Flush deferred while store is degraded")
		return nil
	}
	metrics.RecordStateFlush("success")
	log.Info().Int("tools", len(toolNames)).Int("configs", len(configKeys)).Msg("State flushed")
	return nil
}

// Shutdown flushes once and stops. Safe to call with a short deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.SaveState(ctx)
}

// Status describes the manager for the admin surface.
type Status struct {
	Degraded    bool      `json:"degraded"`
	ToolCount   int       `json:"toolCount"`
	ConfigCount int       `json:"configCount"`
	DirtyTools  int       `json:"dirtyTools"`
	DirtyConfig int       `json:"dirtyConfigs"`
	LastSync    time.Time `json:"lastSync"`
}

// Status returns a snapshot of the manager's health and cache sizes.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Degraded:    m.health.Degraded(),
		ToolCount:   len(m.tools),
		ConfigCount: len(m.configs),
		DirtyTools:  len(m.dirtyTools),
		DirtyConfig: len(m.dirtyConfigs),
		LastSync:    m.lastSync,
	}
}

func newSessionID() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("session_%d_000000", time.Now().UnixMilli())
	}
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
