// Package memstore implements the record-store contract entirely in process
// memory. It is the guaranteed-success terminal fallback when the durable
// store is unreachable: no operation here can fail for connectivity reasons.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
)

// maxExecutions bounds the execution ring; the oldest record is evicted once
// the ring exceeds this length.
const maxExecutions = 100

// MemoryStore mirrors the durable store contract with in-process containers.
type MemoryStore struct {
	cipher *store.Cipher

	mu         sync.RWMutex
	tools      map[string]*tool.Definition
	configs    map[string]*configuration.Configuration
	executions []*execution.Record
}

var _ store.Store = (*MemoryStore)(nil)

// New creates an empty in-memory store.
func New(cipher *store.Cipher) *MemoryStore {
	return &MemoryStore{
		cipher:  cipher,
		tools:   make(map[string]*tool.Definition),
		configs: make(map[string]*configuration.Configuration),
	}
}

// GetAllTools returns definitions matching the filter, sorted by name.
func (s *MemoryStore) GetAllTools(_ context.Context, filter tool.Filter) ([]*tool.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tool.Definition, 0, len(s.tools))
	for _, def := range s.tools {
		if filter.Matches(def) {
			out = append(out, def.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetToolByName returns nil when the tool does not exist.
func (s *MemoryStore) GetToolByName(_ context.Context, name string) (*tool.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tools[name].Clone(), nil
}

// SaveToolDefinition upserts by name, merging onto any existing record.
func (s *MemoryStore) SaveToolDefinition(_ context.Context, def *tool.Definition) (*tool.Definition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := def.Clone()
	if existing, ok := s.tools[def.Name]; ok {
		stored = store.MergeToolDefinition(existing, def)
	}
	stored.Normalize(now)
	s.tools[stored.Name] = stored
	return stored.Clone(), nil
}

// DeleteToolDefinition reports whether a record existed.
func (s *MemoryStore) DeleteToolDefinition(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tools[name]; !ok {
		return false, nil
	}
	delete(s.tools, name)
	return true, nil
}

// GetConfiguration returns the stored value, decrypting when requested.
func (s *MemoryStore) GetConfiguration(ctx context.Context, key string, decrypt bool) (string, bool, error) {
	s.mu.RLock()
	cfg, ok := s.configs[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	if cfg.IsEncrypted && decrypt {
		plaintext, err := s.cipher.DecryptValue(ctx, cfg.Value)
		if err != nil {
			return "", false, err
		}
		return plaintext, true, nil
	}
	return cfg.Value, true, nil
}

// UpdateConfiguration upserts by key, encrypting on write when requested.
func (s *MemoryStore) UpdateConfiguration(ctx context.Context, key, value string, encrypt bool, update store.ConfigUpdate) (*configuration.Configuration, error) {
	stored := value
	if encrypt {
		ciphertext, err := s.cipher.EncryptValue(ctx, value)
		if err != nil {
			return nil, err
		}
		stored = ciphertext
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	cfg, ok := s.configs[key]
	if !ok {
		cfg = &configuration.Configuration{
			Key:      key,
			Metadata: configuration.Metadata{CreatedAt: now},
		}
		s.configs[key] = cfg
	}
	cfg.Value = stored
	cfg.IsEncrypted = encrypt
	if update.Category != "" {
		cfg.Category = update.Category
	}
	if update.Description != "" {
		cfg.Description = update.Description
	}
	cfg.Metadata.UpdatedAt = now
	return cfg.Clone(), nil
}

// GetConfigurationsByCategory returns raw entries in the category.
func (s *MemoryStore) GetConfigurationsByCategory(_ context.Context, category configuration.Category) ([]*configuration.Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*configuration.Configuration, 0)
	for _, cfg := range s.configs {
		if cfg.Category == category {
			out = append(out, cfg.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// LogToolExecution appends a pending record to the bounded ring and returns
// its completion handle.
func (s *MemoryStore) LogToolExecution(_ context.Context, rec *execution.Record) (execution.Handle, error) {
	now := time.Now().UTC()
	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Status = execution.StatusPending
	if stored.Metadata.Timestamp.IsZero() {
		stored.Metadata.Timestamp = now
	}

	s.mu.Lock()
	s.executions = append(s.executions, &stored)
	if len(s.executions) > maxExecutions {
		s.executions = s.executions[len(s.executions)-maxExecutions:]
	}
	s.mu.Unlock()

	return &handle{store: s, rec: &stored, started: now}, nil
}

type handle struct {
	store   *MemoryStore
	rec     *execution.Record
	started time.Time
	once    sync.Once
	final   *execution.Record
}

// Complete transitions the record out of pending exactly once.
func (h *handle) Complete(result any, err error) *execution.Record {
	h.once.Do(func() {
		h.store.mu.Lock()
		defer h.store.mu.Unlock()

		h.rec.ExecutionTime = time.Since(h.started).Milliseconds()
		if err != nil {
			h.rec.Status = execution.StatusFailure
			h.rec.ErrorMessage = err.Error()
		} else {
			h.rec.Status = execution.StatusSuccess
			h.rec.Outputs = result
		}
		final := *h.rec
		h.final = &final
	})
	return h.final
}

// GetToolExecutionStats recomputes aggregates over the ring: same semantics
// as the durable store's SQL aggregation, computed in process.
func (s *MemoryStore) GetToolExecutionStats(_ context.Context, query execution.StatsQuery) (*execution.Stats, error) {
	windowStart := query.Period.WindowStart(time.Now().UTC())
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &execution.Stats{}
	counts := make(map[string]int64)
	totals := make(map[string]int64)
	timed := make(map[string]int64)

	for _, rec := range s.executions {
		if rec.Metadata.Timestamp.Before(windowStart) {
			continue
		}
		if query.ToolName != "" && rec.ToolName != query.ToolName {
			continue
		}
		stats.TotalCount++
		switch rec.Status {
		case execution.StatusSuccess:
			stats.SuccessCount++
		case execution.StatusFailure:
			stats.FailureCount++
		}
		counts[rec.ToolName]++
		if rec.Status != execution.StatusPending {
			totals[rec.ToolName] += rec.ExecutionTime
			timed[rec.ToolName]++
		}
	}

	if stats.TotalCount > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalCount)
	}

	for name, count := range counts {
		stats.TopTools = append(stats.TopTools, execution.ToolCount{Name: name, Count: count})
	}
	sort.Slice(stats.TopTools, func(i, j int) bool {
		if stats.TopTools[i].Count != stats.TopTools[j].Count {
			return stats.TopTools[i].Count > stats.TopTools[j].Count
		}
		return stats.TopTools[i].Name < stats.TopTools[j].Name
	})
	if len(stats.TopTools) > limit {
		stats.TopTools = stats.TopTools[:limit]
	}

	for name, total := range totals {
		stats.ExecutionTimes = append(stats.ExecutionTimes, execution.ToolTiming{
			Name:    name,
			AvgTime: float64(total) / float64(timed[name]),
		})
	}
	sort.Slice(stats.ExecutionTimes, func(i, j int) bool {
		return stats.ExecutionTimes[i].Name < stats.ExecutionTimes[j].Name
	})

	return stats, nil
}
