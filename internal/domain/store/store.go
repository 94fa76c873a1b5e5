// Package store defines the record-store contract shared by the durable
// Postgres adapter and the in-memory fallback so callers stay store-agnostic.
package store

import (
	"context"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/tool"
)

// ConfigUpdate carries the optional attributes of a configuration upsert.
type ConfigUpdate struct {
	Category    configuration.Category
	Description string
}

// Store is the persistence contract for tool definitions, configuration
// entries and execution telemetry. Any method of a durable implementation may
// fail with an UNAVAILABLE platform error; the in-memory implementation never
// does.
type Store interface {
	// GetAllTools returns definitions matching the filter, sorted by name.
	GetAllTools(ctx context.Context, filter tool.Filter) ([]*tool.Definition, error)
	// GetToolByName returns nil when no definition exists.
	GetToolByName(ctx context.Context, name string) (*tool.Definition, error)
	// SaveToolDefinition upserts by name, merging onto an existing record,
	// and returns the stored copy.
	SaveToolDefinition(ctx context.Context, def *tool.Definition) (*tool.Definition, error)
	// DeleteToolDefinition reports whether a record existed.
	DeleteToolDefinition(ctx context.Context, name string) (bool, error)

	// GetConfiguration returns the decrypted plaintext when decrypt is set and
	// the entry is encrypted, else the raw stored value. found is false when
	// the key is absent.
	GetConfiguration(ctx context.Context, key string, decrypt bool) (value string, found bool, err error)
	// UpdateConfiguration upserts by key; encryption is applied on write.
	UpdateConfiguration(ctx context.Context, key, value string, encrypt bool, update ConfigUpdate) (*configuration.Configuration, error)
	GetConfigurationsByCategory(ctx context.Context, category configuration.Category) ([]*configuration.Configuration, error)

	// LogToolExecution persists a pending record immediately and returns the
	// handle that completes it.
	LogToolExecution(ctx context.Context, rec *execution.Record) (execution.Handle, error)
	GetToolExecutionStats(ctx context.Context, query execution.StatsQuery) (*execution.Stats, error)
}

// MergeToolDefinition overlays incoming onto existing for an upsert-by-name,
// preserving creation metadata and accumulated usage counters. Both stores use
// it so merge semantics cannot drift between them.
func MergeToolDefinition(existing, incoming *tool.Definition) *tool.Definition {
	merged := incoming.Clone()
	merged.Metadata.CreatedAt = existing.Metadata.CreatedAt
	if merged.Metadata.CreatedBy == "" {
		merged.Metadata.CreatedBy = existing.Metadata.CreatedBy
	}
	if merged.Metadata.UsageCount < existing.Metadata.UsageCount {
		merged.Metadata.UsageCount = existing.Metadata.UsageCount
	}
	if merged.Metadata.LastUsed == nil {
		merged.Metadata.LastUsed = existing.Metadata.LastUsed
	}
	return merged
}
