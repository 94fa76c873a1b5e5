package state

import (
	"context"
	"sync/atomic"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
	"github.com/infinyte/mcp-server/internal/infrastructure/metrics"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// FailoverStore routes every operation to the primary store and falls back to
// the secondary when the primary fails. Validation and decryption errors are
// caller mistakes or data corruption, not outages, so they propagate instead
// of triggering fallback.
type FailoverStore struct {
	primary  store.Store
	fallback store.Store

	degraded atomic.Bool
}

var _ store.Store = (*FailoverStore)(nil)

// NewFailoverStore wraps primary with the in-memory fallback.
func NewFailoverStore(primary, fallback store.Store) *FailoverStore {
	metrics.SetStoreHealth(true)
	return &FailoverStore{primary: primary, fallback: fallback}
}

// Degraded reports whether any operation has fallen back since startup or the
// last recovery.
func (f *FailoverStore) Degraded() bool {
	return f.degraded.Load()
}

func (f *FailoverStore) shouldFallback(err error) bool {
	if err == nil {
		return false
	}
	if platformerrors.IsType(err, platformerrors.ErrorTypeValidation) ||
		platformerrors.IsType(err, platformerrors.ErrorTypeDecryption) {
		return false
	}
	return true
}

func (f *FailoverStore) noteFallback(operation string, err error) {
	metrics.RecordStoreFallback(operation)
	metrics.SetStoreHealth(false)
	log := logger.GetLogger()
	if f.degraded.CompareAndSwap(false, true) {
		log.Warn().
			Err(err).
			Str("operation", operation).
			Msg("Primary store unavailable, serving from in-memory fallback")
	} else {
		log.Debug().
			Err(err).
			Str("operation", operation).
			Msg("Primary store still unavailable")
	}
}

func (f *FailoverStore) noteRecovery() {
	if f.degraded.CompareAndSwap(true, false) {
		metrics.SetStoreHealth(true)
		log := logger.GetLogger()
		log.Info().Msg("Primary store recovered")
	}
}

func (f *FailoverStore) GetAllTools(ctx context.Context, filter tool.Filter) ([]*tool.Definition, error) {
	tools, err := f.primary.GetAllTools(ctx, filter)
	if f.shouldFallback(err) {
		f.noteFallback("get_all_tools", err)
		return f.fallback.GetAllTools(ctx, filter)
	}
	if err == nil {
		f.noteRecovery()
	}
	return tools, err
}

func (f *FailoverStore) GetToolByName(ctx context.Context, name string) (*tool.Definition, error) {
	def, err := f.primary.GetToolByName(ctx, name)
	if f.shouldFallback(err) {
		f.noteFallback("get_tool_by_name", err)
		return f.fallback.GetToolByName(ctx, name)
	}
	if err == nil {
		f.noteRecovery()
	}
	return def, err
}

// SaveToolDefinition also writes through to the fallback on success so the
// in-memory copy stays warm for the moment the primary disappears.
func (f *FailoverStore) SaveToolDefinition(ctx context.Context, def *tool.Definition) (*tool.Definition, error) {
	saved, err := f.primary.SaveToolDefinition(ctx, def)
	if f.shouldFallback(err) {
		f.noteFallback("save_tool_definition", err)
		return f.fallback.SaveToolDefinition(ctx, def)
	}
	if err == nil {
		f.noteRecovery()
		if _, warmErr := f.fallback.SaveToolDefinition(ctx, def); warmErr != nil {
			log := logger.GetLogger()
			log.Debug().Err(warmErr).Str("tool", def.Name).Msg("Fallback warm write failed")
		}
	}
	return saved, err
}

func (f *FailoverStore) DeleteToolDefinition(ctx context.Context, name string) (bool, error) {
	deleted, err := f.primary.DeleteToolDefinition(ctx, name)
	if f.shouldFallback(err) {
		f.noteFallback("delete_tool_definition", err)
		return f.fallback.DeleteToolDefinition(ctx, name)
	}
	if err == nil {
		f.noteRecovery()
		if _, delErr := f.fallback.DeleteToolDefinition(ctx, name); delErr != nil {
			log := logger.GetLogger()
			log.Debug().Err(delErr).Str("tool", name).Msg("Fallback delete failed")
		}
	}
	return deleted, err
}

func (f *FailoverStore) GetConfiguration(ctx context.Context, key string, decrypt bool) (string, bool, error) {
	value, found, err := f.primary.GetConfiguration(ctx, key, decrypt)
	if f.shouldFallback(err) {
		f.noteFallback("get_configuration", err)
		return f.fallback.GetConfiguration(ctx, key, decrypt)
	}
	if err == nil {
		f.noteRecovery()
	}
	return value, found, err
}

func (f *FailoverStore) UpdateConfiguration(ctx context.Context, key, value string, encrypt bool, update store.ConfigUpdate) (*configuration.Configuration, error) {
	cfg, err := f.primary.UpdateConfiguration(ctx, key, value, encrypt, update)
	if f.shouldFallback(err) {
		f.noteFallback("update_configuration", err)
		return f.fallback.UpdateConfiguration(ctx, key, value, encrypt, update)
	}
	if err == nil {
		f.noteRecovery()
		if _, warmErr := f.fallback.UpdateConfiguration(ctx, key, value, encrypt, update); warmErr != nil {
			log := logger.GetLogger()
			log.Debug().Err(warmErr).Str("key", key).Msg("Fallback warm write failed")
		}
	}
	return cfg, err
}

func (f *FailoverStore) GetConfigurationsByCategory(ctx context.Context, category configuration.Category) ([]*configuration.Configuration, error) {
	configs, err := f.primary.GetConfigurationsByCategory(ctx, category)
	if f.shouldFallback(err) {
		f.noteFallback("get_configurations_by_category", err)
		return f.fallback.GetConfigurationsByCategory(ctx, category)
	}
	if err == nil {
		f.noteRecovery()
	}
	return configs, err
}

func (f *FailoverStore) LogToolExecution(ctx context.Context, rec *execution.Record) (execution.Handle, error) {
	handle, err := f.primary.LogToolExecution(ctx, rec)
	if f.shouldFallback(err) {
		f.noteFallback("log_tool_execution", err)
		return f.fallback.LogToolExecution(ctx, rec)
	}
	if err == nil {
		f.noteRecovery()
	}
	return handle, err
}

func (f *FailoverStore) GetToolExecutionStats(ctx context.Context, query execution.StatsQuery) (*execution.Stats, error) {
	stats, err := f.primary.GetToolExecutionStats(ctx, query)
	if f.shouldFallback(err) {
		f.noteFallback("get_tool_execution_stats", err)
		return f.fallback.GetToolExecutionStats(ctx, query)
	}
	if err == nil {
		f.noteRecovery()
	}
	return stats, err
}
