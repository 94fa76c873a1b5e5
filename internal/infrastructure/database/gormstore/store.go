// Package gormstore is the durable record store backed by Postgres. Every
// operation that touches the database can fail with an UNAVAILABLE platform
// error; callers are expected to fall back rather than surface it.
package gormstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/database/dbschema"
	"github.com/infinyte/mcp-server/internal/utils/crypto"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// GormStore implements store.Store on top of GORM.
type GormStore struct {
	db     *gorm.DB
	cipher *store.Cipher
}

var _ store.Store = (*GormStore)(nil)

// New creates a database-backed store.
func New(db *gorm.DB, cipher *store.Cipher) *GormStore {
	return &GormStore{db: db, cipher: cipher}
}

func wrapDBError(ctx context.Context, err error, message string) error {
	if crypto.IsDecryptionError(err) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDecryption, message, err)
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeUnavailable, message, err)
}

// GetAllTools returns definitions matching the filter, sorted by name.
func (s *GormStore) GetAllTools(ctx context.Context, filter tool.Filter) ([]*tool.Definition, error) {
	q := s.db.WithContext(ctx).Model(&dbschema.ToolDefinition{})
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if filter.EnabledOnly {
		q = q.Where("enabled = ?", true)
	}

	var rows []dbschema.ToolDefinition
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, wrapDBError(ctx, err, "failed to list tool definitions")
	}

	tools := make([]*tool.Definition, 0, len(rows))
	for i := range rows {
		def, err := rows[i].ToDomain()
		if err != nil {
			return nil, wrapDBError(ctx, err, "failed to decode tool definition")
		}
		tools = append(tools, def)
	}
	return tools, nil
}

// GetToolByName returns nil when no definition exists.
func (s *GormStore) GetToolByName(ctx context.Context, name string) (*tool.Definition, error) {
	var row dbschema.ToolDefinition
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to find tool definition")
	}
	def, err := row.ToDomain()
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to decode tool definition")
	}
	return def, nil
}

// SaveToolDefinition upserts by name, merging fields onto any existing record.
func (s *GormStore) SaveToolDefinition(ctx context.Context, def *tool.Definition) (*tool.Definition, error) {
	if err := def.Validate(); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation, "invalid tool definition", err)
	}

	existing, err := s.GetToolByName(ctx, def.Name)
	if err != nil {
		return nil, err
	}

	merged := def.Clone()
	if existing != nil {
		merged = store.MergeToolDefinition(existing, def)
	}
	merged.Normalize(time.Now().UTC())

	row, err := dbschema.NewSchemaToolDefinition(merged)
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to encode tool definition")
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to save tool definition")
	}
	return merged, nil
}

// DeleteToolDefinition reports whether a record existed.
func (s *GormStore) DeleteToolDefinition(ctx context.Context, name string) (bool, error) {
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(&dbschema.ToolDefinition{})
	if result.Error != nil {
		return false, wrapDBError(ctx, result.Error, "failed to delete tool definition")
	}
	return result.RowsAffected > 0, nil
}

// GetConfiguration returns the stored value, decrypting when requested.
func (s *GormStore) GetConfiguration(ctx context.Context, key string, decrypt bool) (string, bool, error) {
	var row dbschema.Configuration
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapDBError(ctx, err, "failed to load configuration")
	}

	if row.IsEncrypted && decrypt {
		plaintext, err := s.cipher.DecryptValue(ctx, row.Value)
		if err != nil {
			return "", false, wrapDBError(ctx, err, "failed to decrypt configuration value")
		}
		return plaintext, true, nil
	}
	return row.Value, true, nil
}

// UpdateConfiguration upserts by key; encryption is applied before the write.
func (s *GormStore) UpdateConfiguration(ctx context.Context, key, value string, encrypt bool, update store.ConfigUpdate) (*configuration.Configuration, error) {
	stored := value
	if encrypt {
		ciphertext, err := s.cipher.EncryptValue(ctx, value)
		if err != nil {
			return nil, wrapDBError(ctx, err, "failed to encrypt configuration value")
		}
		stored = ciphertext
	}

	now := time.Now().UTC()
	row := dbschema.Configuration{
		Key:         key,
		Value:       stored,
		IsEncrypted: encrypt,
		Category:    string(update.Category),
		Description: update.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	assignments := map[string]interface{}{
		"value":        stored,
		"is_encrypted": encrypt,
		"updated_at":   now,
	}
	if update.Category != "" {
		assignments["category"] = string(update.Category)
	}
	if update.Description != "" {
		assignments["description"] = update.Description
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to save configuration")
	}
	return row.ToDomain(), nil
}

// GetConfigurationsByCategory returns raw entries in the category.
func (s *GormStore) GetConfigurationsByCategory(ctx context.Context, category configuration.Category) ([]*configuration.Configuration, error) {
	var rows []dbschema.Configuration
	err := s.db.WithContext(ctx).
		Where("category = ?", string(category)).
		Order("key ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to list configurations")
	}

	configs := make([]*configuration.Configuration, 0, len(rows))
	for i := range rows {
		configs = append(configs, rows[i].ToDomain())
	}
	return configs, nil
}

// LogToolExecution inserts a pending row immediately so a crash leaves an
// honest partial record, then returns the completion handle.
func (s *GormStore) LogToolExecution(ctx context.Context, rec *execution.Record) (execution.Handle, error) {
	now := time.Now().UTC()
	pending := *rec
	if pending.ID == "" {
		pending.ID = uuid.NewString()
	}
	pending.Status = execution.StatusPending
	if pending.Metadata.Timestamp.IsZero() {
		pending.Metadata.Timestamp = now
	}

	row, err := dbschema.NewSchemaToolExecution(&pending)
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to encode execution record")
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, wrapDBError(ctx, err, "failed to log tool execution")
	}

	return &handle{store: s, rec: &pending, started: now}, nil
}

type handle struct {
	store   *GormStore
	rec     *execution.Record
	started time.Time
	once    sync.Once
	final   *execution.Record
}

// Complete transitions the persisted record out of pending exactly once. A
// failed update is logged by the caller's store policy; the returned record
// still reflects the terminal state.
func (h *handle) Complete(result any, err error) *execution.Record {
	h.once.Do(func() {
		h.rec.ExecutionTime = time.Since(h.started).Milliseconds()
		if err != nil {
			h.rec.Status = execution.StatusFailure
			h.rec.ErrorMessage = err.Error()
		} else {
			h.rec.Status = execution.StatusSuccess
			h.rec.Outputs = result
		}

		if row, encErr := dbschema.NewSchemaToolExecution(h.rec); encErr == nil {
			h.store.db.Model(&dbschema.ToolExecution{}).
				Where("id = ?", h.rec.ID).
				Updates(map[string]interface{}{
					"status":         row.Status,
					"outputs":        row.Outputs,
					"error_message":  row.ErrorMessage,
					"execution_time": row.ExecutionTime,
				})
		}

		final := *h.rec
		h.final = &final
	})
	return h.final
}

// GetToolExecutionStats aggregates telemetry over a trailing window.
func (s *GormStore) GetToolExecutionStats(ctx context.Context, query execution.StatsQuery) (*execution.Stats, error) {
	windowStart := query.Period.WindowStart(time.Now().UTC())
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&dbschema.ToolExecution{}).
			Where("timestamp >= ?", windowStart)
		if query.ToolName != "" {
			q = q.Where("tool_name = ?", query.ToolName)
		}
		return q
	}

	stats := &execution.Stats{}
	if err := base().Count(&stats.TotalCount).Error; err != nil {
		return nil, wrapDBError(ctx, err, "failed to count executions")
	}
	if err := base().Where("status = ?", string(execution.StatusSuccess)).Count(&stats.SuccessCount).Error; err != nil {
		return nil, wrapDBError(ctx, err, "failed to count successful executions")
	}
	if err := base().Where("status = ?", string(execution.StatusFailure)).Count(&stats.FailureCount).Error; err != nil {
		return nil, wrapDBError(ctx, err, "failed to count failed executions")
	}
	if stats.TotalCount > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalCount)
	}

	type toolCountRow struct {
		ToolName string
		Count    int64
	}
	var countRows []toolCountRow
	err := base().
		Select("tool_name, COUNT(*) AS count").
		Group("tool_name").
		Order("count DESC, tool_name ASC").
		Limit(limit).
		Find(&countRows).Error
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to aggregate top tools")
	}
	for _, row := range countRows {
		stats.TopTools = append(stats.TopTools, execution.ToolCount{Name: row.ToolName, Count: row.Count})
	}

	type toolTimingRow struct {
		ToolName string
		AvgTime  float64
	}
	var timingRows []toolTimingRow
	err = base().
		Where("status <> ?", string(execution.StatusPending)).
		Select("tool_name, AVG(execution_time) AS avg_time").
		Group("tool_name").
		Order("tool_name ASC").
		Find(&timingRows).Error
	if err != nil {
		return nil, wrapDBError(ctx, err, "failed to aggregate execution times")
	}
	for _, row := range timingRows {
		stats.ExecutionTimes = append(stats.ExecutionTimes, execution.ToolTiming{Name: row.ToolName, AvgTime: row.AvgTime})
	}

	return stats, nil
}
