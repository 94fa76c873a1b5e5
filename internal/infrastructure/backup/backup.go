// Package backup writes and restores JSON snapshots of tool definitions and
// non-secret configuration. Secrets (api_key category) are never written to
// disk and never restored from it.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

const (
	formatVersion = 1
	filePrefix    = "mcp-backup-"
	fileSuffix    = ".json"
)

// Snapshot is the on-disk backup format.
type Snapshot struct {
	Version        int                            `json:"version"`
	Timestamp      time.Time                      `json:"timestamp"`
	Tools          []*tool.Definition             `json:"tools"`
	Configurations []*configuration.Configuration `json:"configurations"`
}

// Info describes one backup file for listings.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Service creates, lists and restores backups in a single directory.
type Service struct {
	store store.Store
	dir   string
}

// NewService builds the backup service; the directory is created on first
// write.
func NewService(s store.Store, dir string) *Service {
	return &Service{store: s, dir: dir}
}

// Create writes a snapshot and returns its file info.
func (s *Service) Create(ctx context.Context) (*Info, error) {
	tools, err := s.store.GetAllTools(ctx, tool.Filter{})
	if err != nil {
		return nil, err
	}

	var configs []*configuration.Configuration
	for _, category := range []configuration.Category{
		configuration.CategoryConnection,
		configuration.CategoryServer,
		configuration.CategoryFeatureFlag,
	} {
		entries, err := s.store.GetConfigurationsByCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsEncrypted || entry.Key == configuration.SystemEncryptionKey {
				continue
			}
			configs = append(configs, entry)
		}
	}

	snapshot := Snapshot{
		Version:        formatVersion,
		Timestamp:      time.Now().UTC(),
		Tools:          tools,
		Configurations: configs,
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "failed to create backup directory", err)
	}

	name := fmt.Sprintf("%s%s%s", filePrefix, snapshot.Timestamp.Format("20060102-150405"), fileSuffix)
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "failed to encode backup", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "failed to write backup file", err)
	}

	log := logger.GetLogger()
	log.Info().Str("path", path).Int("tools", len(tools)).Int("configs", len(configs)).Msg("Backup created")
	return &Info{Name: name, Path: path, Size: int64(len(data)), Timestamp: snapshot.Timestamp}, nil
}

// List returns the available backups, newest first.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "failed to read backup directory", err)
	}

	backups := make([]Info, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Name:      name,
			Path:      filepath.Join(s.dir, name),
			Size:      info.Size(),
			Timestamp: info.ModTime().UTC(),
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// RestoreResult summarizes a restore.
type RestoreResult struct {
	Tools          int `json:"tools"`
	Configurations int `json:"configurations"`
	Skipped        int `json:"skipped"`
}

// Restore loads a snapshot by file name and writes its contents back through
// the store. Secret-category entries present in older or hand-edited files
// are skipped.
func (s *Service) Restore(ctx context.Context, name string) (*RestoreResult, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "invalid backup name", nil)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound, "backup not found", err)
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "failed to read backup file", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "malformed backup file", err)
	}

	result := &RestoreResult{}
	for _, def := range snapshot.Tools {
		if _, err := s.store.SaveToolDefinition(ctx, def); err != nil {
			return nil, err
		}
		result.Tools++
	}
	for _, cfg := range snapshot.Configurations {
		if cfg.Category == configuration.CategoryAPIKey || cfg.IsEncrypted || cfg.Key == configuration.SystemEncryptionKey {
			result.Skipped++
			continue
		}
		_, err := s.store.UpdateConfiguration(ctx, cfg.Key, cfg.Value, false, store.ConfigUpdate{
			Category:    cfg.Category,
			Description: cfg.Description,
		})
		if err != nil {
			return nil, err
		}
		result.Configurations++
	}

	log := logger.GetLogger()
	log.Info().Str("backup", name).Int("tools", result.Tools).Int("configs", result.Configurations).Msg("Backup restored")
	return result, nil
}
