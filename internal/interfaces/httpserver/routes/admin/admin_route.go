package admin

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/backup"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	"github.com/infinyte/mcp-server/internal/infrastructure/websearch"
	"github.com/infinyte/mcp-server/internal/interfaces/httpserver/responses"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

const maskedValue = "********"

// AdminRoute exposes operational endpoints: status, sync, backups, stats,
// and tool/configuration management.
type AdminRoute struct {
	stateManager *state.Manager
	configStore  store.Store
	backups      *backup.Service
	web          *websearch.Client
	providers    []string
}

func NewAdminRoute(
	stateManager *state.Manager,
	configStore store.Store,
	backups *backup.Service,
	web *websearch.Client,
	providers []string,
) *AdminRoute {
	sorted := append([]string(nil), providers...)
	sort.Strings(sorted)
	return &AdminRoute{
		stateManager: stateManager,
		configStore:  configStore,
		backups:      backups,
		web:          web,
		providers:    sorted,
	}
}

// RegisterRouter registers admin routes on the router group.
func (r *AdminRoute) RegisterRouter(router gin.IRouter) {
	group := router.Group("/admin")
	group.GET("/status", r.status)
	group.POST("/sync", r.sync)
	group.POST("/backup", r.createBackup)
	group.GET("/backups", r.listBackups)
	group.POST("/restore", r.restore)
	group.GET("/stats", r.stats)
	group.POST("/tools", r.saveTool)
	group.PUT("/tools/:name", r.updateTool)
	group.DELETE("/tools/:name", r.deleteTool)
	group.GET("/config", r.listConfig)
	group.GET("/config/:key", r.getConfig)
	group.POST("/config", r.setConfig)
}

func (r *AdminRoute) status(reqCtx *gin.Context) {
	reqCtx.JSON(http.StatusOK, gin.H{
		"success":      true,
		"state":        r.stateManager.Status(),
		"providers":    r.providers,
		"webCacheSize": r.web.CacheSize(),
	})
}

func (r *AdminRoute) sync(reqCtx *gin.Context) {
	if err := r.stateManager.SaveState(reqCtx.Request.Context()); err != nil {
		responses.HandleError(reqCtx, err, "state sync failed")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true})
}

func (r *AdminRoute) createBackup(reqCtx *gin.Context) {
	info, err := r.backups.Create(reqCtx.Request.Context())
	if err != nil {
		responses.HandleError(reqCtx, err, "backup failed")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "backup": info})
}

func (r *AdminRoute) listBackups(reqCtx *gin.Context) {
	infos, err := r.backups.List(reqCtx.Request.Context())
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list backups")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "backups": infos})
}

type restoreRequest struct {
	Name string `json:"name"`
}

func (r *AdminRoute) restore(reqCtx *gin.Context) {
	var req restoreRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil || req.Name == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "name is required")
		return
	}

	result, err := r.backups.Restore(reqCtx.Request.Context(), req.Name)
	if err != nil {
		responses.HandleError(reqCtx, err, "restore failed")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "restored": result})
}

func (r *AdminRoute) stats(reqCtx *gin.Context) {
	query := execution.StatsQuery{
		Period:   execution.Period(reqCtx.DefaultQuery("period", string(execution.PeriodDay))),
		ToolName: reqCtx.Query("tool"),
	}
	if raw := reqCtx.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			query.Limit = limit
		}
	}

	stats := r.stateManager.GetExecutionStats(reqCtx.Request.Context(), query)
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "period": query.Period, "stats": stats})
}

func (r *AdminRoute) saveTool(reqCtx *gin.Context) {
	var def tool.Definition
	if err := reqCtx.ShouldBindJSON(&def); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid tool definition")
		return
	}

	saved, err := r.stateManager.SaveTool(reqCtx.Request.Context(), &def)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to save tool")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "tool": saved})
}

func (r *AdminRoute) updateTool(reqCtx *gin.Context) {
	var def tool.Definition
	if err := reqCtx.ShouldBindJSON(&def); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid tool definition")
		return
	}
	if def.Name == "" {
		def.Name = reqCtx.Param("name")
	}
	if def.Name != reqCtx.Param("name") {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "tool name does not match path")
		return
	}

	saved, err := r.stateManager.SaveTool(reqCtx.Request.Context(), &def)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to update tool")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "tool": saved})
}

func (r *AdminRoute) deleteTool(reqCtx *gin.Context) {
	name := reqCtx.Param("name")
	if !r.stateManager.DeleteTool(reqCtx.Request.Context(), name) {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeNotFound, "tool not found: "+name)
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "deleted": name})
}

var configCategories = []configuration.Category{
	configuration.CategoryAPIKey,
	configuration.CategoryConnection,
	configuration.CategoryServer,
	configuration.CategoryFeatureFlag,
}

func (r *AdminRoute) allConfigs(ctx context.Context) ([]*configuration.Configuration, error) {
	entries := make([]*configuration.Configuration, 0)
	for _, category := range configCategories {
		configs, err := r.configStore.GetConfigurationsByCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		for _, cfg := range configs {
			entries = append(entries, maskConfig(cfg))
		}
	}
	return entries, nil
}

// listConfig lists configuration entries across categories. Encrypted values
// are always masked.
func (r *AdminRoute) listConfig(reqCtx *gin.Context) {
	entries, err := r.allConfigs(reqCtx.Request.Context())
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list configuration")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "configurations": entries})
}

func (r *AdminRoute) getConfig(reqCtx *gin.Context) {
	key := reqCtx.Param("key")
	entries, err := r.allConfigs(reqCtx.Request.Context())
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to read configuration")
		return
	}
	for _, cfg := range entries {
		if cfg.Key == key {
			reqCtx.JSON(http.StatusOK, gin.H{"success": true, "configuration": cfg})
			return
		}
	}
	responses.HandleNewError(reqCtx, platformerrors.ErrorTypeNotFound, "configuration not found: "+key)
}

type setConfigRequest struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Encrypt     bool   `json:"encrypt"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (r *AdminRoute) setConfig(reqCtx *gin.Context) {
	var req setConfigRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil || req.Key == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "key is required")
		return
	}

	update := store.ConfigUpdate{
		Category:    configuration.Category(req.Category),
		Description: req.Description,
	}
	if err := r.stateManager.SetConfig(reqCtx.Request.Context(), req.Key, req.Value, req.Encrypt, update); err != nil {
		responses.HandleError(reqCtx, err, "failed to save configuration")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true, "key": req.Key})
}

func maskConfig(cfg *configuration.Configuration) *configuration.Configuration {
	out := cfg.Clone()
	if out.IsEncrypted {
		out.Value = maskedValue
	}
	return out
}
