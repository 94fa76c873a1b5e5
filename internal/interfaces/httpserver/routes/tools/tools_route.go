package tools

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/infinyte/mcp-server/internal/domain/catalog"
	"github.com/infinyte/mcp-server/internal/domain/tool"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	"github.com/infinyte/mcp-server/internal/interfaces/httpserver/responses"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// ToolsRoute exposes the tool catalog endpoints.
type ToolsRoute struct {
	catalog      *catalog.Service
	stateManager *state.Manager
}

func NewToolsRoute(catalogService *catalog.Service, stateManager *state.Manager) *ToolsRoute {
	return &ToolsRoute{catalog: catalogService, stateManager: stateManager}
}

// RegisterRouter registers catalog routes on the router group.
func (r *ToolsRoute) RegisterRouter(router gin.IRouter) {
	router.GET("/tools", r.listTools)
	router.GET("/tools/available", r.listAvailable)
	router.GET("/tools/:toolName", r.getTool)
}

// listAvailable serves the filterable, renderable catalog listing.
func (r *ToolsRoute) listAvailable(reqCtx *gin.Context) {
	opts := catalog.ListOptions{
		Category: reqCtx.Query("category"),
		Search:   reqCtx.Query("search"),
		Provider: reqCtx.Query("provider"),
	}
	if raw := reqCtx.Query("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "enabled must be a boolean")
			return
		}
		opts.Enabled = &enabled
	}
	if raw := reqCtx.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			opts.Limit = limit
		}
	}
	if raw := reqCtx.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			opts.Offset = offset
		}
	}

	result, err := r.catalog.List(reqCtx.Request.Context(), opts)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list tools")
		return
	}

	format := catalog.ParseFormat(reqCtx.Query("format"))
	body, err := catalog.Render(result, format)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to render tool listing")
		return
	}

	reqCtx.Data(http.StatusOK, format.ContentType(), body)
}

// listTools returns the raw tool definitions.
func (r *ToolsRoute) listTools(reqCtx *gin.Context) {
	defs := r.stateManager.GetAllTools(reqCtx.Request.Context(), tool.Filter{})
	reqCtx.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(defs),
		"tools":   defs,
	})
}

// getTool returns one definition with its invocation endpoint when known.
func (r *ToolsRoute) getTool(reqCtx *gin.Context) {
	name := reqCtx.Param("toolName")
	def := r.stateManager.GetTool(reqCtx.Request.Context(), name)
	if def == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeNotFound, "tool not found: "+name)
		return
	}

	body := gin.H{"success": true, "tool": def}
	if usage := catalog.UsageFor(name); usage != nil {
		body["usage"] = usage
	}
	reqCtx.JSON(http.StatusOK, body)
}
