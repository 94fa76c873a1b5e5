package mcp

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/infinyte/mcp-server/internal/domain/dispatch"
	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/interfaces/httpserver/responses"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// MCPRoute exposes the model dispatch endpoint.
type MCPRoute struct {
	orchestrator *dispatch.Orchestrator
}

func NewMCPRoute(orchestrator *dispatch.Orchestrator) *MCPRoute {
	return &MCPRoute{orchestrator: orchestrator}
}

// RegisterRouter registers mcp routes on the router group.
func (r *MCPRoute) RegisterRouter(router gin.IRouter) {
	router.POST("/mcp/:provider", r.dispatch)
}

// dispatch runs one model round against the named provider, executing any
// tool calls the model makes and feeding the results back for a follow-up.
func (r *MCPRoute) dispatch(reqCtx *gin.Context) {
	providerName := reqCtx.Param("provider")

	var req dispatch.Request
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body")
		return
	}

	meta := execution.Metadata{
		IPAddress: reqCtx.ClientIP(),
		UserAgent: reqCtx.Request.UserAgent(),
		ModelName: req.Model,
		Timestamp: time.Now().UTC(),
	}

	result, err := r.orchestrator.Dispatch(reqCtx.Request.Context(), providerName, req, meta)
	if err != nil {
		responses.HandleError(reqCtx, err, "dispatch failed")
		return
	}

	reqCtx.JSON(http.StatusOK, result)
}
