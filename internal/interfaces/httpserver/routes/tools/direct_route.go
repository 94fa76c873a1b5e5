package tools

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/infinyte/mcp-server/internal/domain/execution"
	"github.com/infinyte/mcp-server/internal/infrastructure/imagegen"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	"github.com/infinyte/mcp-server/internal/infrastructure/websearch"
	"github.com/infinyte/mcp-server/internal/interfaces/httpserver/responses"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

// DirectRoute invokes tools over HTTP without a model round-trip.
type DirectRoute struct {
	web          *websearch.Client
	images       *imagegen.Client
	stateManager *state.Manager
}

func NewDirectRoute(web *websearch.Client, images *imagegen.Client, stateManager *state.Manager) *DirectRoute {
	return &DirectRoute{web: web, images: images, stateManager: stateManager}
}

// RegisterRouter registers the direct invocation routes.
func (r *DirectRoute) RegisterRouter(router gin.IRouter) {
	router.POST("/tools/web/search", r.webSearch)
	router.POST("/tools/web/content", r.webContent)
	router.POST("/tools/web/batch", r.webBatch)
	router.POST("/tools/image/generate", r.imageGenerate)
	router.POST("/tools/image/edit", r.imageEdit)
	router.POST("/tools/image/variation", r.imageVariation)
}

// logDirect opens an execution record for a direct invocation.
func (r *DirectRoute) logDirect(reqCtx *gin.Context, toolName string, inputs map[string]any) execution.Handle {
	rec := &execution.Record{
		ToolName: toolName,
		Provider: execution.ProviderDirect,
		Inputs:   inputs,
		Metadata: execution.Metadata{
			IPAddress: reqCtx.ClientIP(),
			UserAgent: reqCtx.Request.UserAgent(),
			Timestamp: time.Now().UTC(),
		},
	}
	return r.stateManager.LogExecution(reqCtx.Request.Context(), rec)
}

type webSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (r *DirectRoute) webSearch(reqCtx *gin.Context) {
	var req webSearchRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil || req.Query == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "query is required")
		return
	}

	handle := r.logDirect(reqCtx, "web_search", map[string]any{"query": req.Query, "limit": req.Limit})
	result, err := r.web.Search(reqCtx.Request.Context(), req.Query, req.Limit)
	handle.Complete(result, err)
	if err != nil {
		responses.HandleError(reqCtx, err, "search failed")
		return
	}
	reqCtx.JSON(http.StatusOK, result)
}

type webContentRequest struct {
	URL      string `json:"url"`
	UseCache *bool  `json:"useCache"`
}

func (r *DirectRoute) webContent(reqCtx *gin.Context) {
	var req webContentRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil || req.URL == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "url is required")
		return
	}
	useCache := req.UseCache == nil || *req.UseCache

	handle := r.logDirect(reqCtx, "web_content", map[string]any{"url": req.URL, "useCache": useCache})
	result, err := r.web.FetchContent(reqCtx.Request.Context(), req.URL, useCache)
	handle.Complete(result, err)
	if err != nil {
		responses.HandleError(reqCtx, err, "content fetch failed")
		return
	}
	reqCtx.JSON(http.StatusOK, result)
}

type webBatchRequest struct {
	URLs     []string `json:"urls"`
	UseCache *bool    `json:"useCache"`
}

func (r *DirectRoute) webBatch(reqCtx *gin.Context) {
	var req webBatchRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "urls is required")
		return
	}
	useCache := req.UseCache == nil || *req.UseCache

	handle := r.logDirect(reqCtx, "web_batch", map[string]any{"urlCount": len(req.URLs), "useCache": useCache})
	result, err := r.web.FetchBatch(reqCtx.Request.Context(), req.URLs, useCache)
	handle.Complete(result, err)
	if err != nil {
		responses.HandleError(reqCtx, err, "batch fetch failed")
		return
	}
	reqCtx.JSON(http.StatusOK, result)
}

type imageGenerateRequest struct {
	Prompt   string           `json:"prompt"`
	Provider string           `json:"provider"`
	Options  imagegen.Options `json:"options"`
}

func (r *DirectRoute) imageGenerate(reqCtx *gin.Context) {
	var req imageGenerateRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "prompt is required")
		return
	}

	handle := r.logDirect(reqCtx, "generate_image", map[string]any{"prompt": req.Prompt, "provider": req.Provider})
	result, err := r.images.Generate(reqCtx.Request.Context(), req.Prompt, req.Provider, req.Options)
	handle.Complete(result, err)
	if err != nil {
		responses.HandleError(reqCtx, err, "image generation failed")
		return
	}
	reqCtx.JSON(http.StatusOK, result)
}

type imageEditRequest struct {
	ImagePath string `json:"imagePath"`
	Prompt    string `json:"prompt"`
	MaskPath  string `json:"maskPath"`
}

func (r *DirectRoute) imageEdit(reqCtx *gin.Context) {
	var req imageEditRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil || req.ImagePath == "" || req.Prompt == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "imagePath and prompt are required")
		return
	}

	handle := r.logDirect(reqCtx, "edit_image", map[string]any{"imagePath": req.ImagePath, "prompt": req.Prompt})
	result, err := r.images.Edit(reqCtx.Request.Context(), req.ImagePath, req.Prompt, req.MaskPath)
	handle.Complete(result, err)
	if err != nil {
		responses.HandleError(reqCtx, err, "image edit failed")
		return
	}
	reqCtx.JSON(http.StatusOK, result)
}

type imageVariationRequest struct {
	ImagePath string `json:"imagePath"`
}

func (r *DirectRoute) imageVariation(reqCtx *gin.Context) {
	var req imageVariationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil || req.ImagePath == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "imagePath is required")
		return
	}

	handle := r.logDirect(reqCtx, "create_image_variation", map[string]any{"imagePath": req.ImagePath})
	result, err := r.images.Variation(reqCtx.Request.Context(), req.ImagePath)
	handle.Complete(result, err)
	if err != nil {
		responses.HandleError(reqCtx, err, "image variation failed")
		return
	}
	reqCtx.JSON(http.StatusOK, result)
}
