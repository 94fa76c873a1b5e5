package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/infinyte/mcp-server/internal/config"
	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
	"github.com/infinyte/mcp-server/internal/interfaces/httpserver/middlewares"
	adminroute "github.com/infinyte/mcp-server/internal/interfaces/httpserver/routes/admin"
	mcproute "github.com/infinyte/mcp-server/internal/interfaces/httpserver/routes/mcp"
	toolsroute "github.com/infinyte/mcp-server/internal/interfaces/httpserver/routes/tools"
)

// HTTPServer wires the gin engine, middleware stack and route groups.
type HTTPServer struct {
	engine      *gin.Engine
	config      *config.Config
	mcpRoute    *mcproute.MCPRoute
	toolsRoute  *toolsroute.ToolsRoute
	directRoute *toolsroute.DirectRoute
	adminRoute  *adminroute.AdminRoute
	httpServer  *http.Server
}

func NewHTTPServer(
	cfg *config.Config,
	mcpRoute *mcproute.MCPRoute,
	toolsRoute *toolsroute.ToolsRoute,
	directRoute *toolsroute.DirectRoute,
	adminRoute *adminroute.AdminRoute,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := &HTTPServer{
		engine:      gin.New(),
		config:      cfg,
		mcpRoute:    mcpRoute,
		toolsRoute:  toolsRoute,
		directRoute: directRoute,
		adminRoute:  adminRoute,
	}

	server.engine.Use(gin.Recovery())
	server.engine.Use(middlewares.RequestID())
	server.engine.Use(middlewares.RequestLogger(logger.GetLogger()))
	server.engine.Use(middlewares.CORS())
	server.engine.Use(middlewares.Metrics())

	server.setupRoutes()
	return server
}

func (s *HTTPServer) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "mcp-server"})
	})
	s.engine.GET("/readyz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": "mcp-server"})
	})
	s.engine.GET(s.config.MetricsPath, gin.WrapH(promhttp.Handler()))

	root := s.engine.Group("/")
	s.mcpRoute.RegisterRouter(root)
	s.toolsRoute.RegisterRouter(root)
	s.directRoute.RegisterRouter(root)
	s.adminRoute.RegisterRouter(root)
}

// Engine exposes the router for tests.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called.
func (s *HTTPServer) Run() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log := logger.GetLogger()
	log.Info().Int("port", s.config.HTTPPort).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
