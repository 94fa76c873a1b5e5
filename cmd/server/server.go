package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"github.com/infinyte/mcp-server/internal/config"
	"github.com/infinyte/mcp-server/internal/domain/catalog"
	"github.com/infinyte/mcp-server/internal/domain/dispatch"
	"github.com/infinyte/mcp-server/internal/domain/store"
	"github.com/infinyte/mcp-server/internal/infrastructure/backup"
	"github.com/infinyte/mcp-server/internal/infrastructure/crontab"
	"github.com/infinyte/mcp-server/internal/infrastructure/database"
	"github.com/infinyte/mcp-server/internal/infrastructure/database/gormstore"
	"github.com/infinyte/mcp-server/internal/infrastructure/imagegen"
	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
	"github.com/infinyte/mcp-server/internal/infrastructure/memstore"
	"github.com/infinyte/mcp-server/internal/infrastructure/provider"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	"github.com/infinyte/mcp-server/internal/infrastructure/toolhandlers"
	"github.com/infinyte/mcp-server/internal/infrastructure/websearch"
	"github.com/infinyte/mcp-server/internal/interfaces/httpserver"
	adminroute "github.com/infinyte/mcp-server/internal/interfaces/httpserver/routes/admin"
	mcproute "github.com/infinyte/mcp-server/internal/interfaces/httpserver/routes/mcp"
	toolsroute "github.com/infinyte/mcp-server/internal/interfaces/httpserver/routes/tools"
	"github.com/infinyte/mcp-server/internal/utils/crypto"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootLog := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to initialize logger")
	}
	log.Info().Int("http_port", cfg.HTTPPort).Str("log_level", cfg.LogLevel).Msg("starting mcp server")

	// Encryption key resolution: env first, then the persisted installation
	// key, generated on first use.
	resolver := crypto.NewKeyResolver(cfg.EncryptionKey)
	cipher := store.NewCipher(resolver)

	fallback := memstore.New(cipher)
	var combined store.Store = fallback
	var failover *state.FailoverStore

	if cfg.DatabaseURL != "" {
		db, dbErr := database.Connect(ctx, database.Config{
			DatabaseURL: cfg.DatabaseURL,
			MaxIdle:     cfg.DBMaxIdle,
			MaxOpen:     cfg.DBMaxOpen,
			MaxLifetime: cfg.DBMaxLifetime,
			MaxAttempts: cfg.DBConnectAttempts,
			LogLevel:    gormlogger.Warn,
		})
		if dbErr != nil {
			log.Warn().Err(dbErr).Msg("database unreachable, running on in-memory store")
		} else if migrateErr := database.Migrate(db); migrateErr != nil {
			log.Warn().Err(migrateErr).Msg("database migration failed, running on in-memory store")
		} else {
			failover = state.NewFailoverStore(gormstore.New(db, cipher), fallback)
			combined = failover
		}
	} else {
		log.Info().Msg("no DATABASE_URL configured, running on in-memory store")
	}

	resolver.SetSource(state.NewStoreKeySource(combined))

	if err := catalog.NewService(combined).Seed(ctx); err != nil {
		log.Warn().Err(err).Msg("builtin tool seeding incomplete")
	}

	var health state.Degradation
	if failover != nil {
		health = failover
	}
	stateManager := state.NewManager(ctx, combined, health)

	web := websearch.NewClient(websearch.ClientConfig{
		SerperAPIKey:  cfg.SerperAPIKey,
		HTTPTimeout:   cfg.HTTPTimeout,
		ScrapeTimeout: cfg.ScrapeTimeout,
		CacheTTL:      cfg.WebCacheTTL,
	})
	images := imagegen.NewClientFromAPIKeys(cfg.OpenAIAPIKey, cfg.StabilityAPIKey, cfg.HTTPTimeout)

	registry := dispatch.NewRegistry()
	toolhandlers.RegisterAll(registry, web, images)

	var clients []provider.Client
	if cfg.AnthropicAPIKey != "" {
		clients = append(clients, provider.NewAnthropicClientFromAPIKey(cfg.AnthropicAPIKey, cfg.AnthropicDefaultModel, cfg.MaxTokens))
	}
	if cfg.OpenAIAPIKey != "" {
		clients = append(clients, provider.NewOpenAIClientFromAPIKey(cfg.OpenAIAPIKey, cfg.OpenAIDefaultModel, cfg.MaxTokens))
	}
	if len(clients) == 0 {
		log.Warn().Msg("no provider API keys configured, /mcp dispatch will reject all providers")
	}
	orchestrator := dispatch.NewOrchestrator(clients, registry, stateManager)

	backups := backup.NewService(combined, cfg.BackupDir)
	syncJob := crontab.NewCrontab(stateManager, cfg.StateSyncInterval)

	server := httpserver.NewHTTPServer(
		cfg,
		mcproute.NewMCPRoute(orchestrator),
		toolsroute.NewToolsRoute(catalog.NewService(combined), stateManager),
		toolsroute.NewDirectRoute(web, images, stateManager),
		adminroute.NewAdminRoute(stateManager, combined, backups, web, orchestrator.Providers()),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(server.Run)
	group.Go(func() error {
		return syncJob.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := stateManager.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("state flush on shutdown incomplete")
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}
