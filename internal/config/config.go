package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for the MCP server.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"3000"`
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Database (optional: when empty or unreachable the server runs on the
	// in-memory fallback store)
	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxIdle         int           `env:"DB_MAX_IDLE" envDefault:"10"`
	DBMaxOpen         int           `env:"DB_MAX_OPEN" envDefault:"25"`
	DBMaxLifetime     time.Duration `env:"DB_MAX_LIFETIME" envDefault:"1h"`
	DBConnectAttempts int           `env:"DB_CONNECT_ATTEMPTS" envDefault:"5"`

	// Secrets
	EncryptionKey string `env:"MCP_ENCRYPTION_KEY"`

	// Provider API keys
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	StabilityAPIKey string `env:"STABILITY_API_KEY"`
	SerperAPIKey    string `env:"SERPER_API_KEY"`

	// Provider defaults
	AnthropicDefaultModel string `env:"ANTHROPIC_DEFAULT_MODEL" envDefault:"claude-3-7-sonnet-20250219"`
	OpenAIDefaultModel    string `env:"OPENAI_DEFAULT_MODEL" envDefault:"gpt-4o"`
	MaxTokens             int    `env:"MCP_MAX_TOKENS" envDefault:"4096"`

	// State manager
	StateSyncInterval time.Duration `env:"STATE_SYNC_INTERVAL" envDefault:"5m"`

	// Backups
	BackupDir string `env:"BACKUP_DIR" envDefault:"backups"`

	// Outbound HTTP
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	ScrapeTimeout time.Duration `env:"SCRAPE_TIMEOUT" envDefault:"45s"`
	WebCacheTTL   time.Duration `env:"WEB_CACHE_TTL" envDefault:"10m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP_PORT: %d", cfg.HTTPPort)
	}
	if cfg.StateSyncInterval < time.Minute {
		cfg.StateSyncInterval = time.Minute
	}

	return cfg, nil
}
