package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the openclaw-projects server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Jobs       JobsConfig
	Sync       SyncConfig
	Embeddings EmbeddingsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// JobsConfig tunes the dispatcher and its retry policy.
type JobsConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	LockTimeout    time.Duration
	HandlerTimeout time.Duration
}

// SyncConfig tunes the batch scheduler and the contact-source gateway client.
type SyncConfig struct {
	ScanInterval   time.Duration
	ResyncInterval time.Duration
	GatewayURL     string
	GatewayTimeout time.Duration
}

// EmbeddingsConfig selects and configures the embedding provider.
// An empty Provider is valid: items stay pending until a provider is
// configured and a backfill runs.
type EmbeddingsConfig struct {
	Provider string
	Timeout  time.Duration
	OpenAI   OpenAIConfig
	Ollama   OllamaConfig
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

var validEmbeddingProviders = map[string]bool{
	"":       true, // none configured; embedding jobs stay pending
	"openai": true,
	"ollama": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("OPENCLAW_PORT", 8080),
			Env:  envString("OPENCLAW_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Jobs: JobsConfig{
			PollInterval:   envDuration("JOBS_POLL_INTERVAL", 2*time.Second),
			BatchSize:      envInt("JOBS_BATCH_SIZE", 10),
			MaxAttempts:    envInt("JOBS_MAX_ATTEMPTS", 8),
			BackoffInitial: envDuration("JOBS_BACKOFF_INITIAL", 30*time.Second),
			BackoffMax:     envDuration("JOBS_BACKOFF_MAX", time.Hour),
			LockTimeout:    envDuration("JOBS_LOCK_TIMEOUT", 10*time.Minute),
			HandlerTimeout: envDuration("JOBS_HANDLER_TIMEOUT", 2*time.Minute),
		},
		Sync: SyncConfig{
			ScanInterval:   envDuration("SYNC_SCAN_INTERVAL", 5*time.Minute),
			ResyncInterval: envDuration("SYNC_RESYNC_INTERVAL", 6*time.Hour),
			GatewayURL:     os.Getenv("SYNC_GATEWAY_URL"),
			GatewayTimeout: envDuration("SYNC_GATEWAY_TIMEOUT", 90*time.Second),
		},
		Embeddings: EmbeddingsConfig{
			Provider: os.Getenv("EMBEDDING_PROVIDER"),
			Timeout:  envDurationSecs("EMBEDDING_TIMEOUT_SECS", 60*time.Second),
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Jobs.BatchSize <= 0 {
		return fmt.Errorf("JOBS_BATCH_SIZE must be positive, got %d", c.Jobs.BatchSize)
	}
	if c.Jobs.MaxAttempts <= 0 {
		return fmt.Errorf("JOBS_MAX_ATTEMPTS must be positive, got %d", c.Jobs.MaxAttempts)
	}
	if c.Jobs.BackoffMax < c.Jobs.BackoffInitial {
		return fmt.Errorf("JOBS_BACKOFF_MAX (%s) must be >= JOBS_BACKOFF_INITIAL (%s)",
			c.Jobs.BackoffMax, c.Jobs.BackoffInitial)
	}

	if c.Sync.GatewayURL == "" {
		return fmt.Errorf("SYNC_GATEWAY_URL is required")
	}
	if !strings.HasPrefix(c.Sync.GatewayURL, "http://") && !strings.HasPrefix(c.Sync.GatewayURL, "https://") {
		return fmt.Errorf("SYNC_GATEWAY_URL must start with http:// or https://, got %q", c.Sync.GatewayURL)
	}

	if !validEmbeddingProviders[c.Embeddings.Provider] {
		return fmt.Errorf("EMBEDDING_PROVIDER must be one of openai, ollama, or unset; got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "openai" && c.Embeddings.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER is openai")
	}
	if c.Embeddings.Provider == "ollama" {
		base := c.Embeddings.Ollama.BaseURL
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			return fmt.Errorf("OLLAMA_BASE_URL must start with http:// or https://, got %q", base)
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
