package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultConfigPath is the YAML file Load reads when it exists.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-askdata.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Logging LoggingConfig `yaml:"logging"`

	LLM LLMConfig `yaml:"llm"`

	// Datasource is the database questions are answered against.
	Datasource DatasourceConfig `yaml:"datasource"`

	SessionStore SessionStoreConfig `yaml:"session_store"`

	// Database is the PostgreSQL database used by the postgres session store.
	Database DatabaseConfig `yaml:"database"`

	Redis RedisConfig `yaml:"redis"`

	Agent AgentConfig `yaml:"agent"`
}

// LoggingConfig controls the zap logger built at startup.
type LoggingConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding string `yaml:"encoding" env:"LOG_ENCODING" env-default:"console"` // json or console
}

// LLMConfig selects and configures the completion service.
type LLMConfig struct {
	// Provider is "anthropic" or "openai" (any OpenAI-compatible endpoint).
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	BaseURL     string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"claude-sonnet-4-6"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"4096"`

	// APIKey falls back to ANTHROPIC_API_KEY or OPENAI_API_KEY depending on Provider.
	APIKey string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// DatasourceConfig describes the queried database.
type DatasourceConfig struct {
	// Type is one of sqlite, postgres, mssql, mysql.
	Type string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"sqlite"`

	// Path is the database file for sqlite.
	Path string `yaml:"path" env:"DATASOURCE_PATH" env-default:"anexo_desafio_1.db"`

	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Name     string `yaml:"name" env:"DATASOURCE_NAME" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"disable"`
}

// Settings returns the adapter configuration map understood by the datasource registry.
func (d *DatasourceConfig) Settings() map[string]any {
	return map[string]any{
		"path":     d.Path,
		"host":     d.Host,
		"port":     d.Port,
		"user":     d.User,
		"password": d.Password,
		"database": d.Name,
		"ssl_mode": d.SSLMode,
	}
}

// SessionStoreConfig selects where conversation state is checkpointed.
type SessionStoreConfig struct {
	// Type is one of memory, postgres, redis.
	Type string        `yaml:"type" env:"SESSION_STORE" env-default:"memory"`
	TTL  time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"0s"` // redis only; 0 keeps sessions forever
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_askdata"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	// MigrationsPath overrides the migrations compiled into the binary.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AgentConfig tunes the question answering pipeline.
type AgentConfig struct {
	// SchemaCacheTTL caches the discovered schema between turns. 0 disables caching.
	SchemaCacheTTL time.Duration `yaml:"schema_cache_ttl" env:"AGENT_SCHEMA_CACHE_TTL" env-default:"0s"`
	// RequestTimeout bounds one turn. 0 means no deadline.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"AGENT_REQUEST_TIMEOUT" env-default:"0s"`
}

var (
	validProviders     = []string{"anthropic", "openai"}
	validDatasources   = []string{"sqlite", "postgres", "mssql", "mysql"}
	validSessionStores = []string{"memory", "postgres", "redis"}
)

// Load reads configuration from config.yaml (if present) with environment
// variable overrides. A .env file in the working directory is loaded first;
// variables already set in the process environment win over it.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultConfigPath, version)
}

// LoadFile is Load with an explicit YAML path. A missing file is not an error.
func LoadFile(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.applyFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyFallbacks fills provider API keys and rewrites loopback hosts when running in Docker.
func (c *Config) applyFallbacks() {
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if c.Datasource.Type != "sqlite" {
		c.Datasource.Host = ResolveHostForDocker(c.Datasource.Host)
	}
	c.Redis.Host = ResolveHostForDocker(c.Redis.Host)
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if !slices.Contains(validProviders, c.LLM.Provider) {
		return fmt.Errorf("llm.provider must be one of %v, got %q", validProviders, c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if !slices.Contains(validDatasources, c.Datasource.Type) {
		return fmt.Errorf("datasource.type must be one of %v, got %q", validDatasources, c.Datasource.Type)
	}
	if c.Datasource.Type == "sqlite" && c.Datasource.Path == "" {
		return fmt.Errorf("datasource.path is required for sqlite")
	}
	if !slices.Contains(validSessionStores, c.SessionStore.Type) {
		return fmt.Errorf("session_store.type must be one of %v, got %q", validSessionStores, c.SessionStore.Type)
	}
	if c.Agent.SchemaCacheTTL < 0 || c.Agent.RequestTimeout < 0 {
		return fmt.Errorf("agent durations must not be negative")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the Redis host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal inside a container
// so the service can reach databases running on the host machine.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
