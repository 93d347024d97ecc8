package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configEnvVars = []string{
	"PORT", "ENVIRONMENT", "LOG_LEVEL", "LOG_ENCODING",
	"LLM_PROVIDER", "LLM_BASE_URL", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS", "LLM_API_KEY",
	"ANTHROPIC_API_KEY", "OPENAI_API_KEY",
	"DATASOURCE_TYPE", "DATASOURCE_PATH", "DATASOURCE_HOST", "DATASOURCE_PORT", "DATASOURCE_USER",
	"DATASOURCE_PASSWORD", "DATASOURCE_NAME", "DATASOURCE_SSL_MODE",
	"SESSION_STORE", "SESSION_TTL", "PGHOST", "PGPASSWORD", "REDIS_HOST", "REDIS_PORT",
	"AGENT_SCHEMA_CACHE_TTL", "AGENT_REQUEST_TIMEOUT",
}

// isolateEnv clears config variables for the test and restores them afterwards.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// chdirTemp runs the test from an empty temp directory.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
	return tmpDir
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	isolateEnv(t)
	chdirTemp(t)

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected default provider anthropic, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("expected temperature 0, got %f", cfg.LLM.Temperature)
	}
	if cfg.Datasource.Type != "sqlite" || cfg.Datasource.Path != "anexo_desafio_1.db" {
		t.Errorf("unexpected datasource defaults: %+v", cfg.Datasource)
	}
	if cfg.SessionStore.Type != "memory" {
		t.Errorf("expected memory session store, got %s", cfg.SessionStore.Type)
	}
	if cfg.Agent.RequestTimeout != 0 {
		t.Errorf("expected no request timeout by default, got %s", cfg.Agent.RequestTimeout)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	isolateEnv(t)
	tmpDir := chdirTemp(t)

	yamlContent := `
port: "3480"
env: "test"
llm:
  provider: "openai"
  model: "gpt-4o"
datasource:
  type: "postgres"
  host: "db.example.com"
  port: 5432
  name: "sales"
agent:
  schema_cache_ttl: 5m
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("PORT", "4480")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("v")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4480" {
		t.Errorf("expected Port=4480 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "test" {
		t.Errorf("expected Env=test (from yaml), got %s", cfg.Env)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected APIKey from OPENAI_API_KEY, got %q", cfg.LLM.APIKey)
	}
	if cfg.Datasource.Name != "sales" {
		t.Errorf("expected datasource name sales, got %s", cfg.Datasource.Name)
	}
	if cfg.Agent.SchemaCacheTTL != 5*time.Minute {
		t.Errorf("expected schema cache ttl 5m, got %s", cfg.Agent.SchemaCacheTTL)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	isolateEnv(t)
	tmpDir := chdirTemp(t)

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("ANTHROPIC_API_KEY=from-dotenv\nLLM_MODEL=claude-test\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	cfg, err := Load("v")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLM.APIKey != "from-dotenv" {
		t.Errorf("expected API key from .env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "claude-test" {
		t.Errorf("expected model from .env, got %q", cfg.LLM.Model)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	isolateEnv(t)
	chdirTemp(t)
	t.Setenv("LLM_PROVIDER", "cohere")

	_, err := Load("v")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoad_InvalidSessionStore(t *testing.T) {
	isolateEnv(t)
	chdirTemp(t)
	t.Setenv("SESSION_STORE", "etcd")

	_, err := Load("v")
	if err == nil {
		t.Fatal("expected error for unknown session store")
	}
}

func TestDatasourceConfig_Settings(t *testing.T) {
	d := DatasourceConfig{Type: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", Name: "db"}
	s := d.Settings()

	if s["host"] != "h" || s["port"] != 3306 || s["database"] != "db" || s["password"] != "p" {
		t.Errorf("unexpected settings: %v", s)
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "localhost", Port: 5432, User: "ekaya", Password: "secret", Database: "askdata", SSLMode: "disable"}
	want := "host=localhost port=5432 user=ekaya password=secret dbname=askdata sslmode=disable"
	if got := d.ConnectionString(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	if got := ResolveHostForDocker("db.internal"); got != "db.internal" {
		t.Errorf("expected host unchanged, got %s", got)
	}
}
