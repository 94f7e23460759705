package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "test_config.yaml")

	configContent := `
server:
  port: 9999
cache:
  backend: "disk"
  ttl: "30m"
  folder: "./test_cache"
rules:
  mode: "whitelist"
  rules:
    - base_uri: "https://example.com"
llm:
  model: "gpt-4o"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	// Test loading the config
	config, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify values
	if config.Server.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", config.Server.Port)
	}

	if config.Cache.Backend != BackendDisk {
		t.Errorf("Expected backend 'disk', got '%s'", config.Cache.Backend)
	}

	if config.Cache.TTL != "30m" {
		t.Errorf("Expected TTL '30m', got '%s'", config.Cache.TTL)
	}

	if config.Rules.Mode != "whitelist" {
		t.Errorf("Expected mode 'whitelist', got '%s'", config.Rules.Mode)
	}

	if len(config.Rules.Rules) != 1 {
		t.Errorf("Expected 1 rule, got %d", len(config.Rules.Rules))
	}

	if config.LLM.Model != "gpt-4o" {
		t.Errorf("Expected model 'gpt-4o', got '%s'", config.LLM.Model)
	}

	// Unset values fall back to defaults
	if config.LLM.MaxTokens != 500 {
		t.Errorf("Expected default max tokens 500, got %d", config.LLM.MaxTokens)
	}
	if config.Fetch.Timeout != "30s" {
		t.Errorf("Expected default fetch timeout '30s', got '%s'", config.Fetch.Timeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "test_config.yaml")

	configContent := `
server:
  port: 9999
cache:
  backend: "memory"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	t.Setenv("RELAY_PORT", "7070")
	t.Setenv("RELAY_CACHE_BACKEND", "redis")
	t.Setenv("RELAY_REDIS_ADDR", "redis:6379")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Server.Port != 7070 {
		t.Errorf("Expected port 7070 from env, got %d", config.Server.Port)
	}
	if config.Cache.Backend != BackendRedis {
		t.Errorf("Expected backend 'redis' from env, got '%s'", config.Cache.Backend)
	}
	if config.Cache.Redis.Addr != "redis:6379" {
		t.Errorf("Expected redis addr from env, got '%s'", config.Cache.Redis.Addr)
	}
	if config.LLM.APIKey != "sk-test" {
		t.Errorf("Expected API key from env")
	}
}

func TestLoadAPIKeyIgnoredInFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "test_config.yaml")

	configContent := `
llm:
  api_key: "sk-from-file"
  APIKey: "sk-from-file"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "")

	config, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.LLM.APIKey != "" {
		t.Errorf("API key must only come from the environment, got '%s'", config.LLM.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("RELAY_PORT", "not-a-port")

	_, err := Load("")
	if err == nil {
		t.Fatal("Expected error for invalid env value")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("Expected parse env prefix, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	tempDir := t.TempDir()
	envFile := filepath.Join(tempDir, ".env")
	if err := os.WriteFile(envFile, []byte("RELAY_DOTENV_TEST=loaded\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("RELAY_DOTENV_TEST") })

	if err := LoadDotEnv(filepath.Join(tempDir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	if got := os.Getenv("RELAY_DOTENV_TEST"); got != "loaded" {
		t.Errorf("Expected RELAY_DOTENV_TEST=loaded, got '%s'", got)
	}
}

func validConfig() Config {
	cfg := Default()
	cfg.LLM.APIKey = "sk-test"
	return *cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: true,
		},
		{
			name:    "invalid TTL",
			mutate:  func(c *Config) { c.Cache.TTL = "invalid" },
			wantErr: true,
		},
		{
			name:    "negative TTL",
			mutate:  func(c *Config) { c.Cache.TTL = "-1m" },
			wantErr: true,
		},
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Rules.Mode = "invalid" },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: true,
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Cache.Backend = BackendRedis },
			wantErr: true,
		},
		{
			name: "redis with address",
			mutate: func(c *Config) {
				c.Cache.Backend = BackendRedis
				c.Cache.Redis.Addr = "localhost:6379"
			},
			wantErr: false,
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Cache.Backend = BackendS3 },
			wantErr: true,
		},
		{
			name:    "missing API key",
			mutate:  func(c *Config) { c.LLM.APIKey = " " },
			wantErr: true,
		},
		{
			name:    "invalid fetch timeout",
			mutate:  func(c *Config) { c.Fetch.Timeout = "soon" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetCacheTTL(t *testing.T) {
	config := Config{
		Cache: CacheConfig{TTL: "1h30m"},
	}

	ttl, err := config.GetCacheTTL()
	if err != nil {
		t.Fatalf("GetCacheTTL() error = %v", err)
	}

	expected := time.Hour + 30*time.Minute
	if ttl != expected {
		t.Errorf("GetCacheTTL() = %v, want %v", ttl, expected)
	}

	config.Cache.TTL = ""
	ttl, err = config.GetCacheTTL()
	if err != nil || ttl != 0 {
		t.Errorf("GetCacheTTL() with empty TTL = %v, %v, want 0, nil", ttl, err)
	}
}

func TestStringRedactsSecrets(t *testing.T) {
	config := validConfig()
	config.LLM.APIKey = "sk-super-secret"
	config.Cache.Redis.Password = "hunter2"

	out := config.String()
	if strings.Contains(out, "sk-super-secret") || strings.Contains(out, "hunter2") {
		t.Errorf("String() leaked a secret: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("String() should mark redacted fields: %s", out)
	}
}
