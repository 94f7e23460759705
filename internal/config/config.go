package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Supported cache backends
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendRedis  = "redis"
	BackendS3     = "s3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Rules     RulesConfig     `yaml:"rules"`
	LLM       LLMConfig       `yaml:"llm"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port            int    `yaml:"port" env:"RELAY_PORT"`
	MaxRequestBytes int64  `yaml:"max_request_bytes" env:"RELAY_MAX_REQUEST_BYTES"`
	ShutdownTimeout string `yaml:"shutdown_timeout" env:"RELAY_SHUTDOWN_TIMEOUT"`
}

// CacheConfig contains cache-related configuration
type CacheConfig struct {
	Backend   string      `yaml:"backend" env:"RELAY_CACHE_BACKEND"`
	Namespace string      `yaml:"namespace" env:"RELAY_CACHE_NAMESPACE"`
	TTL       string      `yaml:"ttl" env:"RELAY_CACHE_TTL"` // empty or "0" means no expiry
	Folder    string      `yaml:"folder" env:"RELAY_CACHE_FOLDER"`
	Redis     RedisConfig `yaml:"redis"`
	S3        S3Config    `yaml:"s3"`
}

// RedisConfig configures the redis cache backend
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"RELAY_REDIS_ADDR"`
	Password string `yaml:"-" env:"RELAY_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"RELAY_REDIS_DB"`
}

// S3Config configures the S3 cache backend
type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"RELAY_S3_ENDPOINT"`
	Region    string `yaml:"region" env:"RELAY_S3_REGION"`
	Bucket    string `yaml:"bucket" env:"RELAY_S3_BUCKET"`
	AccessKey string `yaml:"-" env:"RELAY_S3_ACCESS_KEY"`
	SecretKey string `yaml:"-" env:"RELAY_S3_SECRET_KEY"`
}

// FetchConfig configures the outbound fetch of the data to cache
type FetchConfig struct {
	Timeout      string `yaml:"timeout" env:"RELAY_FETCH_TIMEOUT"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" env:"RELAY_FETCH_MAX_BODY_BYTES"`
}

// RulesConfig restricts which URLs may be fetched. It is only read from the file.
type RulesConfig struct {
	Mode  string       `yaml:"mode"` // "whitelist" or "blacklist"
	Rules []TargetRule `yaml:"rules"`
}

// TargetRule matches fetch targets by URL prefix
type TargetRule struct {
	BaseURI string `yaml:"base_uri"`
}

// LLMConfig configures the chat-completion API
type LLMConfig struct {
	BaseURL      string  `yaml:"base_url" env:"RELAY_LLM_BASE_URL"`
	Model        string  `yaml:"model" env:"RELAY_LLM_MODEL"`
	Temperature  float32 `yaml:"temperature" env:"RELAY_LLM_TEMPERATURE"`
	MaxTokens    int     `yaml:"max_tokens" env:"RELAY_LLM_MAX_TOKENS"`
	SystemPrompt string  `yaml:"system_prompt" env:"RELAY_LLM_SYSTEM_PROMPT"`
	Timeout      string  `yaml:"timeout" env:"RELAY_LLM_TIMEOUT"`
	// Only ever read from the environment.
	APIKey string `yaml:"-" env:"OPENAI_API_KEY"`
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `yaml:"level" env:"RELAY_LOG_LEVEL"`
	Format string `yaml:"format" env:"RELAY_LOG_FORMAT"` // "text" or "json"
}

// TelemetryConfig configures OpenTelemetry tracing
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"RELAY_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"RELAY_SERVICE_NAME"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a YAML file, then overlays environment variables.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := config.parseEnv(); err != nil {
		return nil, err
	}

	config.applyDefaults()

	return &config, nil
}

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are ignored, variables already set are kept.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		err := godotenv.Load(file)
		if errors.Is(err, fs.ErrNotExist) {
			logrus.Debugf("No env file at %s", file)
			continue
		}
		if err != nil {
			return fmt.Errorf("loading env file %s: %w", file, err)
		}
		logrus.Debugf("Loaded env file %s", file)
	}
	return nil
}

// parseEnv overlays environment variables on every section but the rules list
func (c *Config) parseEnv() error {
	sections := []any{&c.Server, &c.Cache, &c.Fetch, &c.LLM, &c.Log, &c.Telemetry}
	for _, section := range sections {
		if err := env.Parse(section); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxRequestBytes == 0 {
		c.Server.MaxRequestBytes = 1 << 20
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendMemory
	}
	if c.Cache.Folder == "" {
		c.Cache.Folder = "./cache"
	}
	if c.Fetch.Timeout == "" {
		c.Fetch.Timeout = "30s"
	}
	if c.Fetch.MaxBodyBytes == 0 {
		c.Fetch.MaxBodyBytes = 10 << 20
	}
	if c.Rules.Mode == "" {
		c.Rules.Mode = "blacklist"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.SystemPrompt == "" {
		c.LLM.SystemPrompt = "You are a helpful assistant."
	}
	if c.LLM.Timeout == "" {
		c.LLM.Timeout = "60s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "ask-relay"
	}
}

// GetCacheTTL parses and returns the cache TTL duration. Zero means no expiry.
func (c *Config) GetCacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Cache.TTL)
}

// GetFetchTimeout parses and returns the outbound fetch timeout
func (c *Config) GetFetchTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Fetch.Timeout)
}

// GetLLMTimeout parses and returns the chat-completion timeout
func (c *Config) GetLLMTimeout() (time.Duration, error) {
	return time.ParseDuration(c.LLM.Timeout)
}

// GetShutdownTimeout parses and returns the graceful shutdown timeout
func (c *Config) GetShutdownTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.ShutdownTimeout)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.MaxRequestBytes <= 0 {
		return fmt.Errorf("server max_request_bytes must be positive, got: %d", c.Server.MaxRequestBytes)
	}

	if _, err := c.GetShutdownTimeout(); err != nil {
		return fmt.Errorf("invalid shutdown timeout format: %w", err)
	}

	ttl, err := c.GetCacheTTL()
	if err != nil {
		return fmt.Errorf("invalid cache TTL format: %w", err)
	}
	if ttl < 0 {
		return fmt.Errorf("cache TTL must not be negative, got: %s", c.Cache.TTL)
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendDisk:
		if c.Cache.Folder == "" {
			return fmt.Errorf("cache folder is required for the disk backend")
		}
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	case BackendS3:
		if c.Cache.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}

	if _, err := c.GetFetchTimeout(); err != nil {
		return fmt.Errorf("invalid fetch timeout format: %w", err)
	}

	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch max_body_bytes must be positive, got: %d", c.Fetch.MaxBodyBytes)
	}

	if c.Rules.Mode != "whitelist" && c.Rules.Mode != "blacklist" {
		return fmt.Errorf("rules mode must be 'whitelist' or 'blacklist', got: %s", c.Rules.Mode)
	}

	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	if _, err := c.GetLLMTimeout(); err != nil {
		return fmt.Errorf("invalid llm timeout format: %w", err)
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive, got: %d", c.LLM.MaxTokens)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", c.Log.Format)
	}

	return nil
}

// String renders the configuration with secrets redacted
func (c Config) String() string {
	c.LLM.APIKey = redact(c.LLM.APIKey)
	c.Cache.Redis.Password = redact(c.Cache.Redis.Password)
	c.Cache.S3.AccessKey = redact(c.Cache.S3.AccessKey)
	c.Cache.S3.SecretKey = redact(c.Cache.S3.SecretKey)

	type plain Config
	return fmt.Sprintf("%+v", plain(c))
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}
