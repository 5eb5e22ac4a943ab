package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	LLM       LLMConfig       `yaml:"llm"`
	Weather   WeatherConfig   `yaml:"weather"`
	Agent     AgentConfig     `yaml:"agent"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // 0 required for SSE; see gateway
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures account auth and bearer tokens.
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

// SessionConfig configures conversation history storage.
type SessionConfig struct {
	Backend    string        `yaml:"backend"` // "redis" or "memory"
	RedisURL   string        `yaml:"redis_url"`
	MaxHistory int           `yaml:"max_history"` // exchanges kept per session
	StaleAfter time.Duration `yaml:"stale_after"` // memory backend only
}

// LLMConfig configures model providers.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        FailoverConfig       `yaml:"failover"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderConfig describes one model backend.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "openai", "ollama", "bedrock"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region"` // bedrock only
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
}

// FailoverConfig chains providers so a dead primary doesn't take the
// service down.
type FailoverConfig struct {
	Enabled bool     `yaml:"enabled"`
	Order   []string `yaml:"order"`
}

// CircuitBreakerConfig guards providers against hammering a failing
// backend.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// WeatherConfig configures the weather upstream.
type WeatherConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	EarliestDate string        `yaml:"earliest_date"` // inclusive archive floor, YYYY-MM-DD
	ForecastDays int           `yaml:"forecast_days"` // inclusive horizon
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	MaxToolCalls  int           `yaml:"max_tool_calls"`
	OracleTimeout time.Duration `yaml:"oracle_timeout"`
	SystemPrompt  string        `yaml:"system_prompt"`
	MaxExchanges  int           `yaml:"max_exchanges"` // history window fed to the model
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// TracerConfig configures OpenTelemetry tracing.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// RateLimitConfig throttles unauthenticated endpoints per client IP.
type RateLimitConfig struct {
	Enabled        bool    `yaml:"enabled"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
}

// AuditConfig configures the append-only audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// JobsConfig configures background maintenance.
type JobsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	SessionReapCron string `yaml:"session_reap_cron"`
	OracleProbeCron string `yaml:"oracle_probe_cron"`
}

// Defaults returns a config with development-friendly defaults.
// Secrets are deliberately empty; they come from the file or env.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL:   30 * time.Minute,
			BcryptCost: 10,
		},
		Session: SessionConfig{
			Backend:    "memory",
			RedisURL:   "redis://localhost:6379/0",
			MaxHistory: 20,
			StaleAfter: 24 * time.Hour,
		},
		LLM: LLMConfig{
			DefaultProvider: "ollama",
			Providers: []ProviderConfig{
				{
					Name:        "ollama",
					Type:        "ollama",
					BaseURL:     "http://localhost:11434",
					Model:       "llama3.1",
					ConnTimeout: 10 * time.Second,
					RespTimeout: 120 * time.Second,
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
			},
		},
		Weather: WeatherConfig{
			BaseURL:      "https://api.weatherapi.com/v1",
			Timeout:      15 * time.Second,
			EarliestDate: "2010-01-01",
			ForecastDays: 14,
		},
		Agent: AgentConfig{
			MaxIterations: 10,
			MaxToolCalls:  5,
			OracleTimeout: 60 * time.Second,
			MaxExchanges:  10,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerSec: 10,
			Burst:          20,
		},
		Audit: AuditConfig{
			Path: "audit.log",
		},
		Jobs: JobsConfig{
			SessionReapCron: "@every 1h",
			OracleProbeCron: "@every 5m",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A
// missing file is not an error: defaults plus env are enough to run.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps NIMBUS_* env vars to config fields. Secrets
// are expected to arrive this way in production.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NIMBUS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("NIMBUS_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("NIMBUS_REDIS_URL"); v != "" {
		cfg.Session.RedisURL = v
	}
	if v := os.Getenv("NIMBUS_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("NIMBUS_WEATHER_API_KEY"); v != "" {
		cfg.Weather.APIKey = v
	}
	if v := os.Getenv("NIMBUS_WEATHER_BASE_URL"); v != "" {
		cfg.Weather.BaseURL = v
	}
	if v := os.Getenv("NIMBUS_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("NIMBUS_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("NIMBUS_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("NIMBUS_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}
