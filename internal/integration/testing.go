package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"
)

// Config holds integration test configuration from environment
type Config struct {
	WeatherAPIKey string
	OllamaURL     string
	OllamaModel   string
	RedisURL      string
	TestTimeout   time.Duration
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "llama3.1"
	}
	return &Config{
		WeatherAPIKey: os.Getenv("WEATHERAPI_KEY"),
		OllamaURL:     os.Getenv("OLLAMA_URL"),
		OllamaModel:   model,
		RedisURL:      os.Getenv("REDIS_URL"),
		TestTimeout:   60 * time.Second,
	}
}

// SkipIfUnset skips the test when the required backend is not configured
func SkipIfUnset(t *testing.T, value, name string) {
	t.Helper()
	if value == "" {
		t.Skipf("Skipping integration test: %s not set", name)
	}
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// QuietLogger returns a logger that discards output
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
