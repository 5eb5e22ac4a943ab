package config

import (
	"fmt"
	"time"

	"nimbus-ai/internal/domain"
)

// Validate checks config coherence. Called by Load; exported so tests
// and tools can check hand-built configs.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "server.addr is required")
	}

	switch cfg.Session.Backend {
	case "redis":
		if cfg.Session.RedisURL == "" {
			return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "session.redis_url required for redis backend")
		}
	case "memory":
	default:
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			fmt.Sprintf("unknown session backend %q", cfg.Session.Backend))
	}
	if cfg.Session.MaxHistory <= 0 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "session.max_history must be positive")
	}

	if len(cfg.LLM.Providers) == 0 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "at least one llm provider is required")
	}
	names := make(map[string]bool, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		if p.Name == "" {
			return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "llm provider missing name")
		}
		if names[p.Name] {
			return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
				fmt.Sprintf("duplicate llm provider %q", p.Name))
		}
		names[p.Name] = true
		switch p.Type {
		case "openai", "ollama", "bedrock":
		default:
			return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
				fmt.Sprintf("unknown llm provider type %q", p.Type))
		}
	}
	if cfg.LLM.DefaultProvider != "" && !names[cfg.LLM.DefaultProvider] {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			fmt.Sprintf("default provider %q not configured", cfg.LLM.DefaultProvider))
	}
	for _, name := range cfg.LLM.Failover.Order {
		if !names[name] {
			return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
				fmt.Sprintf("failover references unknown provider %q", name))
		}
	}

	if cfg.Weather.BaseURL == "" {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "weather.base_url is required")
	}
	if _, err := time.Parse(time.DateOnly, cfg.Weather.EarliestDate); err != nil {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			fmt.Sprintf("weather.earliest_date %q is not YYYY-MM-DD", cfg.Weather.EarliestDate))
	}
	if cfg.Weather.ForecastDays < 0 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "weather.forecast_days must not be negative")
	}

	if cfg.Agent.MaxIterations <= 0 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "agent.max_iterations must be positive")
	}
	if cfg.Agent.MaxToolCalls <= 0 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "agent.max_tool_calls must be positive")
	}

	switch cfg.Logger.Format {
	case "json", "text", "":
	default:
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			fmt.Sprintf("unknown logger format %q", cfg.Logger.Format))
	}

	return nil
}
