package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nimbus-ai/internal/adapter/gateway"
	"nimbus-ai/internal/adapter/llm"
	"nimbus-ai/internal/adapter/store"
	"nimbus-ai/internal/adapter/tool"
	"nimbus-ai/internal/adapter/weather"
	"nimbus-ai/internal/domain"
	"nimbus-ai/internal/infra/audit"
	"nimbus-ai/internal/infra/config"
	"nimbus-ai/internal/infra/sched"
	"nimbus-ai/internal/usecase"
	"nimbus-ai/internal/usecase/eventbus"
)

// App holds the wired application components.
type App struct {
	Gateway   *gateway.Server
	Scheduler *sched.Scheduler
}

// initApp wires every component from config: event bus, stores, model
// providers, tools, the reasoning loop, background jobs and the
// gateway. The returned cleanup releases them in reverse order.
func initApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	bus := eventbus.New(log)
	cleanups = append(cleanups, bus.Close)

	users, blacklist, history, reaper, err := initStores(ctx, cfg.Session, log)
	if err != nil {
		return fail(fmt.Errorf("stores: %w", err))
	}

	auditLog, err := initAudit(cfg.Audit)
	if err != nil {
		return fail(fmt.Errorf("audit: %w", err))
	}
	cleanups = append(cleanups, func() {
		if err := auditLog.Close(); err != nil {
			log.Warn("audit close failed", "error", err)
		}
	})

	provider, err := initProvider(cfg.LLM, log)
	if err != nil {
		return fail(fmt.Errorf("llm: %w", err))
	}

	// Ollama cold starts are slow; warm the model before traffic arrives.
	if w, ok := provider.(interface{ Warmup(context.Context) error }); ok {
		warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := w.Warmup(warmCtx); err != nil {
			log.Warn("model warmup failed", "error", err)
		}
		cancel()
	}

	registry := tool.NewRegistry(log)
	weatherTool := tool.NewWeatherTool(
		weather.NewClient(cfg.Weather, log),
		dateRuleFromConfig(cfg.Weather),
		log,
	)
	if err := registry.Register(weatherTool); err != nil {
		return fail(fmt.Errorf("tools: %w", err))
	}

	loop := usecase.NewLoop(usecase.LoopDeps{
		Oracle:        provider,
		Tools:         registry,
		History:       history,
		Builder:       usecase.NewContextBuilder(cfg.Agent.SystemPrompt, cfg.Agent.MaxExchanges),
		Bus:           bus,
		Audit:         auditLog,
		Logger:        log,
		MaxIterations: cfg.Agent.MaxIterations,
		MaxToolCalls:  cfg.Agent.MaxToolCalls,
		OracleTimeout: cfg.Agent.OracleTimeout,
	})

	scheduler, err := initJobs(cfg, log, bus, reaper, provider)
	if err != nil {
		return fail(fmt.Errorf("jobs: %w", err))
	}
	if scheduler != nil {
		scheduler.Start()
		cleanups = append(cleanups, scheduler.Stop)
	}

	srv := gateway.NewServer(gateway.ServerDeps{
		Loop:      loop,
		Bus:       bus,
		Users:     users,
		Blacklist: blacklist,
		Issuer:    gateway.NewTokenIssuer(cfg.Auth),
		Audit:     auditLog,
		Logger:    log,
	}, cfg.Server, cfg.RateLimit, cfg.Auth.BcryptCost)

	return &App{Gateway: srv, Scheduler: scheduler}, cleanup, nil
}

// initStores selects the session backend. Redis handles blacklist
// expiry natively; the memory backend needs the reaper job instead.
func initStores(ctx context.Context, cfg config.SessionConfig, log *slog.Logger) (
	domain.UserStore, domain.TokenBlacklist, domain.ConversationStore, domain.SessionReaper, error,
) {
	switch cfg.Backend {
	case "redis":
		rs, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.MaxHistory, log)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return rs, rs, rs, nil, nil
	case "memory", "":
		ms := store.NewMemoryStore(cfg.MaxHistory)
		return ms, ms, ms, ms, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

func initAudit(cfg config.AuditConfig) (domain.AuditLogger, error) {
	if !cfg.Enabled {
		return audit.Nop{}, nil
	}
	return audit.NewFileAuditLogger(cfg.Path)
}

// initProvider builds the configured providers, wraps each in a
// circuit breaker when enabled, then chains the default with its
// failover order.
func initProvider(cfg config.LLMConfig, log *slog.Logger) (domain.LLMProvider, error) {
	providers := make(map[string]domain.LLMProvider, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := createProvider(pc, log)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if cfg.CircuitBreaker.Enabled {
			p = llm.NewCircuitBreakerProvider(p, cfg.CircuitBreaker, log)
		}
		if _, dup := providers[pc.Name]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", pc.Name)
		}
		providers[pc.Name] = p
	}

	primary, ok := providers[cfg.DefaultProvider]
	if !ok {
		return nil, fmt.Errorf("default provider %q not configured", cfg.DefaultProvider)
	}

	if cfg.Failover.Enabled && len(cfg.Failover.Order) > 0 {
		var fallbacks []domain.LLMProvider
		for _, name := range cfg.Failover.Order {
			if name == cfg.DefaultProvider {
				continue
			}
			fb, ok := providers[name]
			if !ok {
				return nil, fmt.Errorf("failover provider %q not configured", name)
			}
			fallbacks = append(fallbacks, fb)
		}
		if len(fallbacks) > 0 {
			primary = llm.NewFailoverProvider(primary, fallbacks, log)
			log.Info("model failover enabled", "order", cfg.Failover.Order)
		}
	}
	return primary, nil
}

func createProvider(pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "openai":
		return llm.NewOpenAIProvider(pc, log), nil
	case "ollama":
		return llm.NewOllamaProvider(pc, log), nil
	case "bedrock":
		return createBedrockProvider(pc, log)
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

func initJobs(cfg *config.Config, log *slog.Logger, bus domain.EventBus,
	reaper domain.SessionReaper, provider domain.LLMProvider,
) (*sched.Scheduler, error) {
	if !cfg.Jobs.Enabled {
		return nil, nil
	}
	s := sched.New(log, bus)

	if reaper != nil && cfg.Jobs.SessionReapCron != "" {
		if err := s.AddSessionReaper(cfg.Jobs.SessionReapCron, reaper, cfg.Session.StaleAfter); err != nil {
			return nil, err
		}
	}
	if hc, ok := provider.(domain.HealthChecker); ok && cfg.Jobs.OracleProbeCron != "" {
		if err := s.AddOracleProbe(cfg.Jobs.OracleProbeCron, hc, provider.Name()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func dateRuleFromConfig(cfg config.WeatherConfig) domain.DateRule {
	earliest, err := time.Parse(time.DateOnly, cfg.EarliestDate)
	if err != nil {
		earliest = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return domain.NewDateRule(earliest, cfg.ForecastDays)
}
