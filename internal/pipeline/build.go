package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/riskprobe/internal/cache"
	"github.com/ppiankov/riskprobe/internal/connector"
	"github.com/ppiankov/riskprobe/internal/llm"
	"github.com/ppiankov/riskprobe/internal/metrics"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/worker"
)

// Runtime is a pipeline with the connectors and cache it was built on
type Runtime struct {
	Pipeline *Pipeline
	Registry *connector.Registry
	Cache    cache.Cache
}

// Close releases the cache backend if it holds connections
func (r *Runtime) Close() error {
	if closer, ok := r.Cache.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Ready checks the shared cache backend when it supports health checks
func (r *Runtime) Ready(ctx context.Context) error {
	if checker, ok := r.Cache.(interface{ Health(context.Context) error }); ok {
		if err := checker.Health(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Build validates cfg and assembles the connectors, cache, reasoning service and pipeline.
// Configuration problems are returned as *model.ConfigError and the pipeline never starts.
func Build(ctx context.Context, cfg model.Config, m *metrics.Metrics, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 1. Query cache shared by every connector
	qc, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, &model.ConfigError{Key: "cache", Message: err.Error()}
	}
	ttl := cfg.Cache.TTL()

	// 2. One limiter per process; each source gets its own bucket
	primaryCfg := cfg.Source.Primary
	limiter := worker.NewLimiter(primaryCfg.RateLimitInterval, primaryCfg.Burst)

	opts := []connector.Option{
		connector.WithLimiter(limiter),
		connector.WithMetrics(m),
		connector.WithLogger(logger),
	}

	// 3. Connectors
	primary := connector.NewCached(connector.NewSearchAPI(primaryCfg, cfg.HTTP, opts...), qc, ttl, opts...)

	var fallback connector.Connector
	if !cfg.Source.Fallback.Disabled {
		fallback = connector.NewCached(
			connector.NewDirect(cfg.Source.Fallback, cfg.HTTP, primaryCfg.CallTimeout, opts...),
			qc, ttl, opts...,
		)
	}

	// 4. Reasoning service (optional)
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, &model.ConfigError{Key: "llm", Message: err.Error()}
	}
	if provider != nil {
		logger.Info("reasoning service enabled", "provider", provider.Name())
	}

	p, err := New(cfg, Components{
		Primary:  primary,
		Fallback: fallback,
		Provider: provider,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	return &Runtime{
		Pipeline: p,
		Registry: connector.NewRegistry(primary, fallback),
		Cache:    qc,
	}, nil
}
