package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/bom-enrich/internal/broadcast"
	"github.com/sells-group/bom-enrich/internal/enhance"
	"github.com/sells-group/bom-enrich/internal/httpx"
	"github.com/sells-group/bom-enrich/internal/normalize"
	"github.com/sells-group/bom-enrich/internal/pipeline"
	"github.com/sells-group/bom-enrich/internal/resilience"
	"github.com/sells-group/bom-enrich/internal/scorer"
	"github.com/sells-group/bom-enrich/internal/store"
	"github.com/sells-group/bom-enrich/internal/supplier"
	anthropicpkg "github.com/sells-group/bom-enrich/pkg/anthropic"
)

// pipelineEnv holds all initialized dependencies needed by the run/batch/
// serve commands.
type pipelineEnv struct {
	Catalog      store.Catalog
	Client       *httpx.Client
	Hub          *broadcast.Hub
	Tracker      *broadcast.Tracker
	Orchestrator *pipeline.Orchestrator
	Pool         *pipeline.Pool
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Hub != nil {
		pe.Hub.Close()
	}
	if pe.Catalog != nil {
		_ = pe.Catalog.Close()
	}
}

// initPipeline sets up the catalog, the resilient HTTP client, the
// supplier registry, and the orchestrator. Callers should defer
// env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	catalog, err := initCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if err := catalog.Migrate(ctx); err != nil {
		_ = catalog.Close()
		return nil, eris.Wrap(err, "migrate catalog")
	}

	client := initHTTPClient()
	registry, maxSupplierTimeout := initSuppliers(client)
	aggregator := supplier.NewFanoutAggregator(registry, maxSupplierTimeout)

	var enhancer enhance.Enhancer
	if cfg.Enhance.Enabled && cfg.Enhance.APIKey != "" {
		enhancer = enhance.NewClaudeEnhancer(
			anthropicpkg.NewClient(cfg.Enhance.APIKey),
			enhance.Config{Model: cfg.Enhance.Model, MaxTokens: cfg.Enhance.MaxTokens},
		)
	} else {
		zap.L().Info("ai enhancement disabled", zap.Bool("enabled", cfg.Enhance.Enabled))
	}

	hub := broadcast.NewHub()
	tracker := broadcast.NewTracker()

	normTimeout, supplierTimeout, enhanceTimeout, storageTimeout := cfg.Pipeline.StepTimeouts()
	orchestrator := pipeline.New(
		normalize.NewRuleNormalizer(),
		aggregator,
		enhancer,
		scorer.New(scorer.DefaultWeights(), scorer.DefaultDecay()),
		catalog,
		hub,
		tracker,
		pipeline.StepTimeouts{
			Normalization:  normTimeout,
			SupplierAPI:    supplierTimeout,
			AIEnhancement:  enhanceTimeout,
			CatalogStorage: storageTimeout,
		},
	)

	return &pipelineEnv{
		Catalog:      catalog,
		Client:       client,
		Hub:          hub,
		Tracker:      tracker,
		Orchestrator: orchestrator,
		Pool:         pipeline.NewPool(orchestrator, tracker, cfg.Pipeline.MaxConcurrentItems),
	}, nil
}

func initCatalog(ctx context.Context) (store.Catalog, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initHTTPClient() *httpx.Client {
	return httpx.New(httpx.Config{
		Timeout:           time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		CorrelationPrefix: cfg.HTTP.CorrelationPrefix,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.HTTP.MaxAttempts,
			InitialBackoff: time.Duration(cfg.HTTP.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.HTTP.MaxBackoffMs) * time.Millisecond,
			Multiplier:     cfg.HTTP.BackoffMultiplier,
			JitterFraction: cfg.HTTP.JitterFraction,
		},
		DefaultRateLimit: rate.Limit(cfg.HTTP.RateLimitPerHost),
		Breakers: resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.HTTP.BreakerThreshold,
			ResetTimeout:     time.Duration(cfg.HTTP.BreakerResetSecs) * time.Second,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("circuit state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	})
}

// initSuppliers builds the priority-ordered registry from config, wrapping
// each backend in a TTL cache when configured. It also returns the longest
// per-supplier timeout, which bounds a single aggregation fan-out.
func initSuppliers(client *httpx.Client) (*supplier.Registry, time.Duration) {
	maxTimeout := 30 * time.Second
	fetchers := make([]supplier.Fetcher, 0, len(cfg.Suppliers))
	for _, sc := range cfg.Suppliers {
		timeout := time.Duration(sc.TimeoutSecs) * time.Second
		if timeout > maxTimeout {
			maxTimeout = timeout
		}
		var f supplier.Fetcher = supplier.NewHTTPSupplier(supplier.HTTPSupplierConfig{
			Name:    sc.Name,
			BaseURL: sc.BaseURL,
			APIKey:  sc.APIKey,
			Timeout: timeout,
		}, client)
		if sc.CacheTTLMins > 0 {
			f = supplier.NewCachedFetcher(f, time.Duration(sc.CacheTTLMins)*time.Minute)
		}
		fetchers = append(fetchers, f)
	}
	if len(fetchers) == 0 {
		zap.L().Warn("no suppliers configured, supplier_api step will fail every job")
	}
	return supplier.NewRegistry(fetchers...), maxTimeout
}
