package bootstrap

import (
	"context"
	"fmt"

	"github.com/velesk/rankline/internal/config"
	"github.com/velesk/rankline/internal/core/ports"
	"github.com/velesk/rankline/internal/core/usecase"
	"github.com/velesk/rankline/internal/infrastructure/embedding"
	"github.com/velesk/rankline/internal/infrastructure/queue/nats"
	"github.com/velesk/rankline/internal/infrastructure/repository/postgres"
	"github.com/velesk/rankline/internal/infrastructure/resilience"
	"github.com/velesk/rankline/internal/infrastructure/vector/qdrant"
	"github.com/velesk/rankline/internal/observability/logging"
	"github.com/velesk/rankline/internal/observability/metrics"
)

// App wires the retrieval pipeline for the api binary.
type App struct {
	Config config.Config

	Retriever ports.Retriever
	Cache     ports.CacheInspector
	Queue     *nats.Queue

	HTTPMetrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(_ context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger := logging.NewJSONLogger("api", cfg.LogLevel)

	profiles, err := config.LoadProfiles(cfg.DomainProfilesPath, cfg.DefaultRetrievalProfile)
	if err != nil {
		return nil, fmt.Errorf("load domain profiles: %w", err)
	}
	rules, err := config.LoadReformulationRules(cfg.ReformulationRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load reformulation rules: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	catalog := postgres.NewCatalogRepository(db)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSWarmupSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init warmup queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	provider := embedding.NewOpenAIProvider(embedding.OpenAIOptions{
		APIKey:            cfg.OpenAIAPIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		Model:             cfg.OpenAIEmbedModel,
		RequestsPerSecond: cfg.EmbedRateRPS,
		Burst:             cfg.EmbedRateBurst,
	}, executor, logger)

	cache := embedding.NewVectorCache(provider, embedding.CacheOptions{
		MaxEntries:  cfg.CacheMaxEntries,
		TTL:         cfg.CacheTTL,
		CostPerCall: cfg.CacheCostPerCall,
	})

	index := qdrant.NewWithExecutor(cfg.QdrantURL, cfg.QdrantCollection, executor)

	reformulator, err := usecase.NewReformulator(cfg.HistoryWindow, toRuleDefinitions(rules))
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("build reformulator: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	retrievalMetrics := metrics.NewRetrievalMetrics("api", httpMetrics.Registry())
	metrics.RegisterCacheStats("api", httpMetrics.Registry(), cache)

	retriever := usecase.NewRetrieveUseCase(reformulator, cache, index, catalog, retrievalMetrics,
		usecase.RetrieveOptions{
			Profiles:        profiles,
			DefaultProfile:  cfg.DefaultRetrievalProfile,
			StrategyTimeout: cfg.StrategyTimeout,
			RequestDeadline: cfg.RequestDeadline,
		}, logger)

	return &App{
		Config:      cfg,
		Retriever:   retriever,
		Cache:       cache,
		Queue:       queue,
		HTTPMetrics: httpMetrics,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// WarmerApp wires only what the cache-warmup worker needs: the provider, a
// shared cache and the queue subscription.
type WarmerApp struct {
	Config config.Config

	Cache   *embedding.VectorCache
	Queue   *nats.Queue
	Metrics *metrics.WarmerMetrics

	closeFn func()
}

func NewWarmer(_ context.Context, cfg config.Config) (*WarmerApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger := logging.NewJSONLogger("warmer", cfg.LogLevel)

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	provider := embedding.NewOpenAIProvider(embedding.OpenAIOptions{
		APIKey:            cfg.OpenAIAPIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		Model:             cfg.OpenAIEmbedModel,
		RequestsPerSecond: cfg.EmbedRateRPS,
		Burst:             cfg.EmbedRateBurst,
	}, executor, logger)

	cache := embedding.NewVectorCache(provider, embedding.CacheOptions{
		MaxEntries:  cfg.CacheMaxEntries,
		TTL:         cfg.CacheTTL,
		CostPerCall: cfg.CacheCostPerCall,
	})

	queue, err := nats.New(cfg.NATSURL, cfg.NATSWarmupSubject)
	if err != nil {
		return nil, fmt.Errorf("init warmup queue: %w", err)
	}

	warmerMetrics := metrics.NewWarmerMetrics("warmer")
	metrics.RegisterCacheStats("warmer", warmerMetrics.Registry(), cache)

	return &WarmerApp{
		Config:  cfg,
		Cache:   cache,
		Queue:   queue,
		Metrics: warmerMetrics,
		closeFn: func() {
			queue.Close()
		},
	}, nil
}

func (a *WarmerApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func toRuleDefinitions(specs []config.RuleSpec) []usecase.RuleDefinition {
	out := make([]usecase.RuleDefinition, 0, len(specs))
	for _, spec := range specs {
		out = append(out, usecase.RuleDefinition{Name: spec.Name, Pattern: spec.Pattern})
	}
	return out
}
