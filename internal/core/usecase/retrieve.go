package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/velesk/rankline/internal/core/domain"
	"github.com/velesk/rankline/internal/core/ports"
)

const (
	defaultStrategyTimeout = 1200 * time.Millisecond
	defaultRequestDeadline = 2500 * time.Millisecond
)

// RetrieveUseCase runs the full pipeline: reformulate, fan the strategies out
// concurrently, fuse, score, filter. A strategy failure costs its
// contribution, never the request.
type RetrieveUseCase struct {
	reformulator *Reformulator
	strategies   []searchStrategy
	cache        ports.VectorCache
	observer     ports.PipelineObserver

	profiles       map[string]domain.RetrievalProfile
	defaultProfile domain.RetrievalProfile

	strategyTimeout time.Duration
	requestDeadline time.Duration
	logger          *slog.Logger
}

type RetrieveOptions struct {
	Profiles        map[string]domain.RetrievalProfile
	DefaultProfile  domain.RetrievalProfile
	StrategyTimeout time.Duration
	RequestDeadline time.Duration
}

func NewRetrieveUseCase(
	reformulator *Reformulator,
	cache ports.VectorCache,
	index ports.VectorIndex,
	store ports.MetadataStore,
	observer ports.PipelineObserver,
	opts RetrieveOptions,
	logger *slog.Logger,
) *RetrieveUseCase {
	strategyTimeout := opts.StrategyTimeout
	if strategyTimeout <= 0 {
		strategyTimeout = defaultStrategyTimeout
	}
	requestDeadline := opts.RequestDeadline
	if requestDeadline <= 0 {
		requestDeadline = defaultRequestDeadline
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = NoopObserver{}
	}

	return &RetrieveUseCase{
		reformulator: reformulator,
		strategies: []searchStrategy{
			newSemanticStrategy(cache, index),
			newMetadataStrategy(store),
			newKeywordStrategy(index),
		},
		cache:           cache,
		observer:        observer,
		profiles:        opts.Profiles,
		defaultProfile:  opts.DefaultProfile,
		strategyTimeout: strategyTimeout,
		requestDeadline: requestDeadline,
		logger:          logger,
	}
}

func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	query string,
	history []domain.Turn,
	domainID string,
	opts domain.RetrievalOptions,
) ([]domain.ScoredResult, domain.RetrievalInfo, error) {
	start := time.Now()
	info := domain.RetrievalInfo{RequestID: uuid.NewString()}

	if strings.TrimSpace(query) == "" {
		info.TotalLatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		return []domain.ScoredResult{}, info, nil
	}

	ctx, cancel := context.WithTimeout(ctx, uc.requestDeadline)
	defer cancel()

	profile := uc.profileFor(domainID)
	reformulated := uc.reformulator.Reformulate(query, history)
	info.Reformulated = reformulated.WasReformulated

	contributions := make([][]domain.SearchCandidate, len(uc.strategies))
	failures := make([]error, len(uc.strategies))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, strategy := range uc.strategies {
		i, strategy := i, strategy
		g.Go(func() error {
			strategyCtx, cancelStrategy := context.WithTimeout(groupCtx, uc.strategyTimeout)
			defer cancelStrategy()

			strategyStart := time.Now()
			candidates, err := strategy.Search(strategyCtx, reformulated, domainID, profile)
			uc.observer.StrategyCompleted(strategy.Origin(), time.Since(strategyStart).Seconds(), len(candidates), err)
			if err != nil {
				failures[i] = err
				uc.logger.Warn("strategy_failed",
					"request_id", info.RequestID,
					"strategy", string(strategy.Origin()),
					"domain", domainID,
					"error", err,
				)
				return nil
			}
			contributions[i] = candidates
			return nil
		})
	}
	_ = g.Wait()

	for i, strategy := range uc.strategies {
		if failures[i] == nil {
			info.StrategiesUsed = append(info.StrategiesUsed, strategy.Origin())
			continue
		}
		if strategy.Origin() == domain.StrategySemantic {
			info.Degraded = true
		}
	}

	fused := fuseCandidates(contributions, profile.FusionCeiling)
	scored := scoreCandidates(fused, profile)
	results := filterResults(scored, opts)

	info.CacheHitRate = uc.cache.Stats().HitRate
	info.TotalLatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
	uc.observer.RequestCompleted(info, len(results), time.Since(start).Seconds())

	uc.logger.Info("retrieval_completed",
		"request_id", info.RequestID,
		"domain", domainID,
		"results", len(results),
		"degraded", info.Degraded,
		"reformulated", info.Reformulated,
		"latency_ms", info.TotalLatencyMs,
	)
	return results, info, nil
}

func (uc *RetrieveUseCase) profileFor(domainID string) domain.RetrievalProfile {
	if profile, ok := uc.profiles[domainID]; ok {
		return profile
	}
	return uc.defaultProfile
}

func filterResults(scored []domain.ScoredResult, opts domain.RetrievalOptions) []domain.ScoredResult {
	out := make([]domain.ScoredResult, 0, len(scored))
	for _, result := range scored {
		if opts.MinTier != "" && !result.Tier.AtLeast(opts.MinTier) {
			continue
		}
		out = append(out, result)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out
}

// NoopObserver discards pipeline callbacks. Used when metrics are disabled
// and in tests.
type NoopObserver struct{}

func (NoopObserver) StrategyCompleted(domain.StrategyOrigin, float64, int, error) {}
func (NoopObserver) RequestCompleted(domain.RetrievalInfo, int, float64)          {}
