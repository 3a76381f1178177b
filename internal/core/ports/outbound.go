package ports

import (
	"context"

	"github.com/velesk/rankline/internal/core/domain"
)

// EmbeddingProvider issues batched vectorization calls to the external
// embedding service. One call per batch; order of outputs matches inputs.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorCache fronts the embedding provider with a content-addressed cache.
//
// GetOrCompute returns one vector per input text, in input order. When the
// provider call for the uncached subset fails, the cached subset is still
// returned (nil at uncached positions), partial is true and err carries the
// provider failure; the caller decides whether partial context is acceptable.
type VectorCache interface {
	Get(text string) ([]float32, bool)
	Put(text string, vector []float32)
	GetOrCompute(ctx context.Context, texts []string) (vectors [][]float32, partial bool, err error)
	Stats() domain.CacheStats
}

// VectorIndex is the read-only dense and sparse query surface of the backing
// content store. The engine never writes to it; the ingestion pipeline owns
// index population.
type VectorIndex interface {
	SearchDense(ctx context.Context, queryVector []float32, domainID string, limit int, floor float64) ([]domain.SearchCandidate, error)
	SearchSparse(ctx context.Context, queryText string, domainID string, limit int) ([]domain.SearchCandidate, error)
}

// MetadataStore matches extracted entities against structured catalog records.
type MetadataStore interface {
	MatchEntities(ctx context.Context, entities domain.ExtractedEntities, domainID string, limit int) ([]domain.SearchCandidate, error)
}

// WarmupQueue carries popular query texts used to pre-populate the
// embedding cache.
type WarmupQueue interface {
	PublishWarmup(ctx context.Context, texts []string) error
	SubscribeWarmup(ctx context.Context, handler func(context.Context, []string) error) error
}

// PipelineObserver receives callbacks as the retrieval pipeline progresses.
// Implementations must be safe for concurrent use.
type PipelineObserver interface {
	StrategyCompleted(origin domain.StrategyOrigin, seconds float64, candidates int, err error)
	RequestCompleted(info domain.RetrievalInfo, results int, seconds float64)
}
