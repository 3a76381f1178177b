package ports

import (
	"context"

	"github.com/velesk/rankline/internal/core/domain"
)

// Retriever is the single public entry point of the retrieval engine,
// called by the chat orchestration layer.
type Retriever interface {
	Retrieve(
		ctx context.Context,
		query string,
		history []domain.Turn,
		domainID string,
		opts domain.RetrievalOptions,
	) ([]domain.ScoredResult, domain.RetrievalInfo, error)
}

// CacheInspector exposes read-only embedding cache counters for the
// stats endpoint and the warmup worker.
type CacheInspector interface {
	Stats() domain.CacheStats
}
