package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/velesk/rankline/internal/core/domain"
	"github.com/velesk/rankline/internal/core/ports"
)

// searchStrategy is the common executor contract. Each strategy proposes
// candidates with a rawScore on its own scale; normalization happens in the
// scorer, not here.
type searchStrategy interface {
	Origin() domain.StrategyOrigin
	Search(ctx context.Context, query domain.ReformulatedQuery, domainID string, profile domain.RetrievalProfile) ([]domain.SearchCandidate, error)
}

type semanticStrategy struct {
	cache ports.VectorCache
	index ports.VectorIndex
}

func newSemanticStrategy(cache ports.VectorCache, index ports.VectorIndex) *semanticStrategy {
	return &semanticStrategy{cache: cache, index: index}
}

func (s *semanticStrategy) Origin() domain.StrategyOrigin { return domain.StrategySemantic }

func (s *semanticStrategy) Search(
	ctx context.Context,
	query domain.ReformulatedQuery,
	domainID string,
	profile domain.RetrievalProfile,
) ([]domain.SearchCandidate, error) {
	vectors, _, err := s.cache.GetOrCompute(ctx, []string{query.EffectiveQuery})
	if err != nil {
		return nil, fmt.Errorf("resolve query vector: %w", err)
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, domain.WrapError(domain.ErrProviderUnavailable, "semantic search",
			fmt.Errorf("no vector for query"))
	}

	candidates, err := s.index.SearchDense(ctx, vectors[0], domainID, profile.StrategyLimit, profile.SimilarityFloor)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return candidates, nil
}

type metadataStrategy struct {
	store ports.MetadataStore
}

func newMetadataStrategy(store ports.MetadataStore) *metadataStrategy {
	return &metadataStrategy{store: store}
}

func (s *metadataStrategy) Origin() domain.StrategyOrigin { return domain.StrategyMetadata }

func (s *metadataStrategy) Search(
	ctx context.Context,
	query domain.ReformulatedQuery,
	domainID string,
	profile domain.RetrievalProfile,
) ([]domain.SearchCandidate, error) {
	entities := query.Entities
	if entities.Empty() {
		// Plain queries carry no recalled entities; match on the query's own
		// content words instead.
		entities = domain.ExtractedEntities{Products: contentWords(query.EffectiveQuery)}
	}
	if entities.Empty() {
		return nil, nil
	}

	candidates, err := s.store.MatchEntities(ctx, entities, domainID, profile.StrategyLimit)
	if err != nil {
		return nil, fmt.Errorf("match entities: %w", err)
	}
	return candidates, nil
}

type keywordStrategy struct {
	index ports.VectorIndex
}

func newKeywordStrategy(index ports.VectorIndex) *keywordStrategy {
	return &keywordStrategy{index: index}
}

func (s *keywordStrategy) Origin() domain.StrategyOrigin { return domain.StrategyKeyword }

// Search issues one sparse query per variation plus the effective query and
// keeps the best overlap per source. rawScore is the share of query tokens
// present in the candidate's title and body, in [0,1].
func (s *keywordStrategy) Search(
	ctx context.Context,
	query domain.ReformulatedQuery,
	domainID string,
	profile domain.RetrievalProfile,
) ([]domain.SearchCandidate, error) {
	queries := make([]string, 0, 1+len(query.Variations))
	queries = append(queries, query.EffectiveQuery)
	queries = append(queries, query.Variations...)

	best := make(map[string]domain.SearchCandidate)
	var order []string

	for _, q := range queries {
		candidates, err := s.index.SearchSparse(ctx, q, domainID, profile.StrategyLimit)
		if err != nil {
			return nil, fmt.Errorf("sparse search %q: %w", q, err)
		}
		queryTokens := contentWords(q)
		for _, candidate := range candidates {
			candidate.RawScore = tokenOverlap(queryTokens, candidate.Title+" "+candidate.Content)
			if candidate.RawScore == 0 {
				continue
			}
			current, ok := best[candidate.SourceID]
			if !ok {
				best[candidate.SourceID] = candidate
				order = append(order, candidate.SourceID)
				continue
			}
			if candidate.RawScore > current.RawScore {
				best[candidate.SourceID] = candidate
			}
		}
	}

	out := make([]domain.SearchCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	// Truncation must drop the weakest overlaps, not the latest-seen ones.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RawScore > out[j].RawScore
	})
	if len(out) > profile.StrategyLimit {
		out = out[:profile.StrategyLimit]
	}
	return out, nil
}

// tokenOverlap measures the fraction of query tokens found in the text.
func tokenOverlap(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := make(map[string]struct{})
	for _, token := range tokenize(text) {
		textTokens[token] = struct{}{}
	}
	hits := 0
	for _, token := range queryTokens {
		if _, ok := textTokens[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

func contentWords(text string) []string {
	var out []string
	for _, token := range tokenize(text) {
		if isStopword(token) || len(token) < 2 {
			continue
		}
		out = append(out, token)
	}
	return out
}
