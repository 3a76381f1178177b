package usecase

import (
	"sort"

	"github.com/velesk/rankline/internal/core/domain"
)

// fuseCandidates merges per-strategy candidate lists into one list with at
// most one entry per source. The merged rawScore is the maximum across
// strategies; every contributing origin is recorded and ScoreOrigin names the
// strategy whose score won. Ties keep first-seen order.
func fuseCandidates(lists [][]domain.SearchCandidate, ceiling int) []domain.SearchCandidate {
	acc := make(map[string]domain.SearchCandidate)
	var order []string

	for _, list := range lists {
		for _, candidate := range list {
			if candidate.SourceID == "" {
				continue
			}
			current, ok := acc[candidate.SourceID]
			if !ok {
				candidate.Origins = normalizeOrigins(candidate)
				acc[candidate.SourceID] = candidate
				order = append(order, candidate.SourceID)
				continue
			}

			merged := preferRicherCandidate(current, candidate)
			merged.Origins = appendOrigins(current.Origins, candidate)
			if candidate.RawScore > current.RawScore {
				merged.RawScore = candidate.RawScore
				merged.ScoreOrigin = candidate.ScoreOrigin
			} else {
				merged.RawScore = current.RawScore
				merged.ScoreOrigin = current.ScoreOrigin
			}
			acc[candidate.SourceID] = merged
		}
	}

	out := make([]domain.SearchCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, acc[id])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RawScore > out[j].RawScore
	})

	if ceiling > 0 && len(out) > ceiling {
		out = out[:ceiling]
	}
	return out
}

func normalizeOrigins(candidate domain.SearchCandidate) []domain.StrategyOrigin {
	if len(candidate.Origins) > 0 {
		return candidate.Origins
	}
	if candidate.ScoreOrigin != "" {
		return []domain.StrategyOrigin{candidate.ScoreOrigin}
	}
	return nil
}

func appendOrigins(current []domain.StrategyOrigin, candidate domain.SearchCandidate) []domain.StrategyOrigin {
	out := append([]domain.StrategyOrigin{}, current...)
	for _, origin := range normalizeOrigins(candidate) {
		found := false
		for _, existing := range out {
			if existing == origin {
				found = true
				break
			}
		}
		if !found {
			out = append(out, origin)
		}
	}
	return out
}

// preferRicherCandidate keeps the most complete field values when the same
// source arrives from multiple strategies with uneven payloads.
func preferRicherCandidate(current, candidate domain.SearchCandidate) domain.SearchCandidate {
	if current.Title == "" {
		current.Title = candidate.Title
	}
	if current.URL == "" {
		current.URL = candidate.URL
	}
	if current.Content == "" {
		current.Content = candidate.Content
	}
	if current.Category == "" {
		current.Category = candidate.Category
	}
	if len(current.Metadata) == 0 {
		current.Metadata = candidate.Metadata
	}
	return current
}
