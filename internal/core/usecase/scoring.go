package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/velesk/rankline/internal/core/domain"
)

// calibrationGamma maps metadata/keyword heuristic scores onto the semantic
// scale. The sub-linear curve lifts mid-range heuristic scores so a strong
// partial match can still reach MEDIUM without letting weak matches into HIGH.
const calibrationGamma = 0.7

// scoreCandidates normalizes fused candidates to [0,1], applies the domain
// category boost and assigns confidence tiers. Stateless; empty input yields
// an empty slice, never an error.
func scoreCandidates(fused []domain.SearchCandidate, profile domain.RetrievalProfile) []domain.ScoredResult {
	out := make([]domain.ScoredResult, 0, len(fused))
	for _, candidate := range fused {
		score := normalizeScore(candidate)

		boost := 1.0
		if boostedCategory(candidate.Category, profile.BoostCategories) {
			boost = profile.BoostMultiplier
			score = clamp01(score * boost)
		}

		out = append(out, domain.ScoredResult{
			Candidate:    candidate,
			Score:        score,
			Tier:         assignTier(score, profile),
			BoostApplied: boost,
		})
	}

	for i := range out {
		out[i].Guidance = out[i].Tier.Guidance()
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier.Before(out[j].Tier)
		}
		return out[i].Score > out[j].Score
	})
	return out
}

// normalizeScore maps a strategy rawScore to [0,1].
//
// Semantic scores are cosine similarities in [-1,1]; shifting to (1+cos)/2
// keeps ordering and puts a strong 0.5+ similarity near the HIGH threshold.
// Metadata and keyword heuristics are already bounded and pass through the
// calibration curve.
func normalizeScore(candidate domain.SearchCandidate) float64 {
	switch candidate.ScoreOrigin {
	case domain.StrategySemantic:
		return clamp01((1 + candidate.RawScore) / 2)
	default:
		return math.Pow(clamp01(candidate.RawScore), calibrationGamma)
	}
}

func assignTier(score float64, profile domain.RetrievalProfile) domain.Tier {
	switch {
	case score > profile.TierHigh:
		return domain.TierHigh
	case score >= profile.TierMedium:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

func boostedCategory(category string, boosted []string) bool {
	if category == "" {
		return false
	}
	for _, b := range boosted {
		if strings.EqualFold(category, b) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
