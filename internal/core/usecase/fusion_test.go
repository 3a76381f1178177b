package usecase

import (
	"testing"

	"github.com/velesk/rankline/internal/core/domain"
)

func semanticCandidate(id string, score float64) domain.SearchCandidate {
	return domain.SearchCandidate{
		SourceID:    id,
		RawScore:    score,
		ScoreOrigin: domain.StrategySemantic,
		Origins:     []domain.StrategyOrigin{domain.StrategySemantic},
	}
}

func keywordCandidate(id string, score float64) domain.SearchCandidate {
	return domain.SearchCandidate{
		SourceID:    id,
		RawScore:    score,
		ScoreOrigin: domain.StrategyKeyword,
		Origins:     []domain.StrategyOrigin{domain.StrategyKeyword},
	}
}

func TestFuseKeepsMaxScoreAndAllOrigins(t *testing.T) {
	fused := fuseCandidates([][]domain.SearchCandidate{
		{semanticCandidate("src-1", 0.4)},
		{keywordCandidate("src-1", 0.9)},
	}, 25)

	if len(fused) != 1 {
		t.Fatalf("expected single fused entry, got %d", len(fused))
	}
	got := fused[0]
	if got.RawScore != 0.9 {
		t.Fatalf("expected max raw score 0.9, got %v", got.RawScore)
	}
	if got.ScoreOrigin != domain.StrategyKeyword {
		t.Fatalf("expected winning origin keyword, got %s", got.ScoreOrigin)
	}
	if len(got.Origins) != 2 {
		t.Fatalf("expected both origins recorded, got %v", got.Origins)
	}
}

func TestFuseOneEntryPerSource(t *testing.T) {
	fused := fuseCandidates([][]domain.SearchCandidate{
		{semanticCandidate("a", 0.5), semanticCandidate("b", 0.4)},
		{keywordCandidate("a", 0.3), keywordCandidate("c", 0.6)},
	}, 25)

	seen := map[string]bool{}
	for _, c := range fused {
		if seen[c.SourceID] {
			t.Fatalf("duplicate source %s in fused output", c.SourceID)
		}
		seen[c.SourceID] = true
	}
	if len(fused) != 3 {
		t.Fatalf("expected 3 distinct sources, got %d", len(fused))
	}
}

func TestFuseSortsByScoreWithStableTies(t *testing.T) {
	fused := fuseCandidates([][]domain.SearchCandidate{
		{semanticCandidate("first-seen", 0.5), semanticCandidate("second-seen", 0.5)},
		{keywordCandidate("top", 0.8)},
	}, 25)

	if fused[0].SourceID != "top" {
		t.Fatalf("expected highest score first, got %s", fused[0].SourceID)
	}
	if fused[1].SourceID != "first-seen" || fused[2].SourceID != "second-seen" {
		t.Fatalf("expected insertion order on ties, got %s then %s", fused[1].SourceID, fused[2].SourceID)
	}
}

func TestFuseAppliesCeiling(t *testing.T) {
	var list []domain.SearchCandidate
	for i := 0; i < 40; i++ {
		list = append(list, semanticCandidate(string(rune('a'+i)), float64(i)/40))
	}

	fused := fuseCandidates([][]domain.SearchCandidate{list}, 25)
	if len(fused) != 25 {
		t.Fatalf("expected ceiling of 25, got %d", len(fused))
	}
	// Ceiling keeps the best raw scores.
	if fused[0].RawScore != float64(39)/40 {
		t.Fatalf("expected best score kept, got %v", fused[0].RawScore)
	}
}

func TestFuseMergesRicherFields(t *testing.T) {
	sparse := domain.SearchCandidate{
		SourceID:    "src-1",
		RawScore:    0.9,
		ScoreOrigin: domain.StrategyKeyword,
	}
	rich := domain.SearchCandidate{
		SourceID:    "src-1",
		Title:       "Tipper T200",
		URL:         "https://example.com/t200",
		Category:    "machinery",
		RawScore:    0.4,
		ScoreOrigin: domain.StrategySemantic,
	}

	fused := fuseCandidates([][]domain.SearchCandidate{{sparse}, {rich}}, 25)
	got := fused[0]
	if got.Title != "Tipper T200" || got.Category != "machinery" {
		t.Fatalf("expected richer fields merged, got %+v", got)
	}
	if got.RawScore != 0.9 || got.ScoreOrigin != domain.StrategyKeyword {
		t.Fatalf("expected winning score preserved, got %+v", got)
	}
}

func TestFuseEmptyInput(t *testing.T) {
	fused := fuseCandidates(nil, 25)
	if len(fused) != 0 {
		t.Fatalf("expected empty output, got %d", len(fused))
	}

	fused = fuseCandidates([][]domain.SearchCandidate{nil, {}, nil}, 25)
	if len(fused) != 0 {
		t.Fatalf("expected empty output for empty lists, got %d", len(fused))
	}
}
