package usecase

import (
	"math"
	"testing"

	"github.com/velesk/rankline/internal/core/domain"
)

func testProfile() domain.RetrievalProfile {
	return domain.RetrievalProfile{
		SimilarityFloor: 0.15,
		TierHigh:        0.75,
		TierMedium:      0.55,
		BoostMultiplier: 1.3,
		BoostCategories: []string{"machinery"},
		StrategyLimit:   50,
		FusionCeiling:   25,
	}
}

func TestScoreSemanticNormalizationAndBoost(t *testing.T) {
	// Raw cosine 0.51 normalizes to 0.755, just over the HIGH threshold;
	// the category boost pushes it further in and clamps below 1.
	candidate := domain.SearchCandidate{
		SourceID:    "agri-flip",
		Category:    "machinery",
		RawScore:    0.51,
		ScoreOrigin: domain.StrategySemantic,
	}

	got := scoreCandidates([]domain.SearchCandidate{candidate}, testProfile())
	if len(got) != 1 {
		t.Fatalf("expected one result, got %d", len(got))
	}
	result := got[0]
	if result.Tier != domain.TierHigh {
		t.Fatalf("expected HIGH tier, got %s (score %v)", result.Tier, result.Score)
	}
	if result.BoostApplied != 1.3 {
		t.Fatalf("expected boost 1.3 applied, got %v", result.BoostApplied)
	}
	want := (1 + 0.51) / 2 * 1.3
	if math.Abs(result.Score-want) > 1e-9 {
		t.Fatalf("expected score %v, got %v", want, result.Score)
	}
	if result.Guidance != "present directly" {
		t.Fatalf("expected HIGH guidance label, got %q", result.Guidance)
	}
}

func TestScoreNoBoostForOtherCategories(t *testing.T) {
	candidate := domain.SearchCandidate{
		SourceID:    "src-1",
		Category:    "accessories",
		RawScore:    0.4,
		ScoreOrigin: domain.StrategySemantic,
	}

	got := scoreCandidates([]domain.SearchCandidate{candidate}, testProfile())
	if got[0].BoostApplied != 1.0 {
		t.Fatalf("expected no boost, got %v", got[0].BoostApplied)
	}
	if got[0].Score != 0.7 {
		t.Fatalf("expected score 0.7, got %v", got[0].Score)
	}
	if got[0].Tier != domain.TierMedium {
		t.Fatalf("expected MEDIUM, got %s", got[0].Tier)
	}
}

func TestScoreBoostClampsToOne(t *testing.T) {
	candidate := domain.SearchCandidate{
		SourceID:    "src-1",
		Category:    "Machinery",
		RawScore:    0.95,
		ScoreOrigin: domain.StrategySemantic,
	}

	got := scoreCandidates([]domain.SearchCandidate{candidate}, testProfile())
	if got[0].Score != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %v", got[0].Score)
	}
	if got[0].BoostApplied != 1.3 {
		t.Fatalf("expected case-insensitive category boost, got %v", got[0].BoostApplied)
	}
}

func TestScoreTierBoundaries(t *testing.T) {
	profile := testProfile()
	cases := []struct {
		score float64
		want  domain.Tier
	}{
		{0.76, domain.TierHigh},
		{0.75, domain.TierMedium},
		{0.55, domain.TierMedium},
		{0.549, domain.TierLow},
		{0, domain.TierLow},
	}
	for _, tc := range cases {
		if got := assignTier(tc.score, profile); got != tc.want {
			t.Fatalf("assignTier(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestScoreHeuristicCalibration(t *testing.T) {
	exact := domain.SearchCandidate{
		SourceID:    "exact",
		RawScore:    1.0,
		ScoreOrigin: domain.StrategyMetadata,
	}
	partial := domain.SearchCandidate{
		SourceID:    "partial",
		RawScore:    0.6,
		ScoreOrigin: domain.StrategyMetadata,
	}
	fuzzy := domain.SearchCandidate{
		SourceID:    "fuzzy",
		RawScore:    0.3,
		ScoreOrigin: domain.StrategyKeyword,
	}

	got := scoreCandidates([]domain.SearchCandidate{exact, partial, fuzzy}, testProfile())

	if got[0].Candidate.SourceID != "exact" || got[0].Tier != domain.TierHigh {
		t.Fatalf("expected exact match HIGH, got %+v", got[0])
	}
	if got[1].Candidate.SourceID != "partial" || got[1].Tier != domain.TierMedium {
		t.Fatalf("expected partial match MEDIUM (score %v), got %s", got[1].Score, got[1].Tier)
	}
	if got[2].Candidate.SourceID != "fuzzy" || got[2].Tier != domain.TierLow {
		t.Fatalf("expected fuzzy match LOW (score %v), got %s", got[2].Score, got[2].Tier)
	}
}

func TestScoreSortsTiersThenScoreStable(t *testing.T) {
	candidates := []domain.SearchCandidate{
		{SourceID: "low", RawScore: 0.0, ScoreOrigin: domain.StrategySemantic},
		{SourceID: "high", RawScore: 0.6, ScoreOrigin: domain.StrategySemantic},
		{SourceID: "mid-a", RawScore: 0.2, ScoreOrigin: domain.StrategySemantic},
		{SourceID: "mid-b", RawScore: 0.2, ScoreOrigin: domain.StrategySemantic},
	}

	got := scoreCandidates(candidates, testProfile())

	order := []string{"high", "mid-a", "mid-b", "low"}
	for i, want := range order {
		if got[i].Candidate.SourceID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].Candidate.SourceID)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Tier == got[i-1].Tier && got[i].Score > got[i-1].Score {
			t.Fatalf("tier monotonicity violated at %d", i)
		}
	}
}

func TestScoreEmptyInput(t *testing.T) {
	got := scoreCandidates(nil, testProfile())
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}
