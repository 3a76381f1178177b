package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/velesk/rankline/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*CatalogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &CatalogRepository{db: db}, mock, func() { _ = db.Close() }
}

func catalogColumns() []string {
	return []string{"id", "name", "category", "url", "description"}
}

func TestMatchEntitiesRanksExactAboveSubstring(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(catalogColumns()).
		AddRow("item-2", "Tipper trailer cover", "accessories", "https://example.com/2", "cover").
		AddRow("item-1", "Tipper", "machinery", "https://example.com/1", "hydraulic tipper")

	mock.ExpectQuery("SELECT id, name, category, url, description").
		WithArgs("agri", "%tipper%", 40).
		WillReturnRows(rows)

	got, err := repo.MatchEntities(context.Background(), domain.ExtractedEntities{
		Products: []string{"Tipper"},
	}, "agri", 10)
	if err != nil {
		t.Fatalf("MatchEntities() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].SourceID != "item-1" || got[0].RawScore != matchExact {
		t.Fatalf("expected exact match ranked first, got %+v", got[0])
	}
	if got[1].RawScore != matchPrefix {
		t.Fatalf("expected prefix quality for second, got %+v", got[1])
	}
	if got[0].ScoreOrigin != domain.StrategyMetadata {
		t.Fatalf("expected metadata origin, got %s", got[0].ScoreOrigin)
	}
	if got[0].Metadata["match"] != "exact" || got[1].Metadata["match"] != "prefix" {
		t.Fatalf("expected match kinds recorded, got %v / %v", got[0].Metadata, got[1].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMatchEntitiesDeduplicatesAndLowercasesTerms(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, category, url, description").
		WithArgs("agri", "%tipper%", "%hydraulic%", 40).
		WillReturnRows(sqlmock.NewRows(catalogColumns()))

	_, err := repo.MatchEntities(context.Background(), domain.ExtractedEntities{
		Products:   []string{"Tipper", "TIPPER "},
		Attributes: []string{"hydraulic"},
	}, "agri", 10)
	if err != nil {
		t.Fatalf("MatchEntities() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMatchEntitiesEmptyEntitiesSkipsQuery(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	got, err := repo.MatchEntities(context.Background(), domain.ExtractedEntities{}, "agri", 10)
	if err != nil {
		t.Fatalf("MatchEntities() error = %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for empty entities, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMatchEntitiesTruncatesToLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(catalogColumns())
	for _, id := range []string{"a", "b", "c"} {
		rows.AddRow(id, "tipper "+id, "machinery", nil, nil)
	}
	mock.ExpectQuery("SELECT id, name, category, url, description").
		WithArgs("agri", "%tipper%", 8).
		WillReturnRows(rows)

	got, err := repo.MatchEntities(context.Background(), domain.ExtractedEntities{
		Products: []string{"tipper"},
	}, "agri", 2)
	if err != nil {
		t.Fatalf("MatchEntities() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMatchQuality(t *testing.T) {
	cases := []struct {
		name  string
		terms []string
		want  float64
		kind  string
	}{
		{"Tipper", []string{"tipper"}, matchExact, "exact"},
		{"Tipper T200", []string{"tipper"}, matchPrefix, "prefix"},
		{"Mini Tipper", []string{"tipper"}, matchContains, "contains"},
		{"Seeder", []string{"tipper"}, 0, ""},
	}
	for _, tc := range cases {
		got, kind := matchQuality(tc.name, tc.terms)
		if got != tc.want || kind != tc.kind {
			t.Fatalf("matchQuality(%q) = %v/%q, want %v/%q", tc.name, got, kind, tc.want, tc.kind)
		}
	}
}
