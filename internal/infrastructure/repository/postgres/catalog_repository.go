package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/velesk/rankline/internal/core/domain"
)

// Match-quality levels for entity lookups. Exact name matches rank a full
// confidence point; prefix and substring matches degrade in fixed steps so
// fuzzy catalog hits stay below strong semantic hits after calibration.
const (
	matchExact    = 1.0
	matchPrefix   = 0.6
	matchContains = 0.3
)

// CatalogRepository resolves extracted entities against the structured
// catalog. It is read-only; catalog rows are owned by the ingestion pipeline.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CatalogRepository) MatchEntities(
	ctx context.Context,
	entities domain.ExtractedEntities,
	domainID string,
	limit int,
) ([]domain.SearchCandidate, error) {
	terms := normalizeTerms(entities.Terms())
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	query, args := buildMatchQuery(terms, domainID, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog items: %w", err)
	}
	defer rows.Close()

	type catalogRow struct {
		id          string
		name        string
		category    string
		url         sql.NullString
		description sql.NullString
	}

	var matched []catalogRow
	for rows.Next() {
		var row catalogRow
		if err := rows.Scan(&row.id, &row.name, &row.category, &row.url, &row.description); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		matched = append(matched, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog items: %w", err)
	}

	out := make([]domain.SearchCandidate, 0, len(matched))
	for _, row := range matched {
		quality, kind := matchQuality(row.name, terms)
		if quality == 0 {
			continue
		}
		out = append(out, domain.SearchCandidate{
			SourceID:    row.id,
			URL:         row.url.String,
			Title:       row.name,
			Content:     row.description.String,
			Category:    row.category,
			RawScore:    quality,
			ScoreOrigin: domain.StrategyMetadata,
			Origins:     []domain.StrategyOrigin{domain.StrategyMetadata},
			Metadata:    map[string]string{"match": kind},
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RawScore > out[j].RawScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// buildMatchQuery fetches a wider candidate set than the final limit so exact
// matches buried behind substring matches in row order still surface after
// Go-side scoring.
func buildMatchQuery(terms []string, domainID string, limit int) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`
SELECT id, name, category, url, description
FROM catalog_items
WHERE domain_id = $1 AND (`)

	args := make([]any, 0, len(terms)+2)
	args = append(args, domainID)
	for i, term := range terms {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		fmt.Fprintf(&sb, "name ILIKE $%d", len(args)+1)
		args = append(args, "%"+term+"%")
	}
	fmt.Fprintf(&sb, ")\nLIMIT $%d", len(args)+1)
	args = append(args, limit*4)

	return sb.String(), args
}

// matchQuality returns the best quality across terms and the kind of match
// that won.
func matchQuality(name string, terms []string) (float64, string) {
	lowerName := strings.ToLower(name)
	best := 0.0
	kind := ""
	for _, term := range terms {
		switch {
		case lowerName == term:
			return matchExact, "exact"
		case strings.HasPrefix(lowerName, term):
			if best < matchPrefix {
				best, kind = matchPrefix, "prefix"
			}
		case strings.Contains(lowerName, term):
			if best < matchContains {
				best, kind = matchContains, "contains"
			}
		}
	}
	return best, kind
}

func normalizeTerms(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, term := range raw {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}
