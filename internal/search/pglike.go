package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgLike implements Searcher with plain ILIKE matching as a fallback when
// Meilisearch is down or not configured.
type PgLike struct {
	db *sql.DB
}

// NewPgLike creates a Postgres fallback searcher.
func NewPgLike(db *sql.DB) *PgLike {
	return &PgLike{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgLike) Healthy() bool {
	return true
}

// Search matches published public listings against title, description,
// address, and city.
func (p *PgLike) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := `status = 'published' AND visibility = 'public'
		AND (title ILIKE $1 OR description ILIKE $1 OR address ILIKE $1 OR city ILIKE $1)`
	args := []any{"%" + strings.TrimSpace(q.Text) + "%"}
	if q.City != "" {
		where += " AND city ILIKE $2"
		args = append(args, "%"+q.City+"%")
	}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pglike count: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, title, COALESCE(LEFT(description, 160), ''), COALESCE(city, ''),
			COALESCE(property_type, ''), COALESCE(price, 0), is_featured
		FROM properties
		WHERE %s
		ORDER BY is_featured DESC, listing_created_at DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pglike query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.City, &r.PropertyType, &r.Price, &r.Featured); err != nil {
			return nil, 0, fmt.Errorf("pglike scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every indexable listing for a full reindex.
func (p *PgLike) LoadAllRecords(ctx context.Context) ([]ListingRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(description, ''), COALESCE(address, ''), COALESCE(city, ''),
			COALESCE(property_type, ''), COALESCE(price, 0), is_featured
		FROM properties
		WHERE status = 'published' AND visibility = 'public'
	`)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	defer rows.Close()

	listings := make([]ListingRecord, 0)
	for rows.Next() {
		var l ListingRecord
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.Address, &l.City, &l.PropertyType, &l.Price, &l.Featured); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}

	return listings, nil
}
