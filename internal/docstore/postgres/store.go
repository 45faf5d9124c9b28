// Package postgres provides the Postgres-backed searchable review store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// Expected schema:
//
//	CREATE TABLE reviews (
//	    review_id         TEXT PRIMARY KEY,
//	    token_id          TEXT NOT NULL DEFAULT '',
//	    product_name      TEXT NOT NULL,
//	    site_name         TEXT NOT NULL,
//	    rating            DOUBLE PRECISION NOT NULL,
//	    title             TEXT NOT NULL,
//	    description       TEXT NOT NULL,
//	    reviewer          TEXT NOT NULL,
//	    reviewer_location TEXT NOT NULL DEFAULT '',
//	    posted_at         TIMESTAMPTZ,
//	    indexed_at        TIMESTAMPTZ NOT NULL,
//	    updated_at        TIMESTAMPTZ NOT NULL
//	);

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Config controls the Postgres connection pool used for review rows.
type Config struct {
	DSN      string
	MaxConns int32
}

// DocumentStore persists review records in Postgres.
type DocumentStore struct {
	pool pgxPool
}

// New creates a Postgres-backed DocumentStore using the provided config.
func New(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("docstore.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DocumentStore{pool: pool}, nil
}

// NewWithPool constructs a DocumentStore from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*DocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &DocumentStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *DocumentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Exists reports whether a record with the given id is stored.
func (s *DocumentStore) Exists(ctx context.Context, reviewID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM reviews WHERE review_id = $1`,
		reviewID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check review existence: %w", err)
	}
	return true, nil
}

// Create inserts a record. An id conflict reports ErrAlreadyExists so the
// caller can treat it as a no-op.
func (s *DocumentStore) Create(ctx context.Context, record reviews.ReviewRecord) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO reviews
		 (review_id, token_id, product_name, site_name, rating, title, description, reviewer, reviewer_location, posted_at, indexed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (review_id) DO NOTHING`,
		record.ReviewID, record.TokenID, record.ProductName, record.SiteName,
		record.Rating, record.Title, record.Description, record.Reviewer,
		record.ReviewerLocation, record.PostedAt, record.IndexedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("review %s: %w", record.ReviewID, reviews.ErrAlreadyExists)
	}
	return nil
}

// Search applies the validated filters with a fuzzy product-name match and
// exact matches elsewhere. Filter values are always bound as parameters.
func (s *DocumentStore) Search(
	ctx context.Context,
	filters reviews.SearchFilters,
	offset, limit int,
) (reviews.SearchResult, error) {
	where, args := buildWhere(filters)

	var total int
	countSQL := `SELECT COUNT(*) FROM reviews` + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return reviews.SearchResult{}, fmt.Errorf("count reviews: %w", err)
	}

	selectSQL := `SELECT review_id, token_id, product_name, site_name, rating, title, description, reviewer, reviewer_location, posted_at, indexed_at, updated_at
		 FROM reviews` + where +
		fmt.Sprintf(` ORDER BY indexed_at, review_id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, selectSQL, append(args, limit, offset)...)
	if err != nil {
		return reviews.SearchResult{}, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	result := reviews.SearchResult{Total: total}
	for rows.Next() {
		var record reviews.ReviewRecord
		if err := rows.Scan(
			&record.ReviewID, &record.TokenID, &record.ProductName, &record.SiteName,
			&record.Rating, &record.Title, &record.Description, &record.Reviewer,
			&record.ReviewerLocation, &record.PostedAt, &record.IndexedAt, &record.UpdatedAt,
		); err != nil {
			return reviews.SearchResult{}, fmt.Errorf("scan review: %w", err)
		}
		result.Reviews = append(result.Reviews, record)
	}
	if err := rows.Err(); err != nil {
		return reviews.SearchResult{}, fmt.Errorf("iterate reviews: %w", err)
	}
	return result, nil
}

func buildWhere(filters reviews.SearchFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filters.ProductName != "" {
		add(`product_name ILIKE $%d`, "%"+filters.ProductName+"%")
	}
	if filters.SiteName != "" {
		add(`site_name = $%d`, filters.SiteName)
	}
	if filters.Reviewer != "" {
		add(`reviewer = $%d`, filters.Reviewer)
	}
	if filters.TokenID != "" {
		add(`token_id = $%d`, filters.TokenID)
	}
	if filters.Rating != nil {
		add(`rating = $%d`, *filters.Rating)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
