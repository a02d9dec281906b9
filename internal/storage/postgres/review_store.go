// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecomscope/review-pipeline/internal/review"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ReviewStoreConfig controls the Postgres connection pool used for
// review rows.
type ReviewStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ReviewStore persists analyzed review sets with full-replace semantics.
type ReviewStore struct {
	pool  pgxPool
	table string
}

// NewReviewStore creates a Postgres-backed ReviewStore using the
// provided config.
func NewReviewStore(ctx context.Context, cfg ReviewStoreConfig) (*ReviewStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "reviews"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &ReviewStore{pool: pool, table: table}, nil
}

// NewPool opens a pgx connection pool from the store config. Callers
// that host several stores on one database share a single pool.
func NewPool(ctx context.Context, cfg ReviewStoreConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// NewReviewStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewReviewStoreWithPool(pool pgxPool, table string) (*ReviewStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "reviews"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ReviewStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ReviewStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ReplaceReviews clears the product's prior set and inserts the new one
// in a single transaction, so readers never observe a partial set.
func (s *ReviewStore) ReplaceReviews(ctx context.Context, productID string, reviews []review.AnalyzedReview) error {
	if productID == "" {
		return fmt.Errorf("product id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE product_id = $1`, s.table)
	if _, err := tx.Exec(ctx, deleteQuery, productID); err != nil {
		return fmt.Errorf("clear prior review set: %w", err)
	}

	insertQuery := fmt.Sprintf(`
INSERT INTO %s (
	product_id,
	content_hash,
	author,
	verified_purchase,
	rating,
	review_text,
	helpful_count,
	posted_at,
	sentiment_score,
	sentiment_label,
	confidence,
	key_phrases,
	purchase_reasons,
	pros,
	cons,
	behavior_type
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)`, s.table)

	for _, rec := range reviews {
		args, err := insertArgs(productID, rec)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertQuery, args...); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// ListReviews returns the persisted set for one product.
func (s *ReviewStore) ListReviews(ctx context.Context, productID string) ([]review.AnalyzedReview, error) {
	query := fmt.Sprintf(`
SELECT
	author,
	verified_purchase,
	rating,
	review_text,
	helpful_count,
	posted_at,
	sentiment_score,
	sentiment_label,
	confidence,
	key_phrases,
	purchase_reasons,
	pros,
	cons,
	behavior_type,
	content_hash
FROM %s
WHERE product_id = $1`, s.table)

	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query review set: %w", err)
	}
	defer rows.Close()

	var out []review.AnalyzedReview
	for rows.Next() {
		rec, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review set: %w", err)
	}
	return out, nil
}

// DeleteProduct cascades a product deletion into its review set.
func (s *ReviewStore) DeleteProduct(ctx context.Context, productID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE product_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, productID); err != nil {
		return fmt.Errorf("delete review set: %w", err)
	}
	return nil
}

func insertArgs(productID string, rec review.AnalyzedReview) ([]any, error) {
	keyPhrases, err := marshalList(rec.KeyPhrases)
	if err != nil {
		return nil, fmt.Errorf("marshal key phrases: %w", err)
	}
	reasons, err := marshalList(rec.PurchaseReasons)
	if err != nil {
		return nil, fmt.Errorf("marshal purchase reasons: %w", err)
	}
	pros, err := marshalList(rec.Pros)
	if err != nil {
		return nil, fmt.Errorf("marshal pros: %w", err)
	}
	cons, err := marshalList(rec.Cons)
	if err != nil {
		return nil, fmt.Errorf("marshal cons: %w", err)
	}
	return []any{
		productID,
		rec.ContentHash,
		rec.Author,
		rec.VerifiedPurchase,
		rec.Rating,
		rec.Text,
		rec.HelpfulCount,
		rec.PostedAt,
		rec.SentimentScore,
		string(rec.SentimentLabel),
		rec.Confidence,
		keyPhrases,
		reasons,
		pros,
		cons,
		rec.BehaviorType,
	}, nil
}

func scanReview(rows pgx.Rows) (review.AnalyzedReview, error) {
	var (
		rec   review.AnalyzedReview
		label string
		lists [4][]byte
	)
	err := rows.Scan(
		&rec.Author,
		&rec.VerifiedPurchase,
		&rec.Rating,
		&rec.Text,
		&rec.HelpfulCount,
		&rec.PostedAt,
		&rec.SentimentScore,
		&label,
		&rec.Confidence,
		&lists[0],
		&lists[1],
		&lists[2],
		&lists[3],
		&rec.BehaviorType,
		&rec.ContentHash,
	)
	if err != nil {
		return review.AnalyzedReview{}, fmt.Errorf("scan review row: %w", err)
	}
	rec.SentimentLabel = review.SentimentLabel(label)
	targets := []*[]string{&rec.KeyPhrases, &rec.PurchaseReasons, &rec.Pros, &rec.Cons}
	for i, data := range lists {
		if err := unmarshalList(data, targets[i]); err != nil {
			return review.AnalyzedReview{}, err
		}
	}
	return rec, nil
}

// marshalList keeps jsonb columns non-null so scans stay simple.
func marshalList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func unmarshalList(data []byte, target *[]string) error {
	if len(data) == 0 {
		*target = nil
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode list column: %w", err)
	}
	if len(*target) == 0 {
		*target = nil
	}
	return nil
}

var _ review.ReviewStore = (*ReviewStore)(nil)
