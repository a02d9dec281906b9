package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ecomscope/review-pipeline/internal/review"
)

// ProductStore reads product references owned by the external catalog.
type ProductStore struct {
	pool  pgxPool
	table string
}

// NewProductStoreWithPool constructs a store from an existing pool.
func NewProductStoreWithPool(pool pgxPool, table string) (*ProductStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ProductStore{pool: pool, table: table}, nil
}

// GetProduct loads a single product reference or returns
// review.ErrNotFound.
func (s *ProductStore) GetProduct(ctx context.Context, productID string) (review.ProductReference, error) {
	query := fmt.Sprintf(`
SELECT id, source_url, COALESCE(external_id, '')
FROM %s
WHERE id = $1`, s.table)

	var ref review.ProductReference
	err := s.pool.QueryRow(ctx, query, productID).Scan(&ref.ID, &ref.SourceURL, &ref.ExternalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return review.ProductReference{}, fmt.Errorf("product %s: %w", productID, review.ErrNotFound)
	}
	if err != nil {
		return review.ProductReference{}, fmt.Errorf("query product: %w", err)
	}
	return ref, nil
}

var _ review.ProductStore = (*ProductStore)(nil)
