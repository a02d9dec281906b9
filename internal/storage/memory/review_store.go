package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ecomscope/review-pipeline/internal/review"
)

// ReviewStore keeps analyzed review sets in memory with the same
// full-replace semantics as the Postgres store.
type ReviewStore struct {
	mu   sync.RWMutex
	sets map[string][]review.AnalyzedReview
}

// NewReviewStore constructs a ReviewStore.
func NewReviewStore() *ReviewStore {
	return &ReviewStore{sets: make(map[string][]review.AnalyzedReview)}
}

// ReplaceReviews swaps the product's set in one step.
func (s *ReviewStore) ReplaceReviews(_ context.Context, productID string, reviews []review.AnalyzedReview) error {
	if productID == "" {
		return fmt.Errorf("product id is required")
	}
	copied := make([]review.AnalyzedReview, len(reviews))
	copy(copied, reviews)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[productID] = copied
	return nil
}

// ListReviews returns a copy of the persisted set.
func (s *ReviewStore) ListReviews(_ context.Context, productID string) ([]review.AnalyzedReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.sets[productID]
	out := make([]review.AnalyzedReview, len(set))
	copy(out, set)
	return out, nil
}

// DeleteProduct removes the product's set.
func (s *ReviewStore) DeleteProduct(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, productID)
	return nil
}

// ProductStore keeps product references in memory.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]review.ProductReference
}

// NewProductStore constructs a ProductStore seeded with the given refs.
func NewProductStore(refs ...review.ProductReference) *ProductStore {
	s := &ProductStore{products: make(map[string]review.ProductReference)}
	for _, ref := range refs {
		s.products[ref.ID] = ref
	}
	return s
}

// PutProduct adds or replaces a product reference.
func (s *ProductStore) PutProduct(ref review.ProductReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[ref.ID] = ref
}

// GetProduct fetches a product reference or returns review.ErrNotFound.
func (s *ProductStore) GetProduct(_ context.Context, productID string) (review.ProductReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.products[productID]
	if !ok {
		return review.ProductReference{}, fmt.Errorf("product %s: %w", productID, review.ErrNotFound)
	}
	return ref, nil
}

var (
	_ review.ReviewStore  = (*ReviewStore)(nil)
	_ review.ProductStore = (*ProductStore)(nil)
)
