package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecomscope/review-pipeline/internal/review"
)

func TestReviewStoreReplaceSemantics(t *testing.T) {
	t.Parallel()

	store := NewReviewStore()
	ctx := context.Background()

	first := []review.AnalyzedReview{
		{RawReview: review.RawReview{Text: "ilk"}, ContentHash: "h1"},
		{RawReview: review.RawReview{Text: "iki"}, ContentHash: "h2"},
	}
	require.NoError(t, store.ReplaceReviews(ctx, "p1", first))

	second := []review.AnalyzedReview{
		{RawReview: review.RawReview{Text: "yeni"}, ContentHash: "h3"},
	}
	require.NoError(t, store.ReplaceReviews(ctx, "p1", second))

	got, err := store.ListReviews(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "yeni", got[0].Text)
}

func TestReviewStoreDeleteProduct(t *testing.T) {
	t.Parallel()

	store := NewReviewStore()
	ctx := context.Background()
	require.NoError(t, store.ReplaceReviews(ctx, "p1", []review.AnalyzedReview{{ContentHash: "h"}}))
	require.NoError(t, store.DeleteProduct(ctx, "p1"))

	got, err := store.ListReviews(ctx, "p1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestProductStoreLookup(t *testing.T) {
	t.Parallel()

	store := NewProductStore(review.ProductReference{ID: "p1", SourceURL: "https://x/elbise-p-1"})

	ref, err := store.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "https://x/elbise-p-1", ref.SourceURL)

	_, err = store.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, review.ErrNotFound)
}

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	ctx := context.Background()

	run := review.Run{ID: "r1", ProductID: "p1", Status: review.RunStatusQueued}
	require.NoError(t, store.CreateRun(ctx, run))
	require.Error(t, store.CreateRun(ctx, run), "duplicate run id")

	require.NoError(t, store.UpdateRunStatus(ctx, "r1", review.RunStatusRunning, review.RunResult{}))
	got, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, review.RunStatusRunning, got.Status)
	require.NotNil(t, got.Started)
	require.Nil(t, got.Finished)

	result := review.RunResult{Success: true, ReviewCount: 12, StrategyUsed: "structured_api"}
	require.NoError(t, store.UpdateRunStatus(ctx, "r1", review.RunStatusSucceeded, result))
	got, err = store.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, review.RunStatusSucceeded, got.Status)
	require.NotNil(t, got.Finished)
	require.Equal(t, result, got.Result)

	require.ErrorIs(t, store.UpdateRunStatus(ctx, "nope", review.RunStatusFailed, review.RunResult{}), review.ErrNotFound)
}

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "runs/p1/1.json", "application/json", []byte(`[]`))
	require.NoError(t, err)
	require.Equal(t, "memory://runs/p1/1.json", uri)

	data, ok := store.GetObject("runs/p1/1.json")
	require.True(t, ok)
	require.Equal(t, []byte(`[]`), data)
}
