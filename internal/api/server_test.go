package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecomscope/review-pipeline/internal/config"
	"github.com/ecomscope/review-pipeline/internal/dispatcher"
	queueMemory "github.com/ecomscope/review-pipeline/internal/queue/memory"
	"github.com/ecomscope/review-pipeline/internal/review"
	storageMemory "github.com/ecomscope/review-pipeline/internal/storage/memory"
)

func TestServer_AcquireProduct_EnqueuesRun(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.products.PutProduct(review.ProductReference{ID: "prod-1", ExternalID: "123456"})

	req := httptest.NewRequest(http.MethodPost, "/v1/products/prod-1/acquire", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "run-1")

	item, err := env.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-1", item.RunID)
	require.Equal(t, "prod-1", item.ProductID)

	run, err := env.runs.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, review.RunStatusQueued, run.Status)
}

func TestServer_AcquireProduct_UnknownProduct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/products/missing/acquire", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "product not found")
}

func TestServer_AcquireProduct_WaitRunsSynchronously(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.products.PutProduct(review.ProductReference{ID: "prod-1", ExternalID: "123456"})
	env.runner.result = review.RunResult{Success: true, ReviewCount: 42, StrategyUsed: "structured_api"}

	req := httptest.NewRequest(http.MethodPost, "/v1/products/prod-1/acquire?wait=true", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "structured_api")

	run, err := env.runs.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, review.RunStatusSucceeded, run.Status)
	require.Equal(t, 42, run.Result.ReviewCount)
	require.Equal(t, 1, env.runner.calls())
}

func TestServer_AcquireProduct_WaitMarksFailedRun(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.products.PutProduct(review.ProductReference{ID: "prod-1"})
	env.runner.result = review.RunResult{Success: false, ErrorText: "all strategies exhausted"}

	req := httptest.NewRequest(http.MethodPost, "/v1/products/prod-1/acquire?wait=true", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	run, err := env.runs.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, review.RunStatusFailed, run.Status)
	require.Equal(t, "all strategies exhausted", run.Result.ErrorText)
}

func TestServer_AcquireProduct_QueueFull(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithQueueDepth(t, 1)
	env.server.enqueueTimeout = 50 * time.Millisecond
	env.products.PutProduct(review.ProductReference{ID: "prod-1"})

	// Fill the queue so the second submit times out.
	require.NoError(t, env.queue.Enqueue(context.Background(), review.QueueItem{RunID: "filler"}))

	req := httptest.NewRequest(http.MethodPost, "/v1/products/prod-1/acquire", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	run, err := env.runs.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, review.RunStatusFailed, run.Status)
}

func TestServer_GetRun_ReturnsRun(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, env.runs.CreateRun(context.Background(), review.Run{
		ID:        "run-77",
		ProductID: "prod-1",
		Status:    review.RunStatusSucceeded,
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-77", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "succeeded")
}

func TestServer_GetRun_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetReport_AggregatesStoredReviews(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.products.PutProduct(review.ProductReference{ID: "prod-1"})
	stored := []review.AnalyzedReview{
		{
			RawReview:      review.RawReview{Rating: 5, Text: "harika", VerifiedPurchase: true},
			SentimentScore: 0.8,
			SentimentLabel: review.SentimentPositive,
		},
		{
			RawReview:      review.RawReview{Rating: 1, Text: "berbat"},
			SentimentScore: -0.6,
			SentimentLabel: review.SentimentNegative,
		},
	}
	require.NoError(t, env.reviews.ReplaceReviews(context.Background(), "prod-1", stored))

	req := httptest.NewRequest(http.MethodGet, "/v1/products/prod-1/report", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total_reviews":2`)
	require.Contains(t, rec.Body.String(), "recommendation_score")
}

func TestServer_ListReviews_ReturnsStoredSet(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.products.PutProduct(review.ProductReference{ID: "prod-1"})
	stored := []review.AnalyzedReview{
		{RawReview: review.RawReview{Author: "E. Yilmaz", Rating: 4, Text: "kaliteli urun"}},
	}
	require.NoError(t, env.reviews.ReplaceReviews(context.Background(), "prod-1", stored))

	req := httptest.NewRequest(http.MethodGet, "/v1/products/prod-1/reviews", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)
	require.Contains(t, rec.Body.String(), "kaliteli urun")
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithConfig(t, config.Config{
		Auth: config.AuthConfig{Enabled: true, APIKey: "secret"},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// --- helpers/fakes ---

type fakeRunner struct {
	mu     sync.Mutex
	result review.RunResult
	err    error
	n      int
}

func (f *fakeRunner) Run(_ context.Context, _ string) (review.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return f.result, f.err
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type fakeIDGen struct {
	mu sync.Mutex
	n  int
}

func (f *fakeIDGen) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return "run-" + strconv.Itoa(f.n), nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type testEnv struct {
	server   *Server
	queue    *queueMemory.Queue
	runs     *storageMemory.RunStore
	reviews  *storageMemory.ReviewStore
	products *storageMemory.ProductStore
	runner   *fakeRunner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithQueueDepth(t, 10)
}

func newTestEnvWithQueueDepth(t *testing.T, depth int) *testEnv {
	t.Helper()
	return buildEnv(depth, config.Config{})
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	return buildEnv(10, cfg)
}

func buildEnv(depth int, cfg config.Config) *testEnv {
	q := queueMemory.NewQueue(depth)
	runs := storageMemory.NewRunStore()
	reviews := storageMemory.NewReviewStore()
	products := storageMemory.NewProductStore()
	runner := &fakeRunner{}
	server := NewServer(
		runs,
		reviews,
		products,
		dispatcher.New(q, nil),
		runner,
		&fakeIDGen{},
		&fakeClock{now: time.Unix(100, 0)},
		cfg,
		zap.NewNop(),
	)
	return &testEnv{
		server:   server,
		queue:    q,
		runs:     runs,
		reviews:  reviews,
		products: products,
		runner:   runner,
	}
}
