package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	publishermem "github.com/ecomscope/review-pipeline/internal/publisher/memory"
	queuemem "github.com/ecomscope/review-pipeline/internal/queue/memory"
	storagemem "github.com/ecomscope/review-pipeline/internal/storage/memory"
	"github.com/ecomscope/review-pipeline/internal/review"
)

type fakeRunner struct {
	mu      sync.Mutex
	results map[string]review.RunResult
	err     error
}

func (f *fakeRunner) Run(_ context.Context, productID string) (review.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return review.RunResult{}, f.err
	}
	return f.results[productID], nil
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(1756339200, 0).UTC() }

func enqueueRun(t *testing.T, q review.Queue, runs review.RunStore, runID, productID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, runs.CreateRun(ctx, review.Run{
		ID:        runID,
		ProductID: productID,
		Status:    review.RunStatusQueued,
	}))
	require.NoError(t, q.Enqueue(ctx, review.QueueItem{RunID: runID, ProductID: productID}))
}

func TestWorkerCompletesSuccessfulRun(t *testing.T) {
	t.Parallel()

	q := queuemem.NewQueue(4)
	runs := storagemem.NewRunStore()
	pub := publishermem.New()
	runner := &fakeRunner{results: map[string]review.RunResult{
		"p1": {Success: true, ReviewCount: 42, StrategyUsed: "structured_api"},
	}}

	w := New(q, runs, runner, pub, fixedClock{}, Config{Topic: "review-runs"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	enqueueRun(t, q, runs, "r1", "p1")

	require.Eventually(t, func() bool {
		run, err := runs.GetRun(context.Background(), "r1")
		return err == nil && run.Status == review.RunStatusSucceeded
	}, time.Second, 10*time.Millisecond)

	run, err := runs.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, 42, run.Result.ReviewCount)
	require.NotNil(t, run.Started)
	require.NotNil(t, run.Finished)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	event, ok := msgs[0].Payload.(review.CompletionEvent)
	require.True(t, ok)
	require.True(t, event.Success)
	require.Equal(t, "structured_api", event.StrategyUsed)
}

func TestWorkerMarksFailedRun(t *testing.T) {
	t.Parallel()

	q := queuemem.NewQueue(4)
	runs := storagemem.NewRunStore()
	runner := &fakeRunner{results: map[string]review.RunResult{
		"p1": {Success: false, ErrorText: "all strategies exhausted"},
	}}

	w := New(q, runs, runner, nil, fixedClock{}, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	enqueueRun(t, q, runs, "r1", "p1")

	require.Eventually(t, func() bool {
		run, err := runs.GetRun(context.Background(), "r1")
		return err == nil && run.Status == review.RunStatusFailed
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerMarksErroredRun(t *testing.T) {
	t.Parallel()

	q := queuemem.NewQueue(4)
	runs := storagemem.NewRunStore()
	runner := &fakeRunner{err: fmt.Errorf("store unavailable")}

	w := New(q, runs, runner, nil, fixedClock{}, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	enqueueRun(t, q, runs, "r1", "p1")

	require.Eventually(t, func() bool {
		run, err := runs.GetRun(context.Background(), "r1")
		return err == nil && run.Status == review.RunStatusFailed && run.Result.ErrorText == "store unavailable"
	}, time.Second, 10*time.Millisecond)
}

// runningMarkFailStore rejects the transition to running but accepts
// every other update.
type runningMarkFailStore struct {
	*storagemem.RunStore
}

func (s *runningMarkFailStore) UpdateRunStatus(ctx context.Context, runID string, status review.RunStatus, result review.RunResult) error {
	if status == review.RunStatusRunning {
		return fmt.Errorf("status write rejected")
	}
	return s.RunStore.UpdateRunStatus(ctx, runID, status, result)
}

func TestWorkerRecordsTerminalStateWhenRunningMarkFails(t *testing.T) {
	t.Parallel()

	q := queuemem.NewQueue(4)
	runs := &runningMarkFailStore{RunStore: storagemem.NewRunStore()}
	runner := &fakeRunner{results: map[string]review.RunResult{
		"p1": {Success: true, ReviewCount: 10},
	}}

	w := New(q, runs, runner, nil, fixedClock{}, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	enqueueRun(t, q, runs, "r1", "p1")

	require.Eventually(t, func() bool {
		run, err := runs.GetRun(context.Background(), "r1")
		return err == nil && run.Status == review.RunStatusFailed
	}, time.Second, 10*time.Millisecond, "run must not stay queued")

	run, err := runs.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	require.Contains(t, run.Result.ErrorText, "mark run running")
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	q := queuemem.NewQueue(1)
	runs := storagemem.NewRunStore()
	w := New(q, runs, &fakeRunner{}, nil, fixedClock{}, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
