// Package worker implements the acquisition run execution loop.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ecomscope/review-pipeline/internal/metrics"
	"github.com/ecomscope/review-pipeline/internal/review"
)

// Runner executes one acquisition run for a product.
type Runner interface {
	Run(ctx context.Context, productID string) (review.RunResult, error)
}

// Config controls Worker behavior.
type Config struct {
	// Topic receives completion events; empty disables publishing.
	Topic string
}

// Worker consumes queue items and drives the acquisition pipeline.
type Worker struct {
	queue     review.Queue
	runs      review.RunStore
	runner    Runner
	publisher review.Publisher
	clock     review.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue review.Queue,
	runs review.RunStore,
	runner Runner,
	publisher review.Publisher,
	clock review.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		runs:      runs,
		runner:    runner,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued run", zap.String("run_id", item.RunID))
		w.processRun(ctx, item)
	}
}

func (w *Worker) processRun(ctx context.Context, item review.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if err := w.runs.UpdateRunStatus(ctx, item.RunID, review.RunStatusRunning, review.RunResult{}); err != nil {
		w.logger.Error("mark run running failed",
			zap.String("run_id", item.RunID), zap.Error(err))
		// The run must still reach a terminal state or it reads as
		// queued forever.
		result := review.RunResult{Success: false, ErrorText: "mark run running: " + err.Error()}
		finishCtx := context.WithoutCancel(ctx)
		if uerr := w.runs.UpdateRunStatus(finishCtx, item.RunID, review.RunStatusFailed, result); uerr != nil {
			w.logger.Error("final run status update failed",
				zap.String("run_id", item.RunID), zap.Error(uerr))
		}
		return
	}

	result, err := w.runner.Run(ctx, item.ProductID)
	status := review.RunStatusSucceeded
	switch {
	case err != nil:
		status = review.RunStatusFailed
		result = review.RunResult{Success: false, ErrorText: err.Error()}
		w.logger.Error("run errored",
			zap.String("run_id", item.RunID),
			zap.String("product_id", item.ProductID),
			zap.Error(err))
	case ctx.Err() != nil:
		status = review.RunStatusCanceled
	case !result.Success:
		status = review.RunStatusFailed
	}

	// Status updates survive shutdown so a terminal state is never lost.
	finishCtx := context.WithoutCancel(ctx)
	if err := w.runs.UpdateRunStatus(finishCtx, item.RunID, status, result); err != nil {
		w.logger.Error("final run status update failed",
			zap.String("run_id", item.RunID), zap.Error(err))
	}
	w.publishCompletion(finishCtx, item, result)
}

func (w *Worker) publishCompletion(ctx context.Context, item review.QueueItem, result review.RunResult) {
	if w.publisher == nil || w.cfg.Topic == "" {
		return
	}
	event := review.CompletionEvent{
		RunID:        item.RunID,
		ProductID:    item.ProductID,
		Success:      result.Success,
		ReviewCount:  result.ReviewCount,
		StrategyUsed: result.StrategyUsed,
		Timestamp:    w.now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		w.logger.Warn("completion event publish failed",
			zap.String("run_id", item.RunID), zap.Error(err))
	}
}

func (w *Worker) now() time.Time {
	if w.clock != nil {
		return w.clock.Now()
	}
	return time.Now().UTC()
}
