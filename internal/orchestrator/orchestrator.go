// Package orchestrator sequences retrieval strategies for one product,
// merges and deduplicates their output, and persists the analyzed set.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ecomscope/review-pipeline/internal/dedup"
	"github.com/ecomscope/review-pipeline/internal/metrics"
	"github.com/ecomscope/review-pipeline/internal/pacing"
	"github.com/ecomscope/review-pipeline/internal/review"
)

// Config bounds a single acquisition run.
type Config struct {
	// TargetRecords stops the strategy loop early once the dedup'd
	// accumulator reaches it. Zero means no target; every strategy may
	// still contribute.
	TargetRecords int
	// RunBudget is the wall-clock cap for one run. Zero disables it.
	RunBudget time.Duration
	// BreakerThreshold halts a run's strategy loop after this many
	// consecutive failed attempts. Zero never trips.
	BreakerThreshold int
}

// Orchestrator owns the full pipeline for acquisition runs. Runs for
// the same product are single-flight: a concurrent second request
// shares the in-flight run's result instead of racing it.
type Orchestrator struct {
	cfg        Config
	strategies []review.Strategy
	analyzer   review.Analyzer
	products   review.ProductStore
	store      review.ReviewStore
	hasher     review.Hasher
	archive    review.BlobStore
	clock      review.Clock
	logger     *zap.Logger

	group singleflight.Group
}

// New builds an Orchestrator. The archive store is optional; everything
// else must be non-nil.
func New(
	cfg Config,
	strategies []review.Strategy,
	analyzer review.Analyzer,
	products review.ProductStore,
	store review.ReviewStore,
	hasher review.Hasher,
	archive review.BlobStore,
	clock review.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		strategies: strategies,
		analyzer:   analyzer,
		products:   products,
		store:      store,
		hasher:     hasher,
		archive:    archive,
		clock:      clock,
		logger:     logger,
	}
}

// accumulated pairs a raw record with its dedup hash so analysis does
// not recompute it.
type accumulated struct {
	raw  review.RawReview
	hash string
}

// Run executes one acquisition run for a product. A run that acquires
// zero records is a failed run, reported in the result, never padded
// with substitute content. The error return is reserved for unexpected
// conditions such as a broken store.
func (o *Orchestrator) Run(ctx context.Context, productID string) (review.RunResult, error) {
	v, err, _ := o.group.Do(productID, func() (any, error) {
		return o.run(ctx, productID)
	})
	if err != nil {
		return review.RunResult{}, err
	}
	return v.(review.RunResult), nil
}

func (o *Orchestrator) run(ctx context.Context, productID string) (review.RunResult, error) {
	ref, err := o.products.GetProduct(ctx, productID)
	if err != nil {
		return review.RunResult{}, fmt.Errorf("resolve product %s: %w", productID, err)
	}

	parent := ctx
	if o.cfg.RunBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunBudget)
		defer cancel()
	}

	acc, strategyUsed := o.acquire(ctx, ref)

	// A caller-canceled run never persists. Budget expiry is different:
	// the run proceeds to the decision with what it has accumulated.
	if parent.Err() != nil {
		metrics.ObserveRun("canceled")
		return review.RunResult{Success: false, ErrorText: "run canceled"}, nil
	}

	if len(acc) == 0 {
		metrics.ObserveRun("failed")
		o.logger.Info("acquisition failed, prior data untouched",
			zap.String("product_id", productID))
		return review.RunResult{Success: false, ErrorText: "all strategies exhausted"}, nil
	}

	analyzed := o.analyzeAll(acc)

	// Persistence must not be skipped by run-budget expiry; the budget
	// only bounds acquisition.
	persistCtx := context.WithoutCancel(ctx)
	if err := o.store.ReplaceReviews(persistCtx, productID, analyzed); err != nil {
		metrics.ObserveRun("failed")
		return review.RunResult{}, fmt.Errorf("persist review set for %s: %w", productID, err)
	}
	o.archiveRaw(persistCtx, productID, acc)

	metrics.ObserveRun("succeeded")
	o.logger.Info("acquisition succeeded",
		zap.String("product_id", productID),
		zap.String("strategy", strategyUsed),
		zap.Int("review_count", len(analyzed)))

	return review.RunResult{
		Success:      true,
		ReviewCount:  len(analyzed),
		StrategyUsed: strategyUsed,
	}, nil
}

// acquire walks the strategy priority order, deduplicating after every
// attempt so later strategies see the deduplicated count. It returns
// the accumulator and the first strategy that contributed records.
func (o *Orchestrator) acquire(ctx context.Context, ref review.ProductReference) ([]accumulated, string) {
	deduper := dedup.New(o.hasher)
	breaker := pacing.NewBreaker(o.cfg.BreakerThreshold)

	var (
		acc          []accumulated
		strategyUsed string
	)
	for _, strat := range o.strategies {
		if ctx.Err() != nil {
			o.logger.Info("run canceled between strategies",
				zap.String("product_id", ref.ID))
			break
		}
		if o.cfg.TargetRecords > 0 && len(acc) >= o.cfg.TargetRecords {
			break
		}
		if !breaker.Allow() {
			o.logger.Warn("circuit breaker open, skipping remaining strategies",
				zap.String("product_id", ref.ID))
			break
		}
		name := strat.Name()

		constraints := review.Constraints{MaxRecords: o.remaining(len(acc))}
		result, err := strat.Attempt(ctx, ref, constraints)
		if err != nil {
			breaker.RecordFailure()
			metrics.ObserveStrategyAttempt(name, "error", 0)
			o.logger.Warn("strategy attempt errored",
				zap.String("product_id", ref.ID),
				zap.String("strategy", name),
				zap.Error(err))
			continue
		}

		fresh := o.merge(deduper, &acc, result.Records)
		switch {
		case fresh > 0:
			breaker.RecordSuccess()
			metrics.ObserveStrategyAttempt(name, "ok", fresh)
			if strategyUsed == "" {
				strategyUsed = name
			}
		case result.Fatal:
			breaker.RecordFailure()
			metrics.ObserveStrategyAttempt(name, "fatal", 0)
			o.logger.Warn("strategy reported fatal",
				zap.String("product_id", ref.ID),
				zap.String("strategy", name))
		default:
			breaker.RecordFailure()
			metrics.ObserveStrategyAttempt(name, "exhausted", 0)
		}
	}
	return acc, strategyUsed
}

// merge admits records through the deduplicator and reports how many
// were fresh.
func (o *Orchestrator) merge(deduper *dedup.Deduplicator, acc *[]accumulated, records []review.RawReview) int {
	fresh := 0
	dropped := 0
	for _, rec := range records {
		key, isFresh, err := deduper.Admit(rec.Text)
		if err != nil {
			continue
		}
		if !isFresh {
			dropped++
			continue
		}
		*acc = append(*acc, accumulated{raw: rec, hash: key})
		fresh++
	}
	if dropped > 0 {
		metrics.ObserveDuplicatesDropped(dropped)
	}
	return fresh
}

func (o *Orchestrator) analyzeAll(acc []accumulated) []review.AnalyzedReview {
	analyzed := make([]review.AnalyzedReview, 0, len(acc))
	for _, entry := range acc {
		a := o.analyzer.Analyze(entry.raw.Text)
		analyzed = append(analyzed, review.AnalyzedReview{
			RawReview:       entry.raw,
			SentimentScore:  a.SentimentScore,
			SentimentLabel:  a.SentimentLabel,
			Confidence:      a.Confidence,
			KeyPhrases:      a.KeyPhrases,
			PurchaseReasons: a.PurchaseReasons,
			Pros:            a.Pros,
			Cons:            a.Cons,
			BehaviorType:    a.BehaviorType,
			ContentHash:     entry.hash,
		})
	}
	return analyzed
}

// archiveRaw stores the raw record set for audit. Archive failures are
// logged, not fatal; the persisted set is already committed.
func (o *Orchestrator) archiveRaw(ctx context.Context, productID string, acc []accumulated) {
	if o.archive == nil {
		return
	}
	raw := make([]review.RawReview, len(acc))
	for i, entry := range acc {
		raw[i] = entry.raw
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return
	}
	path := fmt.Sprintf("runs/%s/%d.json", productID, o.clock.Now().UnixNano())
	uri, err := o.archive.PutObject(ctx, path, "application/json", data)
	if err != nil {
		o.logger.Warn("raw archive write failed",
			zap.String("product_id", productID), zap.Error(err))
		return
	}
	o.logger.Debug("raw records archived", zap.String("uri", uri))
}

func (o *Orchestrator) remaining(have int) int {
	if o.cfg.TargetRecords <= 0 {
		return 0
	}
	remaining := o.cfg.TargetRecords - have
	if remaining < 0 {
		return 0
	}
	return remaining
}
