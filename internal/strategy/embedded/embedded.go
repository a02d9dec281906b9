// Package embedded implements review retrieval from the JSON state blob
// the source site inlines into its product pages.
package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ecomscope/review-pipeline/internal/httpfetch"
	"github.com/ecomscope/review-pipeline/internal/pacing"
	"github.com/ecomscope/review-pipeline/internal/review"
	"github.com/ecomscope/review-pipeline/internal/strategy"
)

// Name identifies this strategy in logs, metrics and run results.
const Name = "embedded_state"

// Fetcher issues a single HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header) (httpfetch.Response, error)
}

// Config controls page fetching and state extraction.
type Config struct {
	// Markers are tried in order; empty means the default marker set.
	Markers []string
	Headers http.Header
}

// Strategy fetches the product's canonical page once and mines the
// embedded state for review records.
type Strategy struct {
	cfg     Config
	fetcher Fetcher
	pacer   review.Pacer
	retry   *pacing.RetryPolicy
	probe   *strategy.PageProbe
	logger  *zap.Logger
}

// New builds a Strategy.
func New(cfg Config, fetcher Fetcher, pacer review.Pacer, retry *pacing.RetryPolicy, logger *zap.Logger) *Strategy {
	if len(cfg.Markers) == 0 {
		cfg.Markers = strategy.DefaultStateMarkers
	}
	if retry == nil {
		retry = pacing.NewRetryPolicy(0, 0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{
		cfg:     cfg,
		fetcher: fetcher,
		pacer:   pacer,
		retry:   retry,
		probe:   strategy.NewPageProbe(0),
		logger:  logger,
	}
}

// Name implements review.Strategy.
func (s *Strategy) Name() string { return Name }

// Attempt fetches the product page and extracts reviews from the inline
// state blob. A page that looks like a bot wall is reported exhausted so
// the orchestrator can fall through to a rendering strategy.
func (s *Strategy) Attempt(ctx context.Context, ref review.ProductReference, constraints review.Constraints) (review.StrategyResult, error) {
	if _, err := strategy.ExternalID(ref.ExternalID, ref.SourceURL); err != nil {
		if errors.Is(err, strategy.ErrNoExternalID) {
			return review.StrategyResult{Exhausted: true, Fatal: true}, nil
		}
		return review.StrategyResult{}, fmt.Errorf("resolve external id: %w", err)
	}

	if constraints.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, constraints.Budget)
		defer cancel()
	}

	resp, ok := s.fetchPage(ctx, ref.SourceURL)
	if !ok {
		return review.StrategyResult{Exhausted: true}, nil
	}

	records, err := s.extract(resp.Body)
	if err != nil {
		if s.probe.RenderRequired(resp.StatusCode, resp.Body) {
			s.logger.Info("product page needs rendering",
				zap.String("product_id", ref.ID),
				zap.Int("status", resp.StatusCode))
		} else {
			s.logger.Debug("no embedded reviews in page",
				zap.String("product_id", ref.ID),
				zap.Error(err))
		}
		return review.StrategyResult{Exhausted: true}, nil
	}

	if constraints.MaxRecords > 0 && len(records) > constraints.MaxRecords {
		records = records[:constraints.MaxRecords]
	}
	return review.StrategyResult{Records: records}, nil
}

func (s *Strategy) fetchPage(ctx context.Context, url string) (httpfetch.Response, bool) {
	for attempt := 1; ; attempt++ {
		if s.pacer != nil {
			if err := s.pacer.Pace(ctx, url); err != nil {
				return httpfetch.Response{}, false
			}
		}
		resp, err := s.fetcher.Fetch(ctx, url, s.cfg.Headers)
		if err == nil && resp.StatusCode == http.StatusOK && len(resp.Body) > 0 {
			return resp, true
		}
		if err == nil {
			err = fmt.Errorf("page status %d", resp.StatusCode)
		}
		if !s.retry.ShouldRetry(err, attempt) {
			return resp, false
		}
		if werr := s.retry.Wait(ctx, attempt); werr != nil {
			return httpfetch.Response{}, false
		}
	}
}

// extract pulls the state blob out of the document and walks the known
// container paths for review items.
func (s *Strategy) extract(body []byte) ([]review.RawReview, error) {
	blob, err := strategy.ExtractState(body, s.cfg.Markers)
	if err != nil {
		return nil, err
	}
	var state any
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("decode embedded state: %w", err)
	}
	items := strategy.LocateItems(state)
	if items == nil {
		return nil, fmt.Errorf("no review container in embedded state")
	}
	records := strategy.ParseItems(items)
	if len(records) == 0 {
		return nil, fmt.Errorf("embedded state yielded no usable reviews")
	}
	return records, nil
}

var _ review.Strategy = (*Strategy)(nil)
