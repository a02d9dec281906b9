// Package api implements review retrieval against paginated JSON endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/ecomscope/review-pipeline/internal/httpfetch"
	"github.com/ecomscope/review-pipeline/internal/pacing"
	"github.com/ecomscope/review-pipeline/internal/review"
	"github.com/ecomscope/review-pipeline/internal/strategy"
)

// Name identifies this strategy in logs, metrics and run results.
const Name = "structured_api"

// Fetcher issues a single HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header) (httpfetch.Response, error)
}

// Config controls endpoint selection and pagination.
type Config struct {
	// Endpoints are URL templates with {productId}, {page}, {pageSize}
	// and {sortKey} placeholders, tried in order. The first endpoint
	// that returns a non-empty page is used for the rest of the run.
	Endpoints []string
	PageSize  int
	MaxPages  int
	SortKey   string
	Headers   http.Header
}

// Strategy retrieves reviews from known JSON endpoints one page at a time.
type Strategy struct {
	cfg     Config
	fetcher Fetcher
	pacer   review.Pacer
	retry   *pacing.RetryPolicy
	logger  *zap.Logger
}

// New builds a Strategy. A nil retry policy gets the default policy.
func New(cfg Config, fetcher Fetcher, pacer review.Pacer, retry *pacing.RetryPolicy, logger *zap.Logger) *Strategy {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.SortKey == "" {
		cfg.SortKey = "helpful"
	}
	if retry == nil {
		retry = pacing.NewRetryPolicy(0, 0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{cfg: cfg, fetcher: fetcher, pacer: pacer, retry: retry, logger: logger}
}

// Name implements review.Strategy.
func (s *Strategy) Name() string { return Name }

// Attempt pages through candidate endpoints until one delivers records.
// A 404 abandons the endpoint for the rest of the run; a 403 or empty
// body gets a single immediate retry and is then abandoned too.
func (s *Strategy) Attempt(ctx context.Context, ref review.ProductReference, constraints review.Constraints) (review.StrategyResult, error) {
	externalID, err := strategy.ExternalID(ref.ExternalID, ref.SourceURL)
	if err != nil {
		if errors.Is(err, strategy.ErrNoExternalID) {
			s.logger.Warn("no external id for product",
				zap.String("product_id", ref.ID),
				zap.String("source_url", ref.SourceURL))
			return review.StrategyResult{Exhausted: true, Fatal: true}, nil
		}
		return review.StrategyResult{}, fmt.Errorf("resolve external id: %w", err)
	}

	if constraints.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, constraints.Budget)
		defer cancel()
	}

	for _, template := range s.cfg.Endpoints {
		if err := ctx.Err(); err != nil {
			return review.StrategyResult{Exhausted: true}, nil
		}
		records, err := s.pageThrough(ctx, template, externalID, constraints.MaxRecords)
		if err != nil {
			return review.StrategyResult{}, err
		}
		if len(records) > 0 {
			return review.StrategyResult{Records: records}, nil
		}
	}
	return review.StrategyResult{Exhausted: true}, nil
}

// pageThrough fetches sequential pages from one endpoint template. An
// empty result with a nil error means the endpoint never produced a
// usable first page and the caller should move on.
func (s *Strategy) pageThrough(ctx context.Context, template, externalID string, maxRecords int) ([]review.RawReview, error) {
	var records []review.RawReview
	for page := 1; page <= s.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return records, nil
		}
		endpoint := strategy.ExpandEndpoint(template, externalID, page, s.cfg.PageSize, s.cfg.SortKey)

		pageRecords, ok := s.fetchPage(ctx, endpoint)
		if !ok {
			// First page failing abandons the endpoint; a later page
			// failing just ends pagination with what we have.
			return records, nil
		}
		records = append(records, pageRecords...)

		if maxRecords > 0 && len(records) >= maxRecords {
			return records[:maxRecords], nil
		}
		if len(pageRecords) < s.cfg.PageSize {
			return records, nil
		}
	}
	return records, nil
}

// fetchPage retrieves and parses one page, retrying transient failures
// per the backoff policy. ok=false means the endpoint gave up this page.
func (s *Strategy) fetchPage(ctx context.Context, endpoint string) ([]review.RawReview, bool) {
	retried403 := false
	for attempt := 1; ; attempt++ {
		if s.pacer != nil {
			if err := s.pacer.Pace(ctx, endpoint); err != nil {
				return nil, false
			}
		}
		resp, err := s.fetcher.Fetch(ctx, endpoint, s.cfg.Headers)
		if err != nil {
			if s.retry.ShouldRetry(err, attempt) {
				if werr := s.retry.Wait(ctx, attempt); werr != nil {
					return nil, false
				}
				continue
			}
			s.logger.Debug("endpoint fetch failed", zap.String("endpoint", redact(endpoint)), zap.Error(err))
			return nil, false
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, false
		case resp.StatusCode == http.StatusForbidden || len(resp.Body) == 0:
			if retried403 {
				return nil, false
			}
			retried403 = true
			continue
		case resp.StatusCode >= 500:
			if s.retry.ShouldRetry(fmt.Errorf("server status %d", resp.StatusCode), attempt) {
				if werr := s.retry.Wait(ctx, attempt); werr != nil {
					return nil, false
				}
				continue
			}
			return nil, false
		case resp.StatusCode != http.StatusOK:
			return nil, false
		}

		records, perr := strategy.ParsePayload(resp.Body)
		if perr != nil {
			// Malformed payload counts as a transient failure of this call.
			if s.retry.ShouldRetry(perr, attempt) {
				if werr := s.retry.Wait(ctx, attempt); werr != nil {
					return nil, false
				}
				continue
			}
			s.logger.Debug("unparseable page payload", zap.String("endpoint", redact(endpoint)), zap.Error(perr))
			return nil, false
		}
		return records, true
	}
}

// redact strips query values from an endpoint before logging it.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	u.RawQuery = ""
	return u.String()
}

var _ review.Strategy = (*Strategy)(nil)
