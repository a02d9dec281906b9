// Package browser implements review retrieval through a rendered page.
// It is the expensive fallback for pages the plain HTTP strategies
// cannot crack: an isolated tab renders the product page, then reviews
// are read from script state, the DOM, or in-page API calls, in that
// order.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ecomscope/review-pipeline/internal/review"
	"github.com/ecomscope/review-pipeline/internal/strategy"
)

// Name identifies this strategy in logs, metrics and run results.
const Name = "browser_automation"

// Config controls extraction behavior.
type Config struct {
	// Markers are the script globals probed for embedded state; empty
	// means the default marker set.
	Markers []string
	// Endpoints are the same paginated API templates the structured
	// strategy uses, called here through the page's fetch so they
	// inherit session cookies.
	Endpoints []string
	PageSize  int
	MaxPages  int
	SortKey   string
	// Selectors are CSS patterns for review containers in the DOM.
	Selectors []string
}

// DefaultSelectors match the review containers seen across the source
// site's page generations.
var DefaultSelectors = []string{
	"div.comment-text",
	"div.rnr-com-tx",
	"[class*='review-comment']",
	"[class*='comment-container']",
}

// Strategy drives a headless browser session per attempt.
type Strategy struct {
	cfg      Config
	sessions SessionFactory
	pacer    review.Pacer
	logger   *zap.Logger
}

// New builds a Strategy.
func New(cfg Config, sessions SessionFactory, pacer review.Pacer, logger *zap.Logger) *Strategy {
	if len(cfg.Markers) == 0 {
		cfg.Markers = strategy.DefaultStateMarkers
	}
	if len(cfg.Selectors) == 0 {
		cfg.Selectors = DefaultSelectors
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.SortKey == "" {
		cfg.SortKey = "helpful"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{cfg: cfg, sessions: sessions, pacer: pacer, logger: logger}
}

// Name implements review.Strategy.
func (s *Strategy) Name() string { return Name }

// Attempt renders the product page and tries script state, DOM scan and
// in-page API calls in turn.
func (s *Strategy) Attempt(ctx context.Context, ref review.ProductReference, constraints review.Constraints) (review.StrategyResult, error) {
	externalID, err := strategy.ExternalID(ref.ExternalID, ref.SourceURL)
	if err != nil {
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

	if s.pacer != nil {
		if err := s.pacer.Pace(ctx, ref.SourceURL); err != nil {
			return review.StrategyResult{Exhausted: true}, nil
		}
	}

	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		s.logger.Warn("browser session unavailable", zap.Error(err))
		return review.StrategyResult{Exhausted: true}, nil
	}
	defer session.Close()

	if err := session.Navigate(ctx, ref.SourceURL); err != nil {
		s.logger.Debug("browser navigation failed",
			zap.String("product_id", ref.ID), zap.Error(err))
		return review.StrategyResult{Exhausted: true}, nil
	}

	if records := s.fromScriptState(ctx, session); len(records) > 0 {
		return capResult(records, constraints.MaxRecords), nil
	}
	if records := s.fromDOM(ctx, session); len(records) > 0 {
		return capResult(records, constraints.MaxRecords), nil
	}
	if records := s.fromInPageAPI(ctx, session, externalID, constraints.MaxRecords); len(records) > 0 {
		return capResult(records, constraints.MaxRecords), nil
	}
	return review.StrategyResult{Exhausted: true}, nil
}

// fromScriptState reads the embedded state globals from the rendered
// page's script environment.
func (s *Strategy) fromScriptState(ctx context.Context, session Session) []review.RawReview {
	for _, marker := range s.cfg.Markers {
		global := strings.TrimPrefix(marker, "window.")
		expr := fmt.Sprintf("JSON.stringify(window[%q] ?? null)", global)
		raw, err := session.Evaluate(ctx, expr)
		if err != nil {
			continue
		}
		blob := unquote(raw)
		if len(blob) == 0 || bytes.Equal(blob, []byte("null")) {
			continue
		}
		records, err := strategy.ParsePayload(blob)
		if err == nil && len(records) > 0 {
			return records
		}
	}
	return nil
}

// fromDOM scans rendered nodes matching known review-container patterns.
// Only text is reliably recoverable this way; the author comes from
// sibling nodes when present and the rating is clamped onto the 1..5
// scale like every parsed payload.
func (s *Strategy) fromDOM(ctx context.Context, session Session) []review.RawReview {
	html, err := session.HTML(ctx)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var records []review.RawReview
	for _, selector := range s.cfg.Selectors {
		doc.Find(selector).Each(func(_ int, node *goquery.Selection) {
			text := strings.TrimSpace(node.Text())
			if text == "" {
				return
			}
			rec := review.RawReview{Text: text, Rating: strategy.ClampRating(0)}
			if author := strings.TrimSpace(node.Parent().Find("[class*='user'], [class*='author']").First().Text()); author != "" {
				rec.Author = author
			}
			records = append(records, rec)
		})
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

// fromInPageAPI repeats the structured strategy's pagination, but
// executed by the page itself so the request carries its cookies.
func (s *Strategy) fromInPageAPI(ctx context.Context, session Session, externalID string, maxRecords int) []review.RawReview {
	for _, template := range s.cfg.Endpoints {
		var records []review.RawReview
		for page := 1; page <= s.cfg.MaxPages; page++ {
			if ctx.Err() != nil {
				return records
			}
			endpoint := strategy.ExpandEndpoint(template, externalID, page, s.cfg.PageSize, s.cfg.SortKey)
			expr := fmt.Sprintf("fetch(%q).then(r => r.text())", endpoint)
			raw, err := session.Evaluate(ctx, expr)
			if err != nil {
				break
			}
			pageRecords, perr := strategy.ParsePayload(unquote(raw))
			if perr != nil {
				break
			}
			records = append(records, pageRecords...)
			if maxRecords > 0 && len(records) >= maxRecords {
				return records
			}
			if len(pageRecords) < s.cfg.PageSize {
				break
			}
		}
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

// unquote unwraps a JSON string literal returned by Evaluate into the
// text it contains. Non-string values pass through unchanged.
func unquote(raw []byte) []byte {
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return raw
	}
	return []byte(text)
}

func capResult(records []review.RawReview, maxRecords int) review.StrategyResult {
	if maxRecords > 0 && len(records) > maxRecords {
		records = records[:maxRecords]
	}
	return review.StrategyResult{Records: records}
}

var _ review.Strategy = (*Strategy)(nil)
