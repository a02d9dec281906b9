// Package execproc implements review retrieval through an external
// network client subprocess. It exists for environments where in-process
// HTTP is structurally blocked, such as broken name resolution inside a
// container, and mirrors the structured strategy's request shape.
package execproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"

	"go.uber.org/zap"

	"github.com/ecomscope/review-pipeline/internal/pacing"
	"github.com/ecomscope/review-pipeline/internal/review"
	"github.com/ecomscope/review-pipeline/internal/strategy"
)

// Name identifies this strategy in logs, metrics and run results.
const Name = "external_process"

// Runner executes the external client and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Config controls the subprocess invocation and pagination.
type Config struct {
	// Binary is the client executable, typically curl.
	Binary    string
	Endpoints []string
	PageSize  int
	MaxPages  int
	SortKey   string
	Headers   http.Header
}

// Strategy shells out one subprocess per page.
type Strategy struct {
	cfg    Config
	runner Runner
	pacer  review.Pacer
	retry  *pacing.RetryPolicy
	logger *zap.Logger
}

// New builds a Strategy. A nil runner gets the real subprocess runner.
func New(cfg Config, runner Runner, pacer review.Pacer, retry *pacing.RetryPolicy, logger *zap.Logger) *Strategy {
	if cfg.Binary == "" {
		cfg.Binary = "curl"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.SortKey == "" {
		cfg.SortKey = "helpful"
	}
	if runner == nil {
		runner = execRunner{}
	}
	if retry == nil {
		retry = pacing.NewRetryPolicy(0, 0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{cfg: cfg, runner: runner, pacer: pacer, retry: retry, logger: logger}
}

// Name implements review.Strategy.
func (s *Strategy) Name() string { return Name }

// Attempt pages through candidate endpoints using the external client.
// A missing client binary exhausts the strategy rather than failing the
// product, since later runs may execute on a host that has it.
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

	for _, template := range s.cfg.Endpoints {
		if ctx.Err() != nil {
			return review.StrategyResult{Exhausted: true}, nil
		}
		records, err := s.pageThrough(ctx, template, externalID, constraints.MaxRecords)
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				s.logger.Warn("external client not installed", zap.String("binary", s.cfg.Binary))
				return review.StrategyResult{Exhausted: true}, nil
			}
			return review.StrategyResult{}, err
		}
		if len(records) > 0 {
			return review.StrategyResult{Records: records}, nil
		}
	}
	return review.StrategyResult{Exhausted: true}, nil
}

func (s *Strategy) pageThrough(ctx context.Context, template, externalID string, maxRecords int) ([]review.RawReview, error) {
	var records []review.RawReview
	for page := 1; page <= s.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			return records, nil
		}
		endpoint := strategy.ExpandEndpoint(template, externalID, page, s.cfg.PageSize, s.cfg.SortKey)

		pageRecords, err := s.fetchPage(ctx, endpoint)
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return nil, err
			}
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

func (s *Strategy) fetchPage(ctx context.Context, endpoint string) ([]review.RawReview, error) {
	for attempt := 1; ; attempt++ {
		if s.pacer != nil {
			if err := s.pacer.Pace(ctx, endpoint); err != nil {
				return nil, err
			}
		}
		stdout, err := s.runner.Run(ctx, s.cfg.Binary, s.args(endpoint)...)
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return nil, err
			}
			if s.retry.ShouldRetry(err, attempt) {
				if werr := s.retry.Wait(ctx, attempt); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, fmt.Errorf("external client: %w", err)
		}
		records, perr := strategy.ParsePayload(bytes.TrimSpace(stdout))
		if perr != nil {
			if s.retry.ShouldRetry(perr, attempt) {
				if werr := s.retry.Wait(ctx, attempt); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, fmt.Errorf("parse client output: %w", perr)
		}
		return records, nil
	}
}

// args builds the client invocation: silent, fail on HTTP errors, with
// any configured request headers.
func (s *Strategy) args(endpoint string) []string {
	args := []string{"-sS", "--fail", "--max-time", "30"}
	for key, values := range s.cfg.Headers {
		for _, v := range values {
			args = append(args, "-H", fmt.Sprintf("%s: %s", key, v))
		}
	}
	return append(args, endpoint)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

var _ review.Strategy = (*Strategy)(nil)
