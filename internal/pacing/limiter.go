// Package pacing implements request pacing and retry scheduling for
// retrieval strategies: per-endpoint token buckets, randomized jitter
// delays, exponential backoff, and a per-run circuit breaker.
package pacing

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ecomscope/review-pipeline/internal/metrics"
)

// Config holds pacing configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	JitterMin    time.Duration
	JitterMax    time.Duration
}

// Limiter manages per-endpoint rate limits plus a jitter delay before
// each call, so request timing carries no burst signature.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	jitterMin    time.Duration
	jitterMax    time.Duration
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	jitterMin := cfg.JitterMin
	jitterMax := cfg.JitterMax
	if jitterMax < jitterMin {
		jitterMax = jitterMin
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
		jitterMin:    jitterMin,
		jitterMax:    jitterMax,
	}
}

// Pace blocks for the jitter delay and until a token is available for
// the endpoint's host, respecting the context.
func (l *Limiter) Pace(ctx context.Context, endpoint string) error {
	if err := sleepCtx(ctx, l.jitter()); err != nil {
		return err
	}

	host := "unknown"
	if u, err := url.Parse(endpoint); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePaceDelay(host, waited)
	}
	return nil
}

func (l *Limiter) jitter() time.Duration {
	span := l.jitterMax - l.jitterMin
	if span <= 0 {
		return l.jitterMin
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
	if err != nil {
		return l.jitterMin + span/2
	}
	return l.jitterMin + time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pace wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
