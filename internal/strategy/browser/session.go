package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Session is one isolated browser tab. It keeps cookies and script
// state between calls so in-page fetches inherit the page's session.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expr string) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	Close()
}

// SessionFactory opens browser sessions.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// RendererConfig controls the headless browser pool.
type RendererConfig struct {
	MaxParallel       int
	UserAgent         string
	Headers           http.Header
	NavigationTimeout time.Duration
}

// Renderer implements SessionFactory on top of chromedp and a shared
// exec allocator.
type Renderer struct {
	cfg         RendererConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewRenderer starts a shared Chrome allocator.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (r *Renderer) Close() {
	r.allocCancel()
}

// NewSession opens a fresh tab, waiting for a pool slot if configured.
func (r *Renderer) NewSession(ctx context.Context) (Session, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	return &chromedpSession{
		renderer: r,
		ctx:      taskCtx,
		cancel:   taskCancel,
	}, nil
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

type chromedpSession struct {
	renderer *Renderer
	ctx      context.Context
	cancel   context.CancelFunc
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.boundContext(ctx)
	defer cancel()

	actions := []chromedp.Action{
		s.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("browser navigate: %w", err)
	}
	return nil
}

// Evaluate runs a script in the page and returns its JSON-encoded value.
func (s *chromedpSession) Evaluate(ctx context.Context, expr string) ([]byte, error) {
	runCtx, cancel := s.boundContext(ctx)
	defer cancel()

	var raw []byte
	err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &raw,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return nil, fmt.Errorf("browser evaluate: %w", err)
	}
	return raw, nil
}

func (s *chromedpSession) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.boundContext(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser outer html: %w", err)
	}
	return html, nil
}

func (s *chromedpSession) Close() {
	s.cancel()
	s.renderer.release()
}

// boundContext ties a chromedp run to both the tab lifetime and the
// caller's deadline.
func (s *chromedpSession) boundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.renderer.cfg.NavigationTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromedpSession) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.renderer.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.renderer.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(s.renderer.cfg.Headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(s.renderer.cfg.Headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
