package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecomscope/review-pipeline/internal/aggregate"
	"github.com/ecomscope/review-pipeline/internal/config"
	"github.com/ecomscope/review-pipeline/internal/dispatcher"
	"github.com/ecomscope/review-pipeline/internal/metrics"
	"github.com/ecomscope/review-pipeline/internal/middleware"
	"github.com/ecomscope/review-pipeline/internal/review"
	"github.com/ecomscope/review-pipeline/internal/worker"
)

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	runs       review.RunStore
	reviews    review.ReviewStore
	products   review.ProductStore
	dispatcher *dispatcher.Dispatcher
	runner     worker.Runner
	idGen      review.IDGenerator
	clock      review.Clock
	cfg        config.Config
	logger     *zap.Logger

	enqueueTimeout time.Duration
}

// NewServer constructs a Server with middleware and routes. The runner is
// used only for synchronous acquisition requests (?wait=true); async
// requests go through the dispatcher queue.
func NewServer(
	runs review.RunStore,
	reviews review.ReviewStore,
	products review.ProductStore,
	dispatch *dispatcher.Dispatcher,
	runner worker.Runner,
	idGen review.IDGenerator,
	clock review.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		runs:       runs,
		reviews:    reviews,
		products:   products,
		dispatcher: dispatch,
		runner:     runner,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,

		enqueueTimeout: 5 * time.Second,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(middleware.Metrics)
	r.Use(timeoutMiddleware(requestTimeout(cfg)))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/products/{product_id}", func(r chi.Router) {
			r.Post("/acquire", s.acquireProduct)
			r.Get("/report", s.getReport)
			r.Get("/reviews", s.listReviews)
		})
		r.Get("/runs/{run_id}", s.getRun)
	})

	s.router = r
	return s
}

// requestTimeout covers the slowest legitimate request, a synchronous
// acquisition that uses its full run budget.
func requestTimeout(cfg config.Config) time.Duration {
	timeout := 60 * time.Second
	if budget := cfg.RunBudget(); budget+30*time.Second > timeout {
		timeout = budget + 30*time.Second
	}
	return timeout
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) acquireProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if _, err := s.products.GetProduct(r.Context(), productID); err != nil {
		if errors.Is(err, review.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "product lookup failed")
		return
	}

	runID, err := s.createRun(r.Context(), productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		s.runSynchronously(r.Context(), w, runID, productID)
		return
	}

	item := review.QueueItem{
		RunID:     runID,
		ProductID: productID,
		Attempt:   1,
		Submitted: s.clock.Now().Unix(),
	}
	queueCtx, cancel := context.WithTimeout(r.Context(), s.enqueueTimeout)
	defer cancel()
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		result := review.RunResult{ErrorText: "enqueue failed: " + err.Error()}
		if updateErr := s.runs.UpdateRunStatus(r.Context(), runID, review.RunStatusFailed, result); updateErr != nil {
			s.logger.Warn("mark run failed after enqueue error", zap.String("run_id", runID), zap.Error(updateErr))
		}
		writeError(w, http.StatusServiceUnavailable, "acquisition queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) runSynchronously(ctx context.Context, w http.ResponseWriter, runID, productID string) {
	if err := s.runs.UpdateRunStatus(ctx, runID, review.RunStatusRunning, review.RunResult{}); err != nil {
		result := review.RunResult{ErrorText: "mark run running: " + err.Error()}
		if uerr := s.runs.UpdateRunStatus(context.WithoutCancel(ctx), runID, review.RunStatusFailed, result); uerr != nil {
			s.logger.Warn("mark run failed after running error", zap.String("run_id", runID), zap.Error(uerr))
		}
		writeError(w, http.StatusInternalServerError, "mark run running: "+err.Error())
		return
	}
	result, err := s.runner.Run(ctx, productID)
	status := review.RunStatusSucceeded
	switch {
	case err != nil:
		status = review.RunStatusFailed
		result = review.RunResult{ErrorText: err.Error()}
	case !result.Success:
		status = review.RunStatusFailed
	}
	// The run record must reach a terminal state even if the client went away.
	finishCtx := context.WithoutCancel(ctx)
	if err := s.runs.UpdateRunStatus(finishCtx, runID, status, result); err != nil {
		s.logger.Warn("record run result", zap.String("run_id", runID), zap.Error(err))
	}
	run, err := s.runs.GetRun(finishCtx, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetch run: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if _, err := s.products.GetProduct(r.Context(), productID); err != nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	reviews, err := s.reviews.ListReviews(r.Context(), productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch reviews")
		return
	}
	writeJSON(w, http.StatusOK, aggregate.Report(productID, reviews))
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if _, err := s.products.GetProduct(r.Context(), productID); err != nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	reviews, err := s.reviews.ListReviews(r.Context(), productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch reviews")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"count":      len(reviews),
		"reviews":    reviews,
	})
}

func (s *Server) createRun(ctx context.Context, productID string) (string, error) {
	runID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	run := review.Run{
		ID:        runID,
		ProductID: productID,
		Status:    review.RunStatusQueued,
		Submitted: s.clock.Now(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return runID, nil
}
