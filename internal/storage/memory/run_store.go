// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ecomscope/review-pipeline/internal/review"
)

// RunStore keeps acquisition run metadata in memory.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]review.Run
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]review.Run)}
}

// CreateRun stores a new run in queued status.
func (s *RunStore) CreateRun(_ context.Context, run review.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRunStatus transitions a run and stamps started/finished times.
func (s *RunStore) UpdateRunStatus(_ context.Context, runID string, status review.RunStatus, result review.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, review.ErrNotFound)
	}
	run.Status = status
	run.Result = result
	now := time.Now().UTC()
	if status == review.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if isTerminal(status) && run.Finished == nil {
		run.Finished = pointerTime(now)
	}
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (review.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return review.Run{}, fmt.Errorf("run %s: %w", runID, review.ErrNotFound)
	}
	return run, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status review.RunStatus) bool {
	switch status {
	case review.RunStatusSucceeded, review.RunStatusFailed, review.RunStatusCanceled:
		return true
	default:
		return false
	}
}

var _ review.RunStore = (*RunStore)(nil)
