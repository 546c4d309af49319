package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/reconcile"
)

// ErrSyncRunning is returned when a run is requested while one is in flight.
var ErrSyncRunning = errors.New("api: sync already running")

// SyncRunner runs one reconciliation pass against the forum.
type SyncRunner interface {
	Sync(ctx context.Context, dryRun bool) (*reconcile.Report, error)
}

// Service serializes reconciliation runs and remembers the outcome of the
// most recent one for the status endpoint. Watch-mode triggers (the file
// watcher and POST /api/sync) all funnel through RunSync, so at most one
// run touches the forum at a time.
type Service struct {
	runner   SyncRunner
	logger   *slog.Logger
	onReport func(*reconcile.Report)

	mu      sync.Mutex
	running bool
	last    *reconcile.Report
	lastAt  time.Time
	lastErr string
}

// NewService creates a Service. onReport, if non-nil, is called after every
// completed run with the resulting report.
func NewService(runner SyncRunner, logger *slog.Logger, onReport func(*reconcile.Report)) *Service {
	return &Service{runner: runner, logger: logger, onReport: onReport}
}

// RunSync executes one reconciliation pass. A second call while one is in
// flight returns ErrSyncRunning instead of queueing.
func (s *Service) RunSync(ctx context.Context, dryRun bool) (*reconcile.Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSyncRunning
	}
	s.running = true
	s.mu.Unlock()

	report, err := s.runner.Sync(ctx, dryRun)

	s.mu.Lock()
	s.running = false
	s.lastAt = time.Now()
	if report != nil {
		s.last = report
	}
	if err != nil {
		s.lastErr = err.Error()
		s.logger.Error("sync run failed", slog.String("error", err.Error()))
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()

	if report != nil && s.onReport != nil {
		s.onReport(report)
	}
	return report, err
}

// Status is the snapshot served by GET /api/status.
type Status struct {
	Running   bool                     `json:"running"`
	LastRun   string                   `json:"last_run,omitempty"`
	IndexURL  string                   `json:"index_url,omitempty"`
	Actions   map[string]string        `json:"urls_with_actions,omitempty"`
	Records   []reconcile.ActionRecord `json:"records,omitempty"`
	LastError string                   `json:"last_error,omitempty"`
}

// CurrentStatus returns the state of the most recent run.
func (s *Service) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running, LastError: s.lastErr}
	if !s.lastAt.IsZero() {
		st.LastRun = s.lastAt.UTC().Format(time.RFC3339)
	}
	if s.last != nil {
		st.IndexURL = s.last.IndexURL
		st.Actions = s.last.URLsWithActions()
		st.Records = s.last.Records
	}
	return st
}
