// Package refresh schedules cache warming for query specs that declare a
// refresh cron expression.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"dataquery/internal/domain"
	"dataquery/internal/engine"
	"dataquery/internal/registry"
)

// warmTimeout bounds one warming execution.
const warmTimeout = 2 * time.Minute

// Executor is the engine surface the scheduler needs.
type Executor interface {
	Execute(ctx context.Context, queryID string, override *engine.Override) (*domain.QueryResult, error)
	Invalidate(ctx context.Context, queryID string) (int, error)
}

// Scheduler periodically re-executes queries so their cache entries stay warm.
// Warming drops the current entries first; a fresh computation replaces them
// rather than being served from cache.
type Scheduler struct {
	cron   *cron.Cron
	exec   Executor
	logger *slog.Logger
	jobs   int
}

// NewScheduler registers a warming job for every spec in the registry that
// carries a refresh expression. Standard five-field cron syntax plus the
// @every shorthand are accepted; an invalid expression fails construction.
func NewScheduler(reg *registry.Registry, exec Executor, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		exec:   exec,
		logger: logger,
	}
	for _, id := range reg.IDs() {
		spec, err := reg.Get(id)
		if err != nil {
			return nil, err
		}
		if spec.Refresh == "" {
			continue
		}
		queryID := spec.ID
		if _, err := s.cron.AddFunc(spec.Refresh, func() { s.warm(queryID) }); err != nil {
			return nil, domain.ErrValidation("query %q: invalid refresh expression %q: %v", queryID, spec.Refresh, err)
		}
		s.jobs++
	}
	return s, nil
}

// Jobs returns the number of registered warming jobs.
func (s *Scheduler) Jobs() int { return s.jobs }

// Start launches the cron loop. It returns immediately.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for in-flight warming jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) warm(queryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	if _, err := s.exec.Invalidate(ctx, queryID); err != nil {
		s.logWarn("refresh invalidate failed", "query_id", queryID, "error", err)
		return
	}
	result, err := s.exec.Execute(ctx, queryID, nil)
	if err != nil {
		s.logWarn("refresh execute failed", "query_id", queryID, "error", err)
		return
	}
	if s.logger != nil {
		s.logger.Info("cache warmed", "query_id", queryID, "rows", len(result.Frame.Rows), "warnings", len(result.Warnings))
	}
}

func (s *Scheduler) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
