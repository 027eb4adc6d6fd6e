// Package scheduler runs the periodic scrape-and-maintain job.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner with a single registered job.
type Scheduler struct {
	cron *cron.Cron
	spec string
}

// New registers job on the given cron spec. Specs use the standard five
// field syntax plus descriptors like "@every 6h".
func New(spec string, job func()) (*Scheduler, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return &Scheduler{cron: c, spec: spec}, nil
}

// Start begins running the job on schedule. It returns immediately.
func (s *Scheduler) Start() {
	slog.Info("scheduler started", "spec", s.spec)
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}
