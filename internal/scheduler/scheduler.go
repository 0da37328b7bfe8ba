// Package scheduler triggers recurring matrix runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/cachebuild/internal/logfields"
)

// Scheduler wraps a gocron scheduler. Jobs run in singleton mode: a trigger that
// fires while the previous run of the same job is still going is rescheduled,
// never run concurrently.
type Scheduler struct {
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(opts ...gocron.SchedulerOption) (*Scheduler, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, jobs: make(map[string]gocron.Job)}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler", slog.Int("jobs", len(s.jobs)))
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleCron registers task under name on a five-field cron expression and
// returns the job id.
func (s *Scheduler) ScheduleCron(name, expr string, task func()) (string, error) {
	return s.add(name, gocron.CronJob(expr, false), task)
}

// ScheduleEvery registers task to run every interval.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", errors.New("interval must be positive")
	}
	return s.add(name, gocron.DurationJob(interval), task)
}

func (s *Scheduler) add(name string, def gocron.JobDefinition, task func()) (string, error) {
	job, err := s.scheduler.NewJob(
		def,
		gocron.NewTask(s.wrap(name, task)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create scheduled job %s: %w", name, err)
	}
	s.jobs[job.ID().String()] = job
	return job.ID().String(), nil
}

func (s *Scheduler) wrap(name string, task func()) func() {
	return func() {
		start := time.Now()
		slog.Info("Scheduled job starting", logfields.ScheduleName(name))
		task()
		slog.Info("Scheduled job finished",
			logfields.ScheduleName(name),
			logfields.Elapsed(time.Since(start)))
	}
}

// NextRun returns the next trigger time of the job with id.
func (s *Scheduler) NextRun(id string) (time.Time, error) {
	job, ok := s.jobs[id]
	if !ok {
		if _, err := uuid.Parse(id); err != nil {
			return time.Time{}, fmt.Errorf("invalid job id %q: %w", id, err)
		}
		return time.Time{}, fmt.Errorf("unknown job %s", id)
	}
	return job.NextRun()
}
