// Package scheduling runs periodic and one-shot background jobs on a shared worker pool.
package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// JobName represents the name of a background job.
type JobName string

// Scheduler represents a background job scheduler.
type Scheduler struct {
	mu        sync.Mutex
	jobs      map[JobName]uuid.UUID
	scheduler gocron.Scheduler
}

// JobFunc represents the type of function that executes a scheduled job.
type JobFunc func(context.Context) error

// ErrInvalidCronTab is returned when an invalid crontab expression is provided.
var ErrInvalidCronTab = errors.New("invalid crontab expression")

// NewScheduler creates a new Scheduler.
func NewScheduler() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		jobs:      map[JobName]uuid.UUID{},
		scheduler: scheduler,
	}, nil
}

// RegisterJob registers a periodic job in the Scheduler.
//
// If the job does not exist, it is created. If it already exists, it is updated.
func (s *Scheduler) RegisterJob(name JobName, crontab string, jobFunc JobFunc) error {
	cron := gocron.NewDefaultCron(false)

	// Validate the schedule expression.
	err := cron.IsValid(crontab, time.UTC, time.Now())
	if err != nil {
		return ErrInvalidCronTab
	}

	definition := gocron.CronJob(crontab, false)
	task := gocron.NewTask(wrapJob(name, jobFunc))
	options := []gocron.JobOption{
		gocron.WithName(string(name)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace the schedule of a known job.
	id, ok := s.jobs[name]
	if ok {
		_, err := s.scheduler.Update(id, definition, task, options...)

		return err
	}

	job, err := s.scheduler.NewJob(definition, task, options...)
	if err != nil {
		return err
	}

	s.jobs[name] = job.ID()

	return nil
}

// Submit queues a one-shot job that runs as soon as the scheduler is started.
// The caller keeps no handle on the job.
func (s *Scheduler) Submit(name string, fn func(context.Context)) error {
	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()),
		gocron.NewTask(func(ctx context.Context) {
			slog.DebugContext(ctx, "Executing background task", slog.String("task", name))

			fn(ctx)
		}),
		gocron.WithName(name),
	)

	return err
}

// Start starts the scheduler and its registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown shuts down the scheduler and its registered jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func wrapJob(name JobName, jobFunc JobFunc) func(context.Context) {
	return func(ctx context.Context) {
		// Skip runs scheduled right before shutdown.
		if ctx.Err() != nil {
			return
		}

		start := time.Now()

		slog.DebugContext(ctx, "Executing periodic job", slog.String("job", string(name)))

		err := jobFunc(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Error running periodic job", slog.String("job", string(name)), slog.Duration("duration", time.Since(start)), slog.Any("error", err))
		}
	}
}
