// Package schedule repeats a pass on a cron expression in UTC.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

const slowJobThreshold = 30 * time.Minute

var (
	ErrEmptyJobName = errors.New("empty job name")
	ErrEmptyCron    = errors.New("empty cron expression")
	ErrNilJob       = errors.New("nil job function")
)

// Job is one scheduled pass.
type Job func(ctx context.Context) error

// Scheduler wraps a gocron scheduler whose jobs run in singleton mode:
// a tick that fires while the previous run is still going is dropped.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zerolog.Logger
}

func New(logger *zerolog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logAdapter{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Add registers job under name. ctx is handed to every run of the job.
func (s *Scheduler) Add(ctx context.Context, name, cronExpr string, job Job) (time.Time, error) {
	if name == "" {
		return time.Time{}, ErrEmptyJobName
	}

	if cronExpr == "" {
		return time.Time{}, ErrEmptyCron
	}

	if job == nil {
		return time.Time{}, ErrNilJob
	}

	scheduled, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() { s.run(ctx, name, job) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	next, err := scheduled.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("next run of %s: %w", name, err)
	}

	s.logger.Info().Str("job", name).Str("cron", cronExpr).Time("next_run", next).Msg("Job scheduled")

	return next, nil
}

// Start begins ticking; it does not block.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop waits for running jobs to finish and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}

	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()

	err := job(ctx)

	duration := time.Since(start)
	logger := s.logger.With().Str("job", name).Dur("duration", duration).Logger()

	switch {
	case err != nil:
		logger.Error().Err(err).Msg("Scheduled job failed")
	case duration > slowJobThreshold:
		logger.Warn().Msg("Slow scheduled job")
	default:
		logger.Info().Msg("Scheduled job finished")
	}
}

type logAdapter struct {
	logger *zerolog.Logger
}

func (l logAdapter) Debug(msg string, args ...any) {
	l.logger.Debug().Fields(args).Msg(msg)
}

func (l logAdapter) Info(msg string, args ...any) {
	l.logger.Info().Fields(args).Msg(msg)
}

func (l logAdapter) Warn(msg string, args ...any) {
	l.logger.Warn().Fields(args).Msg(msg)
}

func (l logAdapter) Error(msg string, args ...any) {
	l.logger.Error().Fields(args).Msg(msg)
}
