package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AntonStoeckl/library-loans/app/shared/shell"
)

const (
	defaultJobTimeout = 5 * time.Minute
)

var ErrNilJobTarget = errors.New("job target must not be nil")

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for job results and for the cron runtime.
func WithLogger(logger shell.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithJobTimeout bounds a single job run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		s.jobTimeout = timeout
	}
}

// WithLocation sets the time zone the cron specs are evaluated in. The default is the local zone.
func WithLocation(location *time.Location) Option {
	return func(s *Scheduler) {
		s.location = location
	}
}

// Scheduler runs the maintenance jobs. A job that is still running when it is due again is skipped.
type Scheduler struct {
	cron       *cron.Cron
	logger     shell.Logger
	jobTimeout time.Duration
	location   *time.Location
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobTimeout: defaultJobTimeout,
		location:   time.Local,
	}

	for _, opt := range opts {
		opt(s)
	}

	cronLogger := cronLogAdapter{logger: s.logger}

	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return s
}

// AddOverdueReport schedules RunOverdueReport.
func (s *Scheduler) AddOverdueReport(spec string, lister OverdueLister) (cron.EntryID, error) {
	if lister == nil {
		return 0, ErrNilJobTarget
	}

	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		_, _ = RunOverdueReport(ctx, lister, s.logger) // logged inside
	})
}

// AddCachePurge schedules RunCachePurge.
func (s *Scheduler) AddCachePurge(spec string, purger Purger) (cron.EntryID, error) {
	if purger == nil {
		return 0, ErrNilJobTarget
	}

	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		_, _ = RunCachePurge(ctx, purger, s.logger) // logged inside
	})
}

// Entries returns the scheduled jobs.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogAdapter routes the cron runtime's own logging into shell.Logger.
type cronLogAdapter struct {
	logger shell.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, keysAndValues...)
	}
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Error(msg, append([]any{logAttrError, err.Error()}, keysAndValues...)...)
	}
}
