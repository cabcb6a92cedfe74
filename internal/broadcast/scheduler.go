package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"edgeai-booster/internal/domain"
)

// Default schedule.
const (
	DefaultInterval     = 10 * time.Minute
	DefaultInitialDelay = time.Minute
)

// Runner is one broadcast cycle.
type Runner interface {
	Run(ctx context.Context) (*domain.BroadcastRun, error)
}

// Scheduler runs a Runner after an initial delay, then on a fixed interval.
// Overlapping runs are skipped.
type Scheduler struct {
	runner       Runner
	interval     time.Duration
	initialDelay time.Duration
	logger       zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler. Zero durations use the defaults.
func NewScheduler(runner Runner, interval, initialDelay time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if initialDelay < 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Scheduler{
		runner:       runner,
		interval:     interval,
		initialDelay: initialDelay,
		logger:       logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the job. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	clog := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("add broadcast job: %w", err)
	}

	s.cron = c
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		select {
		case <-time.After(s.initialDelay):
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
		s.runOnce(ctx)
		c.Start()
	}(s.stop, s.done)

	s.logger.Info().
		Dur("interval", s.interval).
		Dur("initial_delay", s.initialDelay).
		Msg("broadcast scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	close(s.stop)
	<-s.done
	<-s.cron.Stop().Done()
	s.cron = nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error().Err(err).Msg("broadcast run failed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
