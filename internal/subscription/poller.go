package subscription

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"edgeai-booster/internal/observability"
)

// Poller defaults.
const (
	DefaultMaxAttempts = 10
	DefaultInterval    = 30 * time.Second
)

// Outcome is a terminal poller state.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeTimedOut  Outcome = "timed_out"
	// OutcomeCancelled is reported only when the parent context ends (shutdown).
	OutcomeCancelled Outcome = "cancelled"
)

// Result is the final state of one polling task.
type Result struct {
	Wallet    string
	Outcome   Outcome
	Attempts  int
	ExpiresAt *time.Time
}

// Task is a handle to a detached polling run.
type Task struct {
	done   chan struct{}
	result Result
}

// Done is closed once the task reached a terminal state and its callback returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the terminal state. Only valid after Done is closed.
func (t *Task) Result() Result {
	<-t.done
	return t.result
}

// PollerConfig configures Poller.
type PollerConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// Poller confirms a just-submitted payment with a bounded number of checks.
type Poller struct {
	checker     PremiumChecker
	watcher     AccountWatcher
	maxAttempts int
	interval    time.Duration
	after       func(time.Duration) <-chan time.Time
	logger      zerolog.Logger
}

// PollerOption configures Poller.
type PollerOption func(*Poller)

// WithWatcher enables early wake-ups on account change notifications.
func WithWatcher(w AccountWatcher) PollerOption {
	return func(p *Poller) {
		p.watcher = w
	}
}

// WithAfter overrides the timer source.
func WithAfter(after func(time.Duration) <-chan time.Time) PollerOption {
	return func(p *Poller) {
		p.after = after
	}
}

// NewPoller creates a poller. Zero config values fall back to defaults.
func NewPoller(checker PremiumChecker, cfg PollerConfig, logger zerolog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		checker:     checker,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.Interval,
		after:       time.After,
		logger:      logger.With().Str("component", "poller").Logger(),
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches a detached polling task for wallet and returns immediately.
// onDone, if set, is called with the terminal result before Done is closed.
// Overlapping tasks for the same wallet are independent.
func (p *Poller) Start(ctx context.Context, wallet string, onDone func(Result)) *Task {
	task := &Task{done: make(chan struct{})}

	go func() {
		defer close(task.done)

		task.result = p.run(ctx, wallet)
		observability.RecordPollerOutcome(string(task.result.Outcome))
		p.logger.Info().
			Str("wallet", wallet).
			Str("outcome", string(task.result.Outcome)).
			Int("attempts", task.result.Attempts).
			Msg("payment polling finished")

		if onDone != nil {
			onDone(task.result)
		}
	}()

	return task
}

func (p *Poller) run(ctx context.Context, wallet string) Result {
	res := Result{Wallet: wallet, Outcome: OutcomeTimedOut}

	var wake <-chan struct{}
	if p.watcher != nil {
		ch, stop, err := p.watcher.Watch(ctx, wallet)
		if err != nil {
			p.logger.Warn().Err(err).Str("wallet", wallet).Msg("account watch unavailable, polling only")
		} else {
			wake = ch
			defer stop()
		}
	}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		timer := p.after(p.interval)
	wait:
		for {
			select {
			case <-ctx.Done():
				res.Outcome = OutcomeCancelled
				return res
			case <-timer:
				break wait
			case _, ok := <-wake:
				if !ok {
					wake = nil
					continue
				}
				p.logger.Debug().Str("wallet", wallet).Int("attempt", attempt).Msg("account changed, checking early")
				break wait
			}
		}

		res.Attempts = attempt
		premium, expiry := p.checker.IsPremium(ctx, wallet)
		if premium {
			res.Outcome = OutcomeConfirmed
			res.ExpiresAt = expiry
			return res
		}
		p.logger.Debug().Str("wallet", wallet).Int("attempt", attempt).Msg("payment not yet visible")
	}

	return res
}
