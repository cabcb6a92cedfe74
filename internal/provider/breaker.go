// Package provider holds plumbing shared by the external HTTP data providers.
package provider

import (
	"time"

	"github.com/rs/zerolog"
	cb "github.com/sony/gobreaker"

	"edgeai-booster/internal/observability"
)

// Breaker wraps a circuit breaker for one provider.
type Breaker struct {
	cb *cb.CircuitBreaker
}

// BreakerConfig tunes a Breaker. Zero values use defaults.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// NewBreaker creates a breaker that opens after consecutive failures and
// probes again after the open timeout.
func NewBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = cfg.OpenTimeout
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		logger.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		observability.SetBreakerState(name, int(to))
	}
	observability.SetBreakerState(name, int(cb.StateClosed))

	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker. An open breaker returns cb.ErrOpenState
// without calling fn.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
