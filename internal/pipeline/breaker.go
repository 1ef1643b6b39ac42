package pipeline

import (
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog"
)

// BreakerConfig tunes the per-collaborator circuit breakers
type BreakerConfig struct {
	// Failures out of Window executions open the breaker
	Failures uint
	Window   uint
	// Delay is how long the breaker stays open before a trial call
	Delay time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Window == 0 {
		c.Window = 10
	}
	if c.Failures == 0 || c.Failures > c.Window {
		c.Failures = c.Window / 2
		if c.Failures == 0 {
			c.Failures = 1
		}
	}
	if c.Delay == 0 {
		c.Delay = 30 * time.Second
	}
	return c
}

type breaker struct {
	cb circuitbreaker.CircuitBreaker[any]
}

func newBreaker(name string, cfg BreakerConfig, log zerolog.Logger) *breaker {
	cfg = cfg.withDefaults()
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThresholdRatio(cfg.Failures, cfg.Window).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			log.Warn().
				Str("breaker", name).
				Str("from", stateName(event.OldState)).
				Str("to", stateName(event.NewState)).
				Msg("circuit breaker state change")
		}).
		Build()
	return &breaker{cb: cb}
}

func (b *breaker) call(fn func() (any, error)) (any, error) {
	return failsafe.With(b.cb).Get(fn)
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}
