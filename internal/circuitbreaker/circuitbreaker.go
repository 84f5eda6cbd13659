// Package circuitbreaker guards the generative API with sony/gobreaker so that
// a failing upstream is shed quickly instead of tying up handler goroutines.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker open")

// State mirrors gobreaker's state for callers that should not import it.
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Config holds circuit breaker parameters.
type Config struct {
	Enabled          bool
	FailureThreshold uint32
	MaxRequests      uint32
	Timeout          time.Duration
	Component        string
	// Failure reports whether err should count against the breaker. Nil counts every error.
	Failure       func(err error) bool
	OnStateChange func(from, to State)
}

// CircuitBreaker wraps gobreaker. A disabled breaker runs every call directly.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a CircuitBreaker from cfg.
func New(cfg Config) *CircuitBreaker {
	if !cfg.Enabled {
		return &CircuitBreaker{}
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Component,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Caller went away; says nothing about upstream health.
			if errors.Is(err, context.Canceled) {
				return true
			}
			if cfg.Failure != nil {
				return !cfg.Failure(err)
			}
			return false
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			cfg.OnStateChange(from, to)
		}
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Call runs fn when the circuit allows it. Rejections wrap ErrOpen.
func (b *CircuitBreaker) Call(fn func() error) error {
	if b == nil || b.cb == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return err
}

// State returns the current state. A disabled breaker is always closed.
func (b *CircuitBreaker) State() State {
	if b == nil || b.cb == nil {
		return StateClosed
	}
	return b.cb.State()
}

// StateValue maps a state to the circuitBreakerState gauge value.
func StateValue(s State) float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}
