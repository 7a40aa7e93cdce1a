// Package breaker wraps sony/gobreaker with the failure-ratio policy and
// state logging shared by the AI and research collaborators.
package breaker

import (
	"github.com/sony/gobreaker/v2"

	"tailorcv/internal/config"
	"tailorcv/internal/errors"
)

// Breaker guards calls returning T. A nil Breaker calls through.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// Policy decides when a breaker trips.
type Policy struct {
	MinRequests      uint32
	FailureThreshold float64
}

// New returns a breaker configured from cfg, or nil when cfg is disabled.
func New[T any](name string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *Breaker[T] {
	return WithPolicy[T](name, cfg, Policy{MinRequests: cfg.MinRequests, FailureThreshold: cfg.FailureThreshold}, logger)
}

// WithPolicy is New with a trip policy other than the configured one.
func WithPolicy[T any](name string, cfg config.CircuitBreakerConfig, policy Policy, logger *errors.Logger) *Breaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= policy.MinRequests && failureRatio >= policy.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", policy.FailureThreshold)
		},
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn under the breaker. Open breakers fail fast with
// gobreaker.ErrOpenState.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats returns a JSON-friendly snapshot for /stats.
func (b *Breaker[T]) Stats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}
	counts := b.cb.Counts()
	return map[string]any{
		"enabled": true,
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts": map[string]uint32{
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		},
	}
}

// Healthy reports whether the breaker is closed.
func (b *Breaker[T]) Healthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}

// State is the current state name, "disabled" for a nil breaker.
func (b *Breaker[T]) State() string {
	if b == nil || b.cb == nil {
		return "disabled"
	}
	return b.cb.State().String()
}
