// Package resilience wraps the HTTP clients of the upstream APIs (Traewelling
// statistics API and OAuth server) with retries, a circuit breaker and health
// bookkeeping.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures when an upstream is considered down.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker after this many failures in a
	// row, regardless of the window. Zero disables the rule.
	ConsecutiveFailures uint32

	// MinRequests is the number of calls in the window before FailureRatio
	// applies.
	MinRequests uint32

	// FailureRatio opens the breaker once reached within the window.
	FailureRatio float64

	// Window clears the counts while the breaker is closed. Zero keeps them
	// until the breaker changes state.
	Window time.Duration

	// OpenFor is how long the breaker rejects calls before probing.
	OpenFor time.Duration

	// Probes is the number of calls let through while half-open.
	Probes uint32
}

// DefaultBreakerSettings fit an API that is polled a few times per widget
// refresh.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.5,
		Window:              5 * time.Minute,
		OpenFor:             time.Minute,
		Probes:              1,
	}
}

// Trips reports whether counts open the breaker.
func (s BreakerSettings) Trips(counts gobreaker.Counts) bool {
	if s.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= s.ConsecutiveFailures {
		return true
	}
	if counts.Requests == 0 || counts.Requests < s.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
}

func newBreaker(name string, s BreakerSettings, log zerolog.Logger) *gobreaker.CircuitBreaker[*httpResult] {
	return gobreaker.NewCircuitBreaker[*httpResult](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.Probes,
		Interval:    s.Window,
		Timeout:     s.OpenFor,
		ReadyToTrip: s.Trips,
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := log.Info()
			if to == gobreaker.StateOpen {
				event = log.Warn()
			}
			event.Str("upstream", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}
