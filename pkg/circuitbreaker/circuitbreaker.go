package circuitbreaker

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var (
	// MinRequestsBeforeTripping is the request count below which the
	// breaker never trips, whatever the failure ratio.
	MinRequestsBeforeTripping = 10
	// TrippingFailureRatio is the failure ratio at which the breaker opens.
	TrippingFailureRatio = 0.6
	// RecoveryTimeout is how long the breaker stays open before probing
	// the endpoint again.
	RecoveryTimeout = 30 * time.Second
)

// NewCircuitBreaker returns a breaker guarding calls towards a remote RPC
// endpoint. It opens once enough requests failed in a row for the endpoint
// to be considered down, so a dead endpoint fails fast instead of stacking
// timeouts.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) >= MinRequestsBeforeTripping &&
				ratio >= TrippingFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"from": from.String(), "to": to.String(),
			}).Warnf("circuit breaker %s changed state", name)
		},
	})
}
