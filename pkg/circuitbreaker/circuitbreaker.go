package circuitbreaker

import "github.com/sony/gobreaker"

var (
	// MinRequestsBeforeTripping is the number of observed requests below
	// which the breaker never opens.
	MinRequestsBeforeTripping = 10
	// TripFailureRatio is the failing ratio at which the breaker opens.
	TripFailureRatio = 0.6
)

// NewCircuitBreaker returns a named *gobreaker.CircuitBreaker guarding an
// upstream dependency. It opens once at least MinRequestsBeforeTripping
// requests were observed and the failure ratio reached TripFailureRatio,
// shielding the wallet service from a flapping explorer.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) >= MinRequestsBeforeTripping &&
				ratio >= TripFailureRatio
		},
	})
}
