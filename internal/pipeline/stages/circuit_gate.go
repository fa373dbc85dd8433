// Package stages implements the named ScanContext stages, wired to
// the concrete domain components built in their own
// packages. Grounded on internal/events/event_bus.go's typed-handler
// registration style, applied here to a fixed ordered stage list.
package stages

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/circuitbreaker"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
)

// CircuitBreakerGate reads CircuitBreaker.IsActive and, if tripped,
// forces acceptingSignals off for the remainder of this cycle.
type CircuitBreakerGate struct {
	log *zap.Logger
	cb  *circuitbreaker.CircuitBreaker
}

// NewCircuitBreakerGate builds the first stage in the signal chain.
func NewCircuitBreakerGate(log *zap.Logger, cb *circuitbreaker.CircuitBreaker) *CircuitBreakerGate {
	return &CircuitBreakerGate{log: log.Named("stage-circuit-gate"), cb: cb}
}

func (s *CircuitBreakerGate) Name() string { return "CircuitBreakerGate" }

func (s *CircuitBreakerGate) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	if s.cb.IsActive() {
		ctx.AcceptingSignals = false
	}
	return ctx
}
