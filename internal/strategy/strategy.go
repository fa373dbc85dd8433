// Package strategy implements the independent strategy evaluators that
// emit CandidateSignals from the MarketDataStore. Grounded on
// internal/strategy/strategy.go's Strategy interface,
// BaseStrategy, and registry shape from the teacher repo.
package strategy

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/marketdata"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// EvalInput bundles everything a strategy needs to evaluate one scan
// tick. ExcludedSymbols carries the GapStockMarking pipeline stage's
// output into ORB.
type EvalInput struct {
	Store           *marketdata.Store
	Phase           types.Phase
	Now             time.Time
	ExcludedSymbols map[string]bool
}

// Strategy is the closed evaluator contract every strategy implements.
type Strategy interface {
	Name() types.StrategyName
	ActivePhases() []types.Phase
	Evaluate(in EvalInput) []types.CandidateSignal
	Reset()
}

// IsActiveIn reports whether a phase is in a strategy's active set.
func IsActiveIn(s Strategy, phase types.Phase) bool {
	for _, p := range s.ActivePhases() {
		if p == phase {
			return true
		}
	}
	return false
}

// Registry is a name-keyed factory map, grounded on the teacher's
// StrategyRegistry.
type Registry struct {
	mu    sync.RWMutex
	items map[types.StrategyName]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[types.StrategyName]Strategy)}
}

// Register adds a strategy instance under its own name.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.Name()] = s
}

// All returns every registered strategy.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, s)
	}
	return out
}

// Get returns a strategy by name.
func (r *Registry) Get(name types.StrategyName) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[name]
	return s, ok
}

// baseState holds the per-session bookkeeping every strategy needs:
// one-signal-per-symbol-per-day tracking. Grounded on the teacher's
// BaseStrategy embedding pattern.
type baseState struct {
	mu       sync.Mutex
	signaled map[string]bool
	log      *zap.Logger
}

func newBaseState(log *zap.Logger, name string) *baseState {
	return &baseState{
		signaled: make(map[string]bool),
		log:      log.Named(name),
	}
}

func (b *baseState) alreadySignaled(symbol string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signaled[symbol]
}

func (b *baseState) markSignaled(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signaled[symbol] = true
}

func (b *baseState) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signaled = make(map[string]bool)
}
