package stages

import (
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// GapStockMarking flags every symbol Gap & Go has produced a candidate
// for today and excludes it from ORB: symbols flagged by this stage
// are excluded from opening-range breakout. The set is
// stateful across cycles: ScanContext is rebuilt fresh every tick, so
// this stage keeps its own persistent set and seeds ctx.ExcludedSymbols
// from it on every run, in addition to filtering out-of-date ORB
// candidates produced earlier in the same cycle.
type GapStockMarking struct {
	log *zap.Logger

	mu      sync.Mutex
	flagged map[string]bool
}

// NewGapStockMarking builds the gap-exclusion stage.
func NewGapStockMarking(log *zap.Logger) *GapStockMarking {
	return &GapStockMarking{log: log.Named("stage-gap-stock-marking"), flagged: make(map[string]bool)}
}

func (s *GapStockMarking) Name() string { return "GapStockMarking" }

func (s *GapStockMarking) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	s.mu.Lock()
	for _, c := range ctx.Candidates {
		if c.Strategy == types.StrategyGapAndGo {
			s.flagged[c.Symbol] = true
		}
	}
	for symbol := range s.flagged {
		ctx.ExcludedSymbols[symbol] = true
	}
	flagged := s.flagged
	s.mu.Unlock()

	filtered := ctx.Candidates[:0]
	for _, c := range ctx.Candidates {
		if c.Strategy == types.StrategyORB && flagged[c.Symbol] {
			continue
		}
		filtered = append(filtered, c)
	}
	ctx.Candidates = filtered
	return ctx
}

// Excluded returns a copy of the persistent flagged-symbol set, consumed
// by the ScanEngine to seed the next cycle's strategy evaluation input.
func (s *GapStockMarking) Excluded() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.flagged))
	for k := range s.flagged {
		out[k] = true
	}
	return out
}

// Reset clears the flagged set at daily session start.
func (s *GapStockMarking) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged = make(map[string]bool)
}
