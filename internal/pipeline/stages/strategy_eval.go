package stages

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/marketdata"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/strategy"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// StrategyEval runs every registered strategy active in the current
// phase and merges their candidates.
type StrategyEval struct {
	log      *zap.Logger
	store    *marketdata.Store
	registry *strategy.Registry
}

// NewStrategyEval builds the strategy-evaluation stage.
func NewStrategyEval(log *zap.Logger, store *marketdata.Store, registry *strategy.Registry) *StrategyEval {
	return &StrategyEval{log: log.Named("stage-strategy-eval"), store: store, registry: registry}
}

func (s *StrategyEval) Name() string { return "StrategyEval" }

func (s *StrategyEval) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	if !ctx.AcceptingSignals {
		return ctx
	}

	in := strategy.EvalInput{
		Store:           s.store,
		Phase:           ctx.Phase,
		Now:             ctx.Now,
		ExcludedSymbols: ctx.ExcludedSymbols,
	}

	for _, strat := range s.registry.All() {
		if !ctx.EnabledStrategies[strat.Name()] {
			continue
		}
		if !strategy.IsActiveIn(strat, ctx.Phase) {
			continue
		}
		candidates := strat.Evaluate(in)
		ctx.Candidates = append(ctx.Candidates, candidates...)
	}
	return ctx
}

// filterByStrategy returns only the candidates produced by one strategy.
// No stage in this package calls it.
func filterByStrategy(candidates []types.CandidateSignal, name types.StrategyName) []types.CandidateSignal {
	out := make([]types.CandidateSignal, 0, len(candidates))
	for _, c := range candidates {
		if c.Strategy == name {
			out = append(out, c)
		}
	}
	return out
}
