package stages

import (
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// Confirmation implements ConfirmationDetector: groups surviving
// candidates by symbol within a sliding confirmation window
// and assigns single/double/triple levels by distinct contributing
// strategy count.
type Confirmation struct {
	log    *zap.Logger
	window time.Duration
}

// NewConfirmation builds the confirmation stage with the configured
// sliding window.
func NewConfirmation(log *zap.Logger, window time.Duration) *Confirmation {
	return &Confirmation{log: log.Named("stage-confirmation"), window: window}
}

func (s *Confirmation) Name() string { return "Confirmation" }

func (s *Confirmation) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	bySymbol := make(map[string][]types.CandidateSignal)
	for _, c := range ctx.Candidates {
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], c)
	}

	for symbol, group := range bySymbol {
		strategies := make(map[types.StrategyName]bool)
		for _, c := range group {
			if ctx.Now.Sub(c.GeneratedAt) > s.window {
				continue
			}
			strategies[c.Strategy] = true
		}

		level := types.ConfirmationSingle
		switch {
		case len(strategies) >= 3:
			level = types.ConfirmationTriple
		case len(strategies) == 2:
			level = types.ConfirmationDouble
		}

		names := make([]types.StrategyName, 0, len(strategies))
		for name := range strategies {
			names = append(names, name)
		}

		ctx.ConfirmationMap[symbol] = pipeline.ConfirmationEntry{Level: level, Strategies: names}
	}
	return ctx
}
