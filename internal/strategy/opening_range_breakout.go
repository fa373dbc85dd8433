package strategy

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// OpeningRangeBreakout is active CONTINUOUS, only before WindowEnd.
type OpeningRangeBreakout struct {
	*baseState
	params config.ORBParams
}

// NewOpeningRangeBreakout constructs the strategy with tuned parameters.
func NewOpeningRangeBreakout(log *zap.Logger, params config.ORBParams) *OpeningRangeBreakout {
	return &OpeningRangeBreakout{
		baseState: newBaseState(log, "strategy-orb"),
		params:    params,
	}
}

func (o *OpeningRangeBreakout) Name() types.StrategyName { return types.StrategyORB }

func (o *OpeningRangeBreakout) ActivePhases() []types.Phase {
	return []types.Phase{types.PhaseContinuous}
}

func (o *OpeningRangeBreakout) Reset() { o.baseState.reset() }

func (o *OpeningRangeBreakout) windowClosed(now time.Time) bool {
	end, err := time.ParseInLocation("15:04", o.params.WindowEnd, now.Location())
	if err != nil {
		return false
	}
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), end.Hour(), end.Minute(), 0, 0, now.Location())
	return now.After(cutoff)
}

func (o *OpeningRangeBreakout) Evaluate(in EvalInput) []types.CandidateSignal {
	if o.windowClosed(in.Now) {
		return nil
	}

	var out []types.CandidateSignal

	for _, symbol := range in.Store.GetSymbols() {
		if o.alreadySignaled(symbol) || in.ExcludedSymbols[symbol] {
			continue
		}

		rng, ok := in.Store.GetOpeningRange(symbol)
		if !ok || !rng.Locked {
			continue
		}
		if rng.RangeSizePct.LessThan(o.params.RangeMinPct) || rng.RangeSizePct.GreaterThan(o.params.RangeMaxPct) {
			continue
		}

		tick, ok := in.Store.GetTick(symbol)
		if !ok || !tick.LTP.GreaterThan(rng.High) {
			continue
		}

		current, ok := in.Store.GetCurrentCandle(symbol)
		if !ok {
			continue
		}
		avgVol := in.Store.GetAvgCandleVolume(symbol)
		if avgVol.IsZero() || current.Volume.LessThan(avgVol.Mul(o.params.VolumeMultiplier)) {
			continue
		}

		entry := tick.LTP
		riskPct := entry.Sub(rng.Low).Div(entry).Mul(decimal.NewFromInt(100))
		if riskPct.GreaterThan(o.params.MaxRiskPct) {
			continue
		}

		t1 := entry.Mul(decimal.NewFromInt(1).Add(o.params.T1Pct.Div(decimal.NewFromInt(100))))
		t2 := entry.Mul(decimal.NewFromInt(1).Add(o.params.T2Pct.Div(decimal.NewFromInt(100))))

		out = append(out, types.CandidateSignal{
			Symbol:       symbol,
			Direction:    types.SideBuy,
			Strategy:     types.StrategyORB,
			Entry:        entry,
			SL:           rng.Low,
			T1:           t1,
			T2:           t2,
			DistFromOpen: entry.Sub(tick.Open),
			GeneratedAt:  in.Now,
		})
		o.markSignaled(symbol)
	}

	return out
}
