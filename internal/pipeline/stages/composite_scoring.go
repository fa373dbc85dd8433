package stages

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// WinRateSource resolves a strategy's rolling 10-day win rate, sourced
// from strategy_performance persistence.
type WinRateSource interface {
	TenDayWinRate(strategy types.StrategyName) decimal.Decimal
}

// CompositeScoring implements CompositeScorer: blends strategy
// strength, rolling win rate, risk:reward, and confirmation
// bonus into a single composite score and maps it to signalStrength.
type CompositeScoring struct {
	log       *zap.Logger
	weights   config.ScoringWeights
	winRates  WinRateSource
}

// NewCompositeScoring builds the composite-scoring stage.
func NewCompositeScoring(log *zap.Logger, weights config.ScoringWeights, winRates WinRateSource) *CompositeScoring {
	return &CompositeScoring{log: log.Named("stage-composite-scoring"), weights: weights, winRates: winRates}
}

func (s *CompositeScoring) Name() string { return "CompositeScoring" }

var hundred = decimal.NewFromInt(100)

func (s *CompositeScoring) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	ctx.Ranked = make([]types.RankedSignal, 0, len(ctx.Candidates))

	for _, c := range ctx.Candidates {
		entry := ctx.ConfirmationMap[c.Symbol]
		level := entry.Level
		if level == "" {
			level = types.ConfirmationSingle
		}

		strategyScore := strategyStrengthScore(c)
		winRateScore := s.winRates.TenDayWinRate(c.Strategy).Mul(hundred)
		rrScore := riskRewardScore(c)
		confirmBonus := confirmationBonus(level)

		composite := s.weights.Strategy.Mul(strategyScore).
			Add(s.weights.WinRate.Mul(winRateScore)).
			Add(s.weights.RiskReward.Mul(rrScore)).
			Add(s.weights.Confirmation.Mul(confirmBonus))

		ctx.Ranked = append(ctx.Ranked, types.RankedSignal{
			Candidate:      c,
			CompositeScore: composite,
			SignalStrength: strengthBand(composite),
			Confirmation:   level,
			ConfirmedBy:    entry.Strategies,
		})
	}
	return ctx
}

// strategyStrengthScore normalizes a candidate's own setup quality to
// [0, 100] from its gap magnitude / volume ratio, whichever applies.
func strategyStrengthScore(c types.CandidateSignal) decimal.Decimal {
	score := c.VolumeRatio
	if score.IsZero() {
		score = c.GapPct.Mul(decimal.NewFromInt(10))
	}
	if score.GreaterThan(hundred) {
		return hundred
	}
	if score.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return score
}

// riskRewardScore buckets (T1-entry)/(entry-SL) into [0, 100].
func riskRewardScore(c types.CandidateSignal) decimal.Decimal {
	risk := c.Entry.Sub(c.SL).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	reward := c.T1.Sub(c.Entry).Abs()
	ratio := reward.Div(risk)

	switch {
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(3)):
		return hundred
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(2)):
		return decimal.NewFromInt(75)
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(1.5)):
		return decimal.NewFromInt(50)
	case ratio.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return decimal.NewFromInt(25)
	default:
		return decimal.Zero
	}
}

func confirmationBonus(level types.ConfirmationLevel) decimal.Decimal {
	switch level {
	case types.ConfirmationTriple:
		return hundred
	case types.ConfirmationDouble:
		return decimal.NewFromInt(50)
	default:
		return decimal.Zero
	}
}

// strengthBand maps a composite score in [0, 100] to its fixed
// signalStrength band.
func strengthBand(composite decimal.Decimal) int {
	switch {
	case composite.GreaterThanOrEqual(decimal.NewFromInt(80)):
		return 5
	case composite.GreaterThanOrEqual(decimal.NewFromInt(65)):
		return 4
	case composite.GreaterThanOrEqual(decimal.NewFromInt(50)):
		return 3
	case composite.GreaterThanOrEqual(decimal.NewFromInt(35)):
		return 2
	default:
		return 1
	}
}
