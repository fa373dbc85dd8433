// Package regime implements the RegimeClassifier: a convex combination
// of market-character inputs into a TRENDING/RANGING/VOLATILE label
// with per-strategy weight modifiers.
package regime

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// Inputs are the raw signals the convex combination blends.
type Inputs struct {
	VIXBand              decimal.Decimal // normalized [0,1]: higher = more volatile
	NiftyGapMagnitudePct decimal.Decimal
	First15MinRangePct   decimal.Decimal
	DirectionalAlignment decimal.Decimal // [-1,1]
	ExternalMarketSignal decimal.Decimal // [-1,1]: S&P change / SGX Nifty direction
	InstitutionalFlow    decimal.Decimal // [-1,1]
}

// Weights controls the convex combination per score dimension.
type Weights struct {
	Trending decimal.Decimal
	Ranging  decimal.Decimal
	Volatile decimal.Decimal
}

// Classifier holds the last cached classification, exposed to the UI and
// to the pipeline's RegimeContext stage.
type Classifier struct {
	mu     sync.RWMutex
	log    *zap.Logger

	cached types.RegimeClassification
}

// New builds a Classifier with no cached classification yet.
func New(log *zap.Logger) *Classifier {
	return &Classifier{log: log.Named("regime")}
}

// Classify computes {trending, ranging, volatile} scores from Inputs and
// caches the winning label.
func (c *Classifier) Classify(now time.Time, in Inputs) types.RegimeClassification {
	trending := in.DirectionalAlignment.Abs().
		Add(in.NiftyGapMagnitudePct.Div(decimal.NewFromInt(5))).
		Add(in.ExternalMarketSignal.Abs()).
		Div(decimal.NewFromInt(3))

	ranging := decimal.NewFromInt(1).Sub(in.First15MinRangePct.Div(decimal.NewFromInt(2))).
		Add(decimal.NewFromInt(1).Sub(in.VIXBand)).
		Div(decimal.NewFromInt(2))

	volatile := in.VIXBand.
		Add(in.First15MinRangePct.Div(decimal.NewFromInt(2))).
		Add(in.InstitutionalFlow.Abs()).
		Div(decimal.NewFromInt(3))

	clamp := func(d decimal.Decimal) decimal.Decimal {
		if d.LessThan(decimal.Zero) {
			return decimal.Zero
		}
		if d.GreaterThan(decimal.NewFromInt(1)) {
			return decimal.NewFromInt(1)
		}
		return d
	}
	trending, ranging, volatile = clamp(trending), clamp(ranging), clamp(volatile)

	label, maxScore := types.RegimeTrending, trending
	if ranging.GreaterThan(maxScore) {
		label, maxScore = types.RegimeRanging, ranging
	}
	if volatile.GreaterThan(maxScore) {
		label, maxScore = types.RegimeVolatile, volatile
	}

	result := types.RegimeClassification{
		Label:              label,
		Confidence:         maxScore,
		StrategyWeights:    strategyWeightsFor(label),
		MinStarRating:      minStarRatingFor(label),
		PositionSizeScalar: positionScalarFor(label),
		Timestamp:          now,
	}

	c.mu.Lock()
	c.cached = result
	c.mu.Unlock()

	c.log.Info("regime classified",
		zap.String("label", string(label)),
		zap.String("confidence", maxScore.String()))
	return result
}

func strategyWeightsFor(label types.RegimeLabel) map[types.StrategyName]decimal.Decimal {
	switch label {
	case types.RegimeTrending:
		return map[types.StrategyName]decimal.Decimal{
			types.StrategyGapAndGo: decimal.NewFromFloat(1.2),
			types.StrategyORB:      decimal.NewFromFloat(1.2),
			types.StrategyVWAP:     decimal.NewFromFloat(0.8),
		}
	case types.RegimeRanging:
		return map[types.StrategyName]decimal.Decimal{
			types.StrategyGapAndGo: decimal.NewFromFloat(0.8),
			types.StrategyORB:      decimal.NewFromFloat(0.7),
			types.StrategyVWAP:     decimal.NewFromFloat(1.3),
		}
	default: // VOLATILE
		return map[types.StrategyName]decimal.Decimal{
			types.StrategyGapAndGo: decimal.NewFromFloat(0.6),
			types.StrategyORB:      decimal.NewFromFloat(0.6),
			types.StrategyVWAP:     decimal.NewFromFloat(0.6),
		}
	}
}

func minStarRatingFor(label types.RegimeLabel) int {
	if label == types.RegimeVolatile {
		return 4
	}
	return 3
}

func positionScalarFor(label types.RegimeLabel) decimal.Decimal {
	if label == types.RegimeVolatile {
		return decimal.NewFromFloat(0.5)
	}
	return decimal.NewFromInt(1)
}

// Cached returns the last classification computed, or the zero value if
// none has run yet.
func (c *Classifier) Cached() types.RegimeClassification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// Override manually replaces the cached label without recomputing
// scores.
func (c *Classifier) Override(label types.RegimeLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached.Label = label
	c.cached.StrategyWeights = strategyWeightsFor(label)
	c.cached.MinStarRating = minStarRatingFor(label)
	c.cached.PositionSizeScalar = positionScalarFor(label)
	c.log.Info("regime manually overridden", zap.String("label", string(label)))
}
