package stages

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/regime"
)

// RegimeContext copies the cached RegimeClassifier output into the scan
// context so downstream stages can read it without touching the
// classifier directly: Ranking reads MinStarRating and RiskSizing reads
// PositionScalar. NewsSentiment reads none of these fields.
type RegimeContext struct {
	log       *zap.Logger
	classifier *regime.Classifier
}

// NewRegimeContext builds the regime-propagation stage.
func NewRegimeContext(log *zap.Logger, classifier *regime.Classifier) *RegimeContext {
	return &RegimeContext{log: log.Named("stage-regime-context"), classifier: classifier}
}

func (s *RegimeContext) Name() string { return "RegimeContext" }

func (s *RegimeContext) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	cached := s.classifier.Cached()
	ctx.RegimeLabel = cached.Label
	ctx.RegimeConfidence = cached.Confidence
	ctx.StrategyWeights = cached.StrategyWeights
	ctx.MinStarRating = cached.MinStarRating
	if cached.PositionSizeScalar.IsZero() {
		ctx.PositionScalar = decimal.NewFromInt(1)
	} else {
		ctx.PositionScalar = cached.PositionSizeScalar
	}
	return ctx
}
