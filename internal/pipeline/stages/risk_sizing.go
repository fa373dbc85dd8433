package stages

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/sizing"
)

// RiskSizing implements the RiskSizer stage: converts surviving ranked
// signals into sized FinalSignals or rejections.
type RiskSizing struct {
	log   *zap.Logger
	sizer *sizing.Sizer
}

// NewRiskSizing builds the risk-sizing stage.
func NewRiskSizing(log *zap.Logger, sizer *sizing.Sizer) *RiskSizing {
	return &RiskSizing{log: log.Named("stage-risk-sizing"), sizer: sizer}
}

func (s *RiskSizing) Name() string { return "RiskSizing" }

func (s *RiskSizing) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	if len(ctx.Ranked) == 0 {
		return ctx
	}

	results := s.sizer.Size(ctx.Now, ctx.Ranked, ctx.ActiveTradeCount, ctx.PositionScalar)
	for _, r := range results {
		if r.Rejected {
			s.log.Info("signal rejected by risk sizer", zap.String("reason", r.Reason))
			continue
		}
		ctx.Final = append(ctx.Final, *r.Final)
	}
	return ctx
}
