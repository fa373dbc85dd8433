package stages

import (
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/adaptive"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// AdaptiveFilter drops ranked signals the AdaptiveManager's throttle
// level disallows.
type AdaptiveFilter struct {
	log     *zap.Logger
	manager *adaptive.Manager
}

// NewAdaptiveFilter builds the adaptive-throttle filter stage.
func NewAdaptiveFilter(log *zap.Logger, manager *adaptive.Manager) *AdaptiveFilter {
	return &AdaptiveFilter{log: log.Named("stage-adaptive-filter"), manager: manager}
}

func (s *AdaptiveFilter) Name() string { return "AdaptiveFilter" }

func (s *AdaptiveFilter) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	filtered := make([]types.RankedSignal, 0, len(ctx.Ranked))
	for _, r := range ctx.Ranked {
		if s.manager.ShouldAllowSignal(r.Candidate.Strategy, r.SignalStrength) {
			filtered = append(filtered, r)
		}
	}
	ctx.Ranked = filtered
	return ctx
}
