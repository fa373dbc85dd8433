package stages

import (
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/persistence"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
)

// Deduplication implements DuplicateChecker: drops any candidate whose
// symbol has an active trade or any already-persisted
// signal for today, regardless of status.
type Deduplication struct {
	log  *zap.Logger
	repo persistence.Repository
}

// NewDeduplication builds the dedup stage.
func NewDeduplication(log *zap.Logger, repo persistence.Repository) *Deduplication {
	return &Deduplication{log: log.Named("stage-deduplication"), repo: repo}
}

func (s *Deduplication) Name() string { return "Deduplication" }

func (s *Deduplication) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	if !ctx.AcceptingSignals || len(ctx.Candidates) == 0 {
		return ctx
	}

	activeTrades, err := s.repo.GetActiveTrades()
	if err != nil {
		s.log.Warn("active trade lookup failed, dropping all candidates defensively", zap.Error(err))
		ctx.Candidates = nil
		return ctx
	}
	activeSymbols := make(map[string]bool, len(activeTrades))
	for _, t := range activeTrades {
		activeSymbols[t.Symbol] = true
	}

	today := time.Date(ctx.Now.Year(), ctx.Now.Month(), ctx.Now.Day(), 0, 0, 0, 0, ctx.Now.Location())
	filtered := ctx.Candidates[:0]
	for _, c := range ctx.Candidates {
		if activeSymbols[c.Symbol] {
			continue
		}
		exists, err := s.repo.HasSignalForStockToday(c.Symbol, today)
		if err != nil {
			s.log.Warn("duplicate check failed, dropping candidate defensively", zap.String("symbol", c.Symbol), zap.Error(err))
			continue
		}
		if exists {
			continue
		}
		filtered = append(filtered, c)
	}
	ctx.Candidates = filtered
	return ctx
}
