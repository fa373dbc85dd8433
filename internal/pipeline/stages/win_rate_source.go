package stages

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/persistence"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// PersistedWinRateSource resolves CompositeScoring's rolling 10-day win
// rate input from the strategy_performance table. Missing rows default
// to neutral (0.5) rather than zero,
// so a strategy with no history yet is not unfairly penalized.
type PersistedWinRateSource struct {
	log  *zap.Logger
	repo persistence.Repository
}

// NewPersistedWinRateSource builds the persistence-backed WinRateSource.
func NewPersistedWinRateSource(log *zap.Logger, repo persistence.Repository) *PersistedWinRateSource {
	return &PersistedWinRateSource{log: log.Named("win-rate-source"), repo: repo}
}

func (w *PersistedWinRateSource) TenDayWinRate(strategy types.StrategyName) decimal.Decimal {
	row, err := w.repo.GetStrategyPerformance(string(strategy))
	if err != nil || row == nil {
		return decimal.NewFromFloat(0.5)
	}
	rate, err := decimal.NewFromString(row.TenDayWinRate)
	if err != nil {
		return decimal.NewFromFloat(0.5)
	}
	return rate
}
