// Package sizing implements the RiskSizer: per-trade capital allocation
// under capital, max-concurrent-position, and per-trade risk
// constraints. Fixed-allocation policy, not Kelly-fraction sizing.
package sizing

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// Sizer is the RiskSizer component.
type Sizer struct {
	log *zap.Logger
	cfg config.RiskConfig
}

// New builds a Sizer with the configured risk policy.
func New(log *zap.Logger, cfg config.RiskConfig) *Sizer {
	return &Sizer{log: log.Named("risk-sizer"), cfg: cfg}
}

// Result is one sized signal's outcome: either a FinalSignal or a
// rejection reason.
type Result struct {
	Final    *types.FinalSignal
	Rejected bool
	Reason   string
}

// Size applies the RiskSizer policy to each ranked signal in order,
// tracking how many of maxPositions remain as it goes.
func (s *Sizer) Size(now time.Time, ranked []types.RankedSignal, activeTradeCount int, positionModifier decimal.Decimal) []Result {
	results := make([]Result, 0, len(ranked))
	accepted := 0

	perTradeCap := s.cfg.TotalCapital.
		Div(decimal.NewFromInt(int64(s.cfg.MaxConcurrentPositions))).
		Mul(positionModifier)

	for _, r := range ranked {
		if activeTradeCount+accepted >= s.cfg.MaxConcurrentPositions {
			results = append(results, Result{Rejected: true, Reason: "max_concurrent_positions"})
			continue
		}

		cap := perTradeCap
		switch r.Confirmation {
		case types.ConfirmationDouble:
			if cap.Mul(s.cfg.ConfirmedDoubleCap).LessThanOrEqual(s.cfg.TotalCapital) {
				cap = cap.Mul(s.cfg.ConfirmedDoubleCap)
			}
		case types.ConfirmationTriple:
			if cap.Mul(s.cfg.ConfirmedTripleCap).LessThanOrEqual(s.cfg.TotalCapital) {
				cap = cap.Mul(s.cfg.ConfirmedTripleCap)
			}
		}

		entry := r.Candidate.Entry
		if entry.LessThanOrEqual(decimal.Zero) {
			results = append(results, Result{Rejected: true, Reason: "invalid_entry"})
			continue
		}

		quantity := cap.Div(entry).IntPart()
		if quantity < 1 {
			results = append(results, Result{Rejected: true, Reason: "quantity_below_one"})
			continue
		}

		riskPct := entry.Sub(r.Candidate.SL).Div(entry).Mul(decimal.NewFromInt(100)).Abs()
		if riskPct.GreaterThan(s.cfg.MaxRiskPct) {
			results = append(results, Result{Rejected: true, Reason: "risk_exceeds_max"})
			continue
		}

		qty := int(quantity)
		final := types.FinalSignal{
			Ranked:          r,
			Quantity:        qty,
			CapitalRequired: entry.Mul(decimal.NewFromInt(int64(qty))),
			ExpiresAt:       now.Add(time.Duration(s.cfg.SignalExpiryMinutes) * time.Minute),
		}
		results = append(results, Result{Final: &final})
		accepted++
	}

	return results
}
