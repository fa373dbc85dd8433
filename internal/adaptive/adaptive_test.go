package adaptive_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/adaptive"
	"github.com/atlas-desktop/marketscan/internal/types"
)

func newManager(t *testing.T) *adaptive.Manager {
	return adaptive.New(zaptest.NewLogger(t), adaptive.Config{
		ConsecutiveLossesThrottle:   2,
		ConsecutiveLossesPause:      4,
		FiveDayWinRateWarnThreshold: decimal.NewFromFloat(0.4),
		TenDayWinRatePauseThreshold: decimal.NewFromFloat(0.3),
	}, []types.StrategyName{types.StrategyGapAndGo})
}

func TestRecordOutcomeThrottlesAfterConsecutiveLosses(t *testing.T) {
	m := newManager(t)
	m.RecordOutcome(types.StrategyGapAndGo, false)
	if m.Level(types.StrategyGapAndGo) != adaptive.LevelNormal {
		t.Fatal("expected NORMAL after a single loss")
	}

	m.RecordOutcome(types.StrategyGapAndGo, false)
	if m.Level(types.StrategyGapAndGo) != adaptive.LevelReduced {
		t.Fatal("expected REDUCED after 2 consecutive losses")
	}
}

func TestRecordOutcomePausesAfterFourConsecutiveLosses(t *testing.T) {
	m := newManager(t)
	for i := 0; i < 4; i++ {
		m.RecordOutcome(types.StrategyGapAndGo, false)
	}
	if m.Level(types.StrategyGapAndGo) != adaptive.LevelPaused {
		t.Fatal("expected PAUSED after 4 consecutive losses")
	}
}

func TestRecordOutcomeWinResetsToNormal(t *testing.T) {
	m := newManager(t)
	m.RecordOutcome(types.StrategyGapAndGo, false)
	m.RecordOutcome(types.StrategyGapAndGo, false)
	m.RecordOutcome(types.StrategyGapAndGo, true)

	if m.Level(types.StrategyGapAndGo) != adaptive.LevelNormal {
		t.Fatal("expected a win to reset the level to NORMAL")
	}
}

func TestUpdateRollingWinRatesPausesOnLowTenDayRate(t *testing.T) {
	m := newManager(t)
	m.UpdateRollingWinRates(types.StrategyGapAndGo, decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.1))
	m.RecordOutcome(types.StrategyGapAndGo, false)

	if m.Level(types.StrategyGapAndGo) != adaptive.LevelPaused {
		t.Fatal("expected low 10-day win rate to pause the strategy")
	}
}

func TestShouldAllowSignalGatesByStrengthWhenReduced(t *testing.T) {
	m := newManager(t)
	m.RecordOutcome(types.StrategyGapAndGo, false)
	m.RecordOutcome(types.StrategyGapAndGo, false)

	if m.ShouldAllowSignal(types.StrategyGapAndGo, 3) {
		t.Fatal("expected REDUCED to reject strength below 4")
	}
	if !m.ShouldAllowSignal(types.StrategyGapAndGo, 4) {
		t.Fatal("expected REDUCED to allow strength 4 and above")
	}
}

func TestShouldAllowSignalRejectsEverythingWhenPaused(t *testing.T) {
	m := newManager(t)
	for i := 0; i < 4; i++ {
		m.RecordOutcome(types.StrategyGapAndGo, false)
	}
	if m.ShouldAllowSignal(types.StrategyGapAndGo, 5) {
		t.Fatal("expected PAUSED to reject every signal regardless of strength")
	}
}

func TestResetDailyPreservesRollingWinRatesButClearsLevel(t *testing.T) {
	m := newManager(t)
	m.UpdateRollingWinRates(types.StrategyGapAndGo, decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.1))
	for i := 0; i < 4; i++ {
		m.RecordOutcome(types.StrategyGapAndGo, false)
	}

	m.ResetDaily()
	if m.Level(types.StrategyGapAndGo) != adaptive.LevelNormal {
		t.Fatal("expected ResetDaily to clear the throttle level")
	}

	m.RecordOutcome(types.StrategyGapAndGo, false)
	if m.Level(types.StrategyGapAndGo) != adaptive.LevelPaused {
		t.Fatal("expected the preserved low 10-day win rate to re-trigger PAUSED")
	}
}
