package strategy_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/marketdata"
	"github.com/atlas-desktop/marketscan/internal/strategy"
	"github.com/atlas-desktop/marketscan/internal/types"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRegistryRegisterGetAll(t *testing.T) {
	reg := strategy.NewRegistry()
	g := strategy.NewGapAndGo(zaptest.NewLogger(t), config.GapAndGoParams{})
	reg.Register(g)

	got, ok := reg.Get(types.StrategyGapAndGo)
	if !ok || got != g {
		t.Fatal("expected registered strategy to be retrievable")
	}
	if len(reg.All()) != 1 {
		t.Fatalf("expected 1 registered strategy, got %d", len(reg.All()))
	}
}

func TestGapAndGoSignalsOnQualifyingGapAndVolume(t *testing.T) {
	log := zaptest.NewLogger(t)
	params := config.GapAndGoParams{
		GapMinPct:          dec("2"),
		GapMaxPct:          dec("8"),
		VolumeThresholdPct: dec("20"),
		MaxRiskPct:         dec("3"),
		T1Pct:              dec("2"),
		T2Pct:              dec("3.5"),
	}
	g := strategy.NewGapAndGo(log, params)
	store := marketdata.New(log)

	store.SetHistorical(types.HistoricalReference{
		Symbol: "SBIN", PrevClose: dec("500"), PrevHigh: dec("505"), AvgDailyVolume: dec("1000"),
	})
	store.UpdateTick(types.Tick{Symbol: "SBIN", Open: dec("515"), LTP: dec("515"), CumVolume: dec("300")})

	openingIn := strategy.EvalInput{Store: store, Phase: types.PhaseOpening, Now: time.Now()}
	if out := g.Evaluate(openingIn); out != nil {
		t.Fatal("OPENING phase must not emit signals directly")
	}

	store.UpdateTick(types.Tick{Symbol: "SBIN", Open: dec("515"), LTP: dec("520"), CumVolume: dec("300")})
	entryIn := strategy.EvalInput{Store: store, Phase: types.PhaseEntryWindow, Now: time.Now()}
	out := g.Evaluate(entryIn)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate signal, got %d", len(out))
	}
	if out[0].Symbol != "SBIN" || out[0].Strategy != types.StrategyGapAndGo {
		t.Fatalf("unexpected candidate: %+v", out[0])
	}

	if out := g.Evaluate(entryIn); out != nil {
		t.Fatal("must not signal the same symbol twice in one session")
	}
}

func TestGapAndGoRejectsGapOutsideBounds(t *testing.T) {
	log := zaptest.NewLogger(t)
	params := config.GapAndGoParams{GapMinPct: dec("2"), GapMaxPct: dec("8"), VolumeThresholdPct: dec("20"), MaxRiskPct: dec("3")}
	g := strategy.NewGapAndGo(log, params)
	store := marketdata.New(log)

	store.SetHistorical(types.HistoricalReference{Symbol: "SBIN", PrevClose: dec("500"), PrevHigh: dec("505"), AvgDailyVolume: dec("1000")})
	store.UpdateTick(types.Tick{Symbol: "SBIN", Open: dec("501"), LTP: dec("501"), CumVolume: dec("300")})

	g.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseOpening, Now: time.Now()})
	out := g.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseEntryWindow, Now: time.Now()})
	if out != nil {
		t.Fatal("a 0.2% gap should not qualify against a 2%-8% window")
	}
}

func TestGapAndGoResetClearsCandidatesAndSignaled(t *testing.T) {
	log := zaptest.NewLogger(t)
	params := config.GapAndGoParams{GapMinPct: dec("2"), GapMaxPct: dec("8"), VolumeThresholdPct: dec("20"), MaxRiskPct: dec("3")}
	g := strategy.NewGapAndGo(log, params)
	store := marketdata.New(log)
	store.SetHistorical(types.HistoricalReference{Symbol: "SBIN", PrevClose: dec("500"), PrevHigh: dec("505"), AvgDailyVolume: dec("1000")})
	store.UpdateTick(types.Tick{Symbol: "SBIN", Open: dec("515"), LTP: dec("520"), CumVolume: dec("300")})

	g.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseOpening, Now: time.Now()})
	g.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseEntryWindow, Now: time.Now()})

	g.Reset()
	store.UpdateTick(types.Tick{Symbol: "SBIN", Open: dec("515"), LTP: dec("521"), CumVolume: dec("301")})
	g.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseOpening, Now: time.Now()})
	out := g.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseEntryWindow, Now: time.Now()})
	if len(out) != 1 {
		t.Fatalf("expected fresh signal after reset, got %d", len(out))
	}
}

func TestOpeningRangeBreakoutSignalsOnBreakoutWithVolume(t *testing.T) {
	log := zaptest.NewLogger(t)
	params := config.ORBParams{
		RangeMinPct: dec("0.3"), RangeMaxPct: dec("3"),
		VolumeMultiplier: dec("1.5"), MaxRiskPct: dec("3"),
		T1Pct: dec("2"), T2Pct: dec("3.5"), WindowEnd: "11:00",
	}
	orb := strategy.NewOpeningRangeBreakout(log, params)
	store := marketdata.New(log)

	store.UpdateOpeningRange("SBIN", dec("510"), dec("500"))
	store.LockOpeningRanges()
	store.UpdateTick(types.Tick{Symbol: "SBIN", Open: dec("505"), LTP: dec("515")})

	base := time.Date(2026, 7, 31, 9, 45, 0, 0, time.UTC)
	store.UpdateCandle("SBIN", dec("505"), dec("100"), base)
	store.UpdateCandle("SBIN", dec("506"), dec("90"), base.Add(15*time.Minute))
	store.UpdateCandle("SBIN", dec("515"), dec("200"), base.Add(30*time.Minute))

	now := time.Date(2026, 7, 31, 10, 5, 0, 0, time.UTC)
	out := orb.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseContinuous, Now: now})
	if len(out) != 1 {
		t.Fatalf("expected 1 ORB signal, got %d", len(out))
	}
}

func TestOpeningRangeBreakoutSkipsExcludedSymbols(t *testing.T) {
	log := zaptest.NewLogger(t)
	params := config.ORBParams{RangeMinPct: dec("0.3"), RangeMaxPct: dec("3"), VolumeMultiplier: dec("1.5"), MaxRiskPct: dec("3"), WindowEnd: "11:00"}
	orb := strategy.NewOpeningRangeBreakout(log, params)
	store := marketdata.New(log)
	store.UpdateOpeningRange("SBIN", dec("510"), dec("500"))
	store.LockOpeningRanges()
	store.UpdateTick(types.Tick{Symbol: "SBIN", Open: dec("505"), LTP: dec("515")})

	now := time.Date(2026, 7, 31, 10, 5, 0, 0, time.UTC)
	out := orb.Evaluate(strategy.EvalInput{
		Store: store, Phase: types.PhaseContinuous, Now: now,
		ExcludedSymbols: map[string]bool{"SBIN": true},
	})
	if out != nil {
		t.Fatal("expected excluded symbol to produce no signal")
	}
}

func TestOpeningRangeBreakoutInactiveAfterWindowEnd(t *testing.T) {
	log := zaptest.NewLogger(t)
	params := config.ORBParams{RangeMinPct: dec("0.3"), RangeMaxPct: dec("3"), VolumeMultiplier: dec("1.5"), MaxRiskPct: dec("3"), WindowEnd: "11:00"}
	orb := strategy.NewOpeningRangeBreakout(log, params)
	store := marketdata.New(log)
	store.UpdateOpeningRange("SBIN", dec("510"), dec("500"))
	store.LockOpeningRanges()
	store.UpdateTick(types.Tick{Symbol: "SBIN", Open: dec("505"), LTP: dec("515")})

	now := time.Date(2026, 7, 31, 11, 30, 0, 0, time.UTC)
	out := orb.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseContinuous, Now: now})
	if out != nil {
		t.Fatal("expected no signals after the window closes")
	}
}

func vwapParams() config.VWAPParams {
	return config.VWAPParams{
		WindowStart: "10:00", WindowEnd: "14:30",
		TouchThresholdPct: dec("0.3"), PullbackVolumeMultiplier: dec("1.2"),
		ReclaimVolumeMultiplier: dec("1.2"), Setup1SLBelowVWAPPct: dec("0.5"),
		MaxSignalsPerDay: 2, MinMinutesBetweenSignals: 30,
	}
}

func TestVWAPReversalPullbackSetup(t *testing.T) {
	log := zaptest.NewLogger(t)
	v := strategy.NewVWAPReversal(log, vwapParams())
	store := marketdata.New(log)

	store.UpdateVWAP("SBIN", dec("500"), dec("1000"))

	base := time.Date(2026, 7, 31, 10, 15, 0, 0, time.UTC)
	store.UpdateCandle("SBIN", dec("505"), dec("100"), base)
	store.UpdateCandle("SBIN", dec("510"), dec("100"), base.Add(15*time.Minute))
	store.UpdateCandle("SBIN", dec("501"), dec("150"), base.Add(30*time.Minute))
	store.UpdateCandle("SBIN", dec("502"), dec("50"), base.Add(45*time.Minute))

	now := time.Date(2026, 7, 31, 11, 1, 0, 0, time.UTC)
	out := v.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseContinuous, Now: now})
	if len(out) != 1 {
		t.Fatalf("expected 1 pullback signal, got %d", len(out))
	}
	if out[0].SetupSubType != "uptrend_pullback" {
		t.Fatalf("expected uptrend_pullback setup, got %s", out[0].SetupSubType)
	}
}

func TestVWAPReversalOutsideWindowProducesNothing(t *testing.T) {
	log := zaptest.NewLogger(t)
	v := strategy.NewVWAPReversal(log, vwapParams())
	store := marketdata.New(log)

	now := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	out := v.Evaluate(strategy.EvalInput{Store: store, Phase: types.PhaseContinuous, Now: now})
	if out != nil {
		t.Fatal("expected no signals before the VWAP window opens")
	}
}

func TestVWAPReversalResetClearsCooldowns(t *testing.T) {
	log := zaptest.NewLogger(t)
	v := strategy.NewVWAPReversal(log, vwapParams())
	store := marketdata.New(log)

	store.UpdateVWAP("SBIN", dec("500"), dec("1000"))

	base := time.Date(2026, 7, 31, 10, 15, 0, 0, time.UTC)
	store.UpdateCandle("SBIN", dec("505"), dec("100"), base)
	store.UpdateCandle("SBIN", dec("510"), dec("100"), base.Add(15*time.Minute))
	store.UpdateCandle("SBIN", dec("501"), dec("150"), base.Add(30*time.Minute))
	store.UpdateCandle("SBIN", dec("502"), dec("50"), base.Add(45*time.Minute))

	in := strategy.EvalInput{Store: store, Phase: types.PhaseContinuous, Now: time.Date(2026, 7, 31, 11, 1, 0, 0, time.UTC)}
	if out := v.Evaluate(in); len(out) != 1 {
		t.Fatalf("expected 1 signal before reset, got %d", len(out))
	}

	v.Reset()
	if out := v.Evaluate(in); len(out) != 1 {
		t.Fatalf("expected Reset to clear the cooldown so the symbol signals again, got %d", len(out))
	}
}
