package sizing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/sizing"
	"github.com/atlas-desktop/marketscan/internal/types"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func baseRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		TotalCapital:           dec("100000"),
		MaxConcurrentPositions: 5,
		MaxRiskPct:             dec("5"),
		ConfirmedDoubleCap:     dec("1.5"),
		ConfirmedTripleCap:     dec("2"),
		SignalExpiryMinutes:    15,
	}
}

func TestSizeProducesFinalSignalWithinCaps(t *testing.T) {
	sizer := sizing.New(zaptest.NewLogger(t), baseRiskConfig())
	ranked := []types.RankedSignal{
		{Candidate: types.CandidateSignal{Symbol: "SBIN", Entry: dec("500"), SL: dec("490")}},
	}
	results := sizer.Size(time.Now(), ranked, 0, dec("1"))

	if len(results) != 1 || results[0].Rejected {
		t.Fatalf("expected 1 accepted result, got %+v", results)
	}
	if results[0].Final.Quantity != 40 {
		t.Fatalf("expected quantity 40 (20000/500), got %d", results[0].Final.Quantity)
	}
}

func TestSizeRejectsWhenMaxConcurrentPositionsReached(t *testing.T) {
	cfg := baseRiskConfig()
	cfg.MaxConcurrentPositions = 1
	sizer := sizing.New(zaptest.NewLogger(t), cfg)
	ranked := []types.RankedSignal{
		{Candidate: types.CandidateSignal{Symbol: "SBIN", Entry: dec("500"), SL: dec("490")}},
	}
	results := sizer.Size(time.Now(), ranked, 1, dec("1"))

	if len(results) != 1 || !results[0].Rejected || results[0].Reason != "max_concurrent_positions" {
		t.Fatalf("expected max_concurrent_positions rejection, got %+v", results)
	}
}

func TestSizeRejectsWhenRiskExceedsMax(t *testing.T) {
	sizer := sizing.New(zaptest.NewLogger(t), baseRiskConfig())
	ranked := []types.RankedSignal{
		{Candidate: types.CandidateSignal{Symbol: "SBIN", Entry: dec("500"), SL: dec("400")}},
	}
	results := sizer.Size(time.Now(), ranked, 0, dec("1"))

	if len(results) != 1 || !results[0].Rejected || results[0].Reason != "risk_exceeds_max" {
		t.Fatalf("expected risk_exceeds_max rejection, got %+v", results)
	}
}

func TestSizeAppliesConfirmedDoubleCapWhenWithinTotalCapital(t *testing.T) {
	sizer := sizing.New(zaptest.NewLogger(t), baseRiskConfig())
	ranked := []types.RankedSignal{
		{Candidate: types.CandidateSignal{Symbol: "SBIN", Entry: dec("500"), SL: dec("490")}, Confirmation: types.ConfirmationDouble},
	}
	results := sizer.Size(time.Now(), ranked, 0, dec("1"))

	if len(results) != 1 || results[0].Rejected {
		t.Fatalf("expected accepted result, got %+v", results)
	}
	if results[0].Final.Quantity != 60 {
		t.Fatalf("expected quantity 60 (30000/500) with double-confirmation cap, got %d", results[0].Final.Quantity)
	}
}

func TestSizeRejectsInvalidEntry(t *testing.T) {
	sizer := sizing.New(zaptest.NewLogger(t), baseRiskConfig())
	ranked := []types.RankedSignal{
		{Candidate: types.CandidateSignal{Symbol: "SBIN", Entry: dec("0"), SL: dec("0")}},
	}
	results := sizer.Size(time.Now(), ranked, 0, dec("1"))

	if len(results) != 1 || !results[0].Rejected || results[0].Reason != "invalid_entry" {
		t.Fatalf("expected invalid_entry rejection, got %+v", results)
	}
}
