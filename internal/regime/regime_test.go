package regime_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/regime"
	"github.com/atlas-desktop/marketscan/internal/types"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestClassifyPicksTrendingOnStrongDirectionalMove(t *testing.T) {
	c := regime.New(zaptest.NewLogger(t))
	result := c.Classify(time.Now(), regime.Inputs{
		DirectionalAlignment: dec("1"),
		NiftyGapMagnitudePct: dec("3"),
		ExternalMarketSignal: dec("0.8"),
		VIXBand:              dec("0.1"),
		First15MinRangePct:   dec("0.2"),
	})

	if result.Label != types.RegimeTrending {
		t.Fatalf("expected TRENDING, got %s", result.Label)
	}
	if result.MinStarRating != 3 {
		t.Fatalf("expected min star rating 3 for non-volatile regimes, got %d", result.MinStarRating)
	}
	if !result.PositionSizeScalar.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected position scalar 1, got %s", result.PositionSizeScalar)
	}
}

func TestClassifyPicksVolatileOnHighVIXAndFlow(t *testing.T) {
	c := regime.New(zaptest.NewLogger(t))
	result := c.Classify(time.Now(), regime.Inputs{
		VIXBand:           dec("1"),
		First15MinRangePct: dec("2"),
		InstitutionalFlow: dec("1"),
	})

	if result.Label != types.RegimeVolatile {
		t.Fatalf("expected VOLATILE, got %s", result.Label)
	}
	if result.MinStarRating != 4 {
		t.Fatalf("expected min star rating 4 for VOLATILE, got %d", result.MinStarRating)
	}
	if !result.PositionSizeScalar.Equal(dec("0.5")) {
		t.Fatalf("expected position scalar 0.5 for VOLATILE, got %s", result.PositionSizeScalar)
	}
}

func TestCachedReturnsLastClassification(t *testing.T) {
	c := regime.New(zaptest.NewLogger(t))
	if cached := c.Cached(); cached.Label != "" {
		t.Fatalf("expected zero value before any classification, got %+v", cached)
	}

	result := c.Classify(time.Now(), regime.Inputs{DirectionalAlignment: dec("1")})
	if c.Cached().Label != result.Label {
		t.Fatal("expected Cached to reflect the last Classify call")
	}
}

func TestOverrideReplacesCachedLabel(t *testing.T) {
	c := regime.New(zaptest.NewLogger(t))
	c.Classify(time.Now(), regime.Inputs{DirectionalAlignment: dec("1")})

	c.Override(types.RegimeRanging)
	if c.Cached().Label != types.RegimeRanging {
		t.Fatalf("expected override to set label to RANGING, got %s", c.Cached().Label)
	}
}
