package circuitbreaker_test

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/circuitbreaker"
)

func TestRecordSLHitTripsAtLimit(t *testing.T) {
	cb := circuitbreaker.New(zaptest.NewLogger(t), 3)

	cb.RecordSLHit(time.Now())
	cb.RecordSLHit(time.Now())
	if cb.IsActive() {
		t.Fatal("expected breaker inactive before the limit is reached")
	}

	cb.RecordSLHit(time.Now())
	if !cb.IsActive() {
		t.Fatal("expected breaker active once the limit is reached")
	}
}

func TestOverrideClearsTrigger(t *testing.T) {
	cb := circuitbreaker.New(zaptest.NewLogger(t), 1)
	cb.RecordSLHit(time.Now())
	if !cb.IsActive() {
		t.Fatal("expected breaker active")
	}

	cb.Override()
	if cb.IsActive() {
		t.Fatal("expected override to clear the trigger")
	}

	cb.RecordSLHit(time.Now())
	if cb.IsActive() {
		t.Fatal("expected override to suppress further trips")
	}
}

func TestResetDailyClearsState(t *testing.T) {
	cb := circuitbreaker.New(zaptest.NewLogger(t), 1)
	cb.RecordSLHit(time.Now())
	cb.Override()

	cb.ResetDaily()
	state := cb.State()
	if state.SLCount != 0 || state.TriggeredAt != nil || state.ManualOverride {
		t.Fatalf("expected zeroed state after reset, got %+v", state)
	}

	cb.RecordSLHit(time.Now())
	if !cb.IsActive() {
		t.Fatal("expected breaker to trip again after reset clears the override")
	}
}
