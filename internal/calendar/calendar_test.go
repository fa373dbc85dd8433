package calendar

import (
	"testing"
	"time"

	"github.com/atlas-desktop/marketscan/internal/types"
)

func TestStaticCalendarIsTradingDay(t *testing.T) {
	ist, _ := time.LoadLocation("Asia/Kolkata")
	holiday := time.Date(2026, 1, 26, 0, 0, 0, 0, ist)
	cal := NewStatic(map[int][]time.Time{2026: {holiday}})

	if cal.IsTradingDay(holiday) {
		t.Fatal("expected republic day to be a holiday")
	}
	saturday := time.Date(2026, 1, 24, 0, 0, 0, 0, ist)
	if cal.IsTradingDay(saturday) {
		t.Fatal("expected saturday to not be a trading day")
	}
	weekday := time.Date(2026, 1, 27, 0, 0, 0, 0, ist)
	if !cal.IsTradingDay(weekday) {
		t.Fatal("expected ordinary weekday to be a trading day")
	}
}

func TestPhaseClockCurrentPhase(t *testing.T) {
	ist, _ := time.LoadLocation("Asia/Kolkata")
	pc := NewPhaseClock(ist)

	cases := []struct {
		hhmm  string
		want  types.Phase
	}{
		{"09:00", types.PhasePreMarket},
		{"09:15", types.PhaseOpening},
		{"09:44", types.PhaseOpening},
		{"09:45", types.PhaseEntryWindow},
		{"09:59", types.PhaseEntryWindow},
		{"10:00", types.PhaseContinuous},
		{"13:00", types.PhaseContinuous},
		{"14:29", types.PhaseContinuous},
		{"14:30", types.PhaseWindDown},
		{"15:15", types.PhaseWindDown},
		{"15:29", types.PhaseWindDown},
		{"15:30", types.PhasePostMarket},
		{"16:00", types.PhasePostMarket},
	}
	for _, c := range cases {
		clock, err := time.ParseInLocation("2006-01-02 15:04", "2026-02-02 "+c.hhmm, ist)
		if err != nil {
			t.Fatalf("parse %s: %v", c.hhmm, err)
		}
		if got := pc.CurrentPhase(clock); got != c.want {
			t.Errorf("at %s: expected %s, got %s", c.hhmm, c.want, got)
		}
	}
}
