package scheduler_test

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/scheduler"
)

type fixedCalendar struct{ tradingDay bool }

func (c fixedCalendar) IsTradingDay(t time.Time) bool { return c.tradingDay }
func (c fixedCalendar) Holidays(year int) []time.Time { return nil }

func TestDefaultScheduleReturnsSeventeenJobs(t *testing.T) {
	noop := func(now time.Time) {}
	handlers := scheduler.Handlers{
		PreMarketNews: noop, MorningBrief: noop, PreMarketAlert: noop, StartScanning: noop,
		ClassifyRegime: noop, LockOpeningRanges: noop, RefreshNews: noop, StopNewSignals: noop,
		ExitReminder: noop, MandatoryExit: noop, DailySummary: noop, Shutdown: noop, WeeklyRebalance: noop,
	}
	jobs := scheduler.DefaultSchedule(handlers)
	if len(jobs) != 17 {
		t.Fatalf("expected 17 scheduled jobs, got %d", len(jobs))
	}

	classifyCount := 0
	for _, j := range jobs {
		switch j.Name {
		case "classify-regime-open", "classify-regime-1100", "classify-regime-1300", "classify-regime-1430":
			classifyCount++
		}
	}
	if classifyCount != 4 {
		t.Fatalf("expected 4 regime-classification jobs, got %d", classifyCount)
	}

	weeklyFound := false
	for _, j := range jobs {
		if j.Name == "weekly-rebalance" {
			weeklyFound = true
			if !j.IgnoreCalendar {
				t.Fatal("expected weekly-rebalance to ignore the trading calendar")
			}
		}
	}
	if !weeklyFound {
		t.Fatal("expected a weekly-rebalance job")
	}
}

func TestRegisterRejectsInvalidCronSpec(t *testing.T) {
	log := zaptest.NewLogger(t)
	s := scheduler.New(log, fixedCalendar{tradingDay: true}, time.UTC)

	err := s.Register(scheduler.Job{Name: "bad-job", Spec: "not a cron spec", Run: func(now time.Time) {}})
	if err == nil {
		t.Fatal("expected an error registering an invalid cron spec")
	}
}

func TestRegisterSkipsOnNonTradingDay(t *testing.T) {
	log := zaptest.NewLogger(t)
	cal := fixedCalendar{tradingDay: false}
	s := scheduler.New(log, cal, time.UTC)

	ran := make(chan struct{}, 1)
	next := time.Now().In(time.UTC).Add(time.Minute)
	spec := cronSpecAt(next)
	if err := s.Register(scheduler.Job{Name: "test-job", Spec: spec, Run: func(now time.Time) { ran <- struct{}{} }}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
		t.Fatal("expected job to be skipped on a non-trading day")
	case <-time.After(1200 * time.Millisecond):
	}
}

// cronSpecAt builds a one-shot minute-granularity spec firing at t's
// minute/hour, since robfig/cron has no sub-minute resolution.
func cronSpecAt(t time.Time) string {
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
}
