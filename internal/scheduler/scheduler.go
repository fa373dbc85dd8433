// Package scheduler implements the Scheduler component: cron-like
// fixed intraday events on trading days, each job skipping
// silently on non-trading days. Grounded on internal/autonomous's
// ticker-driven loop style for the job-dispatch shape, using
// robfig/cron/v3 for the fixed-clock scheduling itself — not carried by
// the teacher, adopted from the aristath-sentinel/ternarybob-quaero
// manifests, the pack's only cron-capable dependency.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/calendar"
)

// Job is one named scheduled action.
type Job struct {
	Name string
	Spec string // standard 5-field cron expression, IST wall-clock
	Run  func(now time.Time)
	// IgnoreCalendar bypasses the trading-day gate, for jobs meant to
	// run on non-trading days too (the Sunday weekly rebalance).
	IgnoreCalendar bool
}

// Scheduler wraps a robfig/cron instance, gating every job on
// calendar.IsTradingDay before it runs.
type Scheduler struct {
	log  *zap.Logger
	cal  calendar.Calendar
	cron *cron.Cron
	ids  []cron.EntryID
}

// New builds a Scheduler bound to a trading calendar, running in the
// given location (IST in production).
func New(log *zap.Logger, cal calendar.Calendar, loc *time.Location) *Scheduler {
	return &Scheduler{
		log:  log.Named("scheduler"),
		cal:  cal,
		cron: cron.New(cron.WithLocation(loc), cron.WithLogger(cron.DiscardLogger)),
	}
}

// Register adds a job, wrapping it so it no-ops on non-trading days.
func (s *Scheduler) Register(job Job) error {
	id, err := s.cron.AddFunc(job.Spec, func() {
		now := time.Now().In(s.cron.Location())
		if !job.IgnoreCalendar && !s.cal.IsTradingDay(now) {
			s.log.Debug("skipping job, non-trading day", zap.String("job", job.Name))
			return
		}
		s.log.Info("running scheduled job", zap.String("job", job.Name))
		job.Run(now)
	})
	if err != nil {
		return err
	}
	s.ids = append(s.ids, id)
	return nil
}

// Start begins dispatching registered jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts dispatch and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// DefaultSchedule returns the fixed intraday events, wired to the
// given handler functions. Callers pass no-ops for any
// event they don't implement.
func DefaultSchedule(handlers Handlers) []Job {
	return []Job{
		{Name: "premarket-news", Spec: "30 8 * * 1-5", Run: handlers.PreMarketNews},
		{Name: "morning-brief", Spec: "45 8 * * 1-5", Run: handlers.MorningBrief},
		{Name: "premarket-alert", Spec: "0 9 * * 1-5", Run: handlers.PreMarketAlert},
		{Name: "start-scanning", Spec: "15 9 * * 1-5", Run: handlers.StartScanning},
		{Name: "classify-regime-open", Spec: "30 9 * * 1-5", Run: handlers.ClassifyRegime},
		{Name: "lock-opening-ranges", Spec: "45 9 * * 1-5", Run: handlers.LockOpeningRanges},
		{Name: "classify-regime-1100", Spec: "0 11 * * 1-5", Run: handlers.ClassifyRegime},
		{Name: "refresh-news-1115", Spec: "15 11 * * 1-5", Run: handlers.RefreshNews},
		{Name: "classify-regime-1300", Spec: "0 13 * * 1-5", Run: handlers.ClassifyRegime},
		{Name: "refresh-news-1315", Spec: "15 13 * * 1-5", Run: handlers.RefreshNews},
		{Name: "classify-regime-1430", Spec: "30 14 * * 1-5", Run: handlers.ClassifyRegime},
		{Name: "stop-new-signals", Spec: "30 14 * * 1-5", Run: handlers.StopNewSignals},
		{Name: "exit-reminder", Spec: "0 15 * * 1-5", Run: handlers.ExitReminder},
		{Name: "mandatory-exit", Spec: "15 15 * * 1-5", Run: handlers.MandatoryExit},
		{Name: "daily-summary", Spec: "30 15 * * 1-5", Run: handlers.DailySummary},
		{Name: "shutdown", Spec: "35 15 * * 1-5", Run: handlers.Shutdown},
		{Name: "weekly-rebalance", Spec: "0 18 * * 0", Run: handlers.WeeklyRebalance, IgnoreCalendar: true},
	}
}

// Handlers bundles every named event the default schedule dispatches
// to, one method per event.
type Handlers struct {
	PreMarketNews    func(now time.Time)
	MorningBrief     func(now time.Time)
	PreMarketAlert   func(now time.Time)
	StartScanning    func(now time.Time)
	ClassifyRegime   func(now time.Time)
	LockOpeningRanges func(now time.Time)
	RefreshNews      func(now time.Time)
	StopNewSignals   func(now time.Time)
	ExitReminder     func(now time.Time)
	MandatoryExit    func(now time.Time)
	DailySummary     func(now time.Time)
	Shutdown         func(now time.Time)
	WeeklyRebalance  func(now time.Time)
}
