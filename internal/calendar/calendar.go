// Package calendar is the market-calendar collaborator: trading-day
// predicate and fixed session timings. This is a concrete default, not
// a production holiday feed.
package calendar

import (
	"time"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// SessionTimings are the fixed IST clock points the scheduler and the
// phase transitions key off.
var SessionTimings = struct {
	MarketOpen      string
	RegimeClassify  string
	OpeningRangeLock string
	StopNewSignals  string
	ExitReminder    string
	MandatoryExit   string
	DailySummary    string
}{
	MarketOpen:       "09:15",
	RegimeClassify:   "09:30",
	OpeningRangeLock: "09:45",
	StopNewSignals:   "14:30",
	ExitReminder:     "15:00",
	MandatoryExit:    "15:15",
	DailySummary:     "15:30",
}

// Calendar answers trading-day and holiday questions for a given year.
type Calendar interface {
	IsTradingDay(t time.Time) bool
	Holidays(year int) []time.Time
}

// staticCalendar holds a hardcoded NSE holiday list, overridable by
// loading a different set at startup. It is the default collaborator
// implementation; a production deployment would replace it with a feed.
type staticCalendar struct {
	holidaysByYear map[int]map[string]struct{}
}

// NewStatic builds a Calendar from a year->dates map. Each date is a
// time.Time truncated to day precision.
func NewStatic(holidaysByYear map[int][]time.Time) Calendar {
	c := &staticCalendar{holidaysByYear: make(map[int]map[string]struct{})}
	for year, dates := range holidaysByYear {
		set := make(map[string]struct{}, len(dates))
		for _, d := range dates {
			set[d.Format("2006-01-02")] = struct{}{}
		}
		c.holidaysByYear[year] = set
	}
	return c
}

func (c *staticCalendar) IsTradingDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	set, ok := c.holidaysByYear[t.Year()]
	if !ok {
		return true
	}
	_, isHoliday := set[t.Format("2006-01-02")]
	return !isHoliday
}

func (c *staticCalendar) Holidays(year int) []time.Time {
	set := c.holidaysByYear[year]
	out := make([]time.Time, 0, len(set))
	for k := range set {
		t, err := time.Parse("2006-01-02", k)
		if err == nil {
			out = append(out, t)
		}
	}
	return out
}

// entryWindowEnd is the fixed IST clock point a PhaseClock compares the
// wall clock against to end ENTRY_WINDOW. It isn't named in
// SessionTimings (the schedule only fixes open, regime-check, range-lock,
// stop-new-signals, exit-reminder, mandatory-exit, and daily-summary
// points) so it's pinned here against the strategy windows: ENTRY_WINDOW
// runs from the opening-range lock until the VWAP Reversal window opens,
// CONTINUOUS runs from there until StopNewSignals.
const (
	entryWindowEnd = "10:00"
)

// PhaseClock is the default PhaseResolver: a pure function of wall-clock
// time against the fixed session timings, with no holiday or half-day
// awareness (that's IsTradingDay's job, checked separately before the
// scan loop starts for the day).
type PhaseClock struct {
	loc *time.Location
}

// NewPhaseClock builds a PhaseClock that parses clock points in loc.
func NewPhaseClock(loc *time.Location) *PhaseClock {
	return &PhaseClock{loc: loc}
}

// CurrentPhase maps now to the named time slice of the trading day:
// PRE_MARKET/OPENING/ENTRY_WINDOW/CONTINUOUS/WIND_DOWN/POST_MARKET.
func (p *PhaseClock) CurrentPhase(now time.Time) types.Phase {
	clock := now.In(p.loc)
	switch {
	case before(clock, SessionTimings.MarketOpen):
		return types.PhasePreMarket
	case before(clock, SessionTimings.OpeningRangeLock):
		return types.PhaseOpening
	case before(clock, entryWindowEnd):
		return types.PhaseEntryWindow
	case before(clock, SessionTimings.StopNewSignals):
		return types.PhaseContinuous
	case before(clock, SessionTimings.DailySummary):
		return types.PhaseWindDown
	default:
		return types.PhasePostMarket
	}
}

// before reports whether clock's time-of-day is strictly before hhmm
// ("15:04"-formatted) on clock's own date.
func before(clock time.Time, hhmm string) bool {
	bound, err := time.ParseInLocation("15:04", hhmm, clock.Location())
	if err != nil {
		return false
	}
	boundToday := time.Date(clock.Year(), clock.Month(), clock.Day(), bound.Hour(), bound.Minute(), 0, 0, clock.Location())
	return clock.Before(boundToday)
}
