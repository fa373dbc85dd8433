// Package persistence implements the abstract row store: signals,
// trades, user_config, and the supplemented tables this
// port adds (watchlist, earnings_calendar, strategy_performance).
// Grounded on ChoSanghyuk-blackholedex's gorm.io/gorm +
// gorm.io/driver/mysql stack — the one pack repo with a relational
// persistence layer; the teacher itself has none (fully in-memory).
package persistence

import (
	"time"

	"gorm.io/gorm"
)

// SignalRow is the signals table row.
type SignalRow struct {
	gorm.Model
	Symbol    string `gorm:"index"`
	Strategy  string
	Entry     string
	SL        string
	T1        string
	T2        string
	Quantity  int
	Status    string `gorm:"index"`
	Rank      int
	Strength  int
	ExpiresAt time.Time
	TradeDate time.Time `gorm:"index"`
}

// TradeRow is the trades table row.
type TradeRow struct {
	gorm.Model
	SignalID       uint `gorm:"index"`
	Symbol         string `gorm:"index"`
	Strategy       string
	Entry          string
	SL             string
	T1             string
	T2             string
	Quantity       int
	TakenAt        time.Time
	ExitPrice      string
	ExitReason     string
	RealizedPnLAbs string
	RealizedPnLPct string
	ExitedAt       *time.Time
	Closed         bool `gorm:"index"`
}

// UserConfigRow is the single-row user_config table.
type UserConfigRow struct {
	gorm.Model
	TotalCapital string
}

// CircuitBreakerLogRow records each trip/override/reset.
type CircuitBreakerLogRow struct {
	gorm.Model
	Event   string
	SLCount int
}

// AdaptationLogRow records each AdaptiveManager level transition.
type AdaptationLogRow struct {
	gorm.Model
	Strategy string
	Level    string
}

// NewsSentimentRow caches a sentiment read for the day.
type NewsSentimentRow struct {
	gorm.Model
	Symbol string `gorm:"index"`
	Label  string
	Score  string
}

// EarningsCalendarRow is the supplemented earnings blackout table.
type EarningsCalendarRow struct {
	gorm.Model
	Symbol        string `gorm:"index"`
	EarningsDate  time.Time `gorm:"index"`
}

// RegimeClassificationRow records each classification/checkpoint.
type RegimeClassificationRow struct {
	gorm.Model
	Label      string
	Confidence string
}

// RegimePerformanceRow tracks realized performance per regime label.
type RegimePerformanceRow struct {
	gorm.Model
	Regime  string `gorm:"index"`
	WinRate string
}

// SignalActionRow logs every operator action on a signal (taken/skipped/watch).
type SignalActionRow struct {
	gorm.Model
	SignalID uint `gorm:"index"`
	Action   string
}

// WatchlistRow is the supplemented manual watchlist table.
type WatchlistRow struct {
	gorm.Model
	Symbol string `gorm:"uniqueIndex"`
}

// StrategyPerformanceRow is the rolling win-rate window per strategy.
type StrategyPerformanceRow struct {
	gorm.Model
	Strategy      string `gorm:"uniqueIndex"`
	FiveDayWinRate  string
	TenDayWinRate   string
}

// AllModels lists every row type for AutoMigrate.
func AllModels() []any {
	return []any{
		&SignalRow{}, &TradeRow{}, &UserConfigRow{}, &CircuitBreakerLogRow{},
		&AdaptationLogRow{}, &NewsSentimentRow{}, &EarningsCalendarRow{},
		&RegimeClassificationRow{}, &RegimePerformanceRow{}, &SignalActionRow{},
		&WatchlistRow{}, &StrategyPerformanceRow{},
	}
}
