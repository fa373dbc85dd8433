// Package adaptive implements the AdaptiveManager: per-strategy
// NORMAL/REDUCED/PAUSED throttling driven by consecutive
// loss streaks and rolling win rate. Grounded on
// internal/learning/feedback.go's PatternPerformance exponential rolling
// update and pause/resume-by-threshold idea.
package adaptive

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// Level is a strategy's current throttle state.
type Level string

const (
	LevelNormal  Level = "NORMAL"
	LevelReduced Level = "REDUCED"
	LevelPaused  Level = "PAUSED"
)

type strategyState struct {
	level             Level
	wins, losses      int
	consecutiveWins   int
	consecutiveLosses int
	fiveDayWinRate    decimal.Decimal
	tenDayWinRate     decimal.Decimal
}

// Config tunes the throttle/pause thresholds.
type Config struct {
	ConsecutiveLossesThrottle  int
	ConsecutiveLossesPause     int
	FiveDayWinRateWarnThreshold decimal.Decimal
	TenDayWinRatePauseThreshold decimal.Decimal
}

// Manager is the AdaptiveManager component.
type Manager struct {
	mu     sync.Mutex
	log    *zap.Logger
	cfg    Config
	states map[types.StrategyName]*strategyState
}

// New builds a Manager for the given strategy set.
func New(log *zap.Logger, cfg Config, strategies []types.StrategyName) *Manager {
	m := &Manager{
		log:    log.Named("adaptive-manager"),
		cfg:    cfg,
		states: make(map[types.StrategyName]*strategyState),
	}
	for _, s := range strategies {
		m.states[s] = &strategyState{level: LevelNormal}
	}
	return m
}

func (m *Manager) stateFor(name types.StrategyName) *strategyState {
	s, ok := m.states[name]
	if !ok {
		s = &strategyState{level: LevelNormal}
		m.states[name] = s
	}
	return s
}

// RecordOutcome updates a strategy's streak counters and transitions its
// level.
func (m *Manager) RecordOutcome(name types.StrategyName, won bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stateFor(name)
	if won {
		s.wins++
		s.consecutiveWins++
		s.consecutiveLosses = 0
		s.level = LevelNormal
		return
	}

	s.losses++
	s.consecutiveLosses++
	s.consecutiveWins = 0

	switch {
	case s.consecutiveLosses >= m.cfg.ConsecutiveLossesPause:
		s.level = LevelPaused
	case s.consecutiveLosses >= m.cfg.ConsecutiveLossesThrottle:
		s.level = LevelReduced
	}

	if s.level != LevelPaused {
		m.applyRollingWinRateRules(s)
	}

	m.log.Info("adaptive outcome recorded",
		zap.String("strategy", string(name)),
		zap.String("level", string(s.level)),
		zap.Int("consecutiveLosses", s.consecutiveLosses))
}

func (m *Manager) applyRollingWinRateRules(s *strategyState) {
	if s.tenDayWinRate.LessThan(m.cfg.TenDayWinRatePauseThreshold) && !s.tenDayWinRate.IsZero() {
		s.level = LevelPaused
	} else if s.fiveDayWinRate.LessThan(m.cfg.FiveDayWinRateWarnThreshold) && !s.fiveDayWinRate.IsZero() {
		if s.level == LevelNormal {
			s.level = LevelReduced
		}
	}
}

// UpdateRollingWinRates sets the 5-day/10-day windows, sourced from
// strategy_performance persistence.
func (m *Manager) UpdateRollingWinRates(name types.StrategyName, fiveDay, tenDay decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(name)
	s.fiveDayWinRate = fiveDay
	s.tenDayWinRate = tenDay
}

// ShouldAllowSignal returns true if NORMAL, true only for strength >= 4
// if REDUCED, false if PAUSED. Safe synchronous read from the main
// scheduler.
func (m *Manager) ShouldAllowSignal(name types.StrategyName, signalStrength int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(name)
	switch s.level {
	case LevelNormal:
		return true
	case LevelReduced:
		return signalStrength >= 4
	default:
		return false
	}
}

// Level returns a strategy's current throttle level.
func (m *Manager) Level(name types.StrategyName) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateFor(name).level
}

// ResetDaily zeroes the daily counters but preserves rolling windows.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.states {
		s.wins, s.losses = 0, 0
		s.consecutiveWins, s.consecutiveLosses = 0, 0
		s.level = LevelNormal
	}
}
