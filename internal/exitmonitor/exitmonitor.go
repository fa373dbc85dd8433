// Package exitmonitor implements the ExitMonitor state machine:
// per-trade trailing stop-loss, breakeven, target advisories, and
// SL-proximity alerts, reacting to every tick.
package exitmonitor

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// EventType is the kind of exit-monitor event emitted on a tick.
type EventType string

const (
	EventBreakeven      EventType = "BREAKEVEN"
	EventTrailingUpdate EventType = "TRAILING_SL_UPDATE"
	EventT1Alert        EventType = "T1_ALERT"
	EventSLApproaching  EventType = "SL_APPROACHING"
	EventNearT2Alert    EventType = "NEAR_T2_ALERT"
	EventClosed         EventType = "CLOSED"
	EventTimeExitAdvisory EventType = "TIME_EXIT_ADVISORY"
)

// Event is one emitted advisory or exit.
type Event struct {
	Type       EventType
	TradeID    string
	Symbol     string
	Strategy   types.StrategyName
	ExitReason types.ExitReason
	ExitPrice  decimal.Decimal
	PnLAbs     decimal.Decimal
	PnLPct     decimal.Decimal
	Timestamp  time.Time
}

// TickSource resolves the latest tick for a symbol.
type TickSource interface {
	GetTick(symbol string) (types.Tick, bool)
}

// Monitor is the ExitMonitor component. It owns its per-trade state map
// outright.
type Monitor struct {
	mu     sync.Mutex
	log    *zap.Logger
	cfg    config.TrailingSLConfig
	trades map[string]*types.Trade
	states map[string]*types.TrailingStopState

	onSLHit func(tradeID string)
}

// New builds a Monitor with the given trailing-SL configuration.
func New(log *zap.Logger, cfg config.TrailingSLConfig, onSLHit func(tradeID string)) *Monitor {
	return &Monitor{
		log:     log.Named("exit-monitor"),
		cfg:     cfg,
		trades:  make(map[string]*types.Trade),
		states:  make(map[string]*types.TrailingStopState),
		onSLHit: onSLHit,
	}
}

// Attach begins monitoring a newly-taken trade.
func (m *Monitor) Attach(trade *types.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[trade.ID] = trade
	m.states[trade.ID] = &types.TrailingStopState{
		TradeID:      trade.ID,
		OriginalSL:   trade.SL,
		CurrentSL:    trade.SL,
		HighestPrice: trade.Entry,
	}
}

// Detach stops monitoring a trade (closed, or re-attached elsewhere).
func (m *Monitor) Detach(tradeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trades, tradeID)
	delete(m.states, tradeID)
}

// ActiveTradeCount is a synchronous read of how many trades are open.
func (m *Monitor) ActiveTradeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

// Tick runs the full per-trade state machine once, iterating active
// trades by id ascending for reproducible per-tick alerts.
func (m *Monitor) Tick(now time.Time, ticks TickSource) []Event {
	m.mu.Lock()
	ids := make([]string, 0, len(m.trades))
	for id := range m.trades {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	m.mu.Unlock()

	var events []Event
	for _, id := range ids {
		events = append(events, m.tickOne(id, now, ticks)...)
	}
	return events
}

func (m *Monitor) tickOne(tradeID string, now time.Time, ticks TickSource) []Event {
	m.mu.Lock()
	trade, ok := m.trades[tradeID]
	state := m.states[tradeID]
	m.mu.Unlock()
	if !ok || state == nil {
		return nil
	}

	tick, ok := ticks.GetTick(trade.Symbol)
	if !ok {
		return nil
	}
	ltp := tick.LTP

	var events []Event

	m.mu.Lock()
	if ltp.GreaterThan(state.HighestPrice) {
		state.HighestPrice = ltp
	}

	gainPct := ltp.Sub(trade.Entry).Div(trade.Entry).Mul(decimal.NewFromInt(100))

	// 2. Trailing update, checked before SL.
	if gainPct.GreaterThanOrEqual(m.cfg.TrailTriggerPct) {
		newSL := ltp.Mul(decimal.NewFromInt(1).Sub(m.cfg.TrailDistancePct.Div(decimal.NewFromInt(100))))
		if newSL.GreaterThan(state.CurrentSL) {
			state.CurrentSL = newSL
			state.TrailingActive = true
			state.BreakevenTriggered = true
			events = append(events, Event{Type: EventTrailingUpdate, TradeID: tradeID, Symbol: trade.Symbol, Timestamp: now})
		}
	} else if gainPct.GreaterThanOrEqual(m.cfg.BreakevenTriggerPct) && !state.BreakevenTriggered {
		state.CurrentSL = trade.Entry
		state.BreakevenTriggered = true
		events = append(events, Event{Type: EventBreakeven, TradeID: tradeID, Symbol: trade.Symbol, Timestamp: now})
	}

	// 3. SL check.
	if ltp.LessThanOrEqual(state.CurrentSL) {
		reason := types.ExitReasonSLHit
		if state.TrailingActive {
			reason = types.ExitReasonTrailingSL
		}
		m.mu.Unlock()
		closeEvt := m.close(tradeID, trade, ltp, reason, now)
		if reason == types.ExitReasonSLHit && m.onSLHit != nil {
			m.onSLHit(tradeID)
		}
		return append(events, closeEvt)
	}

	// 4. T2 check.
	if ltp.GreaterThanOrEqual(trade.T2) {
		m.mu.Unlock()
		closeEvt := m.close(tradeID, trade, ltp, types.ExitReasonT2Hit, now)
		return append(events, closeEvt)
	}

	// 5. T1 advisory, one-shot.
	if ltp.GreaterThanOrEqual(trade.T1) && !state.T1Alerted {
		state.T1Alerted = true
		events = append(events, Event{Type: EventT1Alert, TradeID: tradeID, Symbol: trade.Symbol, Timestamp: now})
	}

	// 6. SL-approaching alert, cooldown 60s.
	proximityPct := ltp.Sub(state.CurrentSL).Abs().Div(state.CurrentSL).Mul(decimal.NewFromInt(100))
	if proximityPct.LessThanOrEqual(m.cfg.SLApproachingPct) && now.After(state.SLApproachingCooldownUntil) {
		state.SLApproachingCooldownUntil = now.Add(m.cfg.SLApproachingCooldown)
		events = append(events, Event{Type: EventSLApproaching, TradeID: tradeID, Symbol: trade.Symbol, Timestamp: now})
	}

	// 7. Near-T2 alert, one-shot, only after T1 alerted.
	nearT2Pct := ltp.Sub(trade.T2).Abs().Div(trade.T2).Mul(decimal.NewFromInt(100))
	if state.T1Alerted && !state.NearT2Alerted && nearT2Pct.LessThanOrEqual(m.cfg.NearT2Pct) {
		state.NearT2Alerted = true
		events = append(events, Event{Type: EventNearT2Alert, TradeID: tradeID, Symbol: trade.Symbol, Timestamp: now})
	}

	m.mu.Unlock()
	return events
}

func (m *Monitor) close(tradeID string, trade *types.Trade, exitPrice decimal.Decimal, reason types.ExitReason, now time.Time) Event {
	pnlAbs := exitPrice.Sub(trade.Entry).Mul(decimal.NewFromInt(int64(trade.Quantity)))
	pnlPct := exitPrice.Sub(trade.Entry).Div(trade.Entry).Mul(decimal.NewFromInt(100))

	trade.ExitPrice = exitPrice
	trade.ExitReason = reason
	trade.RealizedPnLAbs = pnlAbs
	trade.RealizedPnLPct = pnlPct
	trade.ExitedAt = now
	trade.Closed = true

	m.Detach(tradeID)

	m.log.Info("trade closed", zap.String("tradeId", tradeID), zap.String("reason", string(reason)), zap.String("pnlPct", pnlPct.String()))

	return Event{
		Type: EventClosed, TradeID: tradeID, Symbol: trade.Symbol, Strategy: trade.Strategy,
		ExitReason: reason, ExitPrice: exitPrice, PnLAbs: pnlAbs, PnLPct: pnlPct, Timestamp: now,
	}
}

// TriggerTimeExit implements the 15:00 advisory / 15:15 mandatory close
// pair.
func (m *Monitor) TriggerTimeExit(now time.Time, mandatory bool, ticks TickSource) []Event {
	m.mu.Lock()
	ids := make([]string, 0, len(m.trades))
	for id := range m.trades {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	m.mu.Unlock()

	var events []Event
	for _, id := range ids {
		m.mu.Lock()
		trade := m.trades[id]
		m.mu.Unlock()
		if trade == nil {
			continue
		}

		tick, ok := ticks.GetTick(trade.Symbol)
		if !ok {
			continue
		}

		if !mandatory {
			events = append(events, Event{Type: EventTimeExitAdvisory, TradeID: id, Symbol: trade.Symbol, Timestamp: now})
			continue
		}
		events = append(events, m.close(id, trade, tick.LTP, types.ExitReasonTimeExit, now))
	}
	return events
}
