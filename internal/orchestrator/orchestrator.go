// Package orchestrator implements AppOrchestrator: startup, daily
// session reset, graceful shutdown, and crash recovery
// for the whole signal engine. Grounded on
// internal/orchestrator/orchestrator.go's Start/Stop component ordering
// and cmd/server/main.go's signal-based shutdown sequence, narrowed from
// the teacher's event-bus/worker-pool composition to the fixed
// component set SPEC_FULL.md names.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/adaptive"
	"github.com/atlas-desktop/marketscan/internal/broker"
	"github.com/atlas-desktop/marketscan/internal/calendar"
	"github.com/atlas-desktop/marketscan/internal/chat"
	"github.com/atlas-desktop/marketscan/internal/circuitbreaker"
	"github.com/atlas-desktop/marketscan/internal/exitmonitor"
	"github.com/atlas-desktop/marketscan/internal/historical"
	"github.com/atlas-desktop/marketscan/internal/marketdata"
	"github.com/atlas-desktop/marketscan/internal/persistence"
	"github.com/atlas-desktop/marketscan/internal/pipeline/stages"
	"github.com/atlas-desktop/marketscan/internal/regime"
	"github.com/atlas-desktop/marketscan/internal/scanengine"
	"github.com/atlas-desktop/marketscan/internal/scheduler"
	"github.com/atlas-desktop/marketscan/internal/sentiment"
	"github.com/atlas-desktop/marketscan/internal/strategy"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// Deps bundles every long-lived component the orchestrator wires
// together and owns the lifecycle of.
type Deps struct {
	Log         *zap.Logger
	Calendar    calendar.Calendar
	Store       *marketdata.Store
	Transport   broker.Transport
	Historical  *historical.Loader
	Instruments []types.Instrument
	Registry    *strategy.Registry
	Scanner     *scanengine.Engine
	Scheduler   *scheduler.Scheduler
	Repo        persistence.Repository
	ExitMonitor *exitmonitor.Monitor
	CircuitBrk  *circuitbreaker.CircuitBreaker
	RegimeClsf  *regime.Classifier
	Adaptive    *adaptive.Manager
	Sentiment   *sentiment.Gate
	GapMarking  *stages.GapStockMarking
	Notifier    chat.Notifier
}

// Orchestrator is the AppOrchestrator component.
type Orchestrator struct {
	log  *zap.Logger
	deps Deps

	mu      sync.Mutex
	running bool
}

// New builds an Orchestrator from its wired dependencies.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{log: deps.Log.Named("orchestrator"), deps: deps}
}

// Start performs full startup: persistence is assumed already open by
// the caller; this method authenticates the broker, loads historical
// references, connects and subscribes the transport, starts the scan
// loop, and starts the scheduler.
func (o *Orchestrator) Start(ctx context.Context, auth broker.Authenticator) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: already running")
	}
	o.running = true
	o.mu.Unlock()

	o.log.Info("starting", zap.Int("instruments", len(o.deps.Instruments)))

	tokens, err := auth.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: broker auth: %w", err)
	}

	symbols := make([]string, len(o.deps.Instruments))
	for i, instr := range o.deps.Instruments {
		symbols[i] = instr.Symbol
	}
	refs := o.deps.Historical.LoadAll(ctx, symbols)
	if len(refs) < len(symbols) {
		o.log.Warn("historical load incomplete, continuing with partial data",
			zap.Int("loaded", len(refs)), zap.Int("wanted", len(symbols)))
	}
	for _, ref := range refs {
		o.deps.Store.SetHistorical(ref)
	}

	if err := o.deps.Transport.Connect(ctx, tokens, 10*time.Second); err != nil {
		return fmt.Errorf("orchestrator: transport connect: %w", err)
	}
	brokerTokens := make([]string, len(o.deps.Instruments))
	for i, instr := range o.deps.Instruments {
		brokerTokens[i] = instr.BrokerToken
	}
	if err := o.deps.Transport.Subscribe(brokerTokens); err != nil {
		return fmt.Errorf("orchestrator: transport subscribe: %w", err)
	}

	o.deps.Scanner.Start(ctx)
	o.deps.Scheduler.Start()

	o.log.Info("started successfully")
	return nil
}

// DailyReset implements the 09:15 startScanning reset: strategies,
// store session state, adaptive and circuit-breaker daily counters,
// sentiment unsuppress overrides and the GapStockMarking set. The
// cached regime classification is not cleared.
func (o *Orchestrator) DailyReset(now time.Time) {
	o.log.Info("daily session reset", zap.Time("at", now))
	o.deps.Store.ClearSession()
	for _, s := range o.deps.Registry.All() {
		s.Reset()
	}
	o.deps.Adaptive.ResetDaily()
	o.deps.CircuitBrk.ResetDaily()
	o.deps.Sentiment.ResetDaily()
	o.deps.GapMarking.Reset()
}

// Shutdown performs graceful shutdown in order: stop
// scan, disconnect transport, stop scheduler. Closing persistence is the
// caller's responsibility (it owns the *gorm.DB handle).
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	o.mu.Unlock()

	o.log.Info("shutting down")
	o.deps.Scanner.Stop()
	if err := o.deps.Transport.Disconnect(); err != nil {
		o.log.Warn("transport disconnect failed", zap.Error(err))
	}
	o.deps.Scheduler.Stop()
	o.log.Info("shutdown complete")
	return nil
}

// RecoverFromCrash reinitializes after an unexpected restart: reloads
// historical references, re-attaches the exit monitor to every open
// trade from persistence, sends a recovery alert, restarts scanning,
// and forces acceptingSignals off if the current phase is past the
// signal cutoff.
func (o *Orchestrator) RecoverFromCrash(ctx context.Context, currentPhase types.Phase) error {
	o.log.Warn("recovering from crash")

	symbols := make([]string, len(o.deps.Instruments))
	for i, instr := range o.deps.Instruments {
		symbols[i] = instr.Symbol
	}
	refs := o.deps.Historical.LoadAll(ctx, symbols)
	if len(refs) < len(symbols) {
		o.log.Warn("historical reload incomplete during recovery",
			zap.Int("loaded", len(refs)), zap.Int("wanted", len(symbols)))
	}
	for _, ref := range refs {
		o.deps.Store.SetHistorical(ref)
	}

	openTrades, err := o.deps.Repo.GetActiveTrades()
	if err != nil {
		return fmt.Errorf("orchestrator: recovery trade reload: %w", err)
	}
	for _, row := range openTrades {
		o.deps.ExitMonitor.Attach(tradeFromRow(row))
	}

	o.deps.Notifier.SendCriticalAlert(fmt.Sprintf("recovered from crash, re-attached %d open trades", len(openTrades)))

	o.deps.Scanner.Start(ctx)
	if currentPhase == types.PhaseWindDown || currentPhase == types.PhasePostMarket {
		o.deps.Scanner.StopAcceptingSignals()
	}
	return nil
}

// strategyTally accumulates win/loss counts for a rolling win-rate window.
type strategyTally struct {
	wins, total int
}

func (t *strategyTally) record(won bool) {
	t.total++
	if won {
		t.wins++
	}
}

func (t *strategyTally) winRate() decimal.Decimal {
	if t.total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(t.wins)).Div(decimal.NewFromInt(int64(t.total)))
}

// DailySummary aggregates trades closed over the trailing 5/10-day
// windows into a per-strategy win-rate rollup (persisted via
// UpsertStrategyPerformance and fed into the AdaptiveManager), and
// notifies the day's own closed-trade count and net P&L.
func (o *Orchestrator) DailySummary(now time.Time) error {
	since5 := now.AddDate(0, 0, -5)
	since10 := now.AddDate(0, 0, -10)

	trades, err := o.deps.Repo.GetTradesClosedSince(since10)
	if err != nil {
		return fmt.Errorf("orchestrator: daily summary trade fetch: %w", err)
	}

	fiveDay := make(map[types.StrategyName]*strategyTally)
	tenDay := make(map[types.StrategyName]*strategyTally)
	dayPnL := decimal.Zero
	dayTrades := 0

	for _, row := range trades {
		strat := types.StrategyName(row.Strategy)
		pnl := decimalOrZero(row.RealizedPnLAbs)
		won := pnl.GreaterThan(decimal.Zero)

		if tenDay[strat] == nil {
			tenDay[strat] = &strategyTally{}
		}
		tenDay[strat].record(won)

		if row.ExitedAt == nil {
			continue
		}
		if !row.ExitedAt.Before(since5) {
			if fiveDay[strat] == nil {
				fiveDay[strat] = &strategyTally{}
			}
			fiveDay[strat].record(won)
		}
		if row.ExitedAt.Year() == now.Year() && row.ExitedAt.YearDay() == now.YearDay() {
			dayPnL = dayPnL.Add(pnl)
			dayTrades++
		}
	}

	for strat, tally10 := range tenDay {
		tenRate := tally10.winRate()
		fiveRate := decimal.Zero
		if tally5, ok := fiveDay[strat]; ok {
			fiveRate = tally5.winRate()
		}

		if err := o.deps.Repo.UpsertStrategyPerformance(string(strat), fiveRate.String(), tenRate.String()); err != nil {
			o.log.Error("failed to persist strategy performance", zap.String("strategy", string(strat)), zap.Error(err))
			continue
		}
		o.deps.Adaptive.UpdateRollingWinRates(strat, fiveRate, tenRate)
	}

	o.deps.Notifier.SendAlert(fmt.Sprintf("daily summary: %d trades closed today, net P&L %s", dayTrades, dayPnL.StringFixed(2)))
	return nil
}

func tradeFromRow(row persistence.TradeRow) *types.Trade {
	return &types.Trade{
		ID:       fmt.Sprintf("%d", row.ID),
		SignalID: fmt.Sprintf("%d", row.SignalID),
		Symbol:   row.Symbol,
		Strategy: types.StrategyName(row.Strategy),
		Entry:    decimalOrZero(row.Entry),
		SL:       decimalOrZero(row.SL),
		T1:       decimalOrZero(row.T1),
		T2:       decimalOrZero(row.T2),
		Quantity: row.Quantity,
		TakenAt:  row.TakenAt,
	}
}

func decimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
