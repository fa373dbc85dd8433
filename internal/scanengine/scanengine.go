// Package scanengine drives the Pipeline once per scan tick: build a
// fresh ScanContext, run the pipeline, propagate the
// possibly-mutated acceptingSignals back into engine state, sleep, and
// repeat. Grounded on internal/autonomous/agent.go's mainLoop/stopChan
// ticker-select shape, narrowed to a single cooperative 1Hz loop instead
// of TradingAgent's separate main/risk-monitor goroutines.
package scanengine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/metrics"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// PhaseResolver computes the current trading Phase for a given instant,
// owned by the orchestrator/scheduler rather than the engine itself.
type PhaseResolver interface {
	CurrentPhase(now time.Time) types.Phase
}

// Config tunes the ScanEngine's cadence and self-halt threshold.
type Config struct {
	TickInterval        time.Duration
	MaxConsecutiveErrors int
}

// DefaultConfig returns the spec's ≈1 second cadence.
func DefaultConfig() Config {
	return Config{TickInterval: time.Second, MaxConsecutiveErrors: 5}
}

// Engine is the ScanEngine component.
type Engine struct {
	log    *zap.Logger
	cfg    Config
	phases PhaseResolver
	pl     *pipeline.Pipeline

	enabledStrategies map[types.StrategyName]bool
	excludedSymbols   func() map[string]bool

	mu               sync.RWMutex
	acceptingSignals bool
	running          atomic.Bool
	cycleID          int64
	consecutiveErrs  int

	stopCh   chan struct{}
	doneCh   chan struct{}
	onHalt   func(reason string)
}

// New builds an Engine. excludedSymbols resolves GapStockMarking's
// persistent flagged-symbol set for the next cycle's strategy input.
func New(log *zap.Logger, cfg Config, phases PhaseResolver, pl *pipeline.Pipeline, strategies []types.StrategyName, excludedSymbols func() map[string]bool, onHalt func(reason string)) *Engine {
	enabled := make(map[types.StrategyName]bool, len(strategies))
	for _, s := range strategies {
		enabled[s] = true
	}
	return &Engine{
		log:               log.Named("scan-engine"),
		cfg:               cfg,
		phases:            phases,
		pl:                pl,
		enabledStrategies: enabled,
		excludedSymbols:   excludedSymbols,
		onHalt:            onHalt,
	}
}

// Start launches the scan loop, returning immediately. A no-op if
// already running.
func (e *Engine) Start(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.mu.Lock()
	e.acceptingSignals = true
	e.consecutiveErrs = 0
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	go e.loop(ctx)
}

// Stop halts the scan loop and blocks until the current tick finishes.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.mu.RLock()
	stopCh := e.stopCh
	doneCh := e.doneCh
	e.mu.RUnlock()
	close(stopCh)
	<-doneCh
}

// StopAcceptingSignals flips acceptingSignals to false without stopping
// the loop; exits continue monitoring. Used by the 14:30 scheduler job.
func (e *Engine) StopAcceptingSignals() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acceptingSignals = false
}

// AcceptingSignals is a synchronous read of the current gate state.
func (e *Engine) AcceptingSignals() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.acceptingSignals
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.doneCh)
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.mu.RLock()
	stopCh := e.stopCh
	e.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case now := <-ticker.C:
			if e.tick(now) {
				return
			}
		}
	}
}

func (e *Engine) tick(now time.Time) bool {
	start := time.Now()
	defer func() {
		metrics.ScanCycleDuration.Observe(time.Since(start).Seconds())
	}()

	ok := e.runCycle(now)
	metrics.ScanCyclesTotal.Inc()

	e.mu.Lock()
	if ok {
		e.consecutiveErrs = 0
	} else {
		e.consecutiveErrs++
	}
	halted := e.consecutiveErrs >= e.cfg.MaxConsecutiveErrors
	e.mu.Unlock()

	metrics.ConsecutiveScanErrors.Set(float64(e.consecutiveErrs))

	if halted {
		e.log.Error("scan engine halting itself after consecutive errors", zap.Int("consecutiveErrors", e.consecutiveErrs))
		e.running.Store(false)
		if e.onHalt != nil {
			e.onHalt("consecutive_scan_errors")
		}
	}
	return halted
}

func (e *Engine) runCycle(now time.Time) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("scan cycle panicked", zap.Any("recover", r))
			ok = false
		}
	}()

	e.mu.Lock()
	e.cycleID++
	cycleID := e.cycleID
	accepting := e.acceptingSignals
	e.mu.Unlock()

	phase := e.phases.CurrentPhase(now)
	ctx := pipeline.NewScanContext(cycleID, now, phase, accepting)
	ctx.EnabledStrategies = e.enabledStrategies
	if e.excludedSymbols != nil {
		ctx.ExcludedSymbols = e.excludedSymbols()
	}

	ctx = e.pl.Run(ctx)

	e.mu.Lock()
	e.acceptingSignals = ctx.AcceptingSignals
	e.mu.Unlock()

	metrics.ActiveTradeCount.Set(float64(ctx.ActiveTradeCount))
	for _, final := range ctx.Final {
		metrics.SignalsGeneratedTotal.WithLabelValues(string(final.Ranked.Candidate.Strategy)).Inc()
	}
	for _, s := range ctx.Suppressed {
		metrics.SignalsSuppressedTotal.WithLabelValues(s.Reason).Inc()
	}

	return true
}
