// Package circuitbreaker implements the daily global kill-switch on
// stop-loss exits. Grounded closely on
// internal/execution/risk_manager.go's consecutiveLosses/
// triggerKillSwitch/ManualKillSwitch/DisableKillSwitch/ResetDailyStats,
// narrowed to one rule: trip when today's SL-hit count reaches a
// configured limit.
package circuitbreaker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// CircuitBreaker counts SL-hit exits today and trips acceptingSignals
// off when the limit is reached.
type CircuitBreaker struct {
	mu    sync.RWMutex
	log   *zap.Logger
	limit int

	slCount     int
	triggeredAt *time.Time
	override    bool
}

// New builds a CircuitBreaker with the configured daily SL-hit limit.
func New(log *zap.Logger, limit int) *CircuitBreaker {
	return &CircuitBreaker{log: log.Named("circuit-breaker"), limit: limit}
}

// RecordSLHit increases slCount by exactly one and trips the breaker if
// the limit is reached. Safe to call from the main scheduler only.
func (c *CircuitBreaker) RecordSLHit(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slCount++
	if c.slCount >= c.limit && c.triggeredAt == nil && !c.override {
		t := now
		c.triggeredAt = &t
		c.log.Warn("circuit breaker tripped", zap.Int("slCount", c.slCount), zap.Int("limit", c.limit))
	}
}

// IsActive is a synchronous read safe from the main scheduler.
func (c *CircuitBreaker) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.triggeredAt != nil && !c.override
}

// Override manually clears the trigger and re-enables signal
// generation.
func (c *CircuitBreaker) Override() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = true
	c.triggeredAt = nil
	c.log.Info("circuit breaker manually overridden")
}

// ResetDaily zeroes the state at session start.
func (c *CircuitBreaker) ResetDaily() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slCount = 0
	c.triggeredAt = nil
	c.override = false
}

// State snapshots the current CircuitState for persistence/UI.
func (c *CircuitBreaker) State() types.CircuitState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.CircuitState{
		SLCount:        c.slCount,
		TriggeredAt:    c.triggeredAt,
		ManualOverride: c.override,
	}
}
