package strategy

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// cooldownState is the per-symbol VWAP signal cooldown tracker;
// defaults are resolved in SPEC_FULL.md.
type cooldownState struct {
	count       int
	lastSignal  time.Time
}

// VWAPReversal operates on completed 15-minute candles.
type VWAPReversal struct {
	log    *zap.Logger
	params config.VWAPParams

	mu         sync.Mutex
	lastBucket map[string]time.Time
	cooldowns  map[string]*cooldownState
}

// NewVWAPReversal constructs the strategy with tuned parameters.
func NewVWAPReversal(log *zap.Logger, params config.VWAPParams) *VWAPReversal {
	return &VWAPReversal{
		log:        log.Named("strategy-vwap"),
		params:     params,
		lastBucket: make(map[string]time.Time),
		cooldowns:  make(map[string]*cooldownState),
	}
}

func (v *VWAPReversal) Name() types.StrategyName { return types.StrategyVWAP }

func (v *VWAPReversal) ActivePhases() []types.Phase {
	return []types.Phase{types.PhaseContinuous}
}

func (v *VWAPReversal) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastBucket = make(map[string]time.Time)
	v.cooldowns = make(map[string]*cooldownState)
}

func (v *VWAPReversal) inWindow(now time.Time) bool {
	parse := func(s string) time.Time {
		t, _ := time.ParseInLocation("15:04", s, now.Location())
		return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	}
	start, end := parse(v.params.WindowStart), parse(v.params.WindowEnd)
	return !now.Before(start) && now.Before(end)
}

func (v *VWAPReversal) allowedByCooldown(symbol string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	cd, ok := v.cooldowns[symbol]
	if !ok {
		return true
	}
	if cd.count >= v.params.MaxSignalsPerDay {
		return false
	}
	return now.Sub(cd.lastSignal) >= time.Duration(v.params.MinMinutesBetweenSignals)*time.Minute
}

func (v *VWAPReversal) recordSignal(symbol string, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cd, ok := v.cooldowns[symbol]
	if !ok {
		cd = &cooldownState{}
		v.cooldowns[symbol] = cd
	}
	cd.count++
	cd.lastSignal = now
}

func (v *VWAPReversal) Evaluate(in EvalInput) []types.CandidateSignal {
	if !v.inWindow(in.Now) {
		return nil
	}

	var out []types.CandidateSignal

	for _, symbol := range in.Store.GetSymbols() {
		completed := in.Store.GetCompletedCandles(symbol)
		if len(completed) < 2 {
			continue
		}
		last := completed[len(completed)-1]

		v.mu.Lock()
		seen, ok := v.lastBucket[symbol]
		v.mu.Unlock()
		if ok && !last.StartTime.After(seen) {
			continue
		}
		v.mu.Lock()
		v.lastBucket[symbol] = last.StartTime
		v.mu.Unlock()

		if !v.allowedByCooldown(symbol, in.Now) {
			continue
		}

		vwap, ok := in.Store.GetVWAP(symbol)
		if !ok || !vwap.Defined() {
			continue
		}

		prior := completed[len(completed)-2]
		avgVol := in.Store.GetAvgCandleVolume(symbol)
		if avgVol.IsZero() {
			continue
		}

		var cand *types.CandidateSignal
		if c := v.pullback(symbol, prior, last, vwap, avgVol); c != nil {
			cand = c
		} else if c := v.reclaim(symbol, prior, last, vwap, avgVol, completed); c != nil {
			cand = c
		}

		if cand != nil {
			cand.GeneratedAt = in.Now
			out = append(out, *cand)
			v.recordSignal(symbol, in.Now)
		}
	}

	return out
}

func (v *VWAPReversal) pullback(symbol string, prior, last types.Candle15m, vwap types.VWAPState, avgVol decimal.Decimal) *types.CandidateSignal {
	if !prior.Close.GreaterThan(vwap.CurrentVWAP) {
		return nil
	}
	touchThreshold := vwap.CurrentVWAP.Mul(v.params.TouchThresholdPct.Div(decimal.NewFromInt(100)))
	if last.Low.GreaterThan(vwap.CurrentVWAP.Add(touchThreshold)) {
		return nil
	}
	if !last.Close.GreaterThan(vwap.CurrentVWAP) {
		return nil
	}
	if last.Volume.LessThan(avgVol.Mul(v.params.PullbackVolumeMultiplier)) {
		return nil
	}

	entry := last.Close
	sl := vwap.CurrentVWAP.Mul(decimal.NewFromInt(1).Sub(v.params.Setup1SLBelowVWAPPct.Div(decimal.NewFromInt(100))))
	return &types.CandidateSignal{
		Symbol:       symbol,
		Direction:    types.SideBuy,
		Strategy:     types.StrategyVWAP,
		Entry:        entry,
		SL:           sl,
		T1:           entry.Mul(decimal.NewFromFloat(1.02)),
		T2:           entry.Mul(decimal.NewFromFloat(1.035)),
		SetupSubType: "uptrend_pullback",
	}
}

func (v *VWAPReversal) reclaim(symbol string, prior, last types.Candle15m, vwap types.VWAPState, avgVol decimal.Decimal, completed []types.Candle15m) *types.CandidateSignal {
	if !prior.Close.LessThan(vwap.CurrentVWAP) {
		return nil
	}
	if !last.Close.GreaterThan(vwap.CurrentVWAP) {
		return nil
	}
	if last.Volume.LessThan(avgVol.Mul(v.params.ReclaimVolumeMultiplier)) {
		return nil
	}

	n := len(completed)
	lowStart := n - 3
	if lowStart < 0 {
		lowStart = 0
	}
	sl := completed[lowStart].Low
	for _, c := range completed[lowStart:] {
		if c.Low.LessThan(sl) {
			sl = c.Low
		}
	}

	entry := last.Close
	return &types.CandidateSignal{
		Symbol:       symbol,
		Direction:    types.SideBuy,
		Strategy:     types.StrategyVWAP,
		Entry:        entry,
		SL:           sl,
		T1:           entry.Mul(decimal.NewFromFloat(1.02)),
		T2:           entry.Mul(decimal.NewFromFloat(1.035)),
		SetupSubType: "vwap_reclaim",
	}
}
