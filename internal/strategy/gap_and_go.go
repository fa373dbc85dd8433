package strategy

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// gapCandidate is the per-symbol state Gap & Go tracks across the
// OPENING and ENTRY_WINDOW phases.
type gapCandidate struct {
	gapPct            decimal.Decimal
	open              decimal.Decimal
	volumeValidated   bool
	disqualified      bool
}

// GapAndGo is active OPENING + ENTRY_WINDOW.
type GapAndGo struct {
	*baseState
	params config.GapAndGoParams

	mu         sync.Mutex
	candidates map[string]*gapCandidate
}

// NewGapAndGo constructs the strategy with its tuned parameters.
func NewGapAndGo(log *zap.Logger, params config.GapAndGoParams) *GapAndGo {
	return &GapAndGo{
		baseState:  newBaseState(log, "strategy-gap"),
		params:     params,
		candidates: make(map[string]*gapCandidate),
	}
}

func (g *GapAndGo) Name() types.StrategyName { return types.StrategyGapAndGo }

func (g *GapAndGo) ActivePhases() []types.Phase {
	return []types.Phase{types.PhaseOpening, types.PhaseEntryWindow}
}

func (g *GapAndGo) Reset() {
	g.baseState.reset()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.candidates = make(map[string]*gapCandidate)
}

func (g *GapAndGo) Evaluate(in EvalInput) []types.CandidateSignal {
	switch in.Phase {
	case types.PhaseOpening:
		g.scanOpening(in)
		return nil
	case types.PhaseEntryWindow:
		return g.evaluateEntryWindow(in)
	default:
		return nil
	}
}

func (g *GapAndGo) scanOpening(in EvalInput) {
	for _, symbol := range in.Store.GetSymbols() {
		if g.alreadySignaled(symbol) {
			continue
		}

		tick, ok := in.Store.GetTick(symbol)
		if !ok {
			continue
		}
		hist, ok := in.Store.GetHistorical(symbol)
		if !ok || hist.PrevClose.IsZero() {
			continue
		}

		g.mu.Lock()
		cand, tracked := g.candidates[symbol]
		g.mu.Unlock()

		if !tracked {
			gapPct := tick.Open.Sub(hist.PrevClose).Div(hist.PrevClose).Mul(decimal.NewFromInt(100))
			if gapPct.LessThan(g.params.GapMinPct) || gapPct.GreaterThan(g.params.GapMaxPct) {
				continue
			}
			if !tick.Open.GreaterThan(hist.PrevHigh) {
				continue
			}
			cand = &gapCandidate{gapPct: gapPct, open: tick.Open}
			g.mu.Lock()
			g.candidates[symbol] = cand
			g.mu.Unlock()
		}

		g.validateVolume(symbol, cand, tick, hist)
	}
}

func (g *GapAndGo) validateVolume(symbol string, cand *gapCandidate, tick types.Tick, hist types.HistoricalReference) {
	if cand.volumeValidated || hist.AvgDailyVolume.IsZero() {
		return
	}
	ratio := tick.CumVolume.Div(hist.AvgDailyVolume).Mul(decimal.NewFromInt(100))
	if ratio.GreaterThanOrEqual(g.params.VolumeThresholdPct) {
		g.mu.Lock()
		cand.volumeValidated = true
		g.mu.Unlock()
	}
}

func (g *GapAndGo) evaluateEntryWindow(in EvalInput) []types.CandidateSignal {
	var out []types.CandidateSignal

	for _, symbol := range in.Store.GetSymbols() {
		if g.alreadySignaled(symbol) {
			continue
		}

		g.mu.Lock()
		cand, tracked := g.candidates[symbol]
		g.mu.Unlock()
		if !tracked || cand.disqualified {
			continue
		}

		tick, ok := in.Store.GetTick(symbol)
		if !ok {
			continue
		}
		hist, ok := in.Store.GetHistorical(symbol)
		if !ok {
			continue
		}
		g.validateVolume(symbol, cand, tick, hist)
		if !cand.volumeValidated {
			continue
		}

		if tick.LTP.LessThanOrEqual(tick.Open) {
			g.mu.Lock()
			cand.disqualified = true
			g.mu.Unlock()
			continue
		}

		entry := tick.LTP
		maxRiskSL := entry.Mul(decimal.NewFromInt(1).Sub(g.params.MaxRiskPct.Div(decimal.NewFromInt(100))))
		sl := cand.open
		if maxRiskSL.GreaterThan(sl) {
			sl = maxRiskSL
		}
		t1 := entry.Mul(decimal.NewFromInt(1).Add(g.params.T1Pct.Div(decimal.NewFromInt(100))))
		t2 := entry.Mul(decimal.NewFromInt(1).Add(g.params.T2Pct.Div(decimal.NewFromInt(100))))

		out = append(out, types.CandidateSignal{
			Symbol:       symbol,
			Direction:    types.SideBuy,
			Strategy:     types.StrategyGapAndGo,
			Entry:        entry,
			SL:           sl,
			T1:           t1,
			T2:           t2,
			GapPct:       cand.gapPct,
			DistFromOpen: entry.Sub(tick.Open),
			GeneratedAt:  in.Now,
		})
		g.markSignaled(symbol)
	}

	return out
}
