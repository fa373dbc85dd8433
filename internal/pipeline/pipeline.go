// Package pipeline composes the named ScanContext stages and exposes
// the Pipeline type the ScanEngine drives once per
// scan tick. Grounded on internal/events/event_bus.go's typed handler
// composition and internal/orchestrator/orchestrator.go's stage-handler
// wiring, narrowed to a fixed ordered stage list rather than an open
// pub/sub surface.
package pipeline

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// ScanContext is the mutable bag threaded through every stage in a
// scan tick.
type ScanContext struct {
	CycleID          int64
	Now              time.Time
	Phase            types.Phase
	AcceptingSignals bool

	EnabledStrategies map[types.StrategyName]bool

	Candidates        []types.CandidateSignal
	ExcludedSymbols   map[string]bool
	ConfirmationMap   map[string]ConfirmationEntry
	CompositeScores   map[int]decimal.Decimal // index into Ranked
	Ranked            []types.RankedSignal
	SentimentResults  map[string]types.Sentiment
	Suppressed        []types.SuppressedSignal
	Final             []types.FinalSignal
	ActiveTradeCount  int

	RegimeLabel       types.RegimeLabel
	RegimeConfidence  decimal.Decimal
	StrategyWeights   map[types.StrategyName]decimal.Decimal
	MinStarRating     int
	PositionScalar    decimal.Decimal
}

// ConfirmationEntry is one symbol's confirmation level plus which
// strategies contributed, recorded by the Confirmation stage.
type ConfirmationEntry struct {
	Level       types.ConfirmationLevel
	Strategies  []types.StrategyName
}

// NewScanContext starts a fresh context for one cycle.
func NewScanContext(cycleID int64, now time.Time, phase types.Phase, acceptingSignals bool) *ScanContext {
	return &ScanContext{
		CycleID:           cycleID,
		Now:               now,
		Phase:             phase,
		AcceptingSignals:  acceptingSignals,
		EnabledStrategies: make(map[types.StrategyName]bool),
		ExcludedSymbols:   make(map[string]bool),
		ConfirmationMap:   make(map[string]ConfirmationEntry),
		SentimentResults:  make(map[string]types.Sentiment),
		PositionScalar:    decimal.NewFromInt(1),
	}
}

// Stage is the closed capability set: name + process. Stages never
// crash the pipeline — they log and return the context unchanged on
// internal error.
type Stage interface {
	Name() string
	Process(ctx *ScanContext) *ScanContext
}

// Pipeline holds two ordered stage groups.
type Pipeline struct {
	log           *zap.Logger
	signalStages  []Stage
	alwaysStages  []Stage
}

// New builds a Pipeline from its ordered stage lists.
func New(log *zap.Logger, signalStages, alwaysStages []Stage) *Pipeline {
	return &Pipeline{
		log:          log.Named("pipeline"),
		signalStages: signalStages,
		alwaysStages: alwaysStages,
	}
}

// signalPhases is the closed set of phases in which signal generation
// stages are eligible to run.
var signalPhases = map[types.Phase]bool{
	types.PhaseOpening:     true,
	types.PhaseEntryWindow: true,
	types.PhaseContinuous:  true,
}

// Run executes signalStages iff ctx.AcceptingSignals and the phase is
// signal-eligible, then always executes alwaysStages.
func (p *Pipeline) Run(ctx *ScanContext) *ScanContext {
	if ctx.AcceptingSignals && signalPhases[ctx.Phase] {
		for _, stage := range p.signalStages {
			ctx = p.runStage(stage, ctx)
		}
	}
	for _, stage := range p.alwaysStages {
		ctx = p.runStage(stage, ctx)
	}
	return ctx
}

func (p *Pipeline) runStage(stage Stage, ctx *ScanContext) (out *ScanContext) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline stage panicked, context unchanged",
				zap.String("stage", stage.Name()), zap.Any("recover", r))
			out = ctx
		}
	}()
	return stage.Process(ctx)
}
