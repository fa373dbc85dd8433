package scanengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/scanengine"
	"github.com/atlas-desktop/marketscan/internal/types"
)

type fixedPhase struct{ phase types.Phase }

func (f fixedPhase) CurrentPhase(now time.Time) types.Phase { return f.phase }

type countingStage struct {
	mu    sync.Mutex
	count int
}

func (s *countingStage) Name() string { return "counting" }
func (s *countingStage) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return ctx
}

func (s *countingStage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// panicPhase panics inside CurrentPhase, outside the pipeline's own
// per-stage panic recovery, so it actually fails a scan cycle.
type panicPhase struct{}

func (panicPhase) CurrentPhase(now time.Time) types.Phase { panic("boom") }

func TestEngineTicksPipelineOnSchedule(t *testing.T) {
	log := zaptest.NewLogger(t)
	stage := &countingStage{}
	pl := pipeline.New(log, []pipeline.Stage{stage}, nil)

	engine := scanengine.New(log, scanengine.Config{TickInterval: 10 * time.Millisecond, MaxConsecutiveErrors: 5},
		fixedPhase{phase: types.PhaseContinuous}, pl, []types.StrategyName{types.StrategyGapAndGo}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	time.Sleep(80 * time.Millisecond)
	engine.Stop()

	if stage.Count() < 2 {
		t.Fatalf("expected multiple ticks to have run the pipeline, got %d", stage.Count())
	}
}

func TestEngineStopAcceptingSignalsDoesNotStopLoop(t *testing.T) {
	log := zaptest.NewLogger(t)
	stage := &countingStage{}
	pl := pipeline.New(log, []pipeline.Stage{stage}, nil)

	engine := scanengine.New(log, scanengine.Config{TickInterval: 10 * time.Millisecond, MaxConsecutiveErrors: 5},
		fixedPhase{phase: types.PhaseContinuous}, pl, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	time.Sleep(20 * time.Millisecond)

	engine.StopAcceptingSignals()
	if engine.AcceptingSignals() {
		t.Fatal("expected acceptingSignals to be false after StopAcceptingSignals")
	}

	before := stage.Count()
	time.Sleep(40 * time.Millisecond)
	engine.Stop()
	if stage.Count() <= before {
		t.Fatal("expected the loop to keep ticking after signals are stopped")
	}
}

func TestEngineSelfHaltsAfterConsecutivePanics(t *testing.T) {
	log := zaptest.NewLogger(t)
	pl := pipeline.New(log, nil, nil)

	halted := make(chan string, 1)
	engine := scanengine.New(log, scanengine.Config{TickInterval: 5 * time.Millisecond, MaxConsecutiveErrors: 2},
		panicPhase{}, pl, nil, nil, func(reason string) { halted <- reason })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)
	defer engine.Stop()

	select {
	case reason := <-halted:
		if reason != "consecutive_scan_errors" {
			t.Fatalf("unexpected halt reason: %s", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the engine to self-halt after consecutive pipeline panics")
	}
}
