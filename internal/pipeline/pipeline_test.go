package pipeline_test

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/types"
)

type recordingStage struct {
	name string
	runs *[]string
}

func (s recordingStage) Name() string { return s.name }
func (s recordingStage) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	*s.runs = append(*s.runs, s.name)
	return ctx
}

type panickingStage struct{}

func (panickingStage) Name() string { return "panics" }
func (panickingStage) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	panic("boom")
}

func TestRunExecutesSignalStagesWhenAcceptingAndEligiblePhase(t *testing.T) {
	var runs []string
	signal := []pipeline.Stage{recordingStage{name: "a", runs: &runs}, recordingStage{name: "b", runs: &runs}}
	always := []pipeline.Stage{recordingStage{name: "always", runs: &runs}}
	p := pipeline.New(zaptest.NewLogger(t), signal, always)

	ctx := pipeline.NewScanContext(1, time.Now(), types.PhaseContinuous, true)
	p.Run(ctx)

	if len(runs) != 3 || runs[0] != "a" || runs[1] != "b" || runs[2] != "always" {
		t.Fatalf("expected [a b always], got %v", runs)
	}
}

func TestRunSkipsSignalStagesWhenNotAccepting(t *testing.T) {
	var runs []string
	signal := []pipeline.Stage{recordingStage{name: "a", runs: &runs}}
	always := []pipeline.Stage{recordingStage{name: "always", runs: &runs}}
	p := pipeline.New(zaptest.NewLogger(t), signal, always)

	ctx := pipeline.NewScanContext(1, time.Now(), types.PhaseContinuous, false)
	p.Run(ctx)

	if len(runs) != 1 || runs[0] != "always" {
		t.Fatalf("expected only always stage to run, got %v", runs)
	}
}

func TestRunSkipsSignalStagesOutsideSignalPhases(t *testing.T) {
	var runs []string
	signal := []pipeline.Stage{recordingStage{name: "a", runs: &runs}}
	always := []pipeline.Stage{recordingStage{name: "always", runs: &runs}}
	p := pipeline.New(zaptest.NewLogger(t), signal, always)

	ctx := pipeline.NewScanContext(1, time.Now(), types.PhasePreMarket, true)
	p.Run(ctx)

	if len(runs) != 1 || runs[0] != "always" {
		t.Fatalf("expected only always stage to run in PRE_MARKET, got %v", runs)
	}
}

func TestRunRecoversFromPanickingStage(t *testing.T) {
	var runs []string
	signal := []pipeline.Stage{panickingStage{}, recordingStage{name: "after", runs: &runs}}
	p := pipeline.New(zaptest.NewLogger(t), signal, nil)

	ctx := pipeline.NewScanContext(1, time.Now(), types.PhaseContinuous, true)
	out := p.Run(ctx)

	if out == nil {
		t.Fatal("expected context to survive a panicking stage")
	}
	if len(runs) != 1 || runs[0] != "after" {
		t.Fatalf("expected pipeline to continue after panic, got %v", runs)
	}
}
