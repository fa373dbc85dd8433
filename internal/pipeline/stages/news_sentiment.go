package stages

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/sentiment"
)

// NewsSentiment implements the NewsSentimentGate stage: fetches
// sentiment for every ranked symbol, then suppresses or
// downgrades per the gate's action table.
type NewsSentiment struct {
	log   *zap.Logger
	gate  *sentiment.Gate
}

// NewNewsSentiment builds the sentiment gate stage.
func NewNewsSentiment(log *zap.Logger, gate *sentiment.Gate) *NewsSentiment {
	return &NewsSentiment{log: log.Named("stage-news-sentiment"), gate: gate}
}

func (s *NewsSentiment) Name() string { return "NewsSentiment" }

func (s *NewsSentiment) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	if len(ctx.Ranked) == 0 {
		return ctx
	}

	symbols := make([]string, 0, len(ctx.Ranked))
	seen := make(map[string]bool)
	for _, r := range ctx.Ranked {
		if !seen[r.Candidate.Symbol] {
			seen[r.Candidate.Symbol] = true
			symbols = append(symbols, r.Candidate.Symbol)
		}
	}

	results := s.gate.FetchAll(context.Background(), symbols)
	for symbol, res := range results {
		ctx.SentimentResults[symbol] = res.Label
	}

	kept := ctx.Ranked[:0]
	for _, r := range ctx.Ranked {
		res := results[r.Candidate.Symbol]
		eval := s.gate.Evaluate(ctx.Now, r.Candidate.Symbol, res)

		if eval.Suppress {
			ctx.Suppressed = append(ctx.Suppressed, eval.Suppressed)
			continue
		}
		if eval.Downgrade && r.SignalStrength > 1 {
			r.SignalStrength--
		}
		kept = append(kept, r)
	}
	ctx.Ranked = kept

	for i := range ctx.Ranked {
		ctx.Ranked[i].Rank = i + 1
	}
	return ctx
}
