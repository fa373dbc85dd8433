package stages

import (
	"sort"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/pipeline"
)

// Ranking implements Ranker: sorts by composite score desc, tie-break
// by generation timestamp asc, assigns rank 1..N. Also
// applies the regime's minStarRating floor, since both act on the same
// ordered list and the regime is already in context by this stage.
type Ranking struct {
	log *zap.Logger
}

// NewRanking builds the ranking stage.
func NewRanking(log *zap.Logger) *Ranking {
	return &Ranking{log: log.Named("stage-ranking")}
}

func (s *Ranking) Name() string { return "Ranking" }

func (s *Ranking) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	sort.SliceStable(ctx.Ranked, func(i, j int) bool {
		a, b := ctx.Ranked[i], ctx.Ranked[j]
		if !a.CompositeScore.Equal(b.CompositeScore) {
			return a.CompositeScore.GreaterThan(b.CompositeScore)
		}
		return a.Candidate.GeneratedAt.Before(b.Candidate.GeneratedAt)
	})

	if ctx.MinStarRating > 0 {
		filtered := ctx.Ranked[:0]
		for _, r := range ctx.Ranked {
			if r.SignalStrength >= ctx.MinStarRating {
				filtered = append(filtered, r)
			}
		}
		ctx.Ranked = filtered
	}

	for i := range ctx.Ranked {
		ctx.Ranked[i].Rank = i + 1
	}
	return ctx
}
