package stages

import (
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/chat"
	"github.com/atlas-desktop/marketscan/internal/persistence"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// PersistAndDeliver writes every FinalSignal to persistence and pushes
// it to chat, the terminal stage of the signal chain.
type PersistAndDeliver struct {
	log      *zap.Logger
	repo     persistence.Repository
	notifier chat.Notifier
}

// NewPersistAndDeliver builds the persist-and-notify stage.
func NewPersistAndDeliver(log *zap.Logger, repo persistence.Repository, notifier chat.Notifier) *PersistAndDeliver {
	return &PersistAndDeliver{log: log.Named("stage-persist-and-deliver"), repo: repo, notifier: notifier}
}

func (s *PersistAndDeliver) Name() string { return "PersistAndDeliver" }

func (s *PersistAndDeliver) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	for _, final := range ctx.Final {
		row := &persistence.SignalRow{
			Symbol:    final.Ranked.Candidate.Symbol,
			Strategy:  string(final.Ranked.Candidate.Strategy),
			Entry:     final.Ranked.Candidate.Entry.String(),
			SL:        final.Ranked.Candidate.SL.String(),
			T1:        final.Ranked.Candidate.T1.String(),
			T2:        final.Ranked.Candidate.T2.String(),
			Quantity:  final.Quantity,
			Status:    string(types.SignalStatusSent),
			Rank:      final.Ranked.Rank,
			Strength:  final.Ranked.SignalStrength,
			ExpiresAt: final.ExpiresAt,
			TradeDate: time.Date(ctx.Now.Year(), ctx.Now.Month(), ctx.Now.Day(), 0, 0, 0, 0, ctx.Now.Location()),
		}
		if _, err := s.repo.InsertSignal(row); err != nil {
			s.log.Error("failed to persist signal", zap.String("symbol", row.Symbol), zap.Error(err))
			continue
		}
		s.notifier.SendSignal(final)
	}
	return ctx
}
