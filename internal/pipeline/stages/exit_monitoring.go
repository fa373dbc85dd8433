package stages

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/adaptive"
	"github.com/atlas-desktop/marketscan/internal/chat"
	"github.com/atlas-desktop/marketscan/internal/exitmonitor"
	"github.com/atlas-desktop/marketscan/internal/marketdata"
	"github.com/atlas-desktop/marketscan/internal/persistence"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/types"
)

// ExitMonitoring runs unconditionally every cycle (an alwaysStage),
// driving ExitMonitor.Tick and relaying its events to chat/persistence.
type ExitMonitoring struct {
	log      *zap.Logger
	monitor  *exitmonitor.Monitor
	store    *marketdata.Store
	repo     persistence.Repository
	notifier chat.Notifier
	adaptive *adaptive.Manager
}

// NewExitMonitoring builds the exit-monitoring stage.
func NewExitMonitoring(log *zap.Logger, monitor *exitmonitor.Monitor, store *marketdata.Store, repo persistence.Repository, notifier chat.Notifier, adaptiveMgr *adaptive.Manager) *ExitMonitoring {
	return &ExitMonitoring{log: log.Named("stage-exit-monitoring"), monitor: monitor, store: store, repo: repo, notifier: notifier, adaptive: adaptiveMgr}
}

func (s *ExitMonitoring) Name() string { return "ExitMonitoring" }

func (s *ExitMonitoring) Process(ctx *pipeline.ScanContext) *pipeline.ScanContext {
	ctx.ActiveTradeCount = s.monitor.ActiveTradeCount()

	events := s.monitor.Tick(ctx.Now, s.store)
	for _, evt := range events {
		switch evt.Type {
		case exitmonitor.EventClosed:
			reason := evt.ExitReason
			if err := s.repo.CloseTrade(tradeRowID(evt.TradeID), evt.ExitPrice.String(), evt.PnLAbs.String(), evt.PnLPct.String(), string(reason), evt.Timestamp); err != nil {
				s.log.Error("failed to persist trade close", zap.String("tradeId", evt.TradeID), zap.Error(err))
			}
			if s.adaptive != nil && evt.Strategy != types.StrategyName("") {
				s.adaptive.RecordOutcome(evt.Strategy, evt.PnLAbs.GreaterThan(decimal.Zero))
			}
			pnlPct, _ := evt.PnLPct.Float64()
			s.notifier.SendExitEvent(evt.TradeID, evt.Symbol, reason, pnlPct)
		case exitmonitor.EventT1Alert, exitmonitor.EventNearT2Alert, exitmonitor.EventSLApproaching,
			exitmonitor.EventBreakeven, exitmonitor.EventTrailingUpdate, exitmonitor.EventTimeExitAdvisory:
			s.notifier.SendAlert(string(evt.Type) + ": " + evt.Symbol)
		}
	}
	return ctx
}

// tradeRowID resolves the persistence row id the Monitor's string trade
// id refers to. Trade ids are minted as decimal row ids at Attach time,
// so this is a direct parse rather than a lookup.
func tradeRowID(tradeID string) uint {
	var id uint
	for _, r := range tradeID {
		if r < '0' || r > '9' {
			return 0
		}
		id = id*10 + uint(r-'0')
	}
	return id
}
