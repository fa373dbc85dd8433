// Package main is the entry point for the intraday signal engine: loads
// config, wires every component, runs the scan loop and scheduler until
// a shutdown signal, then tears down gracefully.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/marketscan/internal/adaptive"
	"github.com/atlas-desktop/marketscan/internal/api"
	"github.com/atlas-desktop/marketscan/internal/broker"
	"github.com/atlas-desktop/marketscan/internal/calendar"
	"github.com/atlas-desktop/marketscan/internal/chat"
	"github.com/atlas-desktop/marketscan/internal/circuitbreaker"
	"github.com/atlas-desktop/marketscan/internal/config"
	"github.com/atlas-desktop/marketscan/internal/exitmonitor"
	"github.com/atlas-desktop/marketscan/internal/historical"
	"github.com/atlas-desktop/marketscan/internal/marketdata"
	"github.com/atlas-desktop/marketscan/internal/metrics"
	"github.com/atlas-desktop/marketscan/internal/orchestrator"
	"github.com/atlas-desktop/marketscan/internal/persistence"
	"github.com/atlas-desktop/marketscan/internal/pipeline"
	"github.com/atlas-desktop/marketscan/internal/pipeline/stages"
	"github.com/atlas-desktop/marketscan/internal/regime"
	"github.com/atlas-desktop/marketscan/internal/scanengine"
	"github.com/atlas-desktop/marketscan/internal/scheduler"
	"github.com/atlas-desktop/marketscan/internal/sentiment"
	"github.com/atlas-desktop/marketscan/internal/sizing"
	"github.com/atlas-desktop/marketscan/internal/strategy"
	"github.com/atlas-desktop/marketscan/internal/types"
	"github.com/atlas-desktop/marketscan/internal/watchlist"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "Config file path")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		logger.Fatal("failed to load IST location", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := persistence.Open(logger, cfg.PersistenceDSN)
	if err != nil {
		logger.Fatal("failed to open persistence", zap.Error(err))
	}

	metrics.Register(prometheus.DefaultRegisterer)

	store := marketdata.New(logger)
	cal := calendar.NewStatic(nil)
	phases := calendar.NewPhaseClock(ist)

	authenticator := broker.NewHTTPAuthenticator(logger, cfg.Broker.LoginURL, cfg.Broker.APIKey, cfg.Broker.APISecret,
		cfg.Retry.MaxRetries, cfg.Retry.MinWait, cfg.Retry.MaxWait)
	transport := broker.NewWSTransport(logger, cfg.Broker.WSURL)

	primaryHistorical := historical.NewHTTPProvider(logger, cfg.Historical.PrimaryBaseURL, cfg.Retry.MaxRetries, cfg.Retry.MinWait, cfg.Retry.MaxWait)
	var fallbackHistorical historical.Provider
	if cfg.Historical.FallbackBaseURL != "" {
		fallbackHistorical = historical.NewHTTPProvider(logger, cfg.Historical.FallbackBaseURL, cfg.Retry.MaxRetries, cfg.Retry.MinWait, cfg.Retry.MaxWait)
	}
	histLoader := historical.NewLoader(logger, primaryHistorical, fallbackHistorical, cfg.Historical.MaxConcurrent, cfg.Historical.FetchCooldown)

	registry := strategy.NewRegistry()
	registry.Register(strategy.NewGapAndGo(logger, cfg.StrategyParams.GapAndGo))
	registry.Register(strategy.NewOpeningRangeBreakout(logger, cfg.StrategyParams.ORB))
	registry.Register(strategy.NewVWAPReversal(logger, cfg.StrategyParams.VWAP))

	enabledStrategies := enabledStrategyNames(cfg.StrategyFlags)

	circuitBrk := circuitbreaker.New(logger, cfg.CircuitSLLimit)
	regimeClsf := regime.New(logger)
	adaptiveMgr := adaptive.New(logger, adaptive.Config{
		ConsecutiveLossesThrottle:  cfg.Adaptive.ConsecutiveLossesThrottle,
		ConsecutiveLossesPause:     cfg.Adaptive.ConsecutiveLossesPause,
		FiveDayWinRateWarnThreshold: cfg.Adaptive.FiveDayWinRateWarnThreshold,
		TenDayWinRatePauseThreshold: cfg.Adaptive.TenDayWinRatePauseThreshold,
	}, enabledStrategies)

	sentimentSource := sentiment.NewHTTPSource(logger, cfg.Sentiment.BaseURL, cfg.Retry.MaxRetries, cfg.Retry.MinWait, cfg.Retry.MaxWait)
	earningsCal := sentiment.NewRepositoryEarningsCalendar(logger, repo)
	sentimentGate := sentiment.New(logger, sentimentSource, earningsCal, cfg.StrongNegativeThreshold, cfg.EarningsBlackoutEnabled, !cfg.Features.NewsEnabled)

	wl := watchlist.New(logger)
	seedWatchlist(logger, repo, wl)

	hub := api.NewHub(logger)
	go hub.Run()
	notifier := chat.NewMultiNotifier(chat.NewConsoleNotifier(logger), hub)

	exitMon := exitmonitor.New(logger, cfg.TrailingSL, func(tradeID string) {
		circuitBrk.RecordSLHit(time.Now())
	})

	riskSizer := sizing.New(logger, cfg.Risk)

	gapMarking := stages.NewGapStockMarking(logger)
	winRates := stages.NewPersistedWinRateSource(logger, repo)

	signalStages := []pipeline.Stage{
		stages.NewCircuitBreakerGate(logger, circuitBrk),
		stages.NewRegimeContext(logger, regimeClsf),
		stages.NewStrategyEval(logger, store, registry),
		gapMarking,
		stages.NewDeduplication(logger, repo),
		stages.NewConfirmation(logger, cfg.ConfirmationWindow),
		stages.NewCompositeScoring(logger, cfg.ScoringWeights, winRates),
		stages.NewAdaptiveFilter(logger, adaptiveMgr),
		stages.NewRanking(logger),
		stages.NewNewsSentiment(logger, sentimentGate),
		stages.NewRiskSizing(logger, riskSizer),
		stages.NewPersistAndDeliver(logger, repo, notifier),
	}
	alwaysStages := []pipeline.Stage{
		stages.NewExitMonitoring(logger, exitMon, store, repo, notifier, adaptiveMgr),
	}
	pl := pipeline.New(logger, signalStages, alwaysStages)

	onHalt := func(reason string) {
		notifier.SendCriticalAlert("scan engine halted: " + reason)
	}
	scanEngine := scanengine.New(logger, scanengine.DefaultConfig(), phases, pl, enabledStrategies, gapMarking.Excluded, onHalt)

	schedulerSvc := scheduler.New(logger, cal, ist)

	appOrch := orchestrator.New(orchestrator.Deps{
		Log:         logger,
		Calendar:    cal,
		Store:       store,
		Transport:   transport,
		Historical:  histLoader,
		Instruments: cfg.Instruments,
		Registry:    registry,
		Scanner:     scanEngine,
		Scheduler:   schedulerSvc,
		Repo:        repo,
		ExitMonitor: exitMon,
		CircuitBrk:  circuitBrk,
		RegimeClsf:  regimeClsf,
		Adaptive:    adaptiveMgr,
		Sentiment:   sentimentGate,
		GapMarking:  gapMarking,
		Notifier:    notifier,
	})

	symbols := make([]string, len(cfg.Instruments))
	for i, instr := range cfg.Instruments {
		symbols[i] = instr.Symbol
	}

	for _, job := range scheduler.DefaultSchedule(scheduler.Handlers{
		PreMarketNews:  func(now time.Time) {},
		MorningBrief:   func(now time.Time) {},
		PreMarketAlert: func(now time.Time) { notifier.SendAlert("pre-market: scan starts at 09:15") },
		StartScanning: func(now time.Time) {
			appOrch.DailyReset(now)
			if err := appOrch.Start(ctx, authenticator); err != nil {
				logger.Error("daily start failed", zap.Error(err))
			}
		},
		ClassifyRegime: func(now time.Time) {
			regimeClsf.Classify(now, regime.Inputs{})
		},
		LockOpeningRanges: func(now time.Time) { store.LockOpeningRanges() },
		RefreshNews: func(now time.Time) {
			sentimentGate.FetchAll(ctx, symbols)
		},
		StopNewSignals: func(now time.Time) { scanEngine.StopAcceptingSignals() },
		ExitReminder: func(now time.Time) {
			for _, ev := range exitMon.TriggerTimeExit(now, false, store) {
				notifier.SendExitEvent(ev.TradeID, ev.Symbol, ev.ExitReason, ev.PnLPct.InexactFloat64())
			}
		},
		MandatoryExit: func(now time.Time) {
			for _, ev := range exitMon.TriggerTimeExit(now, true, store) {
				notifier.SendExitEvent(ev.TradeID, ev.Symbol, ev.ExitReason, ev.PnLPct.InexactFloat64())
			}
		},
		DailySummary: func(now time.Time) {
			if err := appOrch.DailySummary(now); err != nil {
				logger.Error("daily summary failed", zap.Error(err))
			}
		},
		Shutdown: func(now time.Time) {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := appOrch.Shutdown(shutdownCtx); err != nil {
				logger.Error("scheduled shutdown failed", zap.Error(err))
			}
		},
		WeeklyRebalance: func(now time.Time) {},
	}) {
		if err := schedulerSvc.Register(job); err != nil {
			logger.Fatal("failed to register scheduled job", zap.String("job", job.Name), zap.Error(err))
		}
	}

	dashboard := api.NewServer(logger, cfg, hub, repo, wl, circuitBrk, regimeClsf)
	go func() {
		if err := dashboard.Start(); err != nil {
			logger.Error("dashboard server error", zap.Error(err))
		}
	}()

	if currentPhase := phases.CurrentPhase(time.Now()); cal.IsTradingDay(time.Now()) &&
		currentPhase != types.PhasePreMarket && currentPhase != types.PhasePostMarket {
		if err := appOrch.RecoverFromCrash(ctx, currentPhase); err != nil {
			logger.Error("crash recovery failed", zap.Error(err))
		}
	}

	schedulerSvc.Start()

	logger.Info("signal engine started", zap.Int("instruments", len(cfg.Instruments)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()
	schedulerSvc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := appOrch.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if err := dashboard.Stop(shutdownCtx); err != nil {
		logger.Error("dashboard shutdown error", zap.Error(err))
	}

	logger.Info("signal engine stopped")
}

func enabledStrategyNames(flags config.StrategyFlags) []types.StrategyName {
	var out []types.StrategyName
	if flags.GapAndGoEnabled {
		out = append(out, types.StrategyGapAndGo)
	}
	if flags.ORBEnabled {
		out = append(out, types.StrategyORB)
	}
	if flags.VWAPEnabled {
		out = append(out, types.StrategyVWAP)
	}
	return out
}

func seedWatchlist(logger *zap.Logger, repo persistence.Repository, wl *watchlist.Watchlist) {
	rows, err := repo.ListWatchlist()
	if err != nil {
		logger.Warn("failed to seed watchlist from persistence", zap.Error(err))
		return
	}
	now := time.Now()
	for _, row := range rows {
		wl.Add(row.Symbol, now)
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
