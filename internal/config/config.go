// Package config loads the process-wide typed configuration.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// GapAndGoParams tunes the Gap & Go strategy.
type GapAndGoParams struct {
	GapMinPct          decimal.Decimal
	GapMaxPct          decimal.Decimal
	VolumeThresholdPct decimal.Decimal
	MaxRiskPct         decimal.Decimal
	T1Pct              decimal.Decimal
	T2Pct              decimal.Decimal
}

// ORBParams tunes the Opening Range Breakout strategy.
type ORBParams struct {
	RangeMinPct       decimal.Decimal
	RangeMaxPct       decimal.Decimal
	VolumeMultiplier  decimal.Decimal
	MaxRiskPct        decimal.Decimal
	T1Pct             decimal.Decimal
	T2Pct             decimal.Decimal
	WindowEnd         string // e.g. "11:00"
}

// VWAPParams tunes the VWAP Reversal strategy.
type VWAPParams struct {
	WindowStart              string // e.g. "10:00"
	WindowEnd                string // e.g. "14:30"
	TouchThresholdPct        decimal.Decimal
	PullbackVolumeMultiplier decimal.Decimal
	ReclaimVolumeMultiplier  decimal.Decimal
	Setup1SLBelowVWAPPct     decimal.Decimal
	MaxSignalsPerDay         int
	MinMinutesBetweenSignals int
}

// StrategyParams is a typed struct keyed by strategy, not a generic map.
type StrategyParams struct {
	GapAndGo GapAndGoParams
	ORB      ORBParams
	VWAP     VWAPParams
}

// StrategyFlags carries enabled/paper-mode flags per strategy.
type StrategyFlags struct {
	GapAndGoEnabled bool
	GapAndGoPaper   bool
	ORBEnabled      bool
	ORBPaper        bool
	VWAPEnabled     bool
	VWAPPaper       bool
}

// ScoringWeights must sum to 1.
type ScoringWeights struct {
	Strategy     decimal.Decimal
	WinRate      decimal.Decimal
	RiskReward   decimal.Decimal
	Confirmation decimal.Decimal
}

// Validate checks the weights sum to 1 within a small tolerance.
func (w ScoringWeights) Validate() error {
	sum := w.Strategy.Add(w.WinRate).Add(w.RiskReward).Add(w.Confirmation)
	tolerance := decimal.NewFromFloat(0.001)
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("config: scoring weights must sum to 1, got %s", sum.String())
	}
	return nil
}

// TrailingSLConfig tunes ExitMonitor's trailing stop behavior.
type TrailingSLConfig struct {
	BreakevenTriggerPct decimal.Decimal
	TrailTriggerPct     decimal.Decimal
	TrailDistancePct    decimal.Decimal
	SLApproachingPct    decimal.Decimal
	SLApproachingCooldown time.Duration
	NearT2Pct           decimal.Decimal
}

// RiskConfig tunes RiskSizer.
type RiskConfig struct {
	TotalCapital        decimal.Decimal
	MaxConcurrentPositions int
	MaxRiskPct          decimal.Decimal
	ConfirmedDoubleCap  decimal.Decimal
	ConfirmedTripleCap  decimal.Decimal
	SignalExpiryMinutes int
}

// AdaptiveConfig tunes AdaptiveManager.
type AdaptiveConfig struct {
	ConsecutiveLossesThrottle int
	ConsecutiveLossesPause    int
	FiveDayWinRateWarnThreshold  decimal.Decimal
	TenDayWinRatePauseThreshold  decimal.Decimal
}

// FeatureFlags are process-wide kill switches.
type FeatureFlags struct {
	NewsEnabled   bool
	RegimeEnabled bool
}

// RetryConfig bounds exponential backoff for transient-external errors.
type RetryConfig struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DashboardConfig is the API/dashboard bind address.
type DashboardConfig struct {
	Host string
	Port int
}

// BrokerConfig addresses the out-of-scope broker collaborator:
// login/REST/WebSocket endpoints and API credentials.
type BrokerConfig struct {
	LoginURL    string
	RESTBaseURL string
	WSURL       string
	APIKey      string
	APISecret   string
}

// HistoricalConfig addresses the historical-reference REST endpoints.
type HistoricalConfig struct {
	PrimaryBaseURL  string
	FallbackBaseURL string
	MaxConcurrent   int
	FetchCooldown   time.Duration
}

// SentimentConfig addresses the news-sentiment REST endpoint.
type SentimentConfig struct {
	BaseURL string
}

// Config is the full process-wide configuration, loaded once at start.
type Config struct {
	StrategyParams      StrategyParams
	StrategyFlags       StrategyFlags
	ScoringWeights      ScoringWeights
	TrailingSL          TrailingSLConfig
	Risk                RiskConfig
	Adaptive            AdaptiveConfig
	Features            FeatureFlags
	Retry               RetryConfig
	Dashboard           DashboardConfig
	Broker              BrokerConfig
	Historical          HistoricalConfig
	Sentiment           SentimentConfig
	Instruments         []types.Instrument
	CompositeWindow     time.Duration
	ConfirmationWindow  time.Duration
	CircuitSLLimit      int
	StrongNegativeThreshold decimal.Decimal
	EarningsBlackoutEnabled bool
	PersistenceDSN      string
	ChatBotToken        string
	ChatID              string
}

// Default returns the baked-in defaults, including the two Open-Question
// resolutions (VWAP cooldown: 2/day, 30 minutes apart).
func Default() *Config {
	return &Config{
		StrategyParams: StrategyParams{
			GapAndGo: GapAndGoParams{
				GapMinPct:          decimal.NewFromFloat(3),
				GapMaxPct:          decimal.NewFromFloat(5),
				VolumeThresholdPct: decimal.NewFromFloat(50),
				MaxRiskPct:         decimal.NewFromFloat(3),
				T1Pct:              decimal.NewFromFloat(5),
				T2Pct:              decimal.NewFromFloat(7),
			},
			ORB: ORBParams{
				RangeMinPct:      decimal.NewFromFloat(0.3),
				RangeMaxPct:      decimal.NewFromFloat(2.5),
				VolumeMultiplier: decimal.NewFromFloat(1.5),
				MaxRiskPct:       decimal.NewFromFloat(3),
				T1Pct:            decimal.NewFromFloat(4),
				T2Pct:            decimal.NewFromFloat(6),
				WindowEnd:        "11:00",
			},
			VWAP: VWAPParams{
				WindowStart:              "10:00",
				WindowEnd:                "14:30",
				TouchThresholdPct:        decimal.NewFromFloat(0.3),
				PullbackVolumeMultiplier: decimal.NewFromFloat(1.2),
				ReclaimVolumeMultiplier:  decimal.NewFromFloat(1.8),
				Setup1SLBelowVWAPPct:     decimal.NewFromFloat(0.5),
				MaxSignalsPerDay:         2,
				MinMinutesBetweenSignals: 30,
			},
		},
		StrategyFlags: StrategyFlags{
			GapAndGoEnabled: true,
			ORBEnabled:      true,
			VWAPEnabled:     true,
		},
		ScoringWeights: ScoringWeights{
			Strategy:     decimal.NewFromFloat(0.35),
			WinRate:      decimal.NewFromFloat(0.25),
			RiskReward:   decimal.NewFromFloat(0.20),
			Confirmation: decimal.NewFromFloat(0.20),
		},
		TrailingSL: TrailingSLConfig{
			BreakevenTriggerPct:   decimal.NewFromFloat(2),
			TrailTriggerPct:       decimal.NewFromFloat(4),
			TrailDistancePct:      decimal.NewFromFloat(2),
			SLApproachingPct:      decimal.NewFromFloat(0.5),
			SLApproachingCooldown: 60 * time.Second,
			NearT2Pct:             decimal.NewFromFloat(0.3),
		},
		Risk: RiskConfig{
			TotalCapital:           decimal.NewFromInt(1000000),
			MaxConcurrentPositions: 8,
			MaxRiskPct:             decimal.NewFromFloat(3),
			ConfirmedDoubleCap:     decimal.NewFromFloat(1.5),
			ConfirmedTripleCap:     decimal.NewFromFloat(2),
			SignalExpiryMinutes:    30,
		},
		Adaptive: AdaptiveConfig{
			ConsecutiveLossesThrottle:   3,
			ConsecutiveLossesPause:      5,
			FiveDayWinRateWarnThreshold: decimal.NewFromFloat(0.4),
			TenDayWinRatePauseThreshold: decimal.NewFromFloat(0.3),
		},
		Features: FeatureFlags{NewsEnabled: true, RegimeEnabled: true},
		Retry: RetryConfig{
			MaxRetries: 5,
			MinWait:    500 * time.Millisecond,
			MaxWait:    30 * time.Second,
		},
		Dashboard:               DashboardConfig{Host: "0.0.0.0", Port: 8090},
		Broker: BrokerConfig{
			LoginURL:    "https://broker.example.invalid/login",
			RESTBaseURL: "https://broker.example.invalid/rest",
			WSURL:       "wss://broker.example.invalid/feed",
		},
		Historical: HistoricalConfig{
			PrimaryBaseURL: "https://broker.example.invalid/historical",
			MaxConcurrent:  8,
			FetchCooldown:  2 * time.Second,
		},
		Sentiment: SentimentConfig{BaseURL: "https://news.example.invalid/sentiment"},
		Instruments: []types.Instrument{
			{Symbol: "SBIN", BrokerToken: "3045", Exchange: "NSE", LotSize: 1},
			{Symbol: "RELIANCE", BrokerToken: "2885", Exchange: "NSE", LotSize: 1},
			{Symbol: "TCS", BrokerToken: "11536", Exchange: "NSE", LotSize: 1},
			{Symbol: "INFY", BrokerToken: "1594", Exchange: "NSE", LotSize: 1},
			{Symbol: "HDFCBANK", BrokerToken: "1333", Exchange: "NSE", LotSize: 1},
		},
		CompositeWindow:         5 * time.Minute,
		ConfirmationWindow:      3 * time.Minute,
		CircuitSLLimit:          3,
		StrongNegativeThreshold: decimal.NewFromFloat(-0.5),
		EarningsBlackoutEnabled: true,
	}
}

// Load reads a YAML config file, applies environment overrides, and
// merges over Default(). Missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MARKETSCAN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		if dsn := v.GetString("persistence.dsn"); dsn != "" {
			cfg.PersistenceDSN = dsn
		}
		if tok := v.GetString("chat.bot_token"); tok != "" {
			cfg.ChatBotToken = tok
		}
		if id := v.GetString("chat.chat_id"); id != "" {
			cfg.ChatID = id
		}
		if v.IsSet("risk.total_capital") {
			cfg.Risk.TotalCapital = decimal.NewFromFloat(v.GetFloat64("risk.total_capital"))
		}
		if v.IsSet("circuit.sl_limit") {
			cfg.CircuitSLLimit = v.GetInt("circuit.sl_limit")
		}
		if v.IsSet("dashboard.host") {
			cfg.Dashboard.Host = v.GetString("dashboard.host")
		}
		if v.IsSet("dashboard.port") {
			cfg.Dashboard.Port = v.GetInt("dashboard.port")
		}
		if key := v.GetString("broker.api_key"); key != "" {
			cfg.Broker.APIKey = key
		}
		if secret := v.GetString("broker.api_secret"); secret != "" {
			cfg.Broker.APISecret = secret
		}
		if url := v.GetString("broker.login_url"); url != "" {
			cfg.Broker.LoginURL = url
		}
		if url := v.GetString("broker.rest_base_url"); url != "" {
			cfg.Broker.RESTBaseURL = url
		}
		if url := v.GetString("broker.ws_url"); url != "" {
			cfg.Broker.WSURL = url
		}
	}

	if err := cfg.ScoringWeights.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParamsFor returns the strategy-specific param bundle by name, used by
// the strategy registry at construction time.
func (c *Config) ParamsFor(name types.StrategyName) any {
	switch name {
	case types.StrategyGapAndGo:
		return c.StrategyParams.GapAndGo
	case types.StrategyORB:
		return c.StrategyParams.ORB
	case types.StrategyVWAP:
		return c.StrategyParams.VWAP
	default:
		return nil
	}
}
