// Package types holds the shared domain model for the signal engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is a trade direction. Phase 1 is BUY-only per the strategy set.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Phase is the named time slice of a trading day.
type Phase string

const (
	PhasePreMarket   Phase = "PRE_MARKET"
	PhaseOpening     Phase = "OPENING"
	PhaseEntryWindow Phase = "ENTRY_WINDOW"
	PhaseContinuous  Phase = "CONTINUOUS"
	PhaseWindDown    Phase = "WIND_DOWN"
	PhasePostMarket  Phase = "POST_MARKET"
)

// StrategyName enumerates the closed set of strategies.
type StrategyName string

const (
	StrategyGapAndGo StrategyName = "GAP"
	StrategyORB      StrategyName = "ORB"
	StrategyVWAP     StrategyName = "VWAP"
)

// SignalStatus is the lifecycle state of a PersistedSignal.
type SignalStatus string

const (
	SignalStatusSent         SignalStatus = "sent"
	SignalStatusTaken        SignalStatus = "taken"
	SignalStatusSkipped      SignalStatus = "skipped"
	SignalStatusExpired      SignalStatus = "expired"
	SignalStatusPaper        SignalStatus = "paper"
	SignalStatusPositionFull SignalStatus = "position_full"
)

// ExitReason is why a trade was closed.
type ExitReason string

const (
	ExitReasonSLHit      ExitReason = "sl_hit"
	ExitReasonT1Hit      ExitReason = "t1_hit"
	ExitReasonT2Hit      ExitReason = "t2_hit"
	ExitReasonTrailingSL ExitReason = "trailing_sl"
	ExitReasonTimeExit   ExitReason = "time_exit"
	ExitReasonManual     ExitReason = "manual_exit"
)

// ConfirmationLevel is how many distinct strategies signaled a symbol
// within the confirmation window.
type ConfirmationLevel string

const (
	ConfirmationSingle ConfirmationLevel = "single"
	ConfirmationDouble ConfirmationLevel = "double"
	ConfirmationTriple ConfirmationLevel = "triple"
)

// RegimeLabel is the day's market-character classification.
type RegimeLabel string

const (
	RegimeTrending RegimeLabel = "TRENDING"
	RegimeRanging  RegimeLabel = "RANGING"
	RegimeVolatile RegimeLabel = "VOLATILE"
)

// Sentiment is the external sentiment label for a symbol.
type Sentiment string

const (
	SentimentStrongNegative Sentiment = "STRONG_NEGATIVE"
	SentimentMildNegative   Sentiment = "MILD_NEGATIVE"
	SentimentNeutral        Sentiment = "NEUTRAL"
	SentimentPositive       Sentiment = "POSITIVE"
	SentimentNoNews         Sentiment = "NO_NEWS"
)

// Instrument is immutable after startup instrument-master load.
type Instrument struct {
	Symbol      string
	BrokerToken string
	Exchange    string
	LotSize     int
}

// Tick is the latest trade snapshot for a symbol. Each update replaces
// the previous one; cumulative volume is a running total from the broker.
type Tick struct {
	Symbol      string
	LTP         decimal.Decimal
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	CumVolume   decimal.Decimal
	Timestamp   time.Time
}

// HistoricalReference is immutable after the pre-open load.
type HistoricalReference struct {
	Symbol         string
	PrevClose      decimal.Decimal
	PrevHigh       decimal.Decimal
	AvgDailyVolume decimal.Decimal
}

// OpeningRange tracks [09:15, 09:45) IST high/low. Immutable once locked.
type OpeningRange struct {
	Symbol       string
	High         decimal.Decimal
	Low          decimal.Decimal
	Locked       bool
	RangeSizePct decimal.Decimal
}

// VWAPState is undefined (zero cumulative volume) until the first trade.
type VWAPState struct {
	Symbol               string
	CumulativePriceVolume decimal.Decimal
	CumulativeVolume      decimal.Decimal
	CurrentVWAP           decimal.Decimal
}

// Defined reports whether the VWAP has seen any volume yet.
func (v VWAPState) Defined() bool {
	return v.CumulativeVolume.GreaterThan(decimal.Zero)
}

// Candle15m is an OHLCV bucket aligned to floor(minute/15)*15.
type Candle15m struct {
	Symbol    string
	StartTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// CandidateSignal is a strategy's raw output before dedup/scoring/ranking.
type CandidateSignal struct {
	Symbol         string
	Direction      Side
	Strategy       StrategyName
	Entry          decimal.Decimal
	SL             decimal.Decimal
	T1             decimal.Decimal
	T2             decimal.Decimal
	GapPct         decimal.Decimal
	VolumeRatio    decimal.Decimal
	DistFromOpen   decimal.Decimal
	SetupSubType   string
	GeneratedAt    time.Time
}

// RankedSignal wraps a candidate with its composite score and rank.
type RankedSignal struct {
	Candidate      CandidateSignal
	CompositeScore decimal.Decimal
	Rank           int
	SignalStrength int
	Confirmation   ConfirmationLevel
	ConfirmedBy    []StrategyName
}

// FinalSignal adds sizing and an expiry.
type FinalSignal struct {
	Ranked         RankedSignal
	Quantity       int
	CapitalRequired decimal.Decimal
	ExpiresAt      time.Time
}

// PersistedSignal is a FinalSignal materialized as a persistence row.
type PersistedSignal struct {
	ID        string
	Final     FinalSignal
	Status    SignalStatus
	CreatedAt time.Time
}

// Trade tracks a taken signal from entry to close.
type Trade struct {
	ID              string
	SignalID        string
	Symbol          string
	Strategy        StrategyName
	Entry           decimal.Decimal
	SL              decimal.Decimal
	T1              decimal.Decimal
	T2              decimal.Decimal
	Quantity        int
	TakenAt         time.Time
	ExitPrice       decimal.Decimal
	ExitReason      ExitReason
	RealizedPnLAbs  decimal.Decimal
	RealizedPnLPct  decimal.Decimal
	ExitedAt        time.Time
	Closed          bool
}

// TrailingStopState is the per-active-trade trailing-SL bookkeeping.
type TrailingStopState struct {
	TradeID                    string
	OriginalSL                 decimal.Decimal
	CurrentSL                  decimal.Decimal
	HighestPrice               decimal.Decimal
	BreakevenTriggered         bool
	TrailingActive             bool
	T1Alerted                  bool
	NearT2Alerted              bool
	SLApproachingCooldownUntil time.Time
}

// RegimeClassification is produced at 09:30 IST and at checkpoints.
type RegimeClassification struct {
	Label               RegimeLabel
	Confidence          decimal.Decimal
	StrategyWeights     map[StrategyName]decimal.Decimal
	MinStarRating        int
	PositionSizeScalar   decimal.Decimal
	Timestamp            time.Time
}

// CircuitState is the daily SL-hit kill switch state.
type CircuitState struct {
	SLCount        int
	TriggeredAt    *time.Time
	ManualOverride bool
}

// SuppressedSignal records a candidate removed by the NewsSentimentGate.
type SuppressedSignal struct {
	Symbol    string
	Reason    string
	Score     decimal.Decimal
	Headline  string
	Timestamp time.Time
}
