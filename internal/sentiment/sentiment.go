// Package sentiment implements the NewsSentimentGate: per-symbol
// suppression/downgrade from an external sentiment service
// plus an earnings blackout. Grounded on
// internal/signals/aggregator.go's SignalSource/SourceHealth external-
// source contract, narrowed to a single sentiment source consulted per
// ranked symbol.
package sentiment

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// Result is one symbol's sentiment read.
type Result struct {
	Symbol   string
	Label    types.Sentiment
	Score    decimal.Decimal
	Headline string
}

// Source is the external sentiment service contract.
type Source interface {
	FetchSentiment(ctx context.Context, symbols []string) (map[string]Result, error)
}

// EarningsCalendar answers whether a symbol reports earnings today.
// Supplemented from original_source/signalpilot's earnings-blackout
// feature.
type EarningsCalendar interface {
	HasEarningsToday(symbol string, today time.Time) bool
}

// HTTPSource is a retryablehttp-backed Source.
type HTTPSource struct {
	client  *retryablehttp.Client
	baseURL string
	log     *zap.Logger
}

// NewHTTPSource builds a sentiment source with bounded retry.
func NewHTTPSource(log *zap.Logger, baseURL string, maxRetries int, minWait, maxWait time.Duration) *HTTPSource {
	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = minWait
	client.RetryWaitMax = maxWait
	client.Logger = nil
	return &HTTPSource{client: client, baseURL: baseURL, log: log.Named("sentiment-http")}
}

// FetchSentiment is a stub wire call; the sentiment service's exact
// response schema is an external collaborator. On retry exhaustion it
// returns NEUTRAL for every symbol (a data-absent error kind), never
// propagating the error into the pipeline.
func (s *HTTPSource) FetchSentiment(ctx context.Context, symbols []string) (map[string]Result, error) {
	out := make(map[string]Result, len(symbols))
	for _, sym := range symbols {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/sentiment/"+sym, nil)
		if err != nil {
			out[sym] = Result{Symbol: sym, Label: types.SentimentNoNews}
			continue
		}
		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Info("sentiment fetch exhausted retries, defaulting to neutral", zap.String("symbol", sym))
			out[sym] = Result{Symbol: sym, Label: types.SentimentNeutral}
			continue
		}
		resp.Body.Close()
		out[sym] = Result{Symbol: sym, Label: types.SentimentNoNews}
	}
	return out, nil
}

// earningsRepo is the narrow slice of persistence.Repository this
// package depends on, avoiding an import of the concrete persistence
// package from this layer.
type earningsRepo interface {
	HasEarningsToday(symbol string, today time.Time) (bool, error)
}

// RepositoryEarningsCalendar adapts a persistence repository to
// EarningsCalendar, swallowing lookup errors into "no blackout" (a
// data-absent error kind) rather than propagating them into the gate.
type RepositoryEarningsCalendar struct {
	repo earningsRepo
	log  *zap.Logger
}

// NewRepositoryEarningsCalendar builds an EarningsCalendar backed by repo.
func NewRepositoryEarningsCalendar(log *zap.Logger, repo earningsRepo) *RepositoryEarningsCalendar {
	return &RepositoryEarningsCalendar{repo: repo, log: log.Named("earnings-calendar")}
}

func (c *RepositoryEarningsCalendar) HasEarningsToday(symbol string, today time.Time) bool {
	has, err := c.repo.HasEarningsToday(symbol, today)
	if err != nil {
		c.log.Warn("earnings calendar lookup failed, assuming no blackout", zap.String("symbol", symbol), zap.Error(err))
		return false
	}
	return has
}

// Gate is the NewsSentimentGate component.
type Gate struct {
	log                     *zap.Logger
	source                  Source
	earnings                EarningsCalendar
	strongNegativeThreshold decimal.Decimal
	earningsBlackoutEnabled bool
	killSwitch              bool

	mu          sync.Mutex
	unsuppressed map[string]bool
}

// New builds a Gate. killSwitch disables the gate entirely when true.
func New(log *zap.Logger, source Source, earnings EarningsCalendar, strongNegativeThreshold decimal.Decimal, earningsBlackoutEnabled, killSwitch bool) *Gate {
	return &Gate{
		log:                     log.Named("news-sentiment-gate"),
		source:                  source,
		earnings:                earnings,
		strongNegativeThreshold: strongNegativeThreshold,
		earningsBlackoutEnabled: earningsBlackoutEnabled,
		killSwitch:              killSwitch,
		unsuppressed:            make(map[string]bool),
	}
}

// Unsuppress bypasses suppression for a symbol for the rest of the day.
func (g *Gate) Unsuppress(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unsuppressed[symbol] = true
}

func (g *Gate) isUnsuppressed(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unsuppressed[symbol]
}

// ResetDaily clears unsuppress overrides at session start.
func (g *Gate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unsuppressed = make(map[string]bool)
}

// Evaluation is the outcome of gating one ranked signal.
type Evaluation struct {
	Suppress  bool
	Downgrade bool
	Suppressed types.SuppressedSignal
}

// Evaluate applies the gate to one ranked signal given its sentiment
// read.
func (g *Gate) Evaluate(now time.Time, symbol string, res Result) Evaluation {
	if g.killSwitch {
		return Evaluation{}
	}
	if g.isUnsuppressed(symbol) {
		return Evaluation{}
	}

	earningsToday := g.earningsBlackoutEnabled && g.earnings != nil && g.earnings.HasEarningsToday(symbol, now)

	if res.Label == types.SentimentStrongNegative || earningsToday {
		reason := "strong_negative_sentiment"
		if earningsToday {
			reason = "earnings_today"
		}
		return Evaluation{
			Suppress: true,
			Suppressed: types.SuppressedSignal{
				Symbol:    symbol,
				Reason:    reason,
				Score:     res.Score,
				Headline:  res.Headline,
				Timestamp: now,
			},
		}
	}

	if res.Label == types.SentimentMildNegative {
		return Evaluation{Downgrade: true}
	}

	return Evaluation{}
}

// FetchAll is the suspension-point call the NewsSentiment pipeline stage
// awaits: one fetch for every symbol currently carrying a ranked
// candidate.
func (g *Gate) FetchAll(ctx context.Context, symbols []string) map[string]Result {
	res, err := g.source.FetchSentiment(ctx, symbols)
	if err != nil {
		g.log.Warn("sentiment source failed, treating all as neutral", zap.Error(err))
		res = make(map[string]Result, len(symbols))
		for _, s := range symbols {
			res[s] = Result{Symbol: s, Label: types.SentimentNeutral}
		}
	}
	return res
}
