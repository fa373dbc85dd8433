package historical_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/historical"
	"github.com/atlas-desktop/marketscan/internal/types"
)

type fakeProvider struct {
	refs map[string][]types.HistoricalReference
	err  error
}

func (f *fakeProvider) FetchSessions(ctx context.Context, symbol string, sessions int) ([]types.HistoricalReference, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.refs[symbol], nil
}

func TestLoadAllUsesPrimaryWhenAvailable(t *testing.T) {
	primary := &fakeProvider{refs: map[string][]types.HistoricalReference{
		"SBIN": {
			{Symbol: "SBIN", AvgDailyVolume: decimal.NewFromInt(100)},
			{Symbol: "SBIN", AvgDailyVolume: decimal.NewFromInt(200)},
		},
	}}
	loader := historical.NewLoader(zaptest.NewLogger(t), primary, nil, 4, 0)

	refs := loader.LoadAll(context.Background(), []string{"SBIN"})
	ref, ok := refs["SBIN"]
	if !ok {
		t.Fatal("expected SBIN reference")
	}
	if !ref.AvgDailyVolume.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected averaged ADV 150, got %s", ref.AvgDailyVolume)
	}
}

func TestLoadAllFallsBackWhenPrimaryEmpty(t *testing.T) {
	primary := &fakeProvider{refs: map[string][]types.HistoricalReference{}}
	fallback := &fakeProvider{refs: map[string][]types.HistoricalReference{
		"TCS": {{Symbol: "TCS", AvgDailyVolume: decimal.NewFromInt(50)}},
	}}
	loader := historical.NewLoader(zaptest.NewLogger(t), primary, fallback, 4, 0)

	refs := loader.LoadAll(context.Background(), []string{"TCS"})
	if _, ok := refs["TCS"]; !ok {
		t.Fatal("expected fallback to supply TCS reference")
	}
}

// sessionTrackingProvider returns data that depends on the requested
// session count, so a test can prove LoadAll issues two distinct waves
// (1 session, then 20) rather than reusing one fetch for both.
type sessionTrackingProvider struct {
	calls []int
}

func (p *sessionTrackingProvider) FetchSessions(ctx context.Context, symbol string, sessions int) ([]types.HistoricalReference, error) {
	p.calls = append(p.calls, sessions)
	switch sessions {
	case 1:
		return []types.HistoricalReference{{Symbol: symbol, PrevClose: decimal.NewFromInt(99)}}, nil
	default:
		return []types.HistoricalReference{
			{Symbol: symbol, AvgDailyVolume: decimal.NewFromInt(100)},
			{Symbol: symbol, AvgDailyVolume: decimal.NewFromInt(300)},
		}, nil
	}
}

func TestLoadAllIssuesTwoDistinctFetchWaves(t *testing.T) {
	provider := &sessionTrackingProvider{}
	loader := historical.NewLoader(zaptest.NewLogger(t), provider, nil, 4, time.Millisecond)

	refs := loader.LoadAll(context.Background(), []string{"SBIN"})
	ref, ok := refs["SBIN"]
	if !ok {
		t.Fatal("expected SBIN reference")
	}
	if !ref.PrevClose.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("expected prev close from the 1-session wave, got %s", ref.PrevClose)
	}
	if !ref.AvgDailyVolume.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected ADV averaged from the 20-session wave, got %s", ref.AvgDailyVolume)
	}

	if len(provider.calls) != 2 {
		t.Fatalf("expected exactly 2 fetch calls (one per wave), got %d: %v", len(provider.calls), provider.calls)
	}
	seen := map[int]bool{}
	for _, c := range provider.calls {
		seen[c] = true
	}
	if !seen[1] || !seen[20] {
		t.Fatalf("expected one call with sessions=1 and one with sessions=20, got %v", provider.calls)
	}
}

func TestLoadAllExcludesSymbolWithNoData(t *testing.T) {
	primary := &fakeProvider{refs: map[string][]types.HistoricalReference{}}
	loader := historical.NewLoader(zaptest.NewLogger(t), primary, nil, 4, 0)

	refs := loader.LoadAll(context.Background(), []string{"INFY"})
	if len(refs) != 0 {
		t.Fatalf("expected no results for symbol with no data, got %d", len(refs))
	}
}

func TestHTTPProviderReturnsNilOnFinalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := historical.NewHTTPProvider(zaptest.NewLogger(t), server.URL, 0, time.Millisecond, time.Millisecond)
	refs, err := provider.FetchSessions(context.Background(), "SBIN", 20)
	if err != nil {
		t.Fatalf("expected data-absent nil error, got %v", err)
	}
	if refs != nil {
		t.Fatalf("expected nil refs on failure, got %v", refs)
	}
}

func TestHTTPProviderSucceedsOnOKResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := historical.NewHTTPProvider(zaptest.NewLogger(t), server.URL, 0, time.Millisecond, time.Millisecond)
	refs, err := provider.FetchSessions(context.Background(), "SBIN", 20)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if refs != nil {
		t.Fatalf("expected stub nil refs, got %v", refs)
	}
}
