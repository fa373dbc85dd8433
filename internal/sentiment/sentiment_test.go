package sentiment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/sentiment"
	"github.com/atlas-desktop/marketscan/internal/types"
)

type fakeSource struct {
	results map[string]sentiment.Result
	err     error
}

func (f *fakeSource) FetchSentiment(ctx context.Context, symbols []string) (map[string]sentiment.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeEarningsCalendar struct {
	today map[string]bool
}

func (f *fakeEarningsCalendar) HasEarningsToday(symbol string, today time.Time) bool {
	return f.today[symbol]
}

func TestEvaluateSuppressesStrongNegative(t *testing.T) {
	log := zaptest.NewLogger(t)
	gate := sentiment.New(log, &fakeSource{}, nil, decimal.NewFromFloat(-0.5), false, false)

	eval := gate.Evaluate(time.Now(), "SBIN", sentiment.Result{Label: types.SentimentStrongNegative})
	if !eval.Suppress {
		t.Fatal("expected strong negative sentiment to suppress")
	}
	if eval.Suppressed.Reason != "strong_negative_sentiment" {
		t.Fatalf("unexpected suppress reason: %s", eval.Suppressed.Reason)
	}
}

func TestEvaluateSuppressesOnEarningsBlackout(t *testing.T) {
	log := zaptest.NewLogger(t)
	earnings := &fakeEarningsCalendar{today: map[string]bool{"SBIN": true}}
	gate := sentiment.New(log, &fakeSource{}, earnings, decimal.NewFromFloat(-0.5), true, false)

	eval := gate.Evaluate(time.Now(), "SBIN", sentiment.Result{Label: types.SentimentNeutral})
	if !eval.Suppress || eval.Suppressed.Reason != "earnings_today" {
		t.Fatalf("expected earnings blackout suppression, got %+v", eval)
	}
}

func TestEvaluateDowngradesMildNegative(t *testing.T) {
	log := zaptest.NewLogger(t)
	gate := sentiment.New(log, &fakeSource{}, nil, decimal.NewFromFloat(-0.5), false, false)

	eval := gate.Evaluate(time.Now(), "TCS", sentiment.Result{Label: types.SentimentMildNegative})
	if eval.Suppress || !eval.Downgrade {
		t.Fatalf("expected downgrade only, got %+v", eval)
	}
}

func TestEvaluateKillSwitchBypassesEverything(t *testing.T) {
	log := zaptest.NewLogger(t)
	gate := sentiment.New(log, &fakeSource{}, nil, decimal.NewFromFloat(-0.5), true, true)

	eval := gate.Evaluate(time.Now(), "SBIN", sentiment.Result{Label: types.SentimentStrongNegative})
	if eval.Suppress || eval.Downgrade {
		t.Fatal("expected kill switch to bypass suppression and downgrade")
	}
}

func TestEvaluateUnsuppressOverridesForRestOfDay(t *testing.T) {
	log := zaptest.NewLogger(t)
	gate := sentiment.New(log, &fakeSource{}, nil, decimal.NewFromFloat(-0.5), false, false)
	gate.Unsuppress("SBIN")

	eval := gate.Evaluate(time.Now(), "SBIN", sentiment.Result{Label: types.SentimentStrongNegative})
	if eval.Suppress {
		t.Fatal("expected unsuppressed symbol to bypass suppression")
	}

	gate.ResetDaily()
	eval = gate.Evaluate(time.Now(), "SBIN", sentiment.Result{Label: types.SentimentStrongNegative})
	if !eval.Suppress {
		t.Fatal("expected ResetDaily to clear the unsuppress override")
	}
}

func TestFetchAllDefaultsToNeutralOnSourceError(t *testing.T) {
	log := zaptest.NewLogger(t)
	gate := sentiment.New(log, &fakeSource{err: errors.New("boom")}, nil, decimal.NewFromFloat(-0.5), false, false)

	results := gate.FetchAll(context.Background(), []string{"SBIN", "TCS"})
	if results["SBIN"].Label != types.SentimentNeutral || results["TCS"].Label != types.SentimentNeutral {
		t.Fatalf("expected neutral defaults on source error, got %+v", results)
	}
}

func TestRepositoryEarningsCalendarSwallowsErrors(t *testing.T) {
	log := zaptest.NewLogger(t)
	cal := sentiment.NewRepositoryEarningsCalendar(log, &erroringRepo{})
	if cal.HasEarningsToday("SBIN", time.Now()) {
		t.Fatal("expected repo errors to default to no blackout")
	}
}

type erroringRepo struct{}

func (erroringRepo) HasEarningsToday(symbol string, today time.Time) (bool, error) {
	return false, errors.New("db down")
}
