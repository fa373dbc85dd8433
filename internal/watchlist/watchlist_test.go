package watchlist_test

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/atlas-desktop/marketscan/internal/watchlist"
)

func TestAddIsIdempotentAndContainsReflectsState(t *testing.T) {
	w := watchlist.New(zaptest.NewLogger(t))
	now := time.Now()

	w.Add("SBIN", now)
	w.Add("SBIN", now.Add(time.Minute))

	if !w.Contains("SBIN") {
		t.Fatal("expected SBIN to be watched")
	}
	if len(w.All()) != 1 {
		t.Fatalf("expected idempotent add to keep a single entry, got %d", len(w.All()))
	}
	if w.All()[0].AddedAt != now {
		t.Fatal("expected the first Add call's timestamp to be kept")
	}
}

func TestRemoveDeletesEntry(t *testing.T) {
	w := watchlist.New(zaptest.NewLogger(t))
	w.Add("TCS", time.Now())
	w.Remove("TCS")

	if w.Contains("TCS") {
		t.Fatal("expected TCS to be removed")
	}
}

func TestRemoveMissingSymbolIsNoop(t *testing.T) {
	w := watchlist.New(zaptest.NewLogger(t))
	w.Remove("MISSING")
	if len(w.All()) != 0 {
		t.Fatal("expected empty watchlist to remain empty")
	}
}
