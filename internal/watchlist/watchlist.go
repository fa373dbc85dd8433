// Package watchlist implements a manual watch set, supplemented from
// original_source/signalpilot, which keeps a per-symbol watch flag
// independent of signal generation. Grounded on the teacher's
// map+mutex accessor pattern (internal/data/store.go's symbols map).
package watchlist

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one watched symbol and when it was added.
type Entry struct {
	Symbol  string
	AddedAt time.Time
}

// Watchlist is a mutex-guarded set of symbols the operator is manually
// tracking, outside the strategy/signal pipeline.
type Watchlist struct {
	mu      sync.Mutex
	log     *zap.Logger
	entries map[string]Entry
}

// New builds an empty Watchlist.
func New(log *zap.Logger) *Watchlist {
	return &Watchlist{log: log.Named("watchlist"), entries: make(map[string]Entry)}
}

// Add watches a symbol, idempotent.
func (w *Watchlist) Add(symbol string, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entries[symbol]; ok {
		return
	}
	w.entries[symbol] = Entry{Symbol: symbol, AddedAt: now}
}

// Remove unwatches a symbol, no-op if absent.
func (w *Watchlist) Remove(symbol string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, symbol)
}

// Contains reports whether a symbol is currently watched.
func (w *Watchlist) Contains(symbol string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entries[symbol]
	return ok
}

// All returns every watched entry.
func (w *Watchlist) All() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Entry, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, e)
	}
	return out
}
