// Package marketdata holds the process-wide concurrency-safe market
// state: ticks, cumulative volume, opening ranges, VWAP, and 15-minute
// candles. A single mutex guards all mutators and accessors; no I/O runs
// inside the critical section.
package marketdata

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// Store is the single exclusive-lock market data state. Grounded on
// internal/data/store.go's RWMutex-guarded cache-map discipline,
// narrowed to the live tick/candle/VWAP shape this
// engine needs rather than historical OHLCV file caching.
type Store struct {
	mu sync.Mutex
	log *zap.Logger

	ticks       map[string]types.Tick
	historical  map[string]types.HistoricalReference
	ranges      map[string]types.OpeningRange
	vwap        map[string]types.VWAPState
	currentCandle map[string]types.Candle15m
	completed   map[string][]types.Candle15m
}

// New builds an empty store.
func New(log *zap.Logger) *Store {
	return &Store{
		log:           log.Named("marketdata"),
		ticks:         make(map[string]types.Tick),
		historical:    make(map[string]types.HistoricalReference),
		ranges:        make(map[string]types.OpeningRange),
		vwap:          make(map[string]types.VWAPState),
		currentCandle: make(map[string]types.Candle15m),
		completed:     make(map[string][]types.Candle15m),
	}
}

// UpdateTick replaces the stored tick for a symbol.
func (s *Store) UpdateTick(tick types.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[tick.Symbol] = tick
}

// GetTick returns the latest tick and whether one exists.
func (s *Store) GetTick(symbol string) (types.Tick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ticks[symbol]
	return t, ok
}

// SetHistorical is idempotent; called once at startup per symbol.
func (s *Store) SetHistorical(ref types.HistoricalReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historical[ref.Symbol] = ref
}

// GetHistorical returns the prior-day/ADV reference for a symbol.
func (s *Store) GetHistorical(symbol string) (types.HistoricalReference, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.historical[symbol]
	return h, ok
}

// AccumulateVolume replaces (not adds) the cumulative day volume on the
// tick record, since broker volumes are already running totals.
func (s *Store) AccumulateVolume(symbol string, cumulative decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ticks[symbol]
	t.Symbol = symbol
	t.CumVolume = cumulative
	s.ticks[symbol] = t
}

// UpdateOpeningRange widens the range by max(high)/min(low). No-op once
// locked.
func (s *Store) UpdateOpeningRange(symbol string, high, low decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.ranges[symbol]
	if !ok {
		r = types.OpeningRange{Symbol: symbol, High: high, Low: low}
		s.ranges[symbol] = r
		return
	}
	if r.Locked {
		return
	}
	if high.GreaterThan(r.High) {
		r.High = high
	}
	if r.Low.IsZero() || low.LessThan(r.Low) {
		r.Low = low
	}
	s.ranges[symbol] = r
}

// LockOpeningRanges locks every tracked symbol with low > 0 and computes
// rangeSizePct = (high - low) / low * 100.
func (s *Store) LockOpeningRanges() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sym, r := range s.ranges {
		if r.Low.LessThanOrEqual(decimal.Zero) || r.Locked {
			continue
		}
		r.Locked = true
		r.RangeSizePct = r.High.Sub(r.Low).Div(r.Low).Mul(decimal.NewFromInt(100))
		s.ranges[sym] = r
	}
}

// GetOpeningRange returns the current range state for a symbol.
func (s *Store) GetOpeningRange(symbol string) (types.OpeningRange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ranges[symbol]
	return r, ok
}

// UpdateVWAP accumulates price*volume and volume, recomputing VWAP.
func (s *Store) UpdateVWAP(symbol string, price, deltaVolume decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.vwap[symbol]
	v.Symbol = symbol
	v.CumulativePriceVolume = v.CumulativePriceVolume.Add(price.Mul(deltaVolume))
	v.CumulativeVolume = v.CumulativeVolume.Add(deltaVolume)
	if v.CumulativeVolume.GreaterThan(decimal.Zero) {
		v.CurrentVWAP = v.CumulativePriceVolume.Div(v.CumulativeVolume)
	}
	s.vwap[symbol] = v
}

// GetVWAP returns the current VWAP state for a symbol.
func (s *Store) GetVWAP(symbol string) (types.VWAPState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vwap[symbol]
	return v, ok
}

func bucketStart(ts time.Time) time.Time {
	minute := (ts.Minute() / 15) * 15
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), minute, 0, 0, ts.Location())
}

// UpdateCandle finalizes the previous bucket on a boundary crossing and
// folds the tick into the current (or freshly opened) 15-minute candle.
func (s *Store) UpdateCandle(symbol string, price, deltaVolume decimal.Decimal, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := bucketStart(ts)
	cur, ok := s.currentCandle[symbol]

	if !ok || !cur.StartTime.Equal(bucket) {
		if ok {
			s.completed[symbol] = append(s.completed[symbol], cur)
		}
		s.currentCandle[symbol] = types.Candle15m{
			Symbol: symbol, StartTime: bucket,
			Open: price, High: price, Low: price, Close: price,
			Volume: deltaVolume,
		}
		return
	}

	if price.GreaterThan(cur.High) {
		cur.High = price
	}
	if price.LessThan(cur.Low) {
		cur.Low = price
	}
	cur.Close = price
	cur.Volume = cur.Volume.Add(deltaVolume)
	s.currentCandle[symbol] = cur
}

// GetCurrentCandle returns the in-progress candle for a symbol.
func (s *Store) GetCurrentCandle(symbol string) (types.Candle15m, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.currentCandle[symbol]
	return c, ok
}

// GetCompletedCandles returns the strictly-increasing-by-start-time
// completed candle sequence for a symbol. The returned slice is a copy.
func (s *Store) GetCompletedCandles(symbol string) []types.Candle15m {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.completed[symbol]
	out := make([]types.Candle15m, len(src))
	copy(out, src)
	return out
}

// GetAvgCandleVolume is the mean volume of completed candles only; 0 if
// none exist yet.
func (s *Store) GetAvgCandleVolume(symbol string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	candles := s.completed[symbol]
	if len(candles) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.Volume)
	}
	return sum.Div(decimal.NewFromInt(int64(len(candles))))
}

// GetSymbols returns every symbol the store has seen a tick for.
func (s *Store) GetSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ticks))
	for sym := range s.ticks {
		out = append(out, sym)
	}
	return out
}

// ClearSession resets everything except historical references. Called at
// session start, never on crash recovery.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = make(map[string]types.Tick)
	s.ranges = make(map[string]types.OpeningRange)
	s.vwap = make(map[string]types.VWAPState)
	s.currentCandle = make(map[string]types.Candle15m)
	s.completed = make(map[string][]types.Candle15m)
	s.log.Info("session state cleared")
}
