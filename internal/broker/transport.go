// Package broker defines the out-of-scope broker collaborators:
// authentication, the WebSocket transport and its reconnection, and
// the REST instrument-master/candle calls. Only the contracts and a
// cross-thread tick bridge live here; the real broker client is an
// external collaborator.
package broker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// AuthTokens are produced by Authenticate and consumed by Subscribe.
type AuthTokens struct {
	AuthToken string
	FeedToken string
}

// Authenticator performs the broker auth handshake. AppOrchestrator.Start
// calls it once; HTTPAuthenticator retries with exponential backoff
// inside its retryablehttp client.
type Authenticator interface {
	Authenticate(ctx context.Context) (AuthTokens, error)
}

// CandleBar is one bar from the broker's REST candle endpoint.
type CandleBar struct {
	Timestamp time.Time
	Open, High, Low, Close, Volume decimal.Decimal
}

// RESTClient is the broker's historical/candle and instrument-master
// surface.
type RESTClient interface {
	GetCandleData(ctx context.Context, exchange, token, interval string, from, to time.Time) ([]CandleBar, error)
	GetInstrumentMaster(ctx context.Context, exchange string) ([]types.Instrument, error)
}

// RawTick is the wire shape the broker pushes over its WebSocket;
// last-traded price arrives in paise and must be divided by 100.
type RawTick struct {
	Token               string
	LastTradedPricePaise int64
	OpenPriceOfDay      int64
	HighPriceOfDay      int64
	LowPriceOfDay       int64
	ClosedPrice         int64
	VolumeTradeForDay   int64
}

// ToTick converts the raw paise-denominated wire tick into the core's
// decimal Tick, given the token->symbol resolution.
func (r RawTick) ToTick(symbol string, at time.Time) types.Tick {
	toRupees := func(paise int64) decimal.Decimal {
		return decimal.NewFromInt(paise).Div(decimal.NewFromInt(100))
	}
	return types.Tick{
		Symbol:    symbol,
		LTP:       toRupees(r.LastTradedPricePaise),
		Open:      toRupees(r.OpenPriceOfDay),
		High:      toRupees(r.HighPriceOfDay),
		Low:       toRupees(r.LowPriceOfDay),
		Close:     toRupees(r.ClosedPrice),
		CumVolume: decimal.NewFromInt(r.VolumeTradeForDay),
		Timestamp: at,
	}
}

// Transport is the broker's WebSocket client: connect/subscribe and the
// four callbacks it invokes from its own background goroutine.
type Transport interface {
	Connect(ctx context.Context, tokens AuthTokens, connectTimeout time.Duration) error
	Subscribe(tokens []string) error
	Disconnect() error
	OnOpen(func())
	OnData(func(RawTick))
	OnClose(func())
	OnError(func(error))
}

// Bridge hands tick callbacks from the transport's background goroutine
// to the single-threaded scan engine over a channel. `reconnecting` is
// owned exclusively by onClose; onError only counts and logs.
type Bridge struct {
	log *zap.Logger

	ticks chan types.Tick

	reconnecting   atomic.Bool
	reconnectCount atomic.Int64
}

// NewBridge wires a Bridge's callbacks onto a Transport.
func NewBridge(log *zap.Logger, transport Transport, resolveSymbol func(token string) (string, bool)) *Bridge {
	b := &Bridge{
		log:   log.Named("broker-bridge"),
		ticks: make(chan types.Tick, 4096),
	}

	transport.OnData(func(raw RawTick) {
		symbol, ok := resolveSymbol(raw.Token)
		if !ok {
			b.log.Debug("tick for unknown token dropped", zap.String("token", raw.Token))
			return
		}
		tick := raw.ToTick(symbol, time.Now())
		select {
		case b.ticks <- tick:
		default:
			b.log.Warn("tick bridge channel full, dropping oldest-equivalent tick", zap.String("symbol", symbol))
		}
	})

	transport.OnClose(func() {
		b.reconnecting.Store(true)
		b.reconnectCount.Add(1)
		b.log.Warn("transport closed, reconnect owned here", zap.Int64("reconnectCount", b.reconnectCount.Load()))
	})

	transport.OnError(func(err error) {
		b.reconnectCount.Add(1)
		b.log.Error("transport error (pure notification, no reconnect ownership)", zap.Error(err))
	})

	transport.OnOpen(func() {
		b.reconnecting.Store(false)
	})

	return b
}

// Ticks is the channel the scan engine drains each cycle before running
// pipeline stages.
func (b *Bridge) Ticks() <-chan types.Tick { return b.ticks }

// Reconnecting reports whether onClose has fired without a matching
// onOpen yet.
func (b *Bridge) Reconnecting() bool { return b.reconnecting.Load() }

// ReconnectCount is the lifetime count of close+error events observed.
func (b *Bridge) ReconnectCount() int64 { return b.reconnectCount.Load() }

// Drain pulls every tick currently queued into the store, non-blocking.
func (b *Bridge) Drain(apply func(types.Tick)) {
	for {
		select {
		case t := <-b.ticks:
			apply(t)
		default:
			return
		}
	}
}
