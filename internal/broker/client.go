package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// HTTPAuthenticator performs the broker login handshake over a
// retryablehttp client, grounding the bounded-backoff retry discipline
// internal/historical's HTTPProvider uses for the same external
// collaborator. The response schema is broker-specific and out of
// scope; a live deployment supplies its own Authenticator.
type HTTPAuthenticator struct {
	client   *retryablehttp.Client
	loginURL string
	apiKey   string
	secret   string
	log      *zap.Logger
}

// NewHTTPAuthenticator builds an Authenticator with the given retry
// bounds.
func NewHTTPAuthenticator(log *zap.Logger, loginURL, apiKey, secret string, maxRetries int, minWait, maxWait time.Duration) *HTTPAuthenticator {
	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = minWait
	client.RetryWaitMax = maxWait
	client.Logger = nil

	return &HTTPAuthenticator{client: client, loginURL: loginURL, apiKey: apiKey, secret: secret, log: log.Named("broker-auth")}
}

func (a *HTTPAuthenticator) Authenticate(ctx context.Context) (AuthTokens, error) {
	body, err := json.Marshal(map[string]string{"api_key": a.apiKey, "secret": a.secret})
	if err != nil {
		return AuthTokens{}, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, a.loginURL, body)
	if err != nil {
		return AuthTokens{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return AuthTokens{}, fmt.Errorf("broker auth exhausted retries: %w", err)
	}
	defer resp.Body.Close()

	var tokens struct {
		AuthToken string `json:"auth_token"`
		FeedToken string `json:"feed_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return AuthTokens{}, fmt.Errorf("broker auth response decode: %w", err)
	}
	return AuthTokens{AuthToken: tokens.AuthToken, FeedToken: tokens.FeedToken}, nil
}

// HTTPRESTClient is a retryablehttp-backed RESTClient. Response decoding
// is broker-specific (an external collaborator boundary); this
// demonstrates the retry path and returns a data-absent zero value on
// final failure rather than propagating, matching internal/historical's
// FetchSessions convention.
type HTTPRESTClient struct {
	client  *retryablehttp.Client
	baseURL string
	log     *zap.Logger
}

// NewHTTPRESTClient builds a RESTClient with the given retry bounds.
func NewHTTPRESTClient(log *zap.Logger, baseURL string, maxRetries int, minWait, maxWait time.Duration) *HTTPRESTClient {
	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = minWait
	client.RetryWaitMax = maxWait
	client.Logger = nil

	return &HTTPRESTClient{client: client, baseURL: baseURL, log: log.Named("broker-rest")}
}

func (c *HTTPRESTClient) GetCandleData(ctx context.Context, exchange, token, interval string, from, to time.Time) ([]CandleBar, error) {
	path := fmt.Sprintf("%s/candles/%s/%s?interval=%s&from=%d&to=%d", c.baseURL, exchange, token, interval, from.Unix(), to.Unix())
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("candle fetch exhausted retries", zap.String("token", token), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()
	return nil, nil
}

func (c *HTTPRESTClient) GetInstrumentMaster(ctx context.Context, exchange string) ([]types.Instrument, error) {
	path := fmt.Sprintf("%s/instruments/%s", c.baseURL, exchange)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("instrument master fetch exhausted retries", zap.String("exchange", exchange), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()
	return nil, nil
}

// WSTransport is a gorilla/websocket-backed Transport, grounding the
// connect/reconnect shape of internal/data/market_data.go's
// connectBinance/readLoop/reconnectMonitor trio. Wire framing is
// broker-specific; readLoop decodes each frame as JSON into a RawTick
// and leaves OnData's callback registration to the caller (the Bridge).
type WSTransport struct {
	dialURL string
	log     *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc

	onOpen  func()
	onData  func(RawTick)
	onClose func()
	onError func(error)
}

// NewWSTransport builds a Transport dialing the given WebSocket URL.
func NewWSTransport(log *zap.Logger, dialURL string) *WSTransport {
	return &WSTransport{dialURL: dialURL, log: log.Named("broker-ws")}
}

func (t *WSTransport) Connect(ctx context.Context, tokens AuthTokens, connectTimeout time.Duration) error {
	u, err := url.Parse(t.dialURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("feed_token", tokens.FeedToken)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("broker transport connect: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	if t.onOpen != nil {
		t.onOpen()
	}
	go t.readLoop(runCtx)
	return nil
}

func (t *WSTransport) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}
		var raw RawTick
		if err := conn.ReadJSON(&raw); err != nil {
			if t.onError != nil {
				t.onError(err)
			}
			if t.onClose != nil {
				t.onClose()
			}
			return
		}
		if t.onData != nil {
			t.onData(raw)
		}
	}
}

func (t *WSTransport) Subscribe(tokens []string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("broker transport: subscribe before connect")
	}
	return conn.WriteJSON(map[string]interface{}{"action": "subscribe", "tokens": tokens})
}

func (t *WSTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *WSTransport) OnOpen(f func())          { t.onOpen = f }
func (t *WSTransport) OnData(f func(RawTick))   { t.onData = f }
func (t *WSTransport) OnClose(f func())         { t.onClose = f }
func (t *WSTransport) OnError(f func(error))    { t.onError = f }
