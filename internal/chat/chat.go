// Package chat defines the out-of-scope chat bot surface: a Dispatcher
// that routes caller-registered command tokens to handlers, plus the
// Notifier contract the core pushes signals and alerts through. The
// bot's command tokens and inline-button callbacks are not defined
// here. Only
// the contract and a logging-only stub live here — the real bot
// integration is an external collaborator. Grounded on
// cmd/server/main.go's callback-setter wiring style (OnPrice,
// SetTradeCallback, ...) applied to chat events.
package chat

import (
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/marketscan/internal/types"
)

// Notifier is the contract the core pushes outbound chat events
// through. All sends are fire-and-forget from the core's perspective;
// delivery failures are logged, never propagated into the pipeline.
type Notifier interface {
	SendSignal(signal types.FinalSignal)
	SendAlert(message string)
	SendCriticalAlert(message string)
	SendExitEvent(tradeID, symbol string, reason types.ExitReason, pnlPct float64)
}

// ConsoleNotifier logs every outbound event instead of delivering it,
// sufficient to drive and test the core without a live bot.
type ConsoleNotifier struct {
	log *zap.Logger
}

// NewConsoleNotifier builds a logging-only Notifier.
func NewConsoleNotifier(log *zap.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{log: log.Named("chat-console")}
}

func (c *ConsoleNotifier) SendSignal(signal types.FinalSignal) {
	c.log.Info("signal",
		zap.String("symbol", signal.Ranked.Candidate.Symbol),
		zap.String("entry", signal.Ranked.Candidate.Entry.String()),
		zap.Int("quantity", signal.Quantity))
}

func (c *ConsoleNotifier) SendAlert(message string) {
	c.log.Info("alert", zap.String("message", message))
}

func (c *ConsoleNotifier) SendCriticalAlert(message string) {
	c.log.Error("critical alert", zap.String("message", message))
}

func (c *ConsoleNotifier) SendExitEvent(tradeID, symbol string, reason types.ExitReason, pnlPct float64) {
	c.log.Info("exit",
		zap.String("tradeId", tradeID), zap.String("symbol", symbol),
		zap.String("reason", string(reason)), zap.Float64("pnlPct", pnlPct))
}

// MultiNotifier fans every event out to each wrapped Notifier, letting
// the chat bot and the dashboard websocket hub both observe the same
// stream without the core knowing about either concretely.
type MultiNotifier struct {
	targets []Notifier
}

// NewMultiNotifier builds a Notifier that broadcasts to every target.
func NewMultiNotifier(targets ...Notifier) *MultiNotifier {
	return &MultiNotifier{targets: targets}
}

func (m *MultiNotifier) SendSignal(signal types.FinalSignal) {
	for _, t := range m.targets {
		t.SendSignal(signal)
	}
}

func (m *MultiNotifier) SendAlert(message string) {
	for _, t := range m.targets {
		t.SendAlert(message)
	}
}

func (m *MultiNotifier) SendCriticalAlert(message string) {
	for _, t := range m.targets {
		t.SendCriticalAlert(message)
	}
}

func (m *MultiNotifier) SendExitEvent(tradeID, symbol string, reason types.ExitReason, pnlPct float64) {
	for _, t := range m.targets {
		t.SendExitEvent(tradeID, symbol, reason, pnlPct)
	}
}

// CommandHandler is a single chat command's handler, registered against
// its exact (case-insensitive) token by the Dispatcher.
type CommandHandler func(args []string) (reply string, err error)

// Dispatcher routes the exact command tokens to handlers, rejecting
// any command that does not originate from the
// configured chat id.
type Dispatcher struct {
	log      *zap.Logger
	chatID   string
	handlers map[string]CommandHandler
}

// NewDispatcher builds a Dispatcher bound to a single authorized chat id.
func NewDispatcher(log *zap.Logger, chatID string) *Dispatcher {
	return &Dispatcher{log: log.Named("chat-dispatcher"), chatID: chatID, handlers: make(map[string]CommandHandler)}
}

// Register binds a command token (e.g. "STATUS", "TAKEN") to a handler.
func (d *Dispatcher) Register(token string, handler CommandHandler) {
	d.handlers[normalizeToken(token)] = handler
}

func normalizeToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// Dispatch routes one inbound command line from a specific chat id. A
// mismatched chat id is silently rejected.
func (d *Dispatcher) Dispatch(fromChatID string, tokens []string) (string, error) {
	if fromChatID != d.chatID {
		d.log.Warn("rejected command from unauthorized chat", zap.String("chatId", fromChatID))
		return "", nil
	}
	if len(tokens) == 0 {
		return "", nil
	}
	handler, ok := d.handlers[normalizeToken(tokens[0])]
	if !ok {
		return "Unknown command. Send HELP for the command list.", nil
	}
	return handler(tokens[1:])
}

// commandTimeout is a per-command time budget for handlers that suspend
// on persistence. Dispatch does not apply it: each handler runs to
// completion.
const commandTimeout = 5 * time.Second
