// Package notifications delivers out-of-band trade reports. Delivery is
// best-effort: a full queue drops the message with a log line and never
// blocks the decision cycle.
package notifications

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/sakatrade/saka/internal/config"
	"github.com/sakatrade/saka/internal/metrics"
	"github.com/sakatrade/saka/internal/models"
)

// Sender delivers one formatted message to the configured channel
type Sender interface {
	Send(text string) error
}

// TelegramSender sends messages to a fixed set of chat ids
type TelegramSender struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
}

// NewTelegramSender authorizes the bot once at startup
func NewTelegramSender(token string, chatIDs []int64) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return &TelegramSender{api: api, chatIDs: chatIDs}, nil
}

// Send implements Sender
func (t *TelegramSender) Send(text string) error {
	var firstErr error
	for _, chatID := range t.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := t.api.Send(msg); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to send to chat %d: %w", chatID, err)
		}
	}
	return firstErr
}

// Dispatcher queues messages and delivers them from a single worker
// goroutine. When no sender is configured it degrades to log-only mode.
type Dispatcher struct {
	sender Sender
	queue  chan string
	logger zerolog.Logger
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// placeholderTokens are values that mean "notifications not configured"
var placeholderTokens = map[string]bool{
	"":            true,
	"changeme":    true,
	"your-token":  true,
	"placeholder": true,
}

// NewDispatcher builds the dispatcher from configuration. An absent or
// placeholder token selects log-only mode rather than failing startup.
func NewDispatcher(cfg config.NotifierConfig) (*Dispatcher, error) {
	logger := config.NewLogger("notifications")

	var sender Sender
	if !placeholderTokens[strings.ToLower(strings.TrimSpace(cfg.TelegramToken))] {
		s, err := NewTelegramSender(cfg.TelegramToken, cfg.ChatIDs)
		if err != nil {
			return nil, err
		}
		sender = s
		logger.Info().Int("chats", len(cfg.ChatIDs)).Msg("Telegram notifications enabled")
	} else {
		logger.Info().Msg("No notification token configured, running in log-only mode")
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	d := &Dispatcher{
		sender: sender,
		queue:  make(chan string, queueSize),
		logger: logger,
	}
	d.wg.Add(1)
	go d.run()
	return d, nil
}

// NewDispatcherWithSender wires an explicit sender; used by tests
func NewDispatcherWithSender(sender Sender, queueSize int) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		queue:  make(chan string, queueSize),
		logger: config.NewLogger("notifications"),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for text := range d.queue {
		if d.sender == nil {
			d.logger.Info().Str("report", text).Msg("Trade report (log-only mode)")
			metrics.NotificationsSent.Inc()
			continue
		}
		if err := d.sender.Send(text); err != nil {
			d.logger.Error().Err(err).Msg("Failed to deliver notification")
			continue
		}
		metrics.NotificationsSent.Inc()
	}
}

// Notify enqueues a message. It never blocks: on a full queue the message is
// dropped and counted.
func (d *Dispatcher) Notify(text string) {
	select {
	case d.queue <- text:
	default:
		metrics.NotificationsDropped.Inc()
		d.logger.Warn().Msg("Notification queue full, message dropped")
	}
}

// NotifyReceipt formats and enqueues the trade report for a receipt
func (d *Dispatcher) NotifyReceipt(r *models.Receipt) {
	d.Notify(FormatTradeReport(r))
}

// Close stops accepting messages and drains the queue
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

// FormatTradeReport renders the human-readable trade summary
func FormatTradeReport(r *models.Receipt) string {
	var b strings.Builder
	switch r.Status {
	case models.ReceiptStatusSuccess:
		b.WriteString("✅ Trade executed\n")
	case models.ReceiptStatusTestSuccess:
		b.WriteString("🧪 Trade simulated\n")
	default:
		b.WriteString("❌ Trade failed\n")
	}
	fmt.Fprintf(&b, "Asset: %s\n", r.Asset)
	fmt.Fprintf(&b, "Side: %s\n", r.Side)
	fmt.Fprintf(&b, "Amount: $%s\n", r.AmountUSD.StringFixed(2))
	fmt.Fprintf(&b, "Price: %s\n", r.ExecutedPrice.String())
	fmt.Fprintf(&b, "Quantity: %s\n", r.ExecutedQuantity.String())
	fmt.Fprintf(&b, "Order: %s\n", r.OrderID)
	fmt.Fprintf(&b, "Time: %s", r.Timestamp.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
