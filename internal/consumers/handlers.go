package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"festival/internal/logger"
	"festival/internal/models"

	"github.com/nats-io/stan.go"
)

const handleTimeout = 20 * time.Second

// Notifier - часть NotificationService, которую используют консьюмеры
type Notifier interface {
	NotifyTicketsIssued(ctx context.Context, e *models.TicketsIssuedEvent) error
	NotifyDonationReceived(ctx context.Context, e *models.DonationReceivedEvent) error
	NotifyBidSettled(ctx context.Context, e *models.BidSettledEvent) error
	NotifyCheckoutExpired(ctx context.Context, e *models.IntentExpiredEvent) error
}

type Handlers struct {
	notifier Notifier
	log      *slog.Logger
}

func NewHandlers(notifier Notifier) *Handlers {
	return &Handlers{
		notifier: notifier,
		log:      logger.WithFields("component", "consumers"),
	}
}

func (h *Handlers) HandleTicketsIssued(m *stan.Msg) {
	h.ack(m, models.EventTicketsIssued, h.TicketsIssued(m.Data))
}

func (h *Handlers) HandleDonationReceived(m *stan.Msg) {
	h.ack(m, models.EventDonationReceived, h.DonationReceived(m.Data))
}

func (h *Handlers) HandleBidSettled(m *stan.Msg) {
	h.ack(m, models.EventBidSettled, h.BidSettled(m.Data))
}

func (h *Handlers) HandleIntentExpired(m *stan.Msg) {
	h.ack(m, models.EventIntentExpired, h.IntentExpired(m.Data))
}

func (h *Handlers) HandleCheckoutStarted(m *stan.Msg) {
	h.ack(m, models.EventCheckoutStarted, h.CheckoutStarted(m.Data))
}

// HandleSettlementFlagged только логирует; разбор идет через админку
func (h *Handlers) HandleSettlementFlagged(m *stan.Msg) {
	var event models.SettlementFlaggedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		h.log.Error("Failed to unmarshal settlement flagged event", "error", err)
	} else {
		h.log.Warn("Settlement flagged for review",
			"session_id", event.SessionID,
			"kind", event.Kind,
			"detail", event.Detail)
	}
	_ = m.Ack()
}

func (h *Handlers) TicketsIssued(data []byte) error {
	var event models.TicketsIssuedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return &poisonError{err: err}
	}
	h.log.Info("Processing tickets issued event", "session_id", event.SessionID, "tickets", len(event.TicketNumbers))

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	return h.notifier.NotifyTicketsIssued(ctx, &event)
}

func (h *Handlers) DonationReceived(data []byte) error {
	var event models.DonationReceivedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return &poisonError{err: err}
	}
	h.log.Info("Processing donation received event", "session_id", event.SessionID, "amount", event.Amount)

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	return h.notifier.NotifyDonationReceived(ctx, &event)
}

func (h *Handlers) BidSettled(data []byte) error {
	var event models.BidSettledEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return &poisonError{err: err}
	}
	h.log.Info("Processing bid settled event", "session_id", event.SessionID, "auction_id", event.AuctionID, "leading", event.Leading)

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	return h.notifier.NotifyBidSettled(ctx, &event)
}

func (h *Handlers) IntentExpired(data []byte) error {
	var event models.IntentExpiredEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return &poisonError{err: err}
	}

	h.log.Info("Processing intent expired event", "session_id", event.SessionID, "intent_type", event.IntentType)

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	return h.notifier.NotifyCheckoutExpired(ctx, &event)
}

// CheckoutStarted пишет журнал воронки: сессия создана, оплаты еще нет
func (h *Handlers) CheckoutStarted(data []byte) error {
	var event models.CheckoutStartedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return &poisonError{err: err}
	}

	attrs := []any{
		"session_id", event.SessionID,
		"intent_type", event.IntentType,
		"amount", event.Amount,
	}
	if event.UserID != nil {
		attrs = append(attrs, "user_id", *event.UserID)
	}
	h.log.Info("Checkout started", attrs...)
	return nil
}

// ack подтверждает сообщение при успехе и для непарсящихся сообщений.
// При ошибке доставки сообщение остается неподтвержденным и придет повторно после AckWait.
func (h *Handlers) ack(m *stan.Msg, subject string, err error) {
	if err != nil {
		var poison *poisonError
		if !errors.As(err, &poison) {
			h.log.Error("Failed to handle event, will be redelivered", "subject", subject, "error", err, "sequence", m.Sequence)
			return
		}
		h.log.Error("Dropping malformed event", "subject", subject, "error", err, "sequence", m.Sequence)
	}
	if err := m.Ack(); err != nil {
		h.log.Error("Failed to ack message", "subject", subject, "error", err)
	}
}

type poisonError struct {
	err error
}

func (e *poisonError) Error() string { return fmt.Sprintf("malformed event: %v", e.err) }
func (e *poisonError) Unwrap() error { return e.err }
