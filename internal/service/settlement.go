package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"festival/internal/cache"
	apperrors "festival/internal/errors"
	"festival/internal/logger"
	"festival/internal/metrics"
	"festival/internal/models"
	"festival/internal/repository"

	"github.com/google/uuid"
)

// Outcome - как было обработано уведомление об оплате
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUnknown   Outcome = "unknown"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFlagged   Outcome = "flagged"
)

// errAlreadyClaimed - намерение уже забрала другая доставка
var errAlreadyClaimed = errors.New("intent already claimed")

// settled - что применил расчет, для событий после коммита
type settled struct {
	ticketNumbers  []string
	donationID     int64
	bidID          int64
	leading        bool
	previousLeader *int64
}

type SettlementService struct {
	store     repository.Store
	gateway   Gateway
	publisher Publisher
	cache     Invalidator

	now             func() time.Time
	newTicketNumber func() string
}

func NewSettlementService(store repository.Store, gateway Gateway, publisher Publisher, invalidator Invalidator) *SettlementService {
	s := &SettlementService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		cache:     invalidator,
		now:       time.Now,
	}
	s.newTicketNumber = func() string { return GenerateTicketNumber(s.now()) }
	return s
}

// OnPaymentCompleted обрабатывает webhook платежного шлюза.
// Ошибка AuthenticityError - подпись неверна или секрет не настроен, ничего не применено.
// Любая другая ошибка оставляет намерение pending для повторной доставки.
func (s *SettlementService) OnPaymentCompleted(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		if _, ok := apperrors.AsAuthenticity(err); ok {
			metrics.WebhookRejections.WithLabelValues("signature").Inc()
			logger.WithContext(ctx).Warn("Rejected payment notification", "error", err)
			return "", err
		}
		// подпись верна, но событие не разобрано: ничего не применено, шлюз повторит доставку
		metrics.WebhookRejections.WithLabelValues("decode").Inc()
		logger.WithContext(ctx).Error("Failed to decode payment notification", "error", err)
		return "", fmt.Errorf("failed to decode payment notification: %w", err)
	}

	return s.Settle(ctx, event)
}

// Settle применяет проверенное событие оплаты
func (s *SettlementService) Settle(ctx context.Context, event *models.PaymentEvent) (Outcome, error) {
	log := logger.WithContext(ctx).With("event_id", event.ID, "session_id", event.SessionID)

	if !isPaidCompletion(event) {
		log.Debug("Ignoring payment event", "type", event.Type, "payment_status", event.PaymentStatus)
		return OutcomeIgnored, nil
	}

	pending, err := s.store.GetIntent(ctx, event.SessionID)
	if err != nil {
		metrics.WebhookRejections.WithLabelValues("store").Inc()
		return "", apperrors.Transient("load intent", err)
	}
	if pending == nil {
		log.Warn("Payment completed for unknown session")
		metrics.Settlements.WithLabelValues("unknown", string(OutcomeUnknown)).Inc()
		return OutcomeUnknown, nil
	}

	switch pending.Status {
	case models.IntentCompleted:
		log.Info("Duplicate payment notification")
		metrics.Settlements.WithLabelValues(pending.IntentType, string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	case models.IntentExpired:
		return s.flagLateCompletion(ctx, pending)
	}

	intent, err := pending.Intent()
	if err != nil {
		return s.flag(ctx, pending,
			&apperrors.FatalInconsistency{Kind: apperrors.KindMissingTarget, Detail: err.Error()})
	}

	if event.AmountTotal != pending.Amount {
		return s.flag(ctx, pending, &apperrors.FatalInconsistency{
			Kind:   apperrors.KindAmountMismatch,
			Detail: fmt.Sprintf("paid %d, expected %d", event.AmountTotal, pending.Amount),
		})
	}

	var res settled
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		claimed, err := tx.ClaimIntent(ctx, pending.SessionID, models.OutcomeFulfilled)
		if err != nil {
			return fmt.Errorf("failed to claim intent: %w", err)
		}
		if !claimed {
			return errAlreadyClaimed
		}
		return s.dispatch(ctx, tx, pending.SessionID, intent, &res)
	})

	if errors.Is(err, errAlreadyClaimed) {
		log.Info("Intent settled by a concurrent delivery")
		metrics.Settlements.WithLabelValues(pending.IntentType, string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}
	if f, ok := apperrors.AsInconsistency(err); ok {
		return s.flag(ctx, pending, f)
	}
	if err != nil {
		log.Error("Settlement failed, leaving intent pending", "error", err, "intent_type", pending.IntentType)
		metrics.WebhookRejections.WithLabelValues("processing").Inc()
		return "", apperrors.Transient("settle intent", err)
	}

	metrics.Settlements.WithLabelValues(pending.IntentType, string(OutcomeApplied)).Inc()
	log.Info("Payment settled", "intent_type", pending.IntentType, "amount", pending.Amount)

	s.afterCommit(ctx, pending, intent, &res)
	return OutcomeApplied, nil
}

// dispatch - единственная точка ветвления по варианту намерения
func (s *SettlementService) dispatch(ctx context.Context, tx repository.Tx, sessionID string, intent models.Intent, res *settled) error {
	switch i := intent.(type) {
	case models.TicketIntent:
		return s.issueTickets(ctx, tx, sessionID, i, res)
	case models.DonationIntent:
		return s.recordDonation(ctx, tx, sessionID, i, res)
	case models.BidIntent:
		return s.settleBid(ctx, tx, sessionID, i, res)
	default:
		return apperrors.Inconsistent(apperrors.KindMissingTarget, "unsupported intent type %T", intent)
	}
}

func (s *SettlementService) issueTickets(ctx context.Context, tx repository.Tx, sessionID string, i models.TicketIntent, res *settled) error {
	for n := 0; n < i.Quantity; n++ {
		ticket := &models.Ticket{
			UserID:       i.UserID,
			TicketTypeID: i.TicketTypeID,
			TicketNumber: s.newTicketNumber(),
			QRCode:       uuid.NewString(),
			Status:       models.TicketActive,
			SessionID:    sessionID,
		}
		if err := tx.InsertTicket(ctx, ticket); err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
		res.ticketNumbers = append(res.ticketNumbers, ticket.TicketNumber)
	}

	ok, err := tx.DecrementInventory(ctx, i.TicketTypeID, i.Quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement inventory: %w", err)
	}
	if !ok {
		return apperrors.Inconsistent(apperrors.KindOversold,
			"ticket type %d has fewer than %d tickets left", i.TicketTypeID, i.Quantity)
	}
	return nil
}

func (s *SettlementService) recordDonation(ctx context.Context, tx repository.Tx, sessionID string, i models.DonationIntent, res *settled) error {
	if i.ProjectID != nil {
		ok, err := tx.IncrementRaised(ctx, *i.ProjectID, i.Amount)
		if err != nil {
			return fmt.Errorf("failed to increment raised: %w", err)
		}
		if !ok {
			return apperrors.Inconsistent(apperrors.KindMissingTarget, "project %d not found", *i.ProjectID)
		}
	}

	donation := &models.Donation{
		ProjectID:    i.ProjectID,
		UserID:       i.UserID,
		Amount:       i.Amount,
		DonorName:    i.DonorName,
		Message:      i.Message,
		ProjectLabel: i.ProjectLabel,
		SessionID:    sessionID,
	}
	if err := tx.InsertDonation(ctx, donation); err != nil {
		return fmt.Errorf("failed to insert donation: %w", err)
	}
	res.donationID = donation.ID
	return nil
}

func (s *SettlementService) settleBid(ctx context.Context, tx repository.Tx, sessionID string, i models.BidIntent, res *settled) error {
	bid, err := tx.CompleteBid(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to complete bid: %w", err)
	}
	if bid == nil {
		return apperrors.Inconsistent(apperrors.KindMissingTarget, "no pending bid for session %s", sessionID)
	}

	applied, leading, previousLeader, err := tx.ApplyCompletedBid(ctx, bid.AuctionID, bid.ID, bid.Amount)
	if err != nil {
		return fmt.Errorf("failed to apply bid: %w", err)
	}
	if !applied {
		return apperrors.Inconsistent(apperrors.KindAuctionClosed, "auction %d has ended", i.AuctionID)
	}

	res.bidID = bid.ID
	res.leading = leading
	res.previousLeader = previousLeader
	return nil
}

// flag фиксирует неустранимое расхождение отдельной транзакцией и подтверждает
// событие, чтобы шлюз не доставлял его повторно
func (s *SettlementService) flag(ctx context.Context, pending *models.PendingIntent, f *apperrors.FatalInconsistency) (Outcome, error) {
	log := logger.WithContext(ctx).With("session_id", pending.SessionID, "intent_type", pending.IntentType)

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		claimed, err := tx.ClaimIntent(ctx, pending.SessionID, models.OutcomeFlagged)
		if err != nil {
			return fmt.Errorf("failed to claim intent: %w", err)
		}
		if !claimed {
			return errAlreadyClaimed
		}
		if pending.IntentType == models.IntentTypeBid {
			if _, err := tx.FailBid(ctx, pending.SessionID); err != nil {
				return fmt.Errorf("failed to mark bid failed: %w", err)
			}
		}
		return tx.RecordIssue(ctx, &models.ReconciliationIssue{
			SessionID:  pending.SessionID,
			IntentType: pending.IntentType,
			Kind:       f.Kind,
			Detail:     f.Detail,
		})
	})
	if errors.Is(err, errAlreadyClaimed) {
		metrics.Settlements.WithLabelValues(pending.IntentType, string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}
	if err != nil {
		log.Error("Failed to flag settlement", "error", err, "kind", f.Kind)
		return "", apperrors.Transient("flag settlement", err)
	}

	log.Error("Payment flagged for manual reconciliation", "kind", f.Kind, "detail", f.Detail)
	metrics.Settlements.WithLabelValues(pending.IntentType, string(OutcomeFlagged)).Inc()

	publish(ctx, s.publisher, models.EventSettlementFlagged, models.SettlementFlaggedEvent{
		SessionID:  pending.SessionID,
		IntentType: pending.IntentType,
		Kind:       f.Kind,
		Detail:     f.Detail,
		Timestamp:  s.now(),
	})
	return OutcomeFlagged, nil
}

// flagLateCompletion - оплата пришла после истечения намерения
func (s *SettlementService) flagLateCompletion(ctx context.Context, pending *models.PendingIntent) (Outcome, error) {
	detail := "payment completed after intent expired"
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.RecordIssue(ctx, &models.ReconciliationIssue{
			SessionID:  pending.SessionID,
			IntentType: pending.IntentType,
			Kind:       apperrors.KindLateCompletion,
			Detail:     detail,
		})
	})
	if err != nil {
		return "", apperrors.Transient("record late completion", err)
	}

	logger.WithContext(ctx).Error("Late payment for expired intent",
		"session_id", pending.SessionID,
		"intent_type", pending.IntentType)
	metrics.Settlements.WithLabelValues(pending.IntentType, string(OutcomeFlagged)).Inc()

	publish(ctx, s.publisher, models.EventSettlementFlagged, models.SettlementFlaggedEvent{
		SessionID:  pending.SessionID,
		IntentType: pending.IntentType,
		Kind:       apperrors.KindLateCompletion,
		Detail:     detail,
		Timestamp:  s.now(),
	})
	return OutcomeFlagged, nil
}

func (s *SettlementService) afterCommit(ctx context.Context, pending *models.PendingIntent, intent models.Intent, res *settled) {
	now := s.now()

	switch i := intent.(type) {
	case models.TicketIntent:
		invalidate(ctx, s.cache, cache.KeyTicketTypes)
		publish(ctx, s.publisher, models.EventTicketsIssued, models.TicketsIssuedEvent{
			SessionID:     pending.SessionID,
			UserID:        i.UserID,
			TicketTypeID:  i.TicketTypeID,
			TicketNumbers: res.ticketNumbers,
			Amount:        pending.Amount,
			Timestamp:     now,
		})
	case models.DonationIntent:
		if i.ProjectID != nil {
			invalidate(ctx, s.cache, cache.KeyProjects)
		}
		publish(ctx, s.publisher, models.EventDonationReceived, models.DonationReceivedEvent{
			SessionID:    pending.SessionID,
			DonationID:   res.donationID,
			UserID:       i.UserID,
			ProjectID:    i.ProjectID,
			ProjectLabel: i.ProjectLabel,
			Amount:       i.Amount,
			Timestamp:    now,
		})
	case models.BidIntent:
		invalidate(ctx, s.cache, cache.KeyAuctions)
		publish(ctx, s.publisher, models.EventBidSettled, models.BidSettledEvent{
			SessionID:      pending.SessionID,
			BidID:          res.bidID,
			AuctionID:      i.AuctionID,
			UserID:         i.UserID,
			Amount:         i.Amount,
			Leading:        res.leading,
			PreviousLeader: res.previousLeader,
			Timestamp:      now,
		})
	}
}

func isPaidCompletion(event *models.PaymentEvent) bool {
	if event.SessionID == "" {
		return false
	}
	switch event.Type {
	case models.PaymentEventCheckoutCompleted:
		return event.PaymentStatus == models.PaymentStatusPaid ||
			event.PaymentStatus == models.PaymentStatusNoPaymentRequired
	case models.PaymentEventAsyncPaymentSucceeded:
		return true
	}
	return false
}

const ticketAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateTicketNumber возвращает номер вида HAF-<время base36>-<5 случайных символов>
func GenerateTicketNumber(now time.Time) string {
	id := uuid.New()
	var suffix [5]byte
	for i := range suffix {
		suffix[i] = ticketAlphabet[int(id[i])%len(ticketAlphabet)]
	}
	return "HAF-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + "-" + string(suffix[:])
}
