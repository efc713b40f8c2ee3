package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "festival/internal/errors"
	"festival/internal/logger"
	"festival/internal/metrics"
	"festival/internal/models"
	"festival/internal/repository"
)

const maxTicketsPerOrder = 10

// Gateway - платежный шлюз с hosted checkout
type Gateway interface {
	CreateSession(ctx context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	VerifyWebhook(payload []byte, signature string) (*models.PaymentEvent, error)
}

// CheckoutResult - созданная сессия оплаты
type CheckoutResult struct {
	SessionID   string
	RedirectURL string
	Amount      int64
}

type CheckoutService struct {
	store     repository.Store
	gateway   Gateway
	publisher Publisher
	baseURL   string
	currency  string
	now       func() time.Time
}

func NewCheckoutService(store repository.Store, gateway Gateway, publisher Publisher, baseURL, currency string) *CheckoutService {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &CheckoutService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		baseURL:   baseURL,
		currency:  currency,
		now:       time.Now,
	}
}

// BeginCheckout проверяет намерение, открывает платежную сессию и сохраняет
// pending-запись. Агрегаты здесь не меняются; если запись не сохранилась,
// сессия закрывается и клиент не получает ссылку на оплату.
func (s *CheckoutService) BeginCheckout(ctx context.Context, intent models.Intent, customerEmail string) (*CheckoutResult, error) {
	if intent == nil {
		return nil, fmt.Errorf("checkout intent is required")
	}
	log := logger.WithContext(ctx)

	intent, items, err := s.prepare(ctx, intent)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(intent.IntentType(), "rejected").Inc()
		return nil, err
	}

	req := models.PaymentSessionRequest{
		Currency:      s.currency,
		LineItems:     items,
		SuccessURL:    s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.baseURL + "/checkout/cancel",
		CustomerEmail: customerEmail,
		Metadata:      models.IntentMetadata(intent),
	}
	// в дашборде шлюза сессия находится по пользователю
	if uid := intentUserID(intent); uid != nil {
		req.ClientReferenceID = "user-" + strconv.FormatInt(*uid, 10)
	}
	amount := req.Total()

	intentType, payload, err := models.EncodeIntent(intent)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(intentType, "gateway_error").Inc()
		return nil, apperrors.Transient("create payment session", err)
	}

	pending := &models.PendingIntent{
		SessionID:  session.ID,
		IntentType: intentType,
		Payload:    payload,
		Amount:     amount,
		UserID:     intentUserID(intent),
	}

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateIntent(ctx, pending); err != nil {
			return fmt.Errorf("failed to store pending intent: %w", err)
		}
		if bid, ok := intent.(models.BidIntent); ok {
			if err := tx.CreateBid(ctx, &models.Bid{
				AuctionID: bid.AuctionID,
				UserID:    bid.UserID,
				Amount:    bid.Amount,
				SessionID: session.ID,
			}); err != nil {
				return fmt.Errorf("failed to store pending bid: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(intentType, "store_error").Inc()
		log.Error("Failed to persist checkout, expiring payment session",
			"error", err,
			"session_id", session.ID,
			"intent_type", intentType)

		if expErr := s.gateway.ExpireSession(context.WithoutCancel(ctx), session.ID); expErr != nil {
			log.Warn("Failed to expire orphan payment session", "error", expErr, "session_id", session.ID)
		}
		return nil, apperrors.Transient("persist checkout", err)
	}

	metrics.CheckoutSessions.WithLabelValues(intentType, "created").Inc()
	log.Info("Checkout session created",
		"session_id", session.ID,
		"intent_type", intentType,
		"amount", amount)

	publish(ctx, s.publisher, models.EventCheckoutStarted, models.CheckoutStartedEvent{
		SessionID:  session.ID,
		IntentType: intentType,
		UserID:     pending.UserID,
		Amount:     amount,
		Timestamp:  s.now(),
	})

	return &CheckoutResult{
		SessionID:   session.ID,
		RedirectURL: session.URL,
		Amount:      amount,
	}, nil
}

// prepare проверяет вариант по актуальному снимку и строит позиции платежа
func (s *CheckoutService) prepare(ctx context.Context, intent models.Intent) (models.Intent, []models.PaymentLineItem, error) {
	switch i := intent.(type) {
	case models.TicketIntent:
		if i.Quantity < 1 || i.Quantity > maxTicketsPerOrder {
			return intent, nil, apperrors.Invalid(apperrors.ErrInvalidQuantity)
		}
		tt, err := s.store.GetTicketType(ctx, i.TicketTypeID)
		if err != nil {
			return intent, nil, fmt.Errorf("failed to get ticket type: %w", err)
		}
		if tt == nil {
			return intent, nil, apperrors.ErrNotFound
		}
		if tt.AvailableQuantity < i.Quantity {
			return intent, nil, apperrors.Invalid(apperrors.ErrInsufficientInventory)
		}
		item := models.PaymentLineItem{
			Name:       tt.Name,
			UnitAmount: tt.Price,
			Quantity:   int64(i.Quantity),
		}
		if tt.Description != nil {
			item.Description = *tt.Description
		}
		return i, []models.PaymentLineItem{item}, nil

	case models.DonationIntent:
		if i.Amount <= 0 {
			return intent, nil, apperrors.Invalid(apperrors.ErrInvalidAmount)
		}
		i.ProjectLabel = "Allgemeine Spende"
		if i.ProjectID != nil {
			p, err := s.store.GetProject(ctx, *i.ProjectID)
			if err != nil {
				return intent, nil, fmt.Errorf("failed to get project: %w", err)
			}
			if p == nil {
				return intent, nil, apperrors.ErrNotFound
			}
			i.ProjectLabel = "Spende für " + p.Name
		}
		return i, []models.PaymentLineItem{{
			Name:       i.ProjectLabel,
			UnitAmount: i.Amount,
			Quantity:   1,
		}}, nil

	case models.BidIntent:
		if i.Amount <= 0 {
			return intent, nil, apperrors.Invalid(apperrors.ErrInvalidAmount)
		}
		a, err := s.store.GetAuction(ctx, i.AuctionID)
		if err != nil {
			return intent, nil, fmt.Errorf("failed to get auction: %w", err)
		}
		if a == nil {
			return intent, nil, apperrors.ErrNotFound
		}
		if err := ValidateBid(a, i.Amount, s.now()); err != nil {
			return intent, nil, err
		}
		return i, []models.PaymentLineItem{{
			Name:        "Gebot: " + a.Title,
			Description: "Auktionsgebot",
			UnitAmount:  i.Amount,
			Quantity:    1,
		}}, nil

	default:
		return intent, nil, fmt.Errorf("unsupported intent type %T", intent)
	}
}

// Status возвращает состояние сессии для страницы возврата с оплаты
func (s *CheckoutService) Status(ctx context.Context, sessionID string) (*models.CheckoutStatusResponse, error) {
	p, err := s.store.GetIntent(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}
	if p == nil {
		return nil, apperrors.ErrNotFound
	}
	return &models.CheckoutStatusResponse{
		SessionID:  p.SessionID,
		IntentType: p.IntentType,
		Status:     p.Status,
		Outcome:    p.Outcome,
		Amount:     p.Amount,
	}, nil
}

func intentUserID(intent models.Intent) *int64 {
	switch i := intent.(type) {
	case models.TicketIntent:
		return &i.UserID
	case models.DonationIntent:
		return i.UserID
	case models.BidIntent:
		return &i.UserID
	}
	return nil
}
