package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "festival/internal/errors"
	"festival/internal/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

var errWebhookSecretMissing = errors.New("webhook secret is not configured")

// ErrUndecodableEvent - подпись верна, но объект события не разобрать
var ErrUndecodableEvent = errors.New("failed to decode checkout session")

type PaymentConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// PaymentClient - клиент Stripe Checkout
type PaymentClient struct {
	sessions      *session.Client
	webhookSecret string
	currency      string
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	return NewPaymentClientWithBackend(cfg, stripe.GetBackend(stripe.APIBackend))
}

// NewPaymentClientWithBackend позволяет подменить API Stripe в тестах
func NewPaymentClientWithBackend(cfg PaymentConfig, backend stripe.Backend) *PaymentClient {
	currency := cfg.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	return &PaymentClient{
		sessions:      &session.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}
}

func (c *PaymentClient) Currency() string {
	return c.currency
}

// CreateSession создает hosted checkout session и возвращает адрес для редиректа
func (c *PaymentClient) CreateSession(ctx context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}

		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &models.PaymentSession{ID: s.ID, URL: s.URL}, nil
}

// ExpireSession закрывает сессию, чтобы по ней нельзя было заплатить
func (c *PaymentClient) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := c.sessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("failed to expire checkout session %s: %w", sessionID, err)
	}
	return nil
}

// VerifyWebhook проверяет подпись Stripe-Signature и разбирает событие.
// Для событий, не относящихся к checkout session, SessionID пустой.
func (c *PaymentClient) VerifyWebhook(payload []byte, signature string) (*models.PaymentEvent, error) {
	// HMAC с пустым ключом может посчитать кто угодно
	if c.webhookSecret == "" {
		return nil, &apperrors.AuthenticityError{Err: errWebhookSecretMissing}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                webhook.DefaultTolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		return nil, &apperrors.AuthenticityError{Err: err}
	}

	result := &models.PaymentEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return result, nil
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionExpired:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUndecodableEvent, err)
		}
		result.SessionID = cs.ID
		result.AmountTotal = cs.AmountTotal
		result.Currency = string(cs.Currency)
		result.PaymentStatus = string(cs.PaymentStatus)
		result.Metadata = cs.Metadata
	}

	return result, nil
}
