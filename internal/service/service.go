package service

import (
	"context"
	"errors"

	"festival/internal/auth"
	"festival/internal/cache"
	"festival/internal/config"
	"festival/internal/external"
	"festival/internal/logger"
	"festival/internal/messaging"
	"festival/internal/repository"
	"festival/internal/search"
)

// Publisher публикует события в шину
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// Invalidator сбрасывает закешированные публичные списки
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

type Services struct {
	Auth          *AuthService
	Account       *AccountService
	Catalog       *CatalogService
	Checkout      *CheckoutService
	Settlement    *SettlementService
	Admin         *AdminService
	Users         *UserService
	Notifications *NotificationService
	Schedules     *ScheduleService
}

func NewServices(cfg *config.Config, repos *repository.Repositories, natsClient *messaging.NATSClient, valkeyClient *cache.ValkeyClient, esClient *search.ElasticsearchClient, paymentClient *external.PaymentClient, notifier *external.Notifier, tokens *auth.TokenIssuer) *Services {
	// nil-клиенты не должны превращаться в ненулевые интерфейсы
	var listCache ListCache
	if valkeyClient != nil {
		listCache = valkeyClient
	}
	var index ArtistIndex
	if esClient != nil {
		index = esClient
	}

	catalog := NewCatalogService(repos, listCache, index)
	checkout := NewCheckoutService(repos.Store, paymentClient, natsClient, cfg.PublicBaseURL, paymentClient.Currency())
	settlement := NewSettlementService(repos.Store, paymentClient, natsClient, listCache)

	return &Services{
		Auth:          NewAuthService(repos.Users, tokens, cfg.Auth.BcryptCost),
		Account:       NewAccountService(repos.Tickets, repos.Auctions),
		Catalog:       catalog,
		Checkout:      checkout,
		Settlement:    settlement,
		Admin:         NewAdminService(repos, listCache, index),
		Users:         NewUserService(repos.Users),
		Notifications: NewNotificationService(repos.Users, repos.Notifications, notifier),
		Schedules:     NewScheduleService(repos.Scheduled),
	}
}

func publish(ctx context.Context, p Publisher, subject string, data interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(subject, data); err != nil {
		if errors.Is(err, messaging.ErrNotConnected) {
			logger.WithContext(ctx).Debug("Event not published, NATS disabled", "event_type", subject)
			return
		}
		// Log error but don't fail the operation
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err,
			"event_type", subject)
	}
}

func invalidate(ctx context.Context, c Invalidator, keys ...string) {
	if c == nil {
		return
	}
	if err := c.Invalidate(ctx, keys...); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate cache", "error", err, "keys", keys)
	}
}
