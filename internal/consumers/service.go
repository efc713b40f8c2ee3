package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"festival/internal/config"
	"festival/internal/database"
	"festival/internal/external"
	"festival/internal/logger"
	"festival/internal/messaging"
	"festival/internal/models"
	"festival/internal/repository"
	"festival/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "consumers"

// ConsumerService обрабатывает события расчета вне запроса вебхука
type ConsumerService struct {
	db            *database.DB
	nats          *messaging.NATSClient
	repos         *repository.Repositories
	notifications *service.NotificationService
	handlers      *Handlers
	subscriptions []stan.Subscription
	log           *slog.Logger
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	repos := repository.NewRepositories(db)
	notifications := service.NewNotificationService(repos.Users, repos.Notifications, external.NewNotifier(cfg.Notifier))

	return &ConsumerService{
		db:            db,
		nats:          natsClient,
		repos:         repos,
		notifications: notifications,
		handlers:      NewHandlers(notifications),
		log:           logger.WithFields("component", "consumers"),
	}, nil
}

// Store отдает хранилище для фоновых задач процесса
func (cs *ConsumerService) Store() repository.Store {
	return cs.repos.Store
}

// ScheduledNotifications - очередь отложенных рассылок
func (cs *ConsumerService) ScheduledNotifications() *repository.ScheduledNotificationRepository {
	return cs.repos.Scheduled
}

func (cs *ConsumerService) Notifications() *service.NotificationService {
	return cs.notifications
}

func (cs *ConsumerService) NATS() *messaging.NATSClient {
	return cs.nats
}

func (cs *ConsumerService) Start() error {
	cs.log.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventTicketsIssued, cs.handlers.HandleTicketsIssued},
		{models.EventDonationReceived, cs.handlers.HandleDonationReceived},
		{models.EventBidSettled, cs.handlers.HandleBidSettled},
		{models.EventSettlementFlagged, cs.handlers.HandleSettlementFlagged},
		{models.EventIntentExpired, cs.handlers.HandleIntentExpired},
		{models.EventCheckoutStarted, cs.handlers.HandleCheckoutStarted},
	}

	for _, s := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return err
		}
		cs.subscriptions = append(cs.subscriptions, sub)
	}

	cs.log.Info("All consumers started successfully", "subscriptions", len(cs.subscriptions))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	cs.log.Info("Shutting down consumer service...")

	// Close, не Unsubscribe: durable-подписки должны пережить перезапуск
	for _, sub := range cs.subscriptions {
		if err := sub.Close(); err != nil {
			cs.log.Warn("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			cs.log.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			cs.log.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
