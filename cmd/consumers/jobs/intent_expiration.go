package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"festival/internal/logger"
	"festival/internal/metrics"
	"festival/internal/models"
	"festival/internal/repository"
)

const sweepBatchSize = 500

type publisher interface {
	Publish(subject string, data interface{}) error
}

// IntentExpirationJob переводит брошенные checkout-намерения в expired.
// TTL должен быть больше времени жизни платежной сессии, иначе оплата может прийти после истечения.
type IntentExpirationJob struct {
	store     repository.Store
	publisher publisher
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
	log       *slog.Logger
	ticker    *time.Ticker
	done      chan struct{}
}

func NewIntentExpirationJob(store repository.Store, pub publisher, ttl, interval time.Duration) *IntentExpirationJob {
	return &IntentExpirationJob{
		store:     store,
		publisher: pub,
		ttl:       ttl,
		interval:  interval,
		now:       time.Now,
		log:       logger.WithFields("job", "intent_expiration"),
		done:      make(chan struct{}),
	}
}

// Start запускает проверку сразу и затем каждые interval
func (j *IntentExpirationJob) Start(ctx context.Context) {
	j.log.Info("Starting intent expiration job", "check_interval", j.interval, "ttl", j.ttl)

	j.ticker = time.NewTicker(j.interval)

	go func() {
		j.sweep(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				j.log.Info("Intent expiration job stopped", "reason", ctx.Err())
				return
			case <-j.done:
				j.log.Info("Intent expiration job stopped")
				return
			}
		}
	}()
}

func (j *IntentExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *IntentExpirationJob) sweep(ctx context.Context) {
	expired, err := j.RunOnce(ctx)
	if err != nil {
		j.log.Error("Intent sweep failed", "error", err, "expired", expired)
		return
	}
	if expired > 0 {
		j.log.Info("Intent sweep finished", "expired", expired)
	}
}

// RunOnce истекает все pending-намерения старше TTL и возвращает их количество.
// Ошибка одного намерения не останавливает остальные.
func (j *IntentExpirationJob) RunOnce(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.ttl)

	stale, err := j.store.ListStaleIntents(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale intents: %w", err)
	}
	if len(stale) == 0 {
		j.log.Debug("No stale intents found")
		return 0, nil
	}

	j.log.Info("Found stale intents to expire", "count", len(stale))

	expired := 0
	for _, intent := range stale {
		ok, err := j.expireIntent(ctx, &intent)
		if err != nil {
			j.log.Error("Failed to expire intent",
				"error", err,
				"session_id", intent.SessionID,
				"intent_type", intent.IntentType,
				"created_at", intent.CreatedAt)
			continue
		}
		if !ok {
			// оплата пришла между выборкой и обновлением
			j.log.Debug("Intent no longer pending", "session_id", intent.SessionID)
			continue
		}
		expired++
	}

	return expired, nil
}

func (j *IntentExpirationJob) expireIntent(ctx context.Context, intent *models.PendingIntent) (bool, error) {
	var expired bool
	err := j.store.WithinTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.ExpireIntent(ctx, intent.SessionID)
		if err != nil || !ok {
			return err
		}
		if intent.IntentType == models.IntentTypeBid {
			if _, err := tx.FailBid(ctx, intent.SessionID); err != nil {
				return err
			}
		}
		expired = true
		return nil
	})
	if err != nil || !expired {
		return false, err
	}

	metrics.ExpiredIntents.Inc()

	event := models.IntentExpiredEvent{
		SessionID:  intent.SessionID,
		IntentType: intent.IntentType,
		UserID:     intent.UserID,
		Amount:     intent.Amount,
		Reason:     fmt.Sprintf("no payment within %s", j.ttl),
		Timestamp:  j.now(),
	}
	if err := j.publisher.Publish(models.EventIntentExpired, event); err != nil {
		j.log.Warn("Failed to publish intent expired event", "error", err, "session_id", intent.SessionID)
	}

	j.log.Info("Intent expired",
		"session_id", intent.SessionID,
		"intent_type", intent.IntentType,
		"elapsed_time", j.now().Sub(intent.CreatedAt).String())
	return true, nil
}
