package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"festival/internal/logger"
	"festival/internal/models"
)

const dispatchBatchSize = 20

type scheduledQueue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledNotification, error)
	MarkSent(ctx context.Context, id, logID int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

type broadcaster interface {
	Broadcast(ctx context.Context, req *models.BroadcastRequest) (*models.BroadcastResponse, error)
}

// ScheduledNotificationJob отправляет рассылки, время которых наступило.
// Взятая запись уходит в sending и второй раз не отправляется, даже если процесс упал.
type ScheduledNotificationJob struct {
	queue       scheduledQueue
	broadcaster broadcaster
	interval    time.Duration
	now         func() time.Time
	log         *slog.Logger
	ticker      *time.Ticker
	done        chan struct{}
}

func NewScheduledNotificationJob(queue scheduledQueue, b broadcaster, interval time.Duration) *ScheduledNotificationJob {
	return &ScheduledNotificationJob{
		queue:       queue,
		broadcaster: b,
		interval:    interval,
		now:         time.Now,
		log:         logger.WithFields("job", "scheduled_notifications"),
		done:        make(chan struct{}),
	}
}

func (j *ScheduledNotificationJob) Start(ctx context.Context) {
	j.log.Info("Starting scheduled notification job", "check_interval", j.interval)

	j.ticker = time.NewTicker(j.interval)

	go func() {
		j.dispatch(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.dispatch(ctx)
			case <-ctx.Done():
				j.log.Info("Scheduled notification job stopped", "reason", ctx.Err())
				return
			case <-j.done:
				j.log.Info("Scheduled notification job stopped")
				return
			}
		}
	}()
}

func (j *ScheduledNotificationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *ScheduledNotificationJob) dispatch(ctx context.Context) {
	sent, err := j.RunOnce(ctx)
	if err != nil {
		j.log.Error("Scheduled dispatch failed", "error", err, "sent", sent)
		return
	}
	if sent > 0 {
		j.log.Info("Scheduled dispatch finished", "sent", sent)
	}
}

// RunOnce отправляет наступившие рассылки и возвращает число отправленных.
// Неудачная рассылка помечается failed и не повторяется автоматически.
func (j *ScheduledNotificationJob) RunOnce(ctx context.Context) (int, error) {
	due, err := j.queue.ClaimDue(ctx, j.now(), dispatchBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim scheduled notifications: %w", err)
	}
	if len(due) == 0 {
		j.log.Debug("No scheduled notifications due")
		return 0, nil
	}

	sent := 0
	for _, n := range due {
		resp, err := j.broadcaster.Broadcast(ctx, &models.BroadcastRequest{
			Channel:        n.Channel,
			RecipientGroup: n.RecipientGroup,
			Body:           n.Body,
		})
		if err != nil {
			j.log.Error("Scheduled broadcast failed", "error", err, "scheduled_id", n.ID)
			if markErr := j.queue.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
				j.log.Error("Failed to mark scheduled notification failed", "error", markErr, "scheduled_id", n.ID)
			}
			continue
		}

		if err := j.queue.MarkSent(ctx, n.ID, resp.LogID, j.now()); err != nil {
			j.log.Error("Failed to mark scheduled notification sent", "error", err, "scheduled_id", n.ID)
		}
		j.log.Info("Scheduled broadcast sent",
			"scheduled_id", n.ID,
			"group", n.RecipientGroup,
			"recipients", resp.Recipients,
			"sent", resp.Sent,
			"delay", j.now().Sub(n.SendAt).String())
		sent++
	}

	return sent, nil
}
