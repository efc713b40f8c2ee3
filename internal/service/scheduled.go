package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "festival/internal/errors"
	"festival/internal/logger"
	"festival/internal/models"
)

var (
	errSendAtInPast      = errors.New("send_at must be in the future")
	errScheduleNotActive = errors.New("notification is no longer pending")
)

type scheduledStore interface {
	Create(ctx context.Context, n *models.ScheduledNotification) error
	List(ctx context.Context, status string) ([]models.ScheduledNotification, error)
	Get(ctx context.Context, id int64) (*models.ScheduledNotification, error)
	Cancel(ctx context.Context, id int64) (bool, error)
}

// ScheduleService ставит рассылки в очередь; отправляет их задача в процессе consumers
type ScheduleService struct {
	store scheduledStore
	now   func() time.Time
}

func NewScheduleService(store scheduledStore) *ScheduleService {
	return &ScheduleService{store: store, now: time.Now}
}

func (s *ScheduleService) Schedule(ctx context.Context, req *models.ScheduleNotificationRequest) (*models.ScheduledNotification, error) {
	if !req.SendAt.After(s.now()) {
		return nil, apperrors.Invalid(errSendAtInPast)
	}

	n := &models.ScheduledNotification{
		Channel:        req.Channel,
		RecipientGroup: req.RecipientGroup,
		Body:           req.Body,
		SendAt:         req.SendAt.UTC(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to schedule notification: %w", err)
	}

	logger.WithContext(ctx).Info("Notification scheduled",
		"scheduled_id", n.ID,
		"group", n.RecipientGroup,
		"send_at", n.SendAt)
	return n, nil
}

func (s *ScheduleService) List(ctx context.Context, status string) ([]models.ScheduledNotification, error) {
	list, err := s.store.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled notifications: %w", err)
	}
	return list, nil
}

// Cancel отменяет рассылку, пока задача ее не взяла
func (s *ScheduleService) Cancel(ctx context.Context, id int64) error {
	ok, err := s.store.Cancel(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to cancel scheduled notification: %w", err)
	}
	if ok {
		return nil
	}

	n, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get scheduled notification: %w", err)
	}
	if n == nil {
		return apperrors.ErrNotFound
	}
	return apperrors.Invalid(errScheduleNotActive)
}
