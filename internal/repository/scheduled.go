package repository

import (
	"context"
	"database/sql"
	"time"

	"festival/internal/database"
	"festival/internal/models"
)

type ScheduledNotificationRepository struct {
	db *database.DB
}

func NewScheduledNotificationRepository(db *database.DB) *ScheduledNotificationRepository {
	return &ScheduledNotificationRepository{db: db}
}

const scheduledColumns = `id, channel, recipient_group, body, send_at, status, sent_at, log_id, error, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduled(row rowScanner) (models.ScheduledNotification, error) {
	var n models.ScheduledNotification
	err := row.Scan(
		&n.ID,
		&n.Channel,
		&n.RecipientGroup,
		&n.Body,
		&n.SendAt,
		&n.Status,
		&n.SentAt,
		&n.LogID,
		&n.Error,
		&n.CreatedAt,
	)
	return n, err
}

func (r *ScheduledNotificationRepository) Create(ctx context.Context, n *models.ScheduledNotification) error {
	query := `
		INSERT INTO scheduled_notifications (channel, recipient_group, body, send_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at`

	return r.db.QueryRowContext(ctx, query, n.Channel, n.RecipientGroup, n.Body, n.SendAt).
		Scan(&n.ID, &n.Status, &n.CreatedAt)
}

func (r *ScheduledNotificationRepository) Get(ctx context.Context, id int64) (*models.ScheduledNotification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduledColumns+` FROM scheduled_notifications WHERE id = $1`, id)
	n, err := scanScheduled(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// List возвращает рассылки по времени отправки; status пустой - все
func (r *ScheduledNotificationRepository) List(ctx context.Context, status string) ([]models.ScheduledNotification, error) {
	query := `SELECT ` + scheduledColumns + `
		FROM scheduled_notifications
		WHERE ($1 = '' OR status = $1)
		ORDER BY send_at, id`

	rows, err := r.db.QueryWithRetry(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScheduledNotification{}
	for rows.Next() {
		n, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}

	return out, rows.Err()
}

// Cancel отменяет только еще не взятую в работу рассылку
func (r *ScheduledNotificationRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE scheduled_notifications SET status = 'cancelled' WHERE id = $1 AND status = 'pending'`
	return affected(r.db.ExecContext(ctx, query, id))
}

// ClaimDue переводит наступившие рассылки в sending и возвращает их.
// SKIP LOCKED не дает двум процессам взять одну и ту же запись.
func (r *ScheduledNotificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledNotification, error) {
	query := `
		UPDATE scheduled_notifications SET status = 'sending'
		WHERE id IN (
			SELECT id FROM scheduled_notifications
			WHERE status = 'pending' AND send_at <= $1
			ORDER BY send_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + scheduledColumns

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []models.ScheduledNotification
	for rows.Next() {
		n, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, n)
	}

	return claimed, rows.Err()
}

func (r *ScheduledNotificationRepository) MarkSent(ctx context.Context, id, logID int64, sentAt time.Time) error {
	query := `UPDATE scheduled_notifications SET status = 'sent', log_id = $2, sent_at = $3 WHERE id = $1 AND status = 'sending'`
	_, err := r.db.ExecContext(ctx, query, id, logID, sentAt)
	return err
}

func (r *ScheduledNotificationRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `UPDATE scheduled_notifications SET status = 'failed', error = $2 WHERE id = $1 AND status = 'sending'`
	_, err := r.db.ExecContext(ctx, query, id, reason)
	return err
}
