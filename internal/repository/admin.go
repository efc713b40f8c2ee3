package repository

import (
	"context"

	"festival/internal/database"
	"festival/internal/models"
)

type IssueRepository struct {
	db *database.DB
}

func NewIssueRepository(db *database.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

func (r *IssueRepository) List(ctx context.Context, onlyOpen bool) ([]models.ReconciliationIssue, error) {
	query := `
		SELECT id, session_id, intent_type, kind, detail, created_at, resolved_at
		FROM reconciliation_issues
		WHERE (NOT $1 OR resolved_at IS NULL)
		ORDER BY created_at DESC`

	rows, err := r.db.QueryWithRetry(ctx, query, onlyOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := []models.ReconciliationIssue{}
	for rows.Next() {
		var i models.ReconciliationIssue
		if err := rows.Scan(&i.ID, &i.SessionID, &i.IntentType, &i.Kind, &i.Detail, &i.CreatedAt, &i.ResolvedAt); err != nil {
			return nil, err
		}
		issues = append(issues, i)
	}

	return issues, rows.Err()
}

func (r *IssueRepository) Resolve(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE reconciliation_issues SET resolved_at = NOW() WHERE id = $1 AND resolved_at IS NULL`
	return affected(r.db.ExecContext(ctx, query, id))
}

type NotificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Log(ctx context.Context, l *models.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (channel, recipient_group, recipient_count, sent_count, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sent_at`

	return r.db.QueryRowContext(ctx, query,
		l.Channel,
		l.RecipientGroup,
		l.RecipientCount,
		l.SentCount,
		l.Body,
	).Scan(&l.ID, &l.SentAt)
}

type DashboardRepository struct {
	db *database.DB
}

func NewDashboardRepository(db *database.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Stats собирает счетчики админки одним запросом
func (r *DashboardRepository) Stats(ctx context.Context) (*models.DashboardResponse, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM tickets),
			(SELECT COUNT(*) FROM tickets WHERE status = 'used'),
			(SELECT COUNT(*) FROM donations),
			(SELECT COALESCE(SUM(amount), 0) FROM donations),
			(SELECT COUNT(*) FROM auctions WHERE status = 'active'),
			(SELECT COUNT(*) FROM bids WHERE status = 'completed'),
			(SELECT COUNT(*) FROM reconciliation_issues WHERE resolved_at IS NULL)`

	stats := &models.DashboardResponse{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Users,
		&stats.TicketsSold,
		&stats.TicketsUsed,
		&stats.Donations,
		&stats.DonationsTotal,
		&stats.ActiveAuctions,
		&stats.BidsCompleted,
		&stats.OpenIssues,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
