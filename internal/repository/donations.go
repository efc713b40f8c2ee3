package repository

import (
	"context"

	"festival/internal/database"
	"festival/internal/models"
)

type DonationRepository struct {
	db *database.DB
}

func NewDonationRepository(db *database.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// List возвращает пожертвования, новые первыми. projectID = nil - все проекты.
func (r *DonationRepository) List(ctx context.Context, projectID *int64, limit, offset int) ([]models.Donation, error) {
	query := `
		SELECT id, project_id, user_id, amount, donor_name, message, project_label, session_id, created_at
		FROM donations
		WHERE ($1::BIGINT IS NULL OR project_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryWithRetry(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donations := []models.Donation{}
	for rows.Next() {
		var d models.Donation
		err := rows.Scan(
			&d.ID,
			&d.ProjectID,
			&d.UserID,
			&d.Amount,
			&d.DonorName,
			&d.Message,
			&d.ProjectLabel,
			&d.SessionID,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}

	return donations, rows.Err()
}
