package repository

import (
	"context"

	"festival/internal/database"
	"festival/internal/models"
)

type AuctionRepository struct {
	db *database.DB
}

func NewAuctionRepository(db *database.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

// List возвращает аукционы, активные первыми; пустой status - без фильтра
func (r *AuctionRepository) List(ctx context.Context, status string) ([]models.Auction, error) {
	query := selectAuction
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY CASE status WHEN 'active' THEN 0 WHEN 'upcoming' THEN 1 ELSE 2 END, ends_at`

	rows, err := r.db.QueryWithRetry(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	auctions := []models.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, *a)
	}

	return auctions, rows.Err()
}

func (r *AuctionRepository) Create(ctx context.Context, a *models.Auction) error {
	query := `
		INSERT INTO auctions (title, description, image_url, starting_bid, status, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, bid_count, created_at`

	return r.db.QueryRowContext(ctx, query,
		a.Title,
		a.Description,
		a.ImageURL,
		a.StartingBid,
		a.Status,
		a.StartsAt,
		a.EndsAt,
	).Scan(&a.ID, &a.BidCount, &a.CreatedAt)
}

// UpdateStatus меняет статус; завершенный аукцион обратно не открывается
func (r *AuctionRepository) UpdateStatus(ctx context.Context, id int64, status string) (bool, error) {
	query := `UPDATE auctions SET status = $2 WHERE id = $1 AND status <> 'ended'`
	return affected(r.db.ExecContext(ctx, query, id, status))
}

// ListCompletedBids возвращает завершенные ставки аукциона от старшей к младшей
func (r *AuctionRepository) ListCompletedBids(ctx context.Context, auctionID int64, limit int) ([]models.Bid, error) {
	query := `
		SELECT id, auction_id, user_id, amount, session_id, status, created_at
		FROM bids
		WHERE auction_id = $1 AND status = 'completed'
		ORDER BY amount DESC, created_at
		LIMIT $2`
	return r.queryBids(ctx, query, auctionID, limit)
}

func (r *AuctionRepository) ListBidsByUser(ctx context.Context, userID int64) ([]models.Bid, error) {
	query := `
		SELECT id, auction_id, user_id, amount, session_id, status, created_at
		FROM bids
		WHERE user_id = $1
		ORDER BY created_at DESC`
	return r.queryBids(ctx, query, userID)
}

func (r *AuctionRepository) queryBids(ctx context.Context, query string, args ...any) ([]models.Bid, error) {
	rows, err := r.db.QueryWithRetry(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []models.Bid{}
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.UserID, &b.Amount, &b.SessionID, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}

	return bids, rows.Err()
}
