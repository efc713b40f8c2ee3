package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"festival/internal/database"
	"festival/internal/models"
)

// PostgresStore реализует Store поверх PostgreSQL
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const selectAuction = `
	SELECT id, title, description, image_url, starting_bid, current_bid, bid_count,
	       leading_bid_id, status, starts_at, ends_at, created_at
	FROM auctions`

func scanAuction(row interface{ Scan(...any) error }) (*models.Auction, error) {
	a := &models.Auction{}
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.ImageURL,
		&a.StartingBid,
		&a.CurrentBid,
		&a.BidCount,
		&a.LeadingBidID,
		&a.Status,
		&a.StartsAt,
		&a.EndsAt,
		&a.CreatedAt,
	)
	return a, err
}

func (s *PostgresStore) GetAuction(ctx context.Context, id int64) (*models.Auction, error) {
	a, err := scanAuction(s.db.QueryRowContext(ctx, selectAuction+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *PostgresStore) GetTicketType(ctx context.Context, id int64) (*models.TicketType, error) {
	return getTicketType(ctx, s.db, id)
}

func getTicketType(ctx context.Context, q queryer, id int64) (*models.TicketType, error) {
	t := &models.TicketType{}
	query := `
		SELECT id, name, description, price, available_quantity, created_at
		FROM ticket_types
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.Price,
		&t.AvailableQuantity,
		&t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *PostgresStore) GetProject(ctx context.Context, id int64) (*models.CharityProject, error) {
	return getProject(ctx, s.db, id)
}

func getProject(ctx context.Context, q queryer, id int64) (*models.CharityProject, error) {
	p := &models.CharityProject{}
	query := `
		SELECT id, name, description, goal, raised, created_at
		FROM charity_projects
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Goal,
		&p.Raised,
		&p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

const selectIntent = `
	SELECT session_id, intent_type, payload, amount, user_id, status, outcome, created_at, completed_at
	FROM pending_intents`

func scanIntent(row interface{ Scan(...any) error }) (*models.PendingIntent, error) {
	p := &models.PendingIntent{}
	err := row.Scan(
		&p.SessionID,
		&p.IntentType,
		&p.Payload,
		&p.Amount,
		&p.UserID,
		&p.Status,
		&p.Outcome,
		&p.CreatedAt,
		&p.CompletedAt,
	)
	return p, err
}

func (s *PostgresStore) GetIntent(ctx context.Context, sessionID string) (*models.PendingIntent, error) {
	p, err := scanIntent(s.db.QueryRowContext(ctx, selectIntent+` WHERE session_id = $1`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *PostgresStore) ListStaleIntents(ctx context.Context, createdBefore time.Time, limit int) ([]models.PendingIntent, error) {
	rows, err := s.db.QueryWithRetry(ctx,
		selectIntent+` WHERE status = 'pending' AND created_at < $1 ORDER BY created_at LIMIT $2`,
		createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []models.PendingIntent
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *p)
	}

	return intents, rows.Err()
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx *sql.Tx
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *pgTx) CreateIntent(ctx context.Context, intent *models.PendingIntent) error {
	query := `
		INSERT INTO pending_intents (session_id, intent_type, payload, amount, user_id, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING status, created_at`

	return t.tx.QueryRowContext(ctx, query,
		intent.SessionID,
		intent.IntentType,
		intent.Payload,
		intent.Amount,
		intent.UserID,
	).Scan(&intent.Status, &intent.CreatedAt)
}

func (t *pgTx) CreateBid(ctx context.Context, bid *models.Bid) error {
	query := `
		INSERT INTO bids (auction_id, user_id, amount, session_id, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, status, created_at`

	return t.tx.QueryRowContext(ctx, query,
		bid.AuctionID,
		bid.UserID,
		bid.Amount,
		bid.SessionID,
	).Scan(&bid.ID, &bid.Status, &bid.CreatedAt)
}

func (t *pgTx) ClaimIntent(ctx context.Context, sessionID, outcome string) (bool, error) {
	query := `
		UPDATE pending_intents
		SET status = 'completed', outcome = $2, completed_at = NOW()
		WHERE session_id = $1 AND status = 'pending'`

	return affected(t.tx.ExecContext(ctx, query, sessionID, outcome))
}

func (t *pgTx) ExpireIntent(ctx context.Context, sessionID string) (bool, error) {
	query := `
		UPDATE pending_intents
		SET status = 'expired', completed_at = NOW()
		WHERE session_id = $1 AND status = 'pending'`

	return affected(t.tx.ExecContext(ctx, query, sessionID))
}

func (t *pgTx) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (user_id, ticket_type_id, ticket_number, qr_code, status, session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, purchased_at`

	return t.tx.QueryRowContext(ctx, query,
		ticket.UserID,
		ticket.TicketTypeID,
		ticket.TicketNumber,
		ticket.QRCode,
		ticket.Status,
		ticket.SessionID,
	).Scan(&ticket.ID, &ticket.PurchasedAt)
}

func (t *pgTx) DecrementInventory(ctx context.Context, ticketTypeID int64, quantity int) (bool, error) {
	query := `
		UPDATE ticket_types
		SET available_quantity = available_quantity - $2
		WHERE id = $1 AND available_quantity >= $2`

	return affected(t.tx.ExecContext(ctx, query, ticketTypeID, quantity))
}

func (t *pgTx) InsertDonation(ctx context.Context, donation *models.Donation) error {
	query := `
		INSERT INTO donations (project_id, user_id, amount, donor_name, message, project_label, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return t.tx.QueryRowContext(ctx, query,
		donation.ProjectID,
		donation.UserID,
		donation.Amount,
		donation.DonorName,
		donation.Message,
		donation.ProjectLabel,
		donation.SessionID,
	).Scan(&donation.ID, &donation.CreatedAt)
}

func (t *pgTx) IncrementRaised(ctx context.Context, projectID, amount int64) (bool, error) {
	query := `UPDATE charity_projects SET raised = raised + $2 WHERE id = $1`
	return affected(t.tx.ExecContext(ctx, query, projectID, amount))
}

func (t *pgTx) CompleteBid(ctx context.Context, sessionID string) (*models.Bid, error) {
	bid := &models.Bid{}
	query := `
		UPDATE bids
		SET status = 'completed'
		WHERE session_id = $1 AND status = 'pending'
		RETURNING id, auction_id, user_id, amount, session_id, status, created_at`

	err := t.tx.QueryRowContext(ctx, query, sessionID).Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.UserID,
		&bid.Amount,
		&bid.SessionID,
		&bid.Status,
		&bid.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return bid, err
}

func (t *pgTx) FailBid(ctx context.Context, sessionID string) (bool, error) {
	query := `UPDATE bids SET status = 'failed' WHERE session_id = $1 AND status = 'pending'`
	return affected(t.tx.ExecContext(ctx, query, sessionID))
}

// Одна инструкция: конкурентные ставки сериализуются блокировкой строки аукциона,
// current_bid только растет, bid_count учитывает каждую завершенную ставку.
const applyCompletedBid = `
	WITH prev AS (
		SELECT id, leading_bid_id FROM auctions WHERE id = $1 FOR UPDATE
	)
	UPDATE auctions a
	SET bid_count = a.bid_count + 1,
	    current_bid = CASE WHEN a.current_bid IS NULL OR a.current_bid < $3 THEN $3 ELSE a.current_bid END,
	    leading_bid_id = CASE WHEN a.current_bid IS NULL OR a.current_bid < $3 THEN $2 ELSE a.leading_bid_id END
	FROM prev
	WHERE a.id = prev.id AND a.status <> 'ended'
	RETURNING a.leading_bid_id = $2,
	          (SELECT b.user_id FROM bids b WHERE b.id = prev.leading_bid_id)`

func (t *pgTx) ApplyCompletedBid(ctx context.Context, auctionID, bidID, amount int64) (bool, bool, *int64, error) {
	var leading bool
	var previousLeader sql.NullInt64

	err := t.tx.QueryRowContext(ctx, applyCompletedBid, auctionID, bidID, amount).Scan(&leading, &previousLeader)
	if err == sql.ErrNoRows {
		return false, false, nil, nil
	}
	if err != nil {
		return false, false, nil, fmt.Errorf("failed to apply bid to auction %d: %w", auctionID, err)
	}

	if previousLeader.Valid {
		return true, leading, &previousLeader.Int64, nil
	}
	return true, leading, nil, nil
}

// RecordIssue не дублирует запись при повторной доставке того же события
func (t *pgTx) RecordIssue(ctx context.Context, issue *models.ReconciliationIssue) error {
	query := `
		INSERT INTO reconciliation_issues (session_id, intent_type, kind, detail)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, kind) DO NOTHING
		RETURNING id, created_at`

	err := t.tx.QueryRowContext(ctx, query,
		issue.SessionID,
		issue.IntentType,
		issue.Kind,
		issue.Detail,
	).Scan(&issue.ID, &issue.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
