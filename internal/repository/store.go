package repository

import (
	"context"
	"time"

	"festival/internal/models"
)

// Store is the data source of the checkout and settlement workflow.
// Reads return (nil, nil) when the row does not exist.
type Store interface {
	GetAuction(ctx context.Context, id int64) (*models.Auction, error)
	GetTicketType(ctx context.Context, id int64) (*models.TicketType, error)
	GetProject(ctx context.Context, id int64) (*models.CharityProject, error)
	GetIntent(ctx context.Context, sessionID string) (*models.PendingIntent, error)
	ListStaleIntents(ctx context.Context, createdBefore time.Time, limit int) ([]models.PendingIntent, error)

	// WithinTx выполняет fn в одной транзакции; ошибка fn откатывает все изменения
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the writes of the workflow. Every aggregate change is a single
// conditional statement; the bool result reports whether the guard matched.
type Tx interface {
	CreateIntent(ctx context.Context, intent *models.PendingIntent) error
	CreateBid(ctx context.Context, bid *models.Bid) error

	// ClaimIntent переводит pending -> completed с указанным исходом
	ClaimIntent(ctx context.Context, sessionID, outcome string) (bool, error)
	// ExpireIntent переводит pending -> expired
	ExpireIntent(ctx context.Context, sessionID string) (bool, error)

	InsertTicket(ctx context.Context, ticket *models.Ticket) error
	DecrementInventory(ctx context.Context, ticketTypeID int64, quantity int) (bool, error)

	InsertDonation(ctx context.Context, donation *models.Donation) error
	IncrementRaised(ctx context.Context, projectID, amount int64) (bool, error)

	// CompleteBid переводит ставку pending -> completed и возвращает ее, nil если ставка уже не pending
	CompleteBid(ctx context.Context, sessionID string) (*models.Bid, error)
	FailBid(ctx context.Context, sessionID string) (bool, error)
	// ApplyCompletedBid увеличивает bid_count и при необходимости поднимает current_bid.
	// previousLeader - лидер до изменения; applied=false, если аукцион завершен.
	ApplyCompletedBid(ctx context.Context, auctionID, bidID, amount int64) (applied bool, leading bool, previousLeader *int64, err error)

	RecordIssue(ctx context.Context, issue *models.ReconciliationIssue) error
}
