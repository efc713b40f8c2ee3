package service

import (
	"context"
	"fmt"

	"festival/internal/models"
	"festival/internal/repository"
)

// AccountService - личный кабинет: купленные билеты и ставки
type AccountService struct {
	tickets  *repository.TicketRepository
	auctions *repository.AuctionRepository
}

func NewAccountService(tickets *repository.TicketRepository, auctions *repository.AuctionRepository) *AccountService {
	return &AccountService{tickets: tickets, auctions: auctions}
}

func (s *AccountService) Tickets(ctx context.Context, userID int64) ([]repository.TicketWithType, error) {
	tickets, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// Bids включает pending и failed ставки, чтобы пользователь видел незавершенные оплаты
func (s *AccountService) Bids(ctx context.Context, userID int64) ([]models.Bid, error) {
	bids, err := s.auctions.ListBidsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}
