package service

import (
	"time"

	apperrors "festival/internal/errors"
	"festival/internal/models"
)

// ValidateBid проверяет ставку по снимку аукциона. Функция чистая:
// при расчете ставка проверяется повторно одним условным UPDATE.
func ValidateBid(auction *models.Auction, amount int64, now time.Time) error {
	if auction.Status != models.AuctionActive {
		return apperrors.Invalid(apperrors.ErrAuctionNotActive)
	}
	if now.After(auction.EndsAt) {
		return apperrors.Invalid(apperrors.ErrAuctionEnded)
	}
	if amount <= auction.HighestBid() {
		return apperrors.Invalid(apperrors.ErrBidTooLow)
	}
	return nil
}

// MinimumBid - наименьшая ставка, которую примет ValidateBid
func MinimumBid(auction *models.Auction) int64 {
	return auction.HighestBid() + 1
}
