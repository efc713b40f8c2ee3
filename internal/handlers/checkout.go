package handlers

import (
	"net/http"

	"festival/internal/middleware"
	"festival/internal/models"
	"festival/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutTickets - POST /api/checkout/tickets
func (h *Handlers) CheckoutTickets(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.TicketCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.beginCheckout(c, models.TicketIntent{
		UserID:       userID,
		TicketTypeID: req.TicketTypeID,
		Quantity:     req.Quantity,
	})
}

// CheckoutDonation - POST /api/checkout/donations
// Авторизация не обязательна
func (h *Handlers) CheckoutDonation(c *gin.Context) {
	var req models.DonationCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent := models.DonationIntent{
		ProjectID: req.ProjectID,
		Amount:    req.Amount,
		DonorName: req.DonorName,
		Message:   req.Message,
	}
	if userID, ok := currentUserID(c); ok {
		intent.UserID = &userID
	}

	h.beginCheckout(c, intent)
}

// CheckoutBid - POST /api/checkout/bids
func (h *Handlers) CheckoutBid(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.BidCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.beginCheckout(c, models.BidIntent{
		UserID:    userID,
		AuctionID: req.AuctionID,
		Amount:    req.Amount,
	})
}

func (h *Handlers) beginCheckout(c *gin.Context, intent models.Intent) {
	var email string
	if p, ok := middleware.PrincipalFromContext(c); ok {
		email = p.Email
	}

	res, err := h.services.Checkout.BeginCheckout(c.Request.Context(), intent, email)
	if err != nil {
		handleServiceError(c, err, "Failed to start checkout")
		return
	}

	c.JSON(http.StatusCreated, checkoutResponse(res))
}

func checkoutResponse(res *service.CheckoutResult) models.CheckoutResponse {
	return models.CheckoutResponse{
		SessionID:   res.SessionID,
		RedirectURL: res.RedirectURL,
		Amount:      res.Amount,
		Display:     models.FormatAmount(res.Amount, models.DefaultCurrency),
	}
}

// CheckoutStatus - GET /api/checkout/:sessionId
// Страница возврата опрашивает статус, пока webhook не обработан
func (h *Handlers) CheckoutStatus(c *gin.Context) {
	status, err := h.services.Checkout.Status(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		handleServiceError(c, err, "Failed to get checkout status")
		return
	}
	c.JSON(http.StatusOK, status)
}
