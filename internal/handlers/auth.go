package handlers

import (
	"net/http"

	"festival/internal/models"

	"github.com/gin-gonic/gin"
)

// Register - POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.services.Auth.Register(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to register")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login - POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.services.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me - GET /api/me
func (h *Handlers) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.services.Auth.Me(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to load profile")
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateMe - PATCH /api/me
func (h *Handlers) UpdateMe(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.services.Users.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, err, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, user)
}

// MyTickets - GET /api/me/tickets
func (h *Handlers) MyTickets(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	tickets, err := h.services.Account.Tickets(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to list tickets")
		return
	}

	c.JSON(http.StatusOK, tickets)
}

// MyBids - GET /api/me/bids
func (h *Handlers) MyBids(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	bids, err := h.services.Account.Bids(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to list bids")
		return
	}

	c.JSON(http.StatusOK, bids)
}
