package handlers

import (
	"net/http"

	"festival/internal/models"

	"github.com/gin-gonic/gin"
)

// ListTicketTypes - GET /api/ticket-types
// Типы билетов, которые еще можно купить
func (h *Handlers) ListTicketTypes(c *gin.Context) {
	types, err := h.services.Catalog.ListTicketTypes(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "Failed to list ticket types")
		return
	}
	c.JSON(http.StatusOK, types)
}

// ListAuctions - GET /api/auctions?status=
func (h *Handlers) ListAuctions(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.AuctionUpcoming, models.AuctionActive, models.AuctionEnded:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of upcoming, active, ended"})
		return
	}

	auctions, err := h.services.Catalog.ListAuctions(c.Request.Context(), status)
	if err != nil {
		handleServiceError(c, err, "Failed to list auctions")
		return
	}
	c.JSON(http.StatusOK, auctions)
}

// GetAuction - GET /api/auctions/:id
func (h *Handlers) GetAuction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	auction, err := h.services.Catalog.GetAuction(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err, "Failed to get auction")
		return
	}
	c.JSON(http.StatusOK, auction)
}

// ListAuctionBids - GET /api/auctions/:id/bids
// Только оплаченные ставки
func (h *Handlers) ListAuctionBids(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	bids, err := h.services.Catalog.ListAuctionBids(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err, "Failed to list bids")
		return
	}
	c.JSON(http.StatusOK, bids)
}

// ListProjects - GET /api/projects
func (h *Handlers) ListProjects(c *gin.Context) {
	projects, err := h.services.Catalog.ListProjects(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "Failed to list projects")
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Lineup - GET /api/lineup?query=&genre=
func (h *Handlers) Lineup(c *gin.Context) {
	artists, err := h.services.Catalog.Lineup(c.Request.Context(), c.Query("query"), c.Query("genre"))
	if err != nil {
		handleServiceError(c, err, "Failed to load lineup")
		return
	}
	c.JSON(http.StatusOK, artists)
}

// GetArtist - GET /api/lineup/:slug
func (h *Handlers) GetArtist(c *gin.Context) {
	artist, err := h.services.Catalog.GetArtist(c.Request.Context(), c.Param("slug"))
	if err != nil {
		handleServiceError(c, err, "Failed to get artist")
		return
	}
	c.JSON(http.StatusOK, artist)
}

// Schedule - GET /api/schedule?day=2026-07-10
func (h *Handlers) Schedule(c *gin.Context) {
	days, err := h.services.Catalog.Schedule(c.Request.Context(), c.Query("day"))
	if err != nil {
		handleServiceError(c, err, "Failed to load schedule")
		return
	}
	c.JSON(http.StatusOK, days)
}
