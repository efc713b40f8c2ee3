package handlers

import (
	"net/http"
	"strconv"

	"festival/internal/models"

	"github.com/gin-gonic/gin"
)

// Admin handlers. Роль проверяет middleware.RequireAdmin

// Dashboard - GET /api/admin/dashboard
func (h *Handlers) Dashboard(c *gin.Context) {
	stats, err := h.services.Admin.Dashboard(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "Failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateAuction - POST /api/admin/auctions
func (h *Handlers) CreateAuction(c *gin.Context) {
	var req models.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	auction, err := h.services.Admin.CreateAuction(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to create auction")
		return
	}
	c.JSON(http.StatusCreated, auction)
}

// UpdateAuctionStatus - PATCH /api/admin/auctions/:id/status
func (h *Handlers) UpdateAuctionStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateAuctionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Admin.UpdateAuctionStatus(c.Request.Context(), id, req.Status); err != nil {
		handleServiceError(c, err, "Failed to update auction")
		return
	}
	c.Status(http.StatusOK)
}

// CreateTicketType - POST /api/admin/ticket-types
func (h *Handlers) CreateTicketType(c *gin.Context) {
	var req models.CreateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tt, err := h.services.Admin.CreateTicketType(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to create ticket type")
		return
	}
	c.JSON(http.StatusCreated, tt)
}

// RestockTicketType - PATCH /api/admin/ticket-types/:id/restock
func (h *Handlers) RestockTicketType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req models.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tt, err := h.services.Admin.RestockTicketType(c.Request.Context(), id, req.Quantity)
	if err != nil {
		handleServiceError(c, err, "Failed to restock ticket type")
		return
	}
	c.JSON(http.StatusOK, tt)
}

// CreateProject - POST /api/admin/projects
func (h *Handlers) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.services.Admin.CreateProject(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to create project")
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateProject - PATCH /api/admin/projects/:id
func (h *Handlers) UpdateProject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.services.Admin.UpdateProject(c.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(c, err, "Failed to update project")
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProject - DELETE /api/admin/projects/:id
func (h *Handlers) DeleteProject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Admin.DeleteProject(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "Failed to delete project")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDonations - GET /api/admin/donations?project_id=&limit=&offset=
func (h *Handlers) ListDonations(c *gin.Context) {
	limit, offset, ok := pageQuery(c)
	if !ok {
		return
	}

	var projectID *int64
	if v := c.Query("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project_id must be a positive integer"})
			return
		}
		projectID = &id
	}

	donations, err := h.services.Admin.ListDonations(c.Request.Context(), projectID, limit, offset)
	if err != nil {
		handleServiceError(c, err, "Failed to list donations")
		return
	}
	c.JSON(http.StatusOK, donations)
}

// ListTickets - GET /api/admin/tickets?status=&limit=&offset=
func (h *Handlers) ListTickets(c *gin.Context) {
	limit, offset, ok := pageQuery(c)
	if !ok {
		return
	}

	tickets, err := h.services.Admin.ListTickets(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		handleServiceError(c, err, "Failed to list tickets")
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// ListUsers - GET /api/admin/users?limit=&offset=
func (h *Handlers) ListUsers(c *gin.Context) {
	limit, offset, ok := pageQuery(c)
	if !ok {
		return
	}

	users, err := h.services.Users.List(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, err, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// GrantAdmin - PUT /api/admin/users/:id/roles/admin
func (h *Handlers) GrantAdmin(c *gin.Context) {
	h.setAdmin(c, true)
}

// RevokeAdmin - DELETE /api/admin/users/:id/roles/admin
func (h *Handlers) RevokeAdmin(c *gin.Context) {
	h.setAdmin(c, false)
}

func (h *Handlers) setAdmin(c *gin.Context, admin bool) {
	actorID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Users.SetAdmin(c.Request.Context(), actorID, id, admin); err != nil {
		handleServiceError(c, err, "Failed to change role")
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateArtist - POST /api/admin/artists
func (h *Handlers) CreateArtist(c *gin.Context) {
	var req models.CreateArtistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	artist, err := h.services.Admin.CreateArtist(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to create artist")
		return
	}
	c.JSON(http.StatusCreated, artist)
}

// CreatePerformance - POST /api/admin/performances
func (h *Handlers) CreatePerformance(c *gin.Context) {
	var req models.CreatePerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.services.Admin.CreatePerformance(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to create performance")
		return
	}
	c.JSON(http.StatusCreated, p)
}

// MarkTicketUsed - PATCH /api/admin/tickets/:id/used
// Отметка на входе; used=false снимает отметку
func (h *Handlers) MarkTicketUsed(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	req := models.MarkTicketUsedRequest{Used: true}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.services.Admin.SetTicketUsed(c.Request.Context(), id, req.Used.Bool()); err != nil {
		handleServiceError(c, err, "Failed to update ticket")
		return
	}
	c.Status(http.StatusOK)
}

// ListIssues - GET /api/admin/issues?open=true
func (h *Handlers) ListIssues(c *gin.Context) {
	issues, err := h.services.Admin.ListIssues(c.Request.Context(), c.DefaultQuery("open", "true") == "true")
	if err != nil {
		handleServiceError(c, err, "Failed to list issues")
		return
	}
	c.JSON(http.StatusOK, issues)
}

// ResolveIssue - PATCH /api/admin/issues/:id/resolve
func (h *Handlers) ResolveIssue(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Admin.ResolveIssue(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "Failed to resolve issue")
		return
	}
	c.Status(http.StatusOK)
}

// Broadcast - POST /api/admin/notifications
func (h *Handlers) Broadcast(c *gin.Context) {
	var req models.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.services.Notifications.Broadcast(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to send broadcast")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ScheduleNotification - POST /api/admin/notifications/scheduled
func (h *Handlers) ScheduleNotification(c *gin.Context) {
	var req models.ScheduleNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.services.Schedules.Schedule(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to schedule notification")
		return
	}
	c.JSON(http.StatusCreated, n)
}

// ListScheduledNotifications - GET /api/admin/notifications/scheduled?status=pending
func (h *Handlers) ListScheduledNotifications(c *gin.Context) {
	list, err := h.services.Schedules.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		handleServiceError(c, err, "Failed to list scheduled notifications")
		return
	}
	c.JSON(http.StatusOK, list)
}

// CancelScheduledNotification - DELETE /api/admin/notifications/scheduled/:id
func (h *Handlers) CancelScheduledNotification(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Schedules.Cancel(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "Failed to cancel scheduled notification")
		return
	}
	c.Status(http.StatusNoContent)
}
