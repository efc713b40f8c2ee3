package handlers

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "festival/internal/errors"
	"festival/internal/logger"
	"festival/internal/middleware"
	"festival/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		services: services,
	}
}

// handleServiceError переводит ошибку сервиса в HTTP ответ
func handleServiceError(c *gin.Context, err error, msg string) {
	var (
		validation   *apperrors.ValidationError
		authenticity *apperrors.AuthenticityError
		transient    *apperrors.TransientError
	)

	switch {
	case errors.As(err, &validation):
		status := http.StatusBadRequest
		if isStateConflict(validation.Reason) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": validation.Reason.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.As(err, &authenticity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	case errors.As(err, &transient):
		logger.WithContext(c.Request.Context()).Error(msg, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": msg})
	default:
		logger.WithContext(c.Request.Context()).Error(msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
	_ = c.Error(err)
}

// isStateConflict - запрос корректен, но состояние ресурса его не допускает
func isStateConflict(reason error) bool {
	return errors.Is(reason, apperrors.ErrBidTooLow) ||
		errors.Is(reason, apperrors.ErrAuctionNotActive) ||
		errors.Is(reason, apperrors.ErrAuctionEnded) ||
		errors.Is(reason, apperrors.ErrInsufficientInventory)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

// currentUserID возвращает id пользователя, выставленный middleware.Auth
func currentUserID(c *gin.Context) (int64, bool) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return 0, false
	}
	return p.UserID, true
}

// pageQuery читает limit и offset; 0 означает значение по умолчанию
func pageQuery(c *gin.Context) (limit, offset int, ok bool) {
	var err error
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return 0, 0, false
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
			return 0, 0, false
		}
	}
	return limit, offset, true
}

func requireUser(c *gin.Context) (int64, bool) {
	id, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return id, ok
}
