package handlers

import (
	"errors"
	"io"
	"net/http"

	apperrors "festival/internal/errors"
	"festival/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 64 << 10
)

// PaymentWebhook - POST /api/webhooks/payments
// 200 подтверждает событие (в том числе дубликат и расхождение), 400 - неверная подпись,
// 413 - тело больше лимита,
// 500 - временный сбой, шлюз повторит доставку.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.WithContext(c.Request.Context()).Error("Payment webhook body too large", "limit", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	outcome, err := h.services.Settlement.OnPaymentCompleted(c.Request.Context(), payload, c.GetHeader(signatureHeader))
	if err != nil {
		if _, ok := apperrors.AsAuthenticity(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		logger.WithContext(c.Request.Context()).Error("Payment webhook not processed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "temporary failure"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
