package controllers

import (
	"io"
	"net/http"

	"enrollment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 64 << 10

type WebhookController struct {
	service services.WebhookService
	logger  *zap.Logger
}

func NewWebhookController(service services.WebhookService, logger *zap.Logger) *WebhookController {
	return &WebhookController{service: service, logger: logger}
}

// StripeWebhook handles POST /api/payment/webhook. The signature covers
// the exact bytes sent, so the body is read raw and never re-encoded.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		wc.logger.Warn("Failed to read webhook body", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	if svcErr := wc.service.HandleNotification(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); svcErr != nil {
		c.Status(svcErr.StatusCode)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
