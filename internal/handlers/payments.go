package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geoconnect/internal/middleware"
	"geoconnect/internal/models"
)

// PaymentWebhook - POST /api/v1/payments/webhooks/:provider
//
// Provider callbacks are not tenant scoped; the payment reference alone
// identifies the transaction. Applied events answer 200 with the booking's
// resulting status so provider dashboards show the outcome.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	var payload models.PaymentWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	if payload.Data.Reference == "" {
		badRequest(c, "MISSING_REFERENCE", "data.reference is required")
		return
	}

	ack, err := h.webhooks.ProcessWebhook(c.Request.Context(), provider, &payload)
	if err != nil {
		respondError(c, err)
		return
	}

	if ack.Status != "" {
		middleware.CountBookingTransition(ack.Status)
	}
	c.JSON(http.StatusOK, ack)
}
