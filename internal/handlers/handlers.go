package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/logger"
	"geoconnect/internal/models"
	"geoconnect/internal/service"
)

// BookingAPI is the slice of the booking service the HTTP layer uses.
type BookingAPI interface {
	Create(ctx context.Context, tenantID, customerID uuid.UUID, idempotencyKey string, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error)
	Get(ctx context.Context, tenantID, bookingID uuid.UUID) (*models.BookingDetail, error)
	Cancel(ctx context.Context, tenantID, bookingID uuid.UUID, reason string) (*models.CancelBookingResponse, error)
}

// WebhookAPI applies provider payment callbacks.
type WebhookAPI interface {
	ProcessWebhook(ctx context.Context, provider string, payload *models.PaymentWebhookPayload) (*models.WebhookAck, error)
}

// TicketAPI serves ticket documents.
type TicketAPI interface {
	Document(ctx context.Context, tenantID, ticketID uuid.UUID) (*service.TicketDocument, error)
}

type Handlers struct {
	bookings BookingAPI
	webhooks WebhookAPI
	tickets  TicketAPI
}

func NewHandlers(bookings BookingAPI, webhooks WebhookAPI, tickets TicketAPI) *Handlers {
	return &Handlers{
		bookings: bookings,
		webhooks: webhooks,
		tickets:  tickets,
	}
}

// respondError maps a service error onto the structured error envelope.
// Unclassified errors become an opaque 500; their detail goes to the log
// only.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	code := string(apperrors.KindOf(err))

	message := apperrors.Message(err)
	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed",
			"path", c.Request.URL.Path, "error", err)
		code = "INTERNAL"
		message = "internal server error"
	}

	c.JSON(status, models.ErrorBody{Error: models.ErrorInfo{Code: code, Message: message}})
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorBody{Error: models.ErrorInfo{Code: code, Message: message}})
}
