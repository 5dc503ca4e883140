package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geoconnect/internal/middleware"
	"geoconnect/internal/models"
)

// CreateBooking - POST /api/v1/bookings
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	customerID := middleware.CustomerID(c)
	if customerID == uuid.Nil {
		badRequest(c, "MISSING_CUSTOMER", "X-Customer-ID header must be a valid UUID")
		return
	}

	response, err := h.bookings.Create(
		c.Request.Context(),
		middleware.TenantID(c),
		customerID,
		c.GetHeader("Idempotency-Key"),
		&req,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.CountBookingTransition(string(response.Booking.Status))
	c.JSON(http.StatusCreated, response)
}

// GetBooking - GET /api/v1/bookings/:booking_id
func (h *Handlers) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		badRequest(c, "INVALID_BOOKING_ID", "booking_id must be a valid UUID")
		return
	}

	detail, err := h.bookings.Get(c.Request.Context(), middleware.TenantID(c), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// CancelBooking - POST /api/v1/bookings/:booking_id/cancel
func (h *Handlers) CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		badRequest(c, "INVALID_BOOKING_ID", "booking_id must be a valid UUID")
		return
	}

	// Body is optional; only a reason can be supplied.
	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "INVALID_REQUEST", err.Error())
			return
		}
	}

	response, err := h.bookings.Cancel(c.Request.Context(), middleware.TenantID(c), bookingID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.CountBookingTransition(string(response.NewStatus))
	c.JSON(http.StatusOK, response)
}
