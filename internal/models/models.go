package models

import (
	"time"

	"github.com/google/uuid"
)

// PassengerInput describes one requested seat.
type PassengerInput struct {
	Type      string `json:"type" binding:"required,oneof=adult child senior"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// SeatSelectionInput optionally pins seat numbers to passengers in request
// order.
type SeatSelectionInput struct {
	Enabled        bool     `json:"enabled"`
	RequestedSeats []string `json:"requested_seats,omitempty"`
}

// PaymentInput names the payment provider the session should be opened with.
type PaymentInput struct {
	Provider string `json:"provider" binding:"required"`
	Currency string `json:"currency,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
}

// CreateBookingRequest is the reservation-create payload.
type CreateBookingRequest struct {
	TripID        uuid.UUID           `json:"trip_id" binding:"required"`
	Passengers    []PassengerInput    `json:"passengers" binding:"required,min=1,dive"`
	SeatSelection *SeatSelectionInput `json:"seat_selection,omitempty"`
	Payment       PaymentInput        `json:"payment" binding:"required"`
}

// BookingView is the client-facing booking projection.
type BookingView struct {
	ID                   uuid.UUID       `json:"id"`
	TripID               uuid.UUID       `json:"trip_id"`
	Status               BookingStatus   `json:"status"`
	ReservationExpiresAt time.Time       `json:"reservation_expires_at"`
	TotalAmount          int64           `json:"total_amount"`
	PerPassengerAmount   int64           `json:"per_passenger_amount"`
	Currency             string          `json:"currency"`
	SeatsCount           int             `json:"seats_count"`
	Metadata             BookingMetadata `json:"metadata"`
	CreatedAt            time.Time       `json:"created_at"`
}

// PaymentSessionView is returned alongside a fresh booking so the client
// can redirect the passenger to checkout.
type PaymentSessionView struct {
	Provider         string `json:"provider"`
	PaymentReference string `json:"payment_reference"`
	RedirectURL      string `json:"redirect_url"`
	CallbackURL      string `json:"callback_url"`
	Status           string `json:"status"`
}

// CreateBookingResponse is the reservation-create response body.
type CreateBookingResponse struct {
	Booking        BookingView        `json:"booking"`
	PaymentSession PaymentSessionView `json:"payment_session"`
}

// BookingDetail is the read model for a single booking.
type BookingDetail struct {
	Booking    BookingView        `json:"booking"`
	Passengers []BookingPassenger `json:"passengers"`
	Seats      []BookingSeat      `json:"seats,omitempty"`
	Tickets    []Ticket           `json:"tickets,omitempty"`
}

// CancelBookingRequest is the cancellation payload.
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RefundView is the refund-eligibility record a cancellation returns.
type RefundView struct {
	Eligible   bool   `json:"eligible"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	PolicyCode string `json:"policy_code"`
}

// CancelBookingResponse reports the transition a cancellation performed.
type CancelBookingResponse struct {
	BookingID      uuid.UUID     `json:"booking_id"`
	PreviousStatus BookingStatus `json:"previous_status"`
	NewStatus      BookingStatus `json:"new_status"`
	Refund         RefundView    `json:"refund"`
	Reason         string        `json:"reason,omitempty"`
}

// PaymentWebhookData is the normalized inner payload of a provider callback.
type PaymentWebhookData struct {
	Reference string            `json:"reference"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PaymentWebhookPayload is the normalized provider callback envelope.
type PaymentWebhookPayload struct {
	Event string             `json:"event"`
	Data  PaymentWebhookData `json:"data"`
}

// WebhookAck is the always-200 acknowledgement body for webhook deliveries.
// BookingID and Status are set only when the event was applied to a booking.
type WebhookAck struct {
	Received  bool   `json:"received"`
	BookingID string `json:"booking_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ErrorBody is the structured client-visible error envelope.
type ErrorBody struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo carries the stable code and human message of a rejected request.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
