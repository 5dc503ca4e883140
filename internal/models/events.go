package models

import (
	"time"

	"github.com/google/uuid"
)

// NATS subjects for lifecycle events. The notification fan-out service
// consumes these; the core only publishes.
const (
	EventBookingCreated       = "booking.created"
	EventBookingConfirmed     = "booking.confirmed"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingExpired       = "booking.expired"
	EventBookingPaymentFailed = "booking.payment_failed"
	EventTicketIssued         = "ticket.issued"
)

// BookingLifecycleEvent is published on every booking state transition.
type BookingLifecycleEvent struct {
	BookingID      uuid.UUID     `json:"booking_id"`
	TenantID       uuid.UUID     `json:"tenant_id"`
	TripID         uuid.UUID     `json:"trip_id"`
	PreviousStatus BookingStatus `json:"previous_status,omitempty"`
	Status         BookingStatus `json:"status"`
	SeatsCount     int           `json:"seats_count"`
	Reason         string        `json:"reason,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// TicketIssuedEvent is published after ticket issuance is durable.
type TicketIssuedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	TicketCodes []string  `json:"ticket_codes"`
	Timestamp   time.Time `json:"timestamp"`
}
