// Package ports declares what the booking core needs from its
// collaborators. The Postgres store implements Store/TxStore; tests use
// in-memory fakes.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"geoconnect/internal/models"
)

// TxStore is the operation set available inside an open transaction. Every
// write performed through it commits or rolls back atomically with the
// rest of the transaction.
type TxStore interface {
	TripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	ActiveSeatCount(ctx context.Context, tripID uuid.UUID, now time.Time) (int, error)
	SeatNumbersInUse(ctx context.Context, tripID uuid.UUID, now time.Time) (map[string]bool, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	InsertPassengers(ctx context.Context, passengers []models.BookingPassenger) error
	InsertSeats(ctx context.Context, seats []models.BookingSeat) error
	UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status models.BookingStatus) error
	PassengersByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.BookingPassenger, error)
	TicketsByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Ticket, error)
	InsertTicket(ctx context.Context, ticket *models.Ticket) error
	UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status models.PaymentStatus) error
}

// Store is the transactional unit-of-work boundary of the booking core.
//
// WithTripLock holds an exclusive lock on the trip and its active bookings
// for the duration of fn; this is the only cross-row lock in the core and
// is what serializes concurrent reservations against the same trip.
// WithBookingLock serializes state transitions on one booking, guarding
// the race between a client Cancel and a webhook Confirm.
type Store interface {
	WithTripLock(ctx context.Context, tenantID, tripID uuid.UUID, fn func(tx TxStore, trip *models.Trip) error) error
	WithBookingLock(ctx context.Context, bookingID uuid.UUID, fn func(tx TxStore, booking *models.Booking) error) error

	TripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	BookingByID(ctx context.Context, tenantID, bookingID uuid.UUID) (*models.Booking, error)
	PassengersByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.BookingPassenger, error)
	SeatsByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.BookingSeat, error)
	TicketsByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Ticket, error)
	TicketByID(ctx context.Context, tenantID, ticketID uuid.UUID) (*models.Ticket, error)
	ActivePricingRules(ctx context.Context, tenantID uuid.UUID) ([]models.PricingRule, error)
	CreatePayment(ctx context.Context, payment *models.PaymentTransaction) error
	PaymentByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	ExpiredPendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	RegisterIdempotencyKey(ctx context.Context, key, scope string, ttl time.Duration) error
}

// Publisher emits lifecycle events for the notification fan-out service.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// RulesCache is an optional cache-aside layer over pricing-rule loads.
type RulesCache interface {
	Get(ctx context.Context, tenantID uuid.UUID) ([]models.PricingRule, error)
	Set(ctx context.Context, tenantID uuid.UUID, rules []models.PricingRule) error
}
