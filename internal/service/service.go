package service

import (
	"context"
	"time"

	"geoconnect/internal/external"
	"geoconnect/internal/fare"
	"geoconnect/internal/service/ports"
)

// How many stale reservations one sweep pass picks up.
const expiryBatchSize = 100

// PaymentSessionClient opens hosted checkout sessions with the PSP.
type PaymentSessionClient interface {
	CreateSession(ctx context.Context, req external.SessionRequest) (*external.SessionResponse, error)
}

// Options carries the booking-engine knobs the services need.
type Options struct {
	ReservationTTL      time.Duration
	IdempotencyTTL      time.Duration
	SeatUniquenessCheck bool
	DefaultCurrency     string
	// Base URL the webhook callback URL is built from.
	CallbackBaseURL string
}

// Services bundles the booking core's entry points.
type Services struct {
	Bookings *BookingService
	Webhooks *WebhookService
	Tickets  *TicketService
}

func NewServices(store ports.Store, rulesCache ports.RulesCache, publisher ports.Publisher, payments PaymentSessionClient, opts Options) *Services {
	if opts.ReservationTTL == 0 {
		opts.ReservationTTL = 15 * time.Minute
	}
	if opts.IdempotencyTTL == 0 {
		opts.IdempotencyTTL = 10 * time.Minute
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "NGN"
	}

	engine := fare.NewEngine(opts.DefaultCurrency)
	issuer := NewTicketIssuer()

	bookings := NewBookingService(store, rulesCache, engine, issuer, publisher, payments, DefaultRefundPolicy(), opts)
	webhooks := NewWebhookService(store, bookings, publisher)
	tickets := NewTicketService(store)

	return &Services{
		Bookings: bookings,
		Webhooks: webhooks,
		Tickets:  tickets,
	}
}
