package service

import (
	"context"
	"strings"

	"geoconnect/internal/logger"
	"geoconnect/internal/models"
	"geoconnect/internal/service/ports"
)

// WebhookService bridges asynchronous provider callbacks onto the booking
// state machine. Payment status and booking transition commit in one
// transaction, so a redelivered webhook always observes the final state
// and acks without side effects.
type WebhookService struct {
	store     ports.Store
	bookings  *BookingService
	publisher ports.Publisher
}

func NewWebhookService(store ports.Store, bookings *BookingService, publisher ports.Publisher) *WebhookService {
	return &WebhookService{store: store, bookings: bookings, publisher: publisher}
}

// ProcessWebhook applies one provider callback. Unknown statuses are
// acknowledged without touching any booking; providers retry on non-2xx
// and there is nothing to gain from bouncing a status we do not handle.
func (s *WebhookService) ProcessWebhook(ctx context.Context, provider string, payload *models.PaymentWebhookPayload) (*models.WebhookAck, error) {
	log := logger.WithContext(ctx)

	payment, err := s.store.PaymentByReference(ctx, payload.Data.Reference)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(payload.Data.Status) {
	case "success", "successful":
		return s.applySuccess(ctx, payment)
	case "failed", "error":
		return s.applyFailure(ctx, payment)
	default:
		log.Warn("unhandled payment webhook status",
			"provider", provider,
			"reference", payload.Data.Reference,
			"status", payload.Data.Status)
		return &models.WebhookAck{Received: true}, nil
	}
}

func (s *WebhookService) applySuccess(ctx context.Context, payment *models.PaymentTransaction) (*models.WebhookAck, error) {
	var (
		tickets      []models.Ticket
		snapshot     models.Booking
		transitioned bool
	)

	err := s.store.WithBookingLock(ctx, payment.BookingID, func(tx ports.TxStore, booking *models.Booking) error {
		if err := tx.UpdatePaymentStatus(ctx, payment.ID, models.PaymentSuccess); err != nil {
			return err
		}
		snapshot = *booking

		switch booking.Status {
		case models.BookingPendingPayment, models.BookingConfirmed:
			var err error
			tickets, transitioned, err = s.bookings.confirmLocked(ctx, tx, booking)
			if err != nil {
				return err
			}
			snapshot.Status = models.BookingConfirmed
			return nil
		default:
			// Cancelled or expired before the money arrived. Keep the
			// payment record; reconciliation picks it up.
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.bookings.publishLifecycle(ctx, models.EventBookingConfirmed, &snapshot, models.BookingPendingPayment, "")
		s.bookings.publishTickets(ctx, &snapshot, tickets)
		logger.WithContext(ctx).Info("booking confirmed by payment webhook",
			"booking_id", snapshot.ID,
			"tickets", len(tickets))
	}

	return &models.WebhookAck{
		Received:  true,
		BookingID: snapshot.ID.String(),
		Status:    string(snapshot.Status),
	}, nil
}

func (s *WebhookService) applyFailure(ctx context.Context, payment *models.PaymentTransaction) (*models.WebhookAck, error) {
	var (
		snapshot     models.Booking
		transitioned bool
	)

	err := s.store.WithBookingLock(ctx, payment.BookingID, func(tx ports.TxStore, booking *models.Booking) error {
		if err := tx.UpdatePaymentStatus(ctx, payment.ID, models.PaymentFailed); err != nil {
			return err
		}
		snapshot = *booking

		if booking.Status != models.BookingPendingPayment {
			return nil
		}
		if err := tx.UpdateBookingStatus(ctx, booking.ID, models.BookingPaymentFailed); err != nil {
			return err
		}
		snapshot.Status = models.BookingPaymentFailed
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.bookings.publishLifecycle(ctx, models.EventBookingPaymentFailed, &snapshot, models.BookingPendingPayment, "payment failed")
	}

	return &models.WebhookAck{
		Received:  true,
		BookingID: snapshot.ID.String(),
		Status:    string(snapshot.Status),
	}, nil
}
