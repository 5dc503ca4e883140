package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/external"
	"geoconnect/internal/fare"
	"geoconnect/internal/logger"
	"geoconnect/internal/models"
	"geoconnect/internal/service/ports"
)

// Idempotency scope for reservation creates. One key guards one create,
// regardless of payload.
const createBookingScope = "bookings.create"

// BookingService owns the reservation lifecycle: create under the trip
// lock, confirm, cancel, and expire.
type BookingService struct {
	store      ports.Store
	rulesCache ports.RulesCache
	engine     *fare.Engine
	issuer     *TicketIssuer
	publisher  ports.Publisher
	payments   PaymentSessionClient
	refunds    RefundPolicy
	opts       Options
}

func NewBookingService(store ports.Store, rulesCache ports.RulesCache, engine *fare.Engine, issuer *TicketIssuer, publisher ports.Publisher, payments PaymentSessionClient, refunds RefundPolicy, opts Options) *BookingService {
	return &BookingService{
		store:      store,
		rulesCache: rulesCache,
		engine:     engine,
		issuer:     issuer,
		publisher:  publisher,
		payments:   payments,
		refunds:    refunds,
		opts:       opts,
	}
}

// Create reserves seats on a trip and opens a payment session. The seat
// count check and all inserts happen under the trip lock, so two
// concurrent creates against the same trip serialize and the loser sees
// the winner's seats.
func (s *BookingService) Create(ctx context.Context, tenantID, customerID uuid.UUID, idempotencyKey string, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	log := logger.WithContext(ctx)

	if idempotencyKey != "" {
		if err := s.store.RegisterIdempotencyKey(ctx, idempotencyKey, createBookingScope, s.opts.IdempotencyTTL); err != nil {
			return nil, err
		}
	}

	// Rules load stays outside the trip lock to keep the critical
	// section short. Quote evaluation itself is pure.
	rules, err := s.loadRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var (
		booking models.Booking
		quote   fare.Quote
	)
	err = s.store.WithTripLock(ctx, tenantID, req.TripID, func(tx ports.TxStore, trip *models.Trip) error {
		now := time.Now().UTC()
		seatsWanted := len(req.Passengers)

		if trip.VehicleCapacity > 0 {
			taken, err := tx.ActiveSeatCount(ctx, trip.ID, now)
			if err != nil {
				return err
			}
			if taken+seatsWanted > trip.VehicleCapacity {
				return apperrors.Newf(apperrors.KindCapacityExceeded,
					"trip %s has %d of %d seats taken, cannot reserve %d more",
					trip.ID, taken, trip.VehicleCapacity, seatsWanted)
			}
		}

		quote = s.engine.Quote(fare.Request{
			Rules:       rules,
			ProviderID:  trip.ProviderID,
			Mode:        trip.Mode,
			Origin:      fare.Coord{Lat: trip.OriginLat, Lng: trip.OriginLng},
			Destination: fare.Coord{Lat: trip.DestinationLat, Lng: trip.DestinationLng},
		})

		booking = models.Booking{
			ID:                   uuid.New(),
			TenantID:             tenantID,
			ProviderID:           trip.ProviderID,
			TripID:               trip.ID,
			CustomerID:           customerID,
			Status:               models.BookingPendingPayment,
			ReservationExpiresAt: now.Add(s.opts.ReservationTTL),
			TotalAmount:          quote.Amount * int64(seatsWanted),
			Currency:             quote.Currency,
			SeatsCount:           seatsWanted,
			Metadata: models.BookingMetadata{
				PricingComponents: quote.Components,
				DistanceKm:        quote.DistanceKm,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertBooking(ctx, &booking); err != nil {
			return err
		}

		passengers := make([]models.BookingPassenger, 0, seatsWanted)
		for _, p := range req.Passengers {
			passengers = append(passengers, models.BookingPassenger{
				ID:            uuid.New(),
				BookingID:     booking.ID,
				PassengerType: p.Type,
				FirstName:     p.FirstName,
				LastName:      p.LastName,
				Email:         p.Email,
				Phone:         p.Phone,
				CreatedAt:     now,
			})
		}
		if err := tx.InsertPassengers(ctx, passengers); err != nil {
			return err
		}

		if req.SeatSelection != nil && req.SeatSelection.Enabled {
			if err := s.assignSeats(ctx, tx, trip, &booking, passengers, req.SeatSelection.RequestedSeats, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session := s.openPaymentSession(ctx, &booking, req.Payment.Provider)

	s.publishLifecycle(ctx, models.EventBookingCreated, &booking, "", "")
	log.Info("booking created",
		"booking_id", booking.ID,
		"trip_id", booking.TripID,
		"seats", booking.SeatsCount,
		"total_amount", booking.TotalAmount)

	return &models.CreateBookingResponse{
		Booking:        bookingView(&booking, quote.Amount),
		PaymentSession: session,
	}, nil
}

// assignSeats pins requested seat numbers to passengers positionally.
// Extra requested seats beyond the passenger count are dropped.
func (s *BookingService) assignSeats(ctx context.Context, tx ports.TxStore, trip *models.Trip, booking *models.Booking, passengers []models.BookingPassenger, requested []string, now time.Time) error {
	if len(requested) > len(passengers) {
		requested = requested[:len(passengers)]
	}
	if len(requested) == 0 {
		return nil
	}
	// Fewer seats than passengers: the trailing passengers ride unseated.
	for len(requested) < len(passengers) {
		requested = append(requested, "")
	}

	if s.opts.SeatUniquenessCheck {
		inUse, err := tx.SeatNumbersInUse(ctx, trip.ID, now)
		if err != nil {
			return err
		}
		for _, seat := range requested {
			if seat != "" && inUse[seat] {
				return apperrors.Newf(apperrors.KindSeatTaken, "seat %s is already held on trip %s", seat, trip.ID)
			}
		}
	}

	seats := make([]models.BookingSeat, 0, len(requested))
	for i, seat := range requested {
		seats = append(seats, models.BookingSeat{
			ID:          uuid.New(),
			BookingID:   booking.ID,
			PassengerID: passengers[i].ID,
			SeatNumber:  seat,
			CreatedAt:   now,
		})
	}
	return tx.InsertSeats(ctx, seats)
}

// openPaymentSession records the payment attempt and opens a checkout
// session. The reservation stands even when the PSP call fails; an
// unpaid booking simply expires.
func (s *BookingService) openPaymentSession(ctx context.Context, booking *models.Booking, provider string) models.PaymentSessionView {
	log := logger.WithContext(ctx)

	reference := newPaymentReference(provider, booking.ID)
	callbackURL := fmt.Sprintf("%s/api/v1/payments/webhooks/%s", strings.TrimRight(s.opts.CallbackBaseURL, "/"), provider)

	payment := &models.PaymentTransaction{
		ID:           uuid.New(),
		TenantID:     booking.TenantID,
		ProviderID:   booking.ProviderID,
		BookingID:    booking.ID,
		PSP:          provider,
		PSPReference: reference,
		Amount:       booking.TotalAmount,
		Currency:     booking.Currency,
		Status:       models.PaymentInitiated,
		Metadata: map[string]string{
			"booking_id": booking.ID.String(),
			"tenant_id":  booking.TenantID.String(),
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	view := models.PaymentSessionView{
		Provider:         provider,
		PaymentReference: reference,
		CallbackURL:      callbackURL,
		Status:           string(models.PaymentInitiated),
	}

	if err := s.store.CreatePayment(ctx, payment); err != nil {
		log.Error("failed to record payment transaction", "booking_id", booking.ID, "error", err)
		view.Status = "UNAVAILABLE"
		return view
	}

	session, err := s.payments.CreateSession(ctx, external.SessionRequest{
		Provider:    provider,
		Reference:   reference,
		Amount:      booking.TotalAmount,
		Currency:    booking.Currency,
		Description: fmt.Sprintf("Booking %s (%d seats)", booking.ID, booking.SeatsCount),
		CallbackURL: callbackURL,
	})
	if err != nil {
		log.Error("payment session creation failed", "booking_id", booking.ID, "provider", provider, "error", err)
		view.Status = "UNAVAILABLE"
		return view
	}

	view.RedirectURL = session.RedirectURL
	if session.Status != "" {
		view.Status = session.Status
	}
	return view
}

// Get returns the booking read model, tenant-scoped.
func (s *BookingService) Get(ctx context.Context, tenantID, bookingID uuid.UUID) (*models.BookingDetail, error) {
	booking, err := s.store.BookingByID(ctx, tenantID, bookingID)
	if err != nil {
		return nil, err
	}
	passengers, err := s.store.PassengersByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	seats, err := s.store.SeatsByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.TicketsByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	perPassenger := int64(0)
	if booking.SeatsCount > 0 {
		perPassenger = booking.TotalAmount / int64(booking.SeatsCount)
	}
	return &models.BookingDetail{
		Booking:    bookingView(booking, perPassenger),
		Passengers: passengers,
		Seats:      seats,
		Tickets:    tickets,
	}, nil
}

// Cancel moves a PENDING_PAYMENT or CONFIRMED booking to CANCELLED and
// reports refund eligibility for the state it left.
func (s *BookingService) Cancel(ctx context.Context, tenantID, bookingID uuid.UUID, reason string) (*models.CancelBookingResponse, error) {
	var previous models.BookingStatus
	var cancelled models.Booking

	err := s.store.WithBookingLock(ctx, bookingID, func(tx ports.TxStore, booking *models.Booking) error {
		if booking.TenantID != tenantID {
			return apperrors.Newf(apperrors.KindBookingNotFound, "booking %s not found", bookingID)
		}
		switch booking.Status {
		case models.BookingPendingPayment, models.BookingConfirmed:
		default:
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"booking %s is %s and cannot be cancelled", bookingID, booking.Status)
		}

		previous = booking.Status
		if err := tx.UpdateBookingStatus(ctx, booking.ID, models.BookingCancelled); err != nil {
			return err
		}
		cancelled = *booking
		cancelled.Status = models.BookingCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	refund := s.refunds.Evaluate(previous, cancelled.TotalAmount)
	refund.Currency = cancelled.Currency

	s.publishLifecycle(ctx, models.EventBookingCancelled, &cancelled, previous, reason)
	logger.WithContext(ctx).Info("booking cancelled",
		"booking_id", cancelled.ID,
		"previous_status", previous,
		"refund_eligible", refund.Eligible)

	return &models.CancelBookingResponse{
		BookingID:      cancelled.ID,
		PreviousStatus: previous,
		NewStatus:      models.BookingCancelled,
		Refund:         refund,
		Reason:         reason,
	}, nil
}

// Confirm transitions a booking to CONFIRMED and issues tickets. Called
// from the payment webhook path; safe to call repeatedly.
func (s *BookingService) Confirm(ctx context.Context, bookingID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	var confirmed models.Booking
	var transitioned bool

	err := s.store.WithBookingLock(ctx, bookingID, func(tx ports.TxStore, booking *models.Booking) error {
		var err error
		tickets, transitioned, err = s.confirmLocked(ctx, tx, booking)
		if err == nil {
			confirmed = *booking
			confirmed.Status = models.BookingConfirmed
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.publishLifecycle(ctx, models.EventBookingConfirmed, &confirmed, models.BookingPendingPayment, "")
		s.publishTickets(ctx, &confirmed, tickets)
	}
	return tickets, nil
}

// confirmLocked applies the confirmation inside an already-held booking
// lock. A CONFIRMED booking with tickets is a no-op redelivery; one
// without tickets gets them issued. transitioned reports whether the
// status actually moved.
func (s *BookingService) confirmLocked(ctx context.Context, tx ports.TxStore, booking *models.Booking) (tickets []models.Ticket, transitioned bool, err error) {
	switch booking.Status {
	case models.BookingConfirmed:
		tickets, err = tx.TicketsByBooking(ctx, booking.ID)
		if err != nil {
			return nil, false, err
		}
		if len(tickets) > 0 {
			return tickets, false, nil
		}
		tickets, err = s.issuer.Issue(ctx, tx, booking)
		return tickets, false, err

	case models.BookingPendingPayment:
		if err := tx.UpdateBookingStatus(ctx, booking.ID, models.BookingConfirmed); err != nil {
			return nil, false, err
		}
		confirmed := *booking
		confirmed.Status = models.BookingConfirmed
		tickets, err = s.issuer.Issue(ctx, tx, &confirmed)
		return tickets, true, err

	default:
		return nil, false, apperrors.Newf(apperrors.KindInvalidTransition,
			"booking %s is %s and cannot be confirmed", booking.ID, booking.Status)
	}
}

// MarkPaymentFailed moves a pending booking to PAYMENT_FAILED. Bookings
// already past PENDING_PAYMENT are left alone.
func (s *BookingService) MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var failed models.Booking
	var transitioned bool

	err := s.store.WithBookingLock(ctx, bookingID, func(tx ports.TxStore, booking *models.Booking) error {
		if booking.Status != models.BookingPendingPayment {
			return nil
		}
		if err := tx.UpdateBookingStatus(ctx, booking.ID, models.BookingPaymentFailed); err != nil {
			return err
		}
		failed = *booking
		failed.Status = models.BookingPaymentFailed
		transitioned = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if transitioned {
		s.publishLifecycle(ctx, models.EventBookingPaymentFailed, &failed, models.BookingPendingPayment, "")
	}
	return transitioned, nil
}

// ExpireStale sweeps PENDING_PAYMENT bookings whose reservation window
// has passed and moves them to EXPIRED. Each booking transitions under
// its own lock, so a concurrent payment confirmation wins or loses
// cleanly per booking. Returns the number of bookings expired.
func (s *BookingService) ExpireStale(ctx context.Context) (int, error) {
	log := logger.WithContext(ctx)
	now := time.Now().UTC()

	stale, err := s.store.ExpiredPendingBookings(ctx, now, expiryBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		var snapshot models.Booking
		var transitioned bool

		err := s.store.WithBookingLock(ctx, candidate.ID, func(tx ports.TxStore, booking *models.Booking) error {
			// Recheck under the lock: a webhook may have confirmed the
			// booking between the sweep query and here.
			if booking.Status != models.BookingPendingPayment || booking.ReservationExpiresAt.After(now) {
				return nil
			}
			if err := tx.UpdateBookingStatus(ctx, booking.ID, models.BookingExpired); err != nil {
				return err
			}
			snapshot = *booking
			snapshot.Status = models.BookingExpired
			transitioned = true
			return nil
		})
		if err != nil {
			log.Error("failed to expire booking", "booking_id", candidate.ID, "error", err)
			continue
		}
		if transitioned {
			s.publishLifecycle(ctx, models.EventBookingExpired, &snapshot, models.BookingPendingPayment, "reservation window elapsed")
			expired++
		}
	}

	if expired > 0 {
		log.Info("expired stale reservations", "count", expired)
	}
	return expired, nil
}

// loadRules is cache-aside over the tenant's active pricing rules. A rule
// store failure surfaces as PRICING_UNAVAILABLE so reservations fail
// closed instead of quoting garbage.
func (s *BookingService) loadRules(ctx context.Context, tenantID uuid.UUID) ([]models.PricingRule, error) {
	if s.rulesCache != nil {
		if rules, err := s.rulesCache.Get(ctx, tenantID); err == nil {
			return rules, nil
		}
	}

	rules, err := s.store.ActivePricingRules(ctx, tenantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPricingUnavailable, "could not load pricing rules", err)
	}

	if s.rulesCache != nil {
		if err := s.rulesCache.Set(ctx, tenantID, rules); err != nil {
			logger.WithContext(ctx).Warn("failed to cache pricing rules", "tenant_id", tenantID, "error", err)
		}
	}
	return rules, nil
}

func (s *BookingService) publishLifecycle(ctx context.Context, subject string, booking *models.Booking, previous models.BookingStatus, reason string) {
	if s.publisher == nil {
		return
	}
	event := models.BookingLifecycleEvent{
		BookingID:      booking.ID,
		TenantID:       booking.TenantID,
		TripID:         booking.TripID,
		PreviousStatus: previous,
		Status:         booking.Status,
		SeatsCount:     booking.SeatsCount,
		Reason:         reason,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.publisher.Publish(subject, event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish lifecycle event", "subject", subject, "booking_id", booking.ID, "error", err)
	}
}

func (s *BookingService) publishTickets(ctx context.Context, booking *models.Booking, tickets []models.Ticket) {
	if s.publisher == nil || len(tickets) == 0 {
		return
	}
	codes := make([]string, 0, len(tickets))
	for _, t := range tickets {
		codes = append(codes, t.TicketCode)
	}
	event := models.TicketIssuedEvent{
		BookingID:   booking.ID,
		TenantID:    booking.TenantID,
		TicketCodes: codes,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.publisher.Publish(models.EventTicketIssued, event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish ticket event", "booking_id", booking.ID, "error", err)
	}
}

func bookingView(booking *models.Booking, perPassenger int64) models.BookingView {
	return models.BookingView{
		ID:                   booking.ID,
		TripID:               booking.TripID,
		Status:               booking.Status,
		ReservationExpiresAt: booking.ReservationExpiresAt,
		TotalAmount:          booking.TotalAmount,
		PerPassengerAmount:   perPassenger,
		Currency:             booking.Currency,
		SeatsCount:           booking.SeatsCount,
		Metadata:             booking.Metadata,
		CreatedAt:            booking.CreatedAt,
	}
}

func newPaymentReference(provider string, bookingID uuid.UUID) string {
	a := strings.ReplaceAll(bookingID.String(), "-", "")
	b := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(fmt.Sprintf("%s_bk_%s_%s", provider, a[:12], b[:6]))
}
