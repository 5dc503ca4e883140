package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/external"
	"geoconnect/internal/models"
	"geoconnect/internal/service/ports"
)

// fakeStore is an in-memory ports.Store. A single mutex plays the role of
// the row locks: WithTripLock and WithBookingLock hold it for the whole
// callback, so concurrent reservations serialize exactly like they do
// against Postgres.
type fakeStore struct {
	mu         sync.Mutex
	trips      map[uuid.UUID]*models.Trip
	bookings   map[uuid.UUID]*models.Booking
	passengers map[uuid.UUID][]models.BookingPassenger
	seats      map[uuid.UUID][]models.BookingSeat
	tickets    map[uuid.UUID][]models.Ticket
	rules      map[uuid.UUID][]models.PricingRule
	payments   map[uuid.UUID]*models.PaymentTransaction
	idem       map[string]time.Time

	rulesErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		trips:      make(map[uuid.UUID]*models.Trip),
		bookings:   make(map[uuid.UUID]*models.Booking),
		passengers: make(map[uuid.UUID][]models.BookingPassenger),
		seats:      make(map[uuid.UUID][]models.BookingSeat),
		tickets:    make(map[uuid.UUID][]models.Ticket),
		rules:      make(map[uuid.UUID][]models.PricingRule),
		payments:   make(map[uuid.UUID]*models.PaymentTransaction),
		idem:       make(map[string]time.Time),
	}
}

func (f *fakeStore) addTrip(trip models.Trip) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := trip
	f.trips[trip.ID] = &t
}

// fakeTx assumes the store mutex is already held.
type fakeTx struct {
	s *fakeStore
}

func (tx fakeTx) TripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	return tx.s.tripByIDLocked(tripID)
}

func (tx fakeTx) ActiveSeatCount(ctx context.Context, tripID uuid.UUID, now time.Time) (int, error) {
	count := 0
	for _, b := range tx.s.bookings {
		if b.TripID == tripID && b.IsActive(now) {
			count += b.SeatsCount
		}
	}
	return count, nil
}

func (tx fakeTx) SeatNumbersInUse(ctx context.Context, tripID uuid.UUID, now time.Time) (map[string]bool, error) {
	inUse := make(map[string]bool)
	for _, b := range tx.s.bookings {
		if b.TripID != tripID || !b.IsActive(now) {
			continue
		}
		for _, seat := range tx.s.seats[b.ID] {
			if seat.SeatNumber != "" {
				inUse[seat.SeatNumber] = true
			}
		}
	}
	return inUse, nil
}

func (tx fakeTx) InsertBooking(ctx context.Context, booking *models.Booking) error {
	b := *booking
	tx.s.bookings[booking.ID] = &b
	return nil
}

func (tx fakeTx) InsertPassengers(ctx context.Context, passengers []models.BookingPassenger) error {
	for _, p := range passengers {
		tx.s.passengers[p.BookingID] = append(tx.s.passengers[p.BookingID], p)
	}
	return nil
}

func (tx fakeTx) InsertSeats(ctx context.Context, seats []models.BookingSeat) error {
	for _, seat := range seats {
		tx.s.seats[seat.BookingID] = append(tx.s.seats[seat.BookingID], seat)
	}
	return nil
}

func (tx fakeTx) UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status models.BookingStatus) error {
	b, ok := tx.s.bookings[bookingID]
	if !ok {
		return apperrors.Newf(apperrors.KindBookingNotFound, "booking %s not found", bookingID)
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (tx fakeTx) PassengersByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.BookingPassenger, error) {
	return append([]models.BookingPassenger{}, tx.s.passengers[bookingID]...), nil
}

func (tx fakeTx) TicketsByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Ticket, error) {
	return append([]models.Ticket{}, tx.s.tickets[bookingID]...), nil
}

func (tx fakeTx) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	tx.s.tickets[ticket.BookingID] = append(tx.s.tickets[ticket.BookingID], *ticket)
	return nil
}

func (tx fakeTx) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status models.PaymentStatus) error {
	p, ok := tx.s.payments[paymentID]
	if !ok {
		return apperrors.Newf(apperrors.KindPaymentNotFound, "payment %s not found", paymentID)
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) tripByIDLocked(tripID uuid.UUID) (*models.Trip, error) {
	trip, ok := f.trips[tripID]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindTripNotFound, "trip %s not found", tripID)
	}
	t := *trip
	return &t, nil
}

func (f *fakeStore) WithTripLock(ctx context.Context, tenantID, tripID uuid.UUID, fn func(tx ports.TxStore, trip *models.Trip) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	trip, err := f.tripByIDLocked(tripID)
	if err != nil {
		return err
	}
	if trip.TenantID != tenantID {
		return apperrors.Newf(apperrors.KindTripNotFound, "trip %s not found", tripID)
	}
	return fn(fakeTx{s: f}, trip)
}

func (f *fakeStore) WithBookingLock(ctx context.Context, bookingID uuid.UUID, fn func(tx ports.TxStore, booking *models.Booking) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.bookings[bookingID]
	if !ok {
		return apperrors.Newf(apperrors.KindBookingNotFound, "booking %s not found", bookingID)
	}
	snapshot := *b
	return fn(fakeTx{s: f}, &snapshot)
}

func (f *fakeStore) TripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tripByIDLocked(tripID)
}

func (f *fakeStore) BookingByID(ctx context.Context, tenantID, bookingID uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.bookings[bookingID]
	if !ok || b.TenantID != tenantID {
		return nil, apperrors.Newf(apperrors.KindBookingNotFound, "booking %s not found", bookingID)
	}
	snapshot := *b
	return &snapshot, nil
}

func (f *fakeStore) PassengersByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.BookingPassenger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BookingPassenger{}, f.passengers[bookingID]...), nil
}

func (f *fakeStore) SeatsByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.BookingSeat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BookingSeat{}, f.seats[bookingID]...), nil
}

func (f *fakeStore) TicketsByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Ticket{}, f.tickets[bookingID]...), nil
}

func (f *fakeStore) TicketByID(ctx context.Context, tenantID, ticketID uuid.UUID) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, tickets := range f.tickets {
		for _, t := range tickets {
			if t.ID == ticketID && t.TenantID == tenantID {
				ticket := t
				return &ticket, nil
			}
		}
	}
	return nil, apperrors.Newf(apperrors.KindTicketNotFound, "ticket %s not found", ticketID)
}

func (f *fakeStore) ActivePricingRules(ctx context.Context, tenantID uuid.UUID) ([]models.PricingRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	return append([]models.PricingRule{}, f.rules[tenantID]...), nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, payment *models.PaymentTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := *payment
	f.payments[payment.ID] = &p
	return nil
}

func (f *fakeStore) PaymentByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.payments {
		if p.PSPReference == reference {
			snapshot := *p
			return &snapshot, nil
		}
	}
	return nil, apperrors.Newf(apperrors.KindPaymentNotFound, "payment with reference %s not found", reference)
}

func (f *fakeStore) ExpiredPendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Booking
	for _, b := range f.bookings {
		if len(out) >= limit {
			break
		}
		if b.Status == models.BookingPendingPayment && !b.ReservationExpiresAt.IsZero() && !b.ReservationExpiresAt.After(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) RegisterIdempotencyKey(ctx context.Context, key, scope string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	composite := fmt.Sprintf("%s|%s", key, scope)
	if expiry, ok := f.idem[composite]; ok && expiry.After(time.Now()) {
		return apperrors.Newf(apperrors.KindIdempotencyKeyUsed, "idempotency key already used for %s", scope)
	}
	f.idem[composite] = time.Now().Add(ttl)
	return nil
}

// fakePublisher records published events in order.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	subject string
	data    interface{}
}

func (p *fakePublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, data: data})
	return nil
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}

// fakePaymentClient returns canned sessions, or an error when broken.
type fakePaymentClient struct {
	mu       sync.Mutex
	requests []external.SessionRequest
	err      error
}

func (c *fakePaymentClient) CreateSession(ctx context.Context, req external.SessionRequest) (*external.SessionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return &external.SessionResponse{
		RedirectURL: fmt.Sprintf("https://%s.example/checkout/%s", req.Provider, req.Reference),
		Status:      "INITIATED",
	}, nil
}
