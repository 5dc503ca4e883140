package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/fare"
	"geoconnect/internal/models"
)

type testEnv struct {
	store      *fakeStore
	publisher  *fakePublisher
	psp        *fakePaymentClient
	services   *Services
	tenantID   uuid.UUID
	customerID uuid.UUID
	providerID uuid.UUID
	trip       models.Trip
}

func newTestEnv(t *testing.T, capacity int, opts Options) *testEnv {
	t.Helper()

	env := &testEnv{
		store:      newFakeStore(),
		publisher:  &fakePublisher{},
		psp:        &fakePaymentClient{},
		tenantID:   uuid.New(),
		customerID: uuid.New(),
		providerID: uuid.New(),
	}

	if opts.CallbackBaseURL == "" {
		opts.CallbackBaseURL = "http://localhost:8080"
	}
	env.services = NewServices(env.store, nil, env.publisher, env.psp, opts)

	env.trip = models.Trip{
		ID:              uuid.New(),
		TenantID:        env.tenantID,
		ProviderID:      env.providerID,
		Mode:            "BUS",
		OriginLat:       6.5244,
		OriginLng:       3.3792,
		DestinationLat:  7.3775,
		DestinationLng:  3.9470,
		ServiceDate:     time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		DepartureTime:   "08:00:00",
		ArrivalTime:     "10:30:00",
		TimeZone:        "Africa/Lagos",
		VehicleCapacity: capacity,
		Currency:        "NGN",
		Active:          true,
	}
	env.store.addTrip(env.trip)

	env.store.rules[env.tenantID] = []models.PricingRule{{
		ID:       uuid.New(),
		TenantID: env.tenantID,
		Name:     "standard",
		Type:     models.RuleDistanceBased,
		Currency: "NGN",
		Config: models.PricingRuleConfig{
			BaseFareAmount: 500,
			PerKmAmount:    100,
			MinFareAmount:  1000,
		},
		Priority: 10,
		Active:   true,
	}}

	return env
}

// perSeatFare is what the standard test rule quotes for the test trip.
func (env *testEnv) perSeatFare() int64 {
	dist := fare.HaversineKm(env.trip.OriginLat, env.trip.OriginLng, env.trip.DestinationLat, env.trip.DestinationLng)
	return 500 + int64(dist*100)
}

func createRequest(tripID uuid.UUID, seats int) *models.CreateBookingRequest {
	passengers := make([]models.PassengerInput, 0, seats)
	for i := 0; i < seats; i++ {
		passengers = append(passengers, models.PassengerInput{
			Type:      "adult",
			FirstName: "Ada",
			LastName:  "Okafor",
			Email:     "ada@example.com",
		})
	}
	return &models.CreateBookingRequest{
		TripID:     tripID,
		Passengers: passengers,
		Payment:    models.PaymentInput{Provider: "paystack"},
	}
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(t, 40, Options{})
	ctx := context.Background()

	before := time.Now().UTC()
	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.NoError(t, err)

	assert.Equal(t, models.BookingPendingPayment, resp.Booking.Status)
	assert.Equal(t, 2, resp.Booking.SeatsCount)
	assert.Equal(t, env.perSeatFare()*2, resp.Booking.TotalAmount)
	assert.Equal(t, env.perSeatFare(), resp.Booking.PerPassengerAmount)
	assert.Equal(t, "NGN", resp.Booking.Currency)
	assert.NotEmpty(t, resp.Booking.Metadata.PricingComponents)
	assert.Greater(t, resp.Booking.Metadata.DistanceKm, 0.0)

	// Reservation window is 15 minutes by default.
	assert.WithinDuration(t, before.Add(15*time.Minute), resp.Booking.ReservationExpiresAt, 5*time.Second)

	// Payment session opened against the PSP with the booking total.
	assert.Equal(t, "paystack", resp.PaymentSession.Provider)
	wantRefPrefix := "PAYSTACK_BK_" + strings.ToUpper(strings.ReplaceAll(resp.Booking.ID.String(), "-", "")[:12])
	assert.True(t, strings.HasPrefix(resp.PaymentSession.PaymentReference, wantRefPrefix))
	assert.Contains(t, resp.PaymentSession.RedirectURL, resp.PaymentSession.PaymentReference)
	assert.Equal(t, "http://localhost:8080/api/v1/payments/webhooks/paystack", resp.PaymentSession.CallbackURL)
	assert.Equal(t, string(models.PaymentInitiated), resp.PaymentSession.Status)

	require.Len(t, env.psp.requests, 1)
	assert.Equal(t, resp.Booking.TotalAmount, env.psp.requests[0].Amount)

	assert.Equal(t, []string{models.EventBookingCreated}, env.publisher.subjects())

	// Passenger rows persisted.
	passengers, err := env.store.PassengersByBooking(ctx, resp.Booking.ID)
	require.NoError(t, err)
	assert.Len(t, passengers, 2)
}

func TestCreateBookingCapacityExceeded(t *testing.T) {
	env := newTestEnv(t, 3, Options{})
	ctx := context.Background()

	_, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.NoError(t, err)

	_, err = env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindCapacityExceeded))

	// One more seat still fits.
	_, err = env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	assert.NoError(t, err)
}

func TestCreateBookingUnlimitedCapacity(t *testing.T) {
	env := newTestEnv(t, 0, Options{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 4))
		require.NoError(t, err)
	}
}

func TestCreateBookingTripNotFound(t *testing.T) {
	env := newTestEnv(t, 10, Options{})

	_, err := env.services.Bookings.Create(context.Background(), env.tenantID, env.customerID, "", createRequest(uuid.New(), 1))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindTripNotFound))
}

func TestCreateBookingWrongTenant(t *testing.T) {
	env := newTestEnv(t, 10, Options{})

	_, err := env.services.Bookings.Create(context.Background(), uuid.New(), env.customerID, "", createRequest(env.trip.ID, 1))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindTripNotFound))
}

func TestCreateBookingConcurrent(t *testing.T) {
	env := newTestEnv(t, 2, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperrors.IsKind(err, apperrors.KindCapacityExceeded))
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two concurrent reservations must win the last seats")
}

func TestCreateBookingIdempotencyKey(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	_, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "key-1", createRequest(env.trip.ID, 1))
	require.NoError(t, err)

	_, err = env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "key-1", createRequest(env.trip.ID, 1))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindIdempotencyKeyUsed))

	// A different key is unaffected.
	_, err = env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "key-2", createRequest(env.trip.ID, 1))
	assert.NoError(t, err)
}

func TestCreateBookingSeatSelection(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	req := createRequest(env.trip.ID, 2)
	req.SeatSelection = &models.SeatSelectionInput{
		Enabled:        true,
		RequestedSeats: []string{"1A", "1B", "1C"}, // one more than passengers
	}

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", req)
	require.NoError(t, err)

	seats, err := env.store.SeatsByBooking(ctx, resp.Booking.ID)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "1A", seats[0].SeatNumber)
	assert.Equal(t, "1B", seats[1].SeatNumber)

	passengers, err := env.store.PassengersByBooking(ctx, resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, passengers[0].ID, seats[0].PassengerID)
	assert.Equal(t, passengers[1].ID, seats[1].PassengerID)
}

func TestCreateBookingSeatConflict(t *testing.T) {
	env := newTestEnv(t, 10, Options{SeatUniquenessCheck: true})
	ctx := context.Background()

	first := createRequest(env.trip.ID, 1)
	first.SeatSelection = &models.SeatSelectionInput{Enabled: true, RequestedSeats: []string{"1A"}}
	_, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", first)
	require.NoError(t, err)

	second := createRequest(env.trip.ID, 1)
	second.SeatSelection = &models.SeatSelectionInput{Enabled: true, RequestedSeats: []string{"1A"}}
	_, err = env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", second)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindSeatTaken))
}

func TestCreateBookingPricingUnavailable(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	env.store.rulesErr = errors.New("connection refused")

	_, err := env.services.Bookings.Create(context.Background(), env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPricingUnavailable))
}

func TestCreateBookingPaymentSessionFailure(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	env.psp.err = errors.New("gateway timeout")

	// The reservation stands even when the PSP is down.
	resp, err := env.services.Bookings.Create(context.Background(), env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, models.BookingPendingPayment, resp.Booking.Status)
	assert.Equal(t, "UNAVAILABLE", resp.PaymentSession.Status)
	assert.Empty(t, resp.PaymentSession.RedirectURL)
}

func TestGetBooking(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.NoError(t, err)

	detail, err := env.services.Bookings.Get(ctx, env.tenantID, resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Booking.ID, detail.Booking.ID)
	assert.Len(t, detail.Passengers, 2)
	assert.Empty(t, detail.Tickets)
	assert.Equal(t, env.perSeatFare(), detail.Booking.PerPassengerAmount)

	// Other tenants cannot see the booking.
	_, err = env.services.Bookings.Get(ctx, uuid.New(), resp.Booking.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBookingNotFound))
}

func TestCancelPendingBooking(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.NoError(t, err)

	cancel, err := env.services.Bookings.Cancel(ctx, env.tenantID, resp.Booking.ID, "change of plans")
	require.NoError(t, err)

	assert.Equal(t, models.BookingPendingPayment, cancel.PreviousStatus)
	assert.Equal(t, models.BookingCancelled, cancel.NewStatus)
	assert.Equal(t, "change of plans", cancel.Reason)

	// Unpaid reservations refund in full.
	assert.True(t, cancel.Refund.Eligible)
	assert.Equal(t, resp.Booking.TotalAmount, cancel.Refund.Amount)
	assert.Equal(t, "NGN", cancel.Refund.Currency)
	assert.Equal(t, "SIMPLE_POLICY", cancel.Refund.PolicyCode)

	assert.Contains(t, env.publisher.subjects(), models.EventBookingCancelled)
}

func TestCancelConfirmedBooking(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.NoError(t, err)
	_, err = env.services.Bookings.Confirm(ctx, resp.Booking.ID)
	require.NoError(t, err)

	cancel, err := env.services.Bookings.Cancel(ctx, env.tenantID, resp.Booking.ID, "")
	require.NoError(t, err)

	assert.Equal(t, models.BookingConfirmed, cancel.PreviousStatus)
	assert.False(t, cancel.Refund.Eligible)
	assert.Zero(t, cancel.Refund.Amount)
}

func TestCancelTwiceRejected(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.NoError(t, err)

	_, err = env.services.Bookings.Cancel(ctx, env.tenantID, resp.Booking.ID, "")
	require.NoError(t, err)

	_, err = env.services.Bookings.Cancel(ctx, env.tenantID, resp.Booking.ID, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
}

func TestCancelWrongTenant(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.NoError(t, err)

	_, err = env.services.Bookings.Cancel(ctx, uuid.New(), resp.Booking.ID, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBookingNotFound))
}

func TestConfirmIssuesTickets(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.NoError(t, err)

	tickets, err := env.services.Bookings.Confirm(ctx, resp.Booking.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	booking, err := env.store.BookingByID(ctx, env.tenantID, resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, booking.Status)

	subjects := env.publisher.subjects()
	assert.Contains(t, subjects, models.EventBookingConfirmed)
	assert.Contains(t, subjects, models.EventTicketIssued)
}

func TestConfirmIdempotent(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.NoError(t, err)

	first, err := env.services.Bookings.Confirm(ctx, resp.Booking.ID)
	require.NoError(t, err)
	second, err := env.services.Bookings.Confirm(ctx, resp.Booking.ID)
	require.NoError(t, err)

	// The second confirm returns the same tickets, issues nothing new and
	// publishes nothing new.
	require.Len(t, second, len(first))
	firstCodes := map[string]bool{}
	for _, ticket := range first {
		firstCodes[ticket.TicketCode] = true
	}
	for _, ticket := range second {
		assert.True(t, firstCodes[ticket.TicketCode])
	}

	stored, err := env.store.TicketsByBooking(ctx, resp.Booking.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	confirmEvents := 0
	for _, subject := range env.publisher.subjects() {
		if subject == models.EventBookingConfirmed {
			confirmEvents++
		}
	}
	assert.Equal(t, 1, confirmEvents)
}

func TestConfirmCancelledRejected(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	resp, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.NoError(t, err)
	_, err = env.services.Bookings.Cancel(ctx, env.tenantID, resp.Booking.ID, "")
	require.NoError(t, err)

	_, err = env.services.Bookings.Confirm(ctx, resp.Booking.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
}

func TestExpireStale(t *testing.T) {
	env := newTestEnv(t, 10, Options{})
	ctx := context.Background()

	stale, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.NoError(t, err)
	fresh, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.NoError(t, err)
	paid, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.NoError(t, err)
	_, err = env.services.Bookings.Confirm(ctx, paid.Booking.ID)
	require.NoError(t, err)

	// Age the first reservation past its window.
	env.store.mu.Lock()
	env.store.bookings[stale.Booking.ID].ReservationExpiresAt = time.Now().UTC().Add(-time.Minute)
	env.store.mu.Unlock()

	expired, err := env.services.Bookings.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	b, err := env.store.BookingByID(ctx, env.tenantID, stale.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingExpired, b.Status)

	b, err = env.store.BookingByID(ctx, env.tenantID, fresh.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPendingPayment, b.Status)

	b, err = env.store.BookingByID(ctx, env.tenantID, paid.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.Status)

	assert.Contains(t, env.publisher.subjects(), models.EventBookingExpired)

	// A second sweep finds nothing.
	expired, err = env.services.Bookings.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestExpiredSeatsReturnToPool(t *testing.T) {
	env := newTestEnv(t, 2, Options{})
	ctx := context.Background()

	held, err := env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	require.NoError(t, err)

	_, err = env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 1))
	require.Error(t, err)

	env.store.mu.Lock()
	env.store.bookings[held.Booking.ID].ReservationExpiresAt = time.Now().UTC().Add(-time.Minute)
	env.store.mu.Unlock()

	_, err = env.services.Bookings.ExpireStale(ctx)
	require.NoError(t, err)

	// The seats are free again without waiting for the sweep: capacity
	// counting ignores lapsed reservations either way.
	_, err = env.services.Bookings.Create(ctx, env.tenantID, env.customerID, "", createRequest(env.trip.ID, 2))
	assert.NoError(t, err)
}
