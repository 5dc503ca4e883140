package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/models"
)

const selectBooking = `
	SELECT id, tenant_id, provider_id, trip_id, customer_id, status,
	       reservation_expires_at, total_amount, currency, seats_count,
	       metadata, created_at, updated_at
	FROM bookings`

func scanBooking(row rowScanner) (*models.Booking, error) {
	booking := &models.Booking{}
	var expiresAt sql.NullTime
	var metadata []byte
	err := row.Scan(
		&booking.ID,
		&booking.TenantID,
		&booking.ProviderID,
		&booking.TripID,
		&booking.CustomerID,
		&booking.Status,
		&expiresAt,
		&booking.TotalAmount,
		&booking.Currency,
		&booking.SeatsCount,
		&metadata,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		booking.ReservationExpiresAt = expiresAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &booking.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode booking metadata: %w", err)
		}
	}
	return booking, nil
}

// InsertBooking persists a new booking and fills in generated fields.
func (q *queries) InsertBooking(ctx context.Context, booking *models.Booking) error {
	metadata, err := json.Marshal(booking.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode booking metadata: %w", err)
	}

	query := `
		INSERT INTO bookings (id, tenant_id, provider_id, trip_id, customer_id, status,
		                      reservation_expires_at, total_amount, currency, seats_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	return q.q.QueryRowContext(ctx, query,
		booking.ID,
		booking.TenantID,
		booking.ProviderID,
		booking.TripID,
		booking.CustomerID,
		booking.Status,
		booking.ReservationExpiresAt,
		booking.TotalAmount,
		booking.Currency,
		booking.SeatsCount,
		metadata,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

// BookingByID loads a tenant's booking.
func (q *queries) BookingByID(ctx context.Context, tenantID, bookingID uuid.UUID) (*models.Booking, error) {
	row := q.q.QueryRowContext(ctx, selectBooking+` WHERE id = $1 AND tenant_id = $2`, bookingID, tenantID)
	booking, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindBookingNotFound, "booking not found")
	}
	return booking, err
}

// UpdateBookingStatus performs the state write of a lifecycle transition.
func (q *queries) UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status models.BookingStatus) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, bookingID)
	return err
}

// ActiveSeatCount sums the passengers of this trip's active bookings.
// PENDING_PAYMENT bookings count only while their reservation window is
// open; CONFIRMED bookings always count.
func (q *queries) ActiveSeatCount(ctx context.Context, tripID uuid.UUID, now time.Time) (int, error) {
	var count int
	err := q.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(b.seats_count), 0)
		FROM bookings b
		WHERE b.trip_id = $1
		  AND (b.status = 'CONFIRMED'
		       OR (b.status = 'PENDING_PAYMENT' AND (b.reservation_expires_at IS NULL OR b.reservation_expires_at > $2)))`,
		tripID, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active seats: %w", err)
	}
	return count, nil
}

// SeatNumbersInUse returns the seat numbers already assigned to active
// bookings on the trip. Only consulted when the uniqueness check is on.
func (q *queries) SeatNumbersInUse(ctx context.Context, tripID uuid.UUID, now time.Time) (map[string]bool, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT bs.seat_number
		FROM booking_seats bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE b.trip_id = $1
		  AND bs.seat_number <> ''
		  AND (b.status = 'CONFIRMED'
		       OR (b.status = 'PENDING_PAYMENT' AND (b.reservation_expires_at IS NULL OR b.reservation_expires_at > $2)))`,
		tripID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		taken[seat] = true
	}
	return taken, rows.Err()
}

// InsertPassengers writes one row per requested seat and fills generated ids.
func (q *queries) InsertPassengers(ctx context.Context, passengers []models.BookingPassenger) error {
	for i := range passengers {
		p := &passengers[i]
		err := q.q.QueryRowContext(ctx, `
			INSERT INTO booking_passengers (id, booking_id, passenger_type, first_name, last_name, email, phone)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`,
			p.ID, p.BookingID, p.PassengerType, p.FirstName, p.LastName, p.Email, p.Phone,
		).Scan(&p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert passenger: %w", err)
		}
	}
	return nil
}

// InsertSeats writes the positional seat assignments.
func (q *queries) InsertSeats(ctx context.Context, seats []models.BookingSeat) error {
	for i := range seats {
		s := &seats[i]
		err := q.q.QueryRowContext(ctx, `
			INSERT INTO booking_seats (id, booking_id, passenger_id, seat_number)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`,
			s.ID, s.BookingID, s.PassengerID, s.SeatNumber,
		).Scan(&s.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert seat: %w", err)
		}
	}
	return nil
}

// PassengersByBooking lists a booking's passengers in insertion order.
func (q *queries) PassengersByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.BookingPassenger, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, booking_id, passenger_type, first_name, last_name, email, phone, created_at
		FROM booking_passengers
		WHERE booking_id = $1
		ORDER BY created_at, id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passengers []models.BookingPassenger
	for rows.Next() {
		var p models.BookingPassenger
		err := rows.Scan(&p.ID, &p.BookingID, &p.PassengerType, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		passengers = append(passengers, p)
	}
	return passengers, rows.Err()
}

// SeatsByBooking lists a booking's seat assignments.
func (q *queries) SeatsByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.BookingSeat, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, booking_id, passenger_id, seat_number, created_at
		FROM booking_seats
		WHERE booking_id = $1
		ORDER BY created_at, id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []models.BookingSeat
	for rows.Next() {
		var s models.BookingSeat
		if err := rows.Scan(&s.ID, &s.BookingID, &s.PassengerID, &s.SeatNumber, &s.CreatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// ExpiredPendingBookings finds PENDING_PAYMENT bookings whose reservation
// window elapsed before the cutoff. Oldest first so the sweeper drains in
// arrival order.
func (q *queries) ExpiredPendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	rows, err := q.q.QueryContext(ctx, selectBooking+`
		WHERE status = 'PENDING_PAYMENT'
		  AND reservation_expires_at IS NOT NULL
		  AND reservation_expires_at < $1
		ORDER BY reservation_expires_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}
	return bookings, rows.Err()
}
