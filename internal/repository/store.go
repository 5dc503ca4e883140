// Package repository is the Postgres persistence layer. Store runs plain
// reads on the pool; the WithTripLock / WithBookingLock helpers open a
// transaction, take the row locks the booking core relies on, and hand a
// Tx to the callback. Any error rolls the transaction back completely.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/database"
	"geoconnect/internal/models"
	"geoconnect/internal/service/ports"
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// queries holds every SQL operation; it runs against the pool or a
// transaction depending on who embeds it.
type queries struct {
	q querier
}

// Store is the pool-backed entry point.
type Store struct {
	db *database.DB
	queries
}

// Tx exposes the same operations inside an open transaction.
type Tx struct {
	queries
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db, queries: queries{q: db}}
}

// WithTripLock serializes all capacity-affecting work on a trip. It locks
// the trip row and every currently-active booking row before running fn,
// so concurrent creations against the same trip observe each other's
// writes. The lock is held until commit.
func (s *Store) WithTripLock(ctx context.Context, tenantID, tripID uuid.UUID, fn func(tx ports.TxStore, trip *models.Trip) error) error {
	return s.inTx(ctx, func(tx *Tx) error {
		trip, err := tx.tripForUpdate(ctx, tenantID, tripID)
		if err != nil {
			return err
		}
		if err := tx.lockActiveBookings(ctx, tripID); err != nil {
			return err
		}
		return fn(tx, trip)
	})
}

// WithBookingLock serializes state transitions on a single booking. Needed
// because a client Cancel and a webhook Confirm can race.
func (s *Store) WithBookingLock(ctx context.Context, bookingID uuid.UUID, fn func(tx ports.TxStore, booking *models.Booking) error) error {
	return s.inTx(ctx, func(tx *Tx) error {
		booking, err := tx.bookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		return fn(tx, booking)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{queries: queries{q: sqlTx}}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (tx *Tx) tripForUpdate(ctx context.Context, tenantID, tripID uuid.UUID) (*models.Trip, error) {
	row := tx.q.QueryRowContext(ctx, selectTrip+` WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, tripID, tenantID)
	trip, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindTripNotFound, "trip not found")
	}
	return trip, err
}

func (tx *Tx) lockActiveBookings(ctx context.Context, tripID uuid.UUID) error {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT id FROM bookings
		WHERE trip_id = $1 AND status IN ('PENDING_PAYMENT', 'CONFIRMED')
		FOR UPDATE`, tripID)
	if err != nil {
		return fmt.Errorf("failed to lock active bookings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (tx *Tx) bookingForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	row := tx.q.QueryRowContext(ctx, selectBooking+` WHERE id = $1 FOR UPDATE`, bookingID)
	booking, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindBookingNotFound, "booking not found")
	}
	return booking, err
}
