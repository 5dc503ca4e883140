package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/models"
)

const selectTrip = `
	SELECT id, tenant_id, provider_id, mode,
	       origin_lat, origin_lng, destination_lat, destination_lng,
	       service_date, departure_time::text, arrival_time::text, time_zone,
	       vehicle_capacity, currency, base_price, active, created_at, updated_at
	FROM trips`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	trip := &models.Trip{}
	err := row.Scan(
		&trip.ID,
		&trip.TenantID,
		&trip.ProviderID,
		&trip.Mode,
		&trip.OriginLat,
		&trip.OriginLng,
		&trip.DestinationLat,
		&trip.DestinationLng,
		&trip.ServiceDate,
		&trip.DepartureTime,
		&trip.ArrivalTime,
		&trip.TimeZone,
		&trip.VehicleCapacity,
		&trip.Currency,
		&trip.BasePrice,
		&trip.Active,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// TripByID loads a trip without locking it.
func (q *queries) TripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	row := q.q.QueryRowContext(ctx, selectTrip+` WHERE id = $1`, tripID)
	trip, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindTripNotFound, "trip not found")
	}
	return trip, err
}
