package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createExtension,
		createTripsTable,
		createBookingsTable,
		createBookingPassengersTable,
		createBookingSeatsTable,
		createTicketsTable,
		createPricingRulesTable,
		createPaymentTransactionsTable,
		createIdempotencyKeysTable,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createExtension = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`

const createTripsTable = `
CREATE TABLE IF NOT EXISTS trips (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    tenant_id UUID NOT NULL,
    provider_id UUID NOT NULL,
    mode VARCHAR(20) NOT NULL DEFAULT 'BUS',
    origin_lat DOUBLE PRECISION NOT NULL,
    origin_lng DOUBLE PRECISION NOT NULL,
    destination_lat DOUBLE PRECISION NOT NULL,
    destination_lng DOUBLE PRECISION NOT NULL,
    service_date DATE NOT NULL,
    departure_time TIME NOT NULL,
    arrival_time TIME NOT NULL,
    time_zone VARCHAR(64) NOT NULL DEFAULT 'Africa/Lagos',
    vehicle_capacity INTEGER NOT NULL DEFAULT 0,
    currency VARCHAR(10) NOT NULL DEFAULT 'NGN',
    base_price BIGINT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS trips_tenant_provider_date_idx
ON trips (tenant_id, provider_id, service_date);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    tenant_id UUID NOT NULL,
    provider_id UUID NOT NULL,
    trip_id UUID NOT NULL REFERENCES trips(id),
    customer_id UUID NOT NULL,
    status VARCHAR(32) NOT NULL DEFAULT 'PENDING_PAYMENT',
    reservation_expires_at TIMESTAMPTZ,
    total_amount BIGINT NOT NULL DEFAULT 0,
    currency VARCHAR(10) NOT NULL DEFAULT 'NGN',
    seats_count INTEGER NOT NULL DEFAULT 0,
    metadata JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('PENDING_PAYMENT', 'CONFIRMED', 'CANCELLED', 'PAYMENT_FAILED', 'EXPIRED'))
);
CREATE INDEX IF NOT EXISTS bookings_trip_status_idx ON bookings (trip_id, status);
CREATE INDEX IF NOT EXISTS bookings_tenant_status_idx ON bookings (tenant_id, status);`

const createBookingPassengersTable = `
CREATE TABLE IF NOT EXISTS booking_passengers (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    booking_id UUID NOT NULL REFERENCES bookings(id),
    passenger_type VARCHAR(16) NOT NULL DEFAULT 'adult',
    first_name VARCHAR(128) NOT NULL,
    last_name VARCHAR(128) NOT NULL,
    email VARCHAR(255) NOT NULL DEFAULT '',
    phone VARCHAR(32) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (passenger_type IN ('adult', 'child', 'senior'))
);
CREATE INDEX IF NOT EXISTS booking_passengers_booking_idx ON booking_passengers (booking_id);`

const createBookingSeatsTable = `
CREATE TABLE IF NOT EXISTS booking_seats (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    booking_id UUID NOT NULL REFERENCES bookings(id),
    passenger_id UUID NOT NULL REFERENCES booking_passengers(id),
    seat_number VARCHAR(16) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS booking_seats_booking_idx ON booking_seats (booking_id);`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    tenant_id UUID NOT NULL,
    provider_id UUID NOT NULL,
    booking_id UUID NOT NULL REFERENCES bookings(id),
    passenger_id UUID NOT NULL REFERENCES booking_passengers(id),
    ticket_code VARCHAR(64) NOT NULL UNIQUE,
    qr_payload TEXT NOT NULL,
    valid_from TIMESTAMPTZ NOT NULL,
    valid_until TIMESTAMPTZ NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'ISSUED',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('ISSUED', 'CANCELLED', 'USED'))
);
CREATE INDEX IF NOT EXISTS tickets_booking_idx ON tickets (booking_id);`

const createPricingRulesTable = `
CREATE TABLE IF NOT EXISTS pricing_rules (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    tenant_id UUID NOT NULL,
    provider_id UUID,
    name VARCHAR(255) NOT NULL,
    mode VARCHAR(20) NOT NULL DEFAULT '',
    type VARCHAR(32) NOT NULL,
    currency VARCHAR(10) NOT NULL DEFAULT 'NGN',
    config JSONB NOT NULL DEFAULT '{}',
    priority INTEGER NOT NULL DEFAULT 100,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (type IN ('DISTANCE_BASED', 'TIME_BASED', 'FIXED', 'SURCHARGE', 'DISCOUNT'))
);
CREATE INDEX IF NOT EXISTS pricing_rules_tenant_active_idx ON pricing_rules (tenant_id, active);`

const createPaymentTransactionsTable = `
CREATE TABLE IF NOT EXISTS payment_transactions (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    tenant_id UUID NOT NULL,
    provider_id UUID NOT NULL,
    booking_id UUID NOT NULL REFERENCES bookings(id),
    psp VARCHAR(50) NOT NULL,
    psp_reference VARCHAR(255) NOT NULL UNIQUE,
    amount BIGINT NOT NULL,
    currency VARCHAR(10) NOT NULL DEFAULT 'NGN',
    status VARCHAR(16) NOT NULL DEFAULT 'INITIATED',
    metadata JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('INITIATED', 'SUCCESS', 'FAILED', 'REFUNDED'))
);
CREATE INDEX IF NOT EXISTS payment_transactions_booking_idx ON payment_transactions (booking_id);`

const createIdempotencyKeysTable = `
CREATE TABLE IF NOT EXISTS idempotency_keys (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    key VARCHAR(255) NOT NULL,
    endpoint_scope VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,

    UNIQUE (key, endpoint_scope)
);`
