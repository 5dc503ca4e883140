package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the booking lifecycle state.
type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingConfirmed      BookingStatus = "CONFIRMED"
	BookingCancelled      BookingStatus = "CANCELLED"
	BookingPaymentFailed  BookingStatus = "PAYMENT_FAILED"
	BookingExpired        BookingStatus = "EXPIRED"
)

// PaymentStatus is the state of a single payment attempt.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// TicketStatus is the state of an issued ticket.
type TicketStatus string

const (
	TicketIssued    TicketStatus = "ISSUED"
	TicketCancelled TicketStatus = "CANCELLED"
	TicketUsed      TicketStatus = "USED"
)

// PricingRuleType is the closed set of rule variants the fare engine
// dispatches on.
type PricingRuleType string

const (
	RuleDistanceBased PricingRuleType = "DISTANCE_BASED"
	RuleTimeBased     PricingRuleType = "TIME_BASED"
	RuleFixed         PricingRuleType = "FIXED"
	RuleSurcharge     PricingRuleType = "SURCHARGE"
	RuleDiscount      PricingRuleType = "DISCOUNT"
)

const (
	SurchargeFlat       = "FLAT"
	SurchargePercentage = "PERCENTAGE"
)

// Trip is a scheduled departure. Owned by a provider within a tenant;
// read-only to the booking core.
type Trip struct {
	ID              uuid.UUID `json:"id" db:"id"`
	TenantID        uuid.UUID `json:"tenant_id" db:"tenant_id"`
	ProviderID      uuid.UUID `json:"provider_id" db:"provider_id"`
	Mode            string    `json:"mode" db:"mode"`
	OriginLat       float64   `json:"origin_lat" db:"origin_lat"`
	OriginLng       float64   `json:"origin_lng" db:"origin_lng"`
	DestinationLat  float64   `json:"destination_lat" db:"destination_lat"`
	DestinationLng  float64   `json:"destination_lng" db:"destination_lng"`
	ServiceDate     time.Time `json:"service_date" db:"service_date"`
	DepartureTime   string    `json:"departure_time" db:"departure_time"` // "HH:MM:SS"
	ArrivalTime     string    `json:"arrival_time" db:"arrival_time"`
	TimeZone        string    `json:"time_zone" db:"time_zone"`
	VehicleCapacity int       `json:"vehicle_capacity" db:"vehicle_capacity"`
	Currency        string    `json:"currency" db:"currency"`
	BasePrice       int64     `json:"base_price" db:"base_price"`
	Active          bool      `json:"active" db:"active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Booking is the central aggregate. Rows are never deleted; terminal
// states are kept for audit and settlement.
type Booking struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	TenantID             uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	ProviderID           uuid.UUID       `json:"provider_id" db:"provider_id"`
	TripID               uuid.UUID       `json:"trip_id" db:"trip_id"`
	CustomerID           uuid.UUID       `json:"customer_id" db:"customer_id"`
	Status               BookingStatus   `json:"status" db:"status"`
	ReservationExpiresAt time.Time       `json:"reservation_expires_at" db:"reservation_expires_at"`
	TotalAmount          int64           `json:"total_amount" db:"total_amount"`
	Currency             string          `json:"currency" db:"currency"`
	SeatsCount           int             `json:"seats_count" db:"seats_count"`
	Metadata             BookingMetadata `json:"metadata" db:"metadata"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the booking holds seats at the given instant:
// CONFIRMED, or PENDING_PAYMENT with an unexpired reservation window.
func (b *Booking) IsActive(now time.Time) bool {
	switch b.Status {
	case BookingConfirmed:
		return true
	case BookingPendingPayment:
		return b.ReservationExpiresAt.IsZero() || b.ReservationExpiresAt.After(now)
	default:
		return false
	}
}

// BookingMetadata is the free-form pricing metadata stored with a booking.
type BookingMetadata struct {
	PricingComponents []FareComponent `json:"pricing_components,omitempty"`
	DistanceKm        float64         `json:"distance_km,omitempty"`
}

// FareComponent is one labeled contribution to a fare total.
type FareComponent struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

// BookingPassenger is one row per seat requested. Created atomically with
// its booking, never independently mutated.
type BookingPassenger struct {
	ID            uuid.UUID `json:"id" db:"id"`
	BookingID     uuid.UUID `json:"booking_id" db:"booking_id"`
	PassengerType string    `json:"passenger_type" db:"passenger_type"` // adult/child/senior
	FirstName     string    `json:"first_name" db:"first_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	Email         string    `json:"email" db:"email"`
	Phone         string    `json:"phone" db:"phone"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// BookingSeat is a positional seat-number assignment, present only when
// seat selection was requested. Maps 1:1 to a passenger by request order.
type BookingSeat struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BookingID   uuid.UUID `json:"booking_id" db:"booking_id"`
	PassengerID uuid.UUID `json:"passenger_id" db:"passenger_id"`
	SeatNumber  string    `json:"seat_number" db:"seat_number"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Ticket is issued once per passenger of a confirmed booking.
type Ticket struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	TenantID    uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	ProviderID  uuid.UUID    `json:"provider_id" db:"provider_id"`
	BookingID   uuid.UUID    `json:"booking_id" db:"booking_id"`
	PassengerID uuid.UUID    `json:"passenger_id" db:"passenger_id"`
	TicketCode  string       `json:"ticket_code" db:"ticket_code"`
	QRPayload   string       `json:"qr_payload" db:"qr_payload"`
	ValidFrom   time.Time    `json:"valid_from" db:"valid_from"`
	ValidUntil  time.Time    `json:"valid_until" db:"valid_until"`
	Status      TicketStatus `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// PricingRule is tenant/provider-scoped fare configuration. Managed by an
// external catalog surface; the core only reads it.
type PricingRule struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	TenantID   uuid.UUID         `json:"tenant_id" db:"tenant_id"`
	ProviderID *uuid.UUID        `json:"provider_id" db:"provider_id"`
	Name       string            `json:"name" db:"name"`
	Mode       string            `json:"mode" db:"mode"` // optional filter: BUS, TRAIN, ...
	Type       PricingRuleType   `json:"type" db:"type"`
	Currency   string            `json:"currency" db:"currency"`
	Config     PricingRuleConfig `json:"config" db:"config"`
	Priority   int               `json:"priority" db:"priority"` // lower evaluates first
	Active     bool              `json:"active" db:"active"`
}

// PricingRuleConfig is the typed configuration blob; which fields apply
// depends on the rule type.
type PricingRuleConfig struct {
	BaseFareAmount int64   `json:"base_fare_amount,omitempty"`
	PerKmAmount    int64   `json:"per_km_amount,omitempty"`
	MinFareAmount  int64   `json:"min_fare_amount,omitempty"`
	SurchargeType  string  `json:"surcharge_type,omitempty"` // FLAT or PERCENTAGE
	Value          float64 `json:"value,omitempty"`
}

// PaymentTransaction is one booking-payment attempt. Created when a
// reservation opens a payment session; mutated only by the webhook bridge.
type PaymentTransaction struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	TenantID     uuid.UUID         `json:"tenant_id" db:"tenant_id"`
	ProviderID   uuid.UUID         `json:"provider_id" db:"provider_id"`
	BookingID    uuid.UUID         `json:"booking_id" db:"booking_id"`
	PSP          string            `json:"psp" db:"psp"`
	PSPReference string            `json:"psp_reference" db:"psp_reference"`
	Amount       int64             `json:"amount" db:"amount"`
	Currency     string            `json:"currency" db:"currency"`
	Status       PaymentStatus     `json:"status" db:"status"`
	Metadata     map[string]string `json:"metadata" db:"metadata"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// IdempotencyKey marks a (key, scope) pair as already processed until it
// expires.
type IdempotencyKey struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Key           string    `json:"key" db:"key"`
	EndpointScope string    `json:"endpoint_scope" db:"endpoint_scope"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
}
