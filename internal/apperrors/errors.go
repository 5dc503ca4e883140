package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, client-visible error code for a domain failure.
type Kind string

const (
	KindCapacityExceeded   Kind = "CAPACITY_EXCEEDED"
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindTripNotFound       Kind = "TRIP_NOT_FOUND"
	KindBookingNotFound    Kind = "BOOKING_NOT_FOUND"
	KindTicketNotFound     Kind = "TICKET_NOT_FOUND"
	KindPaymentNotFound    Kind = "PAYMENT_NOT_FOUND"
	KindIdempotencyKeyUsed Kind = "IDEMPOTENCY_KEY_USED"
	KindPricingUnavailable Kind = "PRICING_UNAVAILABLE"
	KindSeatTaken          Kind = "SEAT_TAKEN"
)

// Error is a domain failure carrying a stable kind. Infrastructure errors
// are wrapped with fmt.Errorf and never get a kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a domain error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the human-readable message without the kind prefix, or
// err.Error() for errors that carry no kind.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the status the boundary should emit.
// Unknown kinds (including infrastructure errors) map to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindTripNotFound, KindBookingNotFound, KindTicketNotFound, KindPaymentNotFound:
		return http.StatusNotFound
	case KindCapacityExceeded, KindInvalidTransition, KindIdempotencyKeyUsed, KindSeatTaken:
		return http.StatusConflict
	case KindPricingUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
