package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"geoconnect/internal/models"
	"geoconnect/internal/service/ports"
)

// TicketIssuer creates one ticket per passenger of a booking. It runs
// inside the confirmation transaction so tickets and the CONFIRMED status
// land atomically.
type TicketIssuer struct{}

func NewTicketIssuer() *TicketIssuer {
	return &TicketIssuer{}
}

func (ti *TicketIssuer) Issue(ctx context.Context, tx ports.TxStore, booking *models.Booking) ([]models.Ticket, error) {
	trip, err := tx.TripByID(ctx, booking.TripID)
	if err != nil {
		return nil, err
	}
	passengers, err := tx.PassengersByBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	validFrom, validUntil := validityWindow(trip)
	now := time.Now().UTC()

	tickets := make([]models.Ticket, 0, len(passengers))
	for _, passenger := range passengers {
		code := newTicketCode(booking.ID)
		ticket := models.Ticket{
			ID:          uuid.New(),
			TenantID:    booking.TenantID,
			ProviderID:  booking.ProviderID,
			BookingID:   booking.ID,
			PassengerID: passenger.ID,
			TicketCode:  code,
			QRPayload:   fmt.Sprintf("%s|booking=%s|passenger=%s", code, booking.ID, passenger.ID),
			ValidFrom:   validFrom,
			ValidUntil:  validUntil,
			Status:      models.TicketIssued,
			CreatedAt:   now,
		}
		if err := tx.InsertTicket(ctx, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func newTicketCode(bookingID uuid.UUID) string {
	a := strings.ReplaceAll(bookingID.String(), "-", "")
	b := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(fmt.Sprintf("TKT-%s-%s", a[:8], b[:6]))
}

// validityWindow anchors the ticket's validity to the trip's service date
// and scheduled times in the trip's own time zone. Arrival is taken on the
// same calendar day as departure; overnight trips keep the naive window.
func validityWindow(trip *models.Trip) (time.Time, time.Time) {
	loc, err := time.LoadLocation(trip.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	return atClock(trip.ServiceDate, trip.DepartureTime, loc),
		atClock(trip.ServiceDate, trip.ArrivalTime, loc)
}

func atClock(day time.Time, clock string, loc *time.Location) time.Time {
	parsed, err := time.Parse("15:04:05", clock)
	if err != nil {
		parsed, err = time.Parse("15:04", clock)
		if err != nil {
			parsed = time.Time{}
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc)
}

// TicketDocument is everything the e-ticket PDF needs.
type TicketDocument struct {
	Ticket    models.Ticket
	Passenger models.BookingPassenger
	Booking   models.Booking
	Trip      models.Trip
}

// TicketService serves the ticket read side.
type TicketService struct {
	store ports.Store
}

func NewTicketService(store ports.Store) *TicketService {
	return &TicketService{store: store}
}

func (s *TicketService) Document(ctx context.Context, tenantID, ticketID uuid.UUID) (*TicketDocument, error) {
	ticket, err := s.store.TicketByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	booking, err := s.store.BookingByID(ctx, tenantID, ticket.BookingID)
	if err != nil {
		return nil, err
	}
	trip, err := s.store.TripByID(ctx, booking.TripID)
	if err != nil {
		return nil, err
	}
	passengers, err := s.store.PassengersByBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	doc := &TicketDocument{Ticket: *ticket, Booking: *booking, Trip: *trip}
	for _, p := range passengers {
		if p.ID == ticket.PassengerID {
			doc.Passenger = p
			break
		}
	}
	return doc, nil
}
