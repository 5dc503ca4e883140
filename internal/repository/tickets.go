package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/models"
)

const selectTicket = `
	SELECT id, tenant_id, provider_id, booking_id, passenger_id,
	       ticket_code, qr_payload, valid_from, valid_until, status, created_at
	FROM tickets`

func scanTicket(row rowScanner) (*models.Ticket, error) {
	t := &models.Ticket{}
	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.ProviderID,
		&t.BookingID,
		&t.PassengerID,
		&t.TicketCode,
		&t.QRPayload,
		&t.ValidFrom,
		&t.ValidUntil,
		&t.Status,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InsertTicket writes one issued ticket. A duplicate ticket_code is a hard
// failure: codes are generated, never silently retried.
func (q *queries) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	err := q.q.QueryRowContext(ctx, `
		INSERT INTO tickets (id, tenant_id, provider_id, booking_id, passenger_id,
		                     ticket_code, qr_payload, valid_from, valid_until, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		ticket.ID,
		ticket.TenantID,
		ticket.ProviderID,
		ticket.BookingID,
		ticket.PassengerID,
		ticket.TicketCode,
		ticket.QRPayload,
		ticket.ValidFrom,
		ticket.ValidUntil,
		ticket.Status,
	).Scan(&ticket.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return fmt.Errorf("ticket code collision for %s: %w", ticket.TicketCode, err)
	}
	return err
}

// TicketsByBooking lists a booking's tickets in issuance order.
func (q *queries) TicketsByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Ticket, error) {
	rows, err := q.q.QueryContext(ctx, selectTicket+`
		WHERE booking_id = $1
		ORDER BY created_at, id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

// TicketByID loads a tenant's ticket.
func (q *queries) TicketByID(ctx context.Context, tenantID, ticketID uuid.UUID) (*models.Ticket, error) {
	row := q.q.QueryRowContext(ctx, selectTicket+` WHERE id = $1 AND tenant_id = $2`, ticketID, tenantID)
	ticket, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindTicketNotFound, "ticket not found")
	}
	return ticket, err
}
