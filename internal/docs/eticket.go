// Package docs renders passenger-facing documents.
package docs

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"

	"geoconnect/internal/models"
)

// RenderETicket produces the printable A4 e-ticket for one passenger.
func RenderETicket(ticket models.Ticket, passenger models.BookingPassenger, booking models.Booking, trip models.Trip) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("E-Ticket %s", ticket.TicketCode), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "E-Ticket", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, ticket.TicketCode, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	row("Passenger", fmt.Sprintf("%s %s (%s)", passenger.FirstName, passenger.LastName, passenger.PassengerType))
	row("Booking", booking.ID.String())
	row("Mode", trip.Mode)
	row("Service date", trip.ServiceDate.Format("2006-01-02"))
	row("Departure", fmt.Sprintf("%s (%s)", trip.DepartureTime, trip.TimeZone))
	row("Arrival", fmt.Sprintf("%s (%s)", trip.ArrivalTime, trip.TimeZone))
	row("Valid from", ticket.ValidFrom.Format("2006-01-02 15:04 MST"))
	row("Valid until", ticket.ValidUntil.Format("2006-01-02 15:04 MST"))
	row("Amount", fmt.Sprintf("%d %s", booking.TotalAmount, booking.Currency))
	row("Status", string(ticket.Status))
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, "Scan data", "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, ticket.QRPayload, "1", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, "Present this ticket together with a valid ID when boarding. The ticket is valid only within the window above.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render e-ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}
