package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geoconnect/internal/docs"
	"geoconnect/internal/middleware"
)

// TicketPDF - GET /api/v1/tickets/:ticket_id/pdf
func (h *Handlers) TicketPDF(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("ticket_id"))
	if err != nil {
		badRequest(c, "INVALID_TICKET_ID", "ticket_id must be a valid UUID")
		return
	}

	doc, err := h.tickets.Document(c.Request.Context(), middleware.TenantID(c), ticketID)
	if err != nil {
		respondError(c, err)
		return
	}

	pdf, err := docs.RenderETicket(doc.Ticket, doc.Passenger, doc.Booking, doc.Trip)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", doc.Ticket.TicketCode))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
