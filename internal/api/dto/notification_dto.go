package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationTicketRef carries the referenced ticket's display fields when
// the ticket still exists.
type NotificationTicketRef struct {
	Title  string              `json:"title"`
	Status domain.TicketStatus `json:"status"`
}

// NotificationResponse is one inbox record.
type NotificationResponse struct {
	ID        string                 `json:"id"`
	TicketID  string                 `json:"ticket_id"`
	Title     string                 `json:"title"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
	Ticket    *NotificationTicketRef `json:"ticket,omitempty"`
}
