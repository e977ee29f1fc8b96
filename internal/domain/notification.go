package domain

import "time"

// Notification is an in-app inbox record owned exclusively by its recipient.
// It is created by the notification fanout and only ever mutated (read flag)
// or deleted by the owning user.
type Notification struct {
	ID        string
	UserID    string
	TicketID  string
	Title     string
	Read      bool
	CreatedAt time.Time

	// TicketTitle and TicketStatus are populated on listing from the
	// referenced ticket when it still exists.
	TicketTitle  *string
	TicketStatus *TicketStatus
}
