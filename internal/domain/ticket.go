package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether the priority is a known level.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// DefaultCategory is applied when the creator does not pick one.
const DefaultCategory = "general"

// ParticipantRole describes the structural relationship of a user to a ticket.
type ParticipantRole string

const (
	ParticipantRoleCreator  ParticipantRole = "creator"
	ParticipantRoleAssignee ParticipantRole = "assignee"
	ParticipantRoleWatcher  ParticipantRole = "watcher"
)

// Participant links a user to a ticket for notification scoping.
type Participant struct {
	UserID string          `json:"user_id"`
	Role   ParticipantRole `json:"role"`
}

// HistoryEntry records one status transition. Entries are append-only.
type HistoryEntry struct {
	Status    TicketStatus `json:"status"`
	ChangedBy string       `json:"changed_by"`
	ChangedAt time.Time    `json:"changed_at"`
}

// Comment is an append-only thread entry on a ticket.
type Comment struct {
	Text      string    `json:"text"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Ticket is the aggregate for support requests. History, comments and
// participants are owned by the ticket and have no identity outside it.
type Ticket struct {
	ID           string
	Title        string
	Description  string
	Priority     TicketPriority
	Status       TicketStatus
	Category     string
	CreatedBy    string
	AssignedTo   *string
	Attachments  []string
	Participants []Participant
	History      []HistoryEntry
	Comments     []Comment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AddParticipant records a user's relationship to the ticket. A user already
// present keeps their original role; no duplicate entries are created.
func (t *Ticket) AddParticipant(userID string, role ParticipantRole) {
	if t.HasParticipant(userID) {
		return
	}
	t.Participants = append(t.Participants, Participant{UserID: userID, Role: role})
}

// HasParticipant reports whether the user is already linked to the ticket.
func (t *Ticket) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// SetStatus moves the ticket to the given status and appends the matching
// history entry. The current status always equals the status of the last
// history entry.
func (t *Ticket) SetStatus(status TicketStatus, changedBy string, at time.Time) {
	t.Status = status
	t.History = append(t.History, HistoryEntry{
		Status:    status,
		ChangedBy: changedBy,
		ChangedAt: at,
	})
}

// AppendComment adds a comment to the thread. Comments are never edited or
// removed.
func (t *Ticket) AppendComment(text, addedBy string, at time.Time) {
	t.Comments = append(t.Comments, Comment{
		Text:      text,
		AddedBy:   addedBy,
		CreatedAt: at,
	})
}
