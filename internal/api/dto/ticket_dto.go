package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    string                `json:"category"`
	AssignedTo  *string               `json:"assigned_to"`
	Attachments []string              `json:"attachments"`
}

// UpdateTicketRequest is a partial patch; absent fields stay untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Priority    *domain.TicketPriority `json:"priority"`
	Category    *string                `json:"category"`
	AssignedTo  *string                `json:"assigned_to"`
	Attachments []string               `json:"attachments"`
	Status      *domain.TicketStatus   `json:"status"`
}

// AddCommentRequest payload. A status value moves the ticket alongside the
// comment.
type AddCommentRequest struct {
	Text   string               `json:"text"`
	Status *domain.TicketStatus `json:"status"`
}

// UserRef embeds the directory identity of a referenced user.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ParticipantResponse links a user to the ticket.
type ParticipantResponse struct {
	UserID string                 `json:"user_id"`
	Role   domain.ParticipantRole `json:"role"`
}

// HistoryEntryResponse is one status transition.
type HistoryEntryResponse struct {
	Status    domain.TicketStatus `json:"status"`
	ChangedBy string              `json:"changed_by"`
	ChangedAt time.Time           `json:"changed_at"`
}

// CommentResponse is one thread entry.
type CommentResponse struct {
	Text      string    `json:"text"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketResponse provides the full ticket aggregate.
type TicketResponse struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Priority     domain.TicketPriority  `json:"priority"`
	Status       domain.TicketStatus    `json:"status"`
	Category     string                 `json:"category"`
	CreatedBy    UserRef                `json:"created_by"`
	AssignedTo   *UserRef               `json:"assigned_to,omitempty"`
	Attachments  []string               `json:"attachments"`
	Participants []ParticipantResponse  `json:"participants"`
	History      []HistoryEntryResponse `json:"history"`
	Comments     []CommentResponse      `json:"comments"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
