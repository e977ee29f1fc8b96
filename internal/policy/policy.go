// Package policy holds the pure authorization predicates gating ticket
// operations. Predicates never mutate their inputs and never produce errors;
// callers translate a denial into a typed forbidden result.
package policy

import "github.com/spec-kit/helpdesk-service/internal/domain"

// CanEditFields reports whether the actor may change title, description,
// priority, category, attachments or the assignee.
func CanEditFields(actor domain.Actor, ticket *domain.Ticket) bool {
	return actor.IsAdmin() || actor.ID == ticket.CreatedBy
}

// CanChangeStatus reports whether the actor may move the ticket through its
// status state machine. Only the current assignee or an admin qualifies.
func CanChangeStatus(actor domain.Actor, ticket *domain.Ticket) bool {
	if actor.IsAdmin() {
		return true
	}
	return ticket.AssignedTo != nil && actor.ID == *ticket.AssignedTo
}

// CanDelete reports whether the actor may remove the ticket permanently.
func CanDelete(actor domain.Actor, ticket *domain.Ticket) bool {
	return actor.IsAdmin() || actor.ID == ticket.CreatedBy
}

// CanView reports whether the actor may read the ticket.
func CanView(actor domain.Actor, ticket *domain.Ticket) bool {
	if actor.IsAdmin() || actor.ID == ticket.CreatedBy {
		return true
	}
	return ticket.AssignedTo != nil && actor.ID == *ticket.AssignedTo
}
