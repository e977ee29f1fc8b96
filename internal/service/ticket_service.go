package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketService drives the ticket lifecycle: it validates operations, applies
// the status state machine, keeps the embedded history/participants/comments
// consistent and emits lifecycle events after each committed mutation.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    string
	AssignedTo  *string
	Attachments []string
}

// TicketUpdateInput is a partial patch. Nil fields are absent from the patch.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
	Category    *string
	AssignedTo  *string
	Attachments []string
	Status      *domain.TicketStatus
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket opens a new ticket for the actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, util.NewValidationError("title and description are required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, util.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = domain.DefaultCategory
	}

	var assignee *domain.User
	if input.AssignedTo != nil && *input.AssignedTo != "" {
		user, err := s.lookupUser(ctx, *input.AssignedTo)
		if err != nil {
			return nil, err
		}
		assignee = user
	}

	now := time.Now().UTC()
	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		Category:    category,
		CreatedBy:   actor.ID,
		Attachments: input.Attachments,
	}
	ticket.History = []domain.HistoryEntry{{
		Status:    domain.TicketStatusOpen,
		ChangedBy: actor.ID,
		ChangedAt: now,
	}}
	ticket.AddParticipant(actor.ID, domain.ParticipantRoleCreator)
	if assignee != nil {
		ticket.AssignedTo = &assignee.ID
		ticket.AddParticipant(assignee.ID, domain.ParticipantRoleAssignee)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.NewInternalError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:        events.EventTicketCreated,
		TicketID:    ticket.ID,
		TicketTitle: ticket.Title,
		ActorID:     actor.ID,
		Payload: events.TicketCreatedPayload{
			CreatorID: ticket.CreatedBy,
			Priority:  ticket.Priority,
			Category:  ticket.Category,
		},
	})
	if assignee != nil {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventTicketAssigned,
			TicketID:    ticket.ID,
			TicketTitle: ticket.Title,
			ActorID:     actor.ID,
			Payload:     events.TicketAssignedPayload{AssigneeID: assignee.ID},
		})
	}
	return ticket, nil
}

// ListTickets returns the role-scoped view: admins see everything, everyone
// else sees tickets they raised or are assigned to.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor) ([]domain.Ticket, error) {
	if actor.IsAdmin() {
		return s.tickets.ListAll(ctx)
	}
	return s.tickets.ListForUser(ctx, actor.ID)
}

// ListAllTickets returns every ticket regardless of the caller; the transport
// layer guards this behind the admin role.
func (s *TicketService) ListAllTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.ListAll(ctx)
}

// GetTicket fetches a ticket, enforcing view access.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if !policy.CanView(actor, ticket) {
		return nil, util.NewForbidden("not authorized to view this ticket")
	}
	return ticket, nil
}

// UpdateTicket applies a partial patch. Base fields apply only when the actor
// may edit them and are silently skipped otherwise; a status change is gated
// by the assignee/admin rule and aborts the whole update on denial.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, id string, patch TicketUpdateInput) (*domain.Ticket, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, util.NewValidationError("unknown status", map[string]any{"status": *patch.Status})
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, util.NewValidationError("unknown priority", map[string]any{"priority": *patch.Priority})
	}

	// The directory lookup happens outside the transaction, but its result
	// only matters inside the edit branch: for an actor who cannot edit
	// fields the patch is silently skipped, lookup failure included.
	var newAssignee *domain.User
	var assigneeErr error
	if patch.AssignedTo != nil && *patch.AssignedTo != "" {
		newAssignee, assigneeErr = s.lookupUser(ctx, *patch.AssignedTo)
	}

	var emitted []events.Event
	ticket, err := s.tickets.UpdateAtomic(ctx, id, func(t *domain.Ticket) error {
		emitted = emitted[:0]
		now := time.Now().UTC()

		if policy.CanEditFields(actor, t) {
			if assigneeErr != nil {
				return assigneeErr
			}
			applyBaseFields(t, patch)
			if newAssignee != nil && (t.AssignedTo == nil || *t.AssignedTo != newAssignee.ID) {
				t.AssignedTo = &newAssignee.ID
				t.AddParticipant(newAssignee.ID, domain.ParticipantRoleAssignee)
				emitted = append(emitted, events.Event{
					Type:        events.EventTicketAssigned,
					TicketID:    t.ID,
					TicketTitle: t.Title,
					ActorID:     actor.ID,
					Payload:     events.TicketAssignedPayload{AssigneeID: newAssignee.ID},
				})
			}
		}

		if patch.Status != nil && *patch.Status != t.Status {
			if !policy.CanChangeStatus(actor, t) {
				return util.NewForbidden("not authorized to change status")
			}
			old := t.Status
			t.SetStatus(*patch.Status, actor.ID, now)
			emitted = append(emitted, events.Event{
				Type:        events.EventTicketStatusChanged,
				TicketID:    t.ID,
				TicketTitle: t.Title,
				ActorID:     actor.ID,
				Payload: events.TicketStatusChangedPayload{
					OldStatus:  old,
					NewStatus:  *patch.Status,
					CreatorID:  t.CreatedBy,
					AssigneeID: t.AssignedTo,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err)
	}

	for _, event := range emitted {
		s.publishEvent(ctx, event)
	}
	return ticket, nil
}

// DeleteTicket removes a ticket permanently.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, id string) error {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return mapTicketErr(err)
	}
	if !policy.CanDelete(actor, ticket) {
		return util.NewForbidden("not authorized to delete this ticket")
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return mapTicketErr(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:        events.EventTicketDeleted,
		TicketID:    ticket.ID,
		TicketTitle: ticket.Title,
		ActorID:     actor.ID,
		Payload: events.TicketDeletedPayload{
			CreatorID:  ticket.CreatedBy,
			AssigneeID: ticket.AssignedTo,
		},
	})
	return nil
}

// AddComment appends a comment and optionally moves the status. The comment
// path applies status changes without the assignee/admin gate; the update
// path is the stricter one.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, id, text string, status *domain.TicketStatus) (*domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, util.NewValidationError("comment text is required", nil)
	}
	if status != nil && !status.Valid() {
		return nil, util.NewValidationError("unknown status", map[string]any{"status": *status})
	}

	var emitted []events.Event
	ticket, err := s.tickets.UpdateAtomic(ctx, id, func(t *domain.Ticket) error {
		emitted = emitted[:0]
		now := time.Now().UTC()

		t.AppendComment(text, actor.ID, now)
		emitted = append(emitted, events.Event{
			Type:        events.EventTicketCommented,
			TicketID:    t.ID,
			TicketTitle: t.Title,
			ActorID:     actor.ID,
			Payload: events.TicketCommentedPayload{
				CreatorID:   t.CreatedBy,
				BodyPreview: stringPreview(text, 120),
			},
		})

		if status != nil && *status != t.Status {
			old := t.Status
			t.SetStatus(*status, actor.ID, now)
			emitted = append(emitted, events.Event{
				Type:        events.EventTicketStatusChanged,
				TicketID:    t.ID,
				TicketTitle: t.Title,
				ActorID:     actor.ID,
				Payload: events.TicketStatusChangedPayload{
					OldStatus:  old,
					NewStatus:  *status,
					CreatorID:  t.CreatedBy,
					AssigneeID: t.AssignedTo,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err)
	}

	for _, event := range emitted {
		s.publishEvent(ctx, event)
	}
	return ticket, nil
}

func applyBaseFields(t *domain.Ticket, patch TicketUpdateInput) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) != "" {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) != "" {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) != "" {
		t.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Attachments != nil {
		t.Attachments = patch.Attachments
	}
}

func (s *TicketService) lookupUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewValidationError("assigned user does not exist", map[string]any{"user_id": id})
		}
		return nil, util.NewInternalError(err)
	}
	return user, nil
}

func mapTicketErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return util.NewNotFound("ticket", nil)
	}
	var domainErr *util.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return util.NewInternalError(err)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
