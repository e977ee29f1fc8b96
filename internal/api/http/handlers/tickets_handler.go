package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	users   repository.UserRepository
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, users repository.UserRepository) *TicketsHandler {
	return &TicketsHandler{service: ticketService, users: users}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		AssignedTo:  req.AssignedTo,
		Attachments: req.Attachments,
	}
	ticket, err := h.service.CreateTicket(c.Context(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketResponse(c, ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.ListTickets(c.Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponses(c, tickets)})
}

// ListAllTickets GET /api/admin/tickets. The router guards this behind the
// admin role.
func (h *TicketsHandler) ListAllTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListAllTickets(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponses(c, tickets)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	ticket, err := h.service.GetTicket(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(c, ticket)})
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	patch := service.TicketUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		AssignedTo:  req.AssignedTo,
		Attachments: req.Attachments,
		Status:      req.Status,
	}
	ticket, err := h.service.UpdateTicket(c.Context(), actor, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(c, ticket)})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	if err := h.service.DeleteTicket(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "ticket deleted"})
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AddComment(c.Context(), actor, c.Params("id"), req.Text, req.Status)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketResponse(c, ticket)})
}

func (h *TicketsHandler) ticketResponses(c *fiber.Ctx, tickets []domain.Ticket) []dto.TicketResponse {
	refs := newUserRefCache(h.users)
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, buildTicketResponse(c, &tickets[i], refs))
	}
	return items
}

func (h *TicketsHandler) ticketResponse(c *fiber.Ctx, ticket *domain.Ticket) dto.TicketResponse {
	return buildTicketResponse(c, ticket, newUserRefCache(h.users))
}

// userRefCache resolves directory references once per request.
type userRefCache struct {
	users repository.UserRepository
	seen  map[string]dto.UserRef
}

func newUserRefCache(users repository.UserRepository) *userRefCache {
	return &userRefCache{users: users, seen: make(map[string]dto.UserRef)}
}

func (rc *userRefCache) resolve(c *fiber.Ctx, id string) dto.UserRef {
	if ref, ok := rc.seen[id]; ok {
		return ref
	}
	ref := dto.UserRef{ID: id}
	if user, err := rc.users.GetByID(c.Context(), id); err == nil {
		ref.Name = user.Name
		ref.Email = user.Email
	}
	rc.seen[id] = ref
	return ref
}

func buildTicketResponse(c *fiber.Ctx, ticket *domain.Ticket, refs *userRefCache) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		Category:    ticket.Category,
		CreatedBy:   refs.resolve(c, ticket.CreatedBy),
		Attachments: ticket.Attachments,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
	if ticket.AssignedTo != nil {
		assignee := refs.resolve(c, *ticket.AssignedTo)
		resp.AssignedTo = &assignee
	}
	resp.Participants = make([]dto.ParticipantResponse, 0, len(ticket.Participants))
	for _, p := range ticket.Participants {
		resp.Participants = append(resp.Participants, dto.ParticipantResponse{UserID: p.UserID, Role: p.Role})
	}
	resp.History = make([]dto.HistoryEntryResponse, 0, len(ticket.History))
	for _, entry := range ticket.History {
		resp.History = append(resp.History, dto.HistoryEntryResponse{
			Status:    entry.Status,
			ChangedBy: entry.ChangedBy,
			ChangedAt: entry.ChangedAt,
		})
	}
	resp.Comments = make([]dto.CommentResponse, 0, len(ticket.Comments))
	for _, comment := range ticket.Comments {
		resp.Comments = append(resp.Comments, dto.CommentResponse{
			Text:      comment.Text,
			AddedBy:   comment.AddedBy,
			CreatedAt: comment.CreatedAt,
		})
	}
	return resp
}
