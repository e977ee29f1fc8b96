package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// NotificationsHandler manages the per-user inbox endpoints.
type NotificationsHandler struct {
	notifications repository.NotificationRepository
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications repository.NotificationRepository) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// ListNotifications GET /api/notifications.
func (h *NotificationsHandler) ListNotifications(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	notifications, err := h.notifications.ListByUser(c.Context(), actor.ID)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, notificationResponse(&notifications[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkRead PUT /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	notification, err := h.notifications.MarkRead(c.Context(), actor.ID, c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("notification", nil)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponse(notification)})
}

// MarkAllRead PUT /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	if err := h.notifications.MarkAllRead(c.Context(), actor.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "all notifications marked as read"})
}

// DeleteNotification DELETE /api/notifications/:id.
func (h *NotificationsHandler) DeleteNotification(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	if err := h.notifications.Delete(c.Context(), actor.ID, c.Params("id")); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("notification", nil)
		}
		return err
	}
	return c.JSON(fiber.Map{"message": "notification deleted"})
}

// ClearAll DELETE /api/notifications.
func (h *NotificationsHandler) ClearAll(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	if err := h.notifications.DeleteAllByUser(c.Context(), actor.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "all notifications cleared"})
}

func notificationResponse(notification *domain.Notification) dto.NotificationResponse {
	resp := dto.NotificationResponse{
		ID:        notification.ID,
		TicketID:  notification.TicketID,
		Title:     notification.Title,
		Read:      notification.Read,
		CreatedAt: notification.CreatedAt,
	}
	if notification.TicketTitle != nil && notification.TicketStatus != nil {
		resp.Ticket = &dto.NotificationTicketRef{
			Title:  *notification.TicketTitle,
			Status: *notification.TicketStatus,
		}
	}
	return resp
}
