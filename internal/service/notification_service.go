package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/mail"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Fanout channel labels used for logs and metrics.
const (
	channelInbox    = "inbox"
	channelRealtime = "realtime"
	channelEmail    = "email"
)

// NotificationService consumes lifecycle events and fans each one out to the
// persisted inbox, the realtime push channel and email. Channels are
// independent: one failing never blocks the others, and nothing here reaches
// back to the ticket mutation that triggered the event.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	dispatcher    events.Dispatcher
	broadcaster   realtime.Broadcaster
	mailer        mail.Mailer
	logger        *zap.Logger
	metrics       *observability.Metrics
	cfg           config.NotificationConfig
}

// NotificationDependencies bundles collaborators for the fanout.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Dispatcher       events.Dispatcher
	Broadcaster      realtime.Broadcaster
	Mailer           mail.Mailer
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		dispatcher:    deps.Dispatcher,
		broadcaster:   deps.Broadcaster,
		mailer:        deps.Mailer,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		cfg:           cfg,
	}
}

// RegisterHandlers subscribes to every lifecycle event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketCommented, n.handleTicketCommented)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketDeleted)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	title := fmt.Sprintf("Ticket %q was created", event.TicketTitle)
	n.notify(ctx, event, payload.CreatorID, title)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	title := fmt.Sprintf("You have been assigned to ticket %q", event.TicketTitle)
	n.notify(ctx, event, payload.AssigneeID, title)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	title := fmt.Sprintf("Ticket %q status changed to %s", event.TicketTitle, payload.NewStatus)
	n.notify(ctx, event, payload.CreatorID, title)
	if payload.AssigneeID != nil && *payload.AssigneeID != event.ActorID && *payload.AssigneeID != payload.CreatorID {
		n.notify(ctx, event, *payload.AssigneeID, title)
	}
	return nil
}

func (n *NotificationService) handleTicketCommented(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	title := fmt.Sprintf("New comment on ticket %q", event.TicketTitle)
	n.notify(ctx, event, payload.CreatorID, title)
	return nil
}

func (n *NotificationService) handleTicketDeleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketDeletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	title := fmt.Sprintf("Ticket %q was deleted", event.TicketTitle)

	// Deletion is a broadcast: participants get inbox and email records
	// except the actor who deleted, and every connected session sees the
	// push so open ticket views can react.
	recipients := []string{payload.CreatorID}
	if payload.AssigneeID != nil && *payload.AssigneeID != payload.CreatorID {
		recipients = append(recipients, *payload.AssigneeID)
	}
	for _, recipient := range recipients {
		if recipient == event.ActorID {
			continue
		}
		n.persistInbox(ctx, event, recipient, title)
		n.sendEmail(ctx, event, recipient, title)
	}
	n.push(ctx, event, realtime.BroadcastRecipient, &domain.Notification{
		TicketID: event.TicketID,
		Title:    title,
	})
	return nil
}

// notify runs all three channels for one recipient, independently.
func (n *NotificationService) notify(ctx context.Context, event events.Event, recipientID, title string) {
	notification := n.persistInbox(ctx, event, recipientID, title)
	if notification == nil {
		// Push a transient record so a connected session still sees the
		// event even when the inbox write failed.
		notification = &domain.Notification{
			UserID:   recipientID,
			TicketID: event.TicketID,
			Title:    title,
		}
	}
	n.push(ctx, event, recipientID, notification)
	n.sendEmail(ctx, event, recipientID, title)
}

func (n *NotificationService) persistInbox(ctx context.Context, event events.Event, recipientID, title string) *domain.Notification {
	notification := &domain.Notification{
		UserID:   recipientID,
		TicketID: event.TicketID,
		Title:    title,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		n.logFailure(channelInbox, event, recipientID, err)
		return nil
	}
	n.metrics.RecordDelivery(channelInbox)
	return notification
}

type pushPayload struct {
	Event        events.EventType    `json:"event"`
	TicketID     string              `json:"ticket_id"`
	Notification *domain.Notification `json:"notification"`
}

func (n *NotificationService) push(ctx context.Context, event events.Event, recipientID string, notification *domain.Notification) {
	if n.broadcaster == nil {
		return
	}
	payload := pushPayload{
		Event:        event.Type,
		TicketID:     event.TicketID,
		Notification: notification,
	}
	if err := n.broadcaster.Push(ctx, recipientID, payload); err != nil {
		n.logFailure(channelRealtime, event, recipientID, err)
		return
	}
	n.metrics.RecordDelivery(channelRealtime)
}

func (n *NotificationService) sendEmail(ctx context.Context, event events.Event, recipientID, title string) {
	if n.mailer == nil {
		return
	}
	user, err := n.users.GetByID(ctx, recipientID)
	if err != nil {
		n.logFailure(channelEmail, event, recipientID, err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.EmailTimeout())
	defer cancel()

	msg := mail.Message{
		To:      user.Email,
		Subject: title,
		Body:    fmt.Sprintf("%s\n\nTicket: %s", title, event.TicketID),
	}
	if err := n.mailer.Send(sendCtx, msg); err != nil {
		n.logFailure(channelEmail, event, recipientID, err)
		return
	}
	n.metrics.RecordDelivery(channelEmail)
}

func (n *NotificationService) logFailure(channel string, event events.Event, recipientID string, err error) {
	n.metrics.RecordDeliveryFailure(channel)
	n.logger.Error("notification delivery failed",
		zap.String("channel", channel),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("recipient_id", recipientID),
		zap.Error(err))
}
