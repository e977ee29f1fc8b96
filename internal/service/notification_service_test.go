package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type fanoutFixture struct {
	dispatcher  events.Dispatcher
	inbox       *memoryNotificationRepo
	broadcaster *fakeBroadcaster
	mailer      *fakeMailer
}

func newFanout() *fanoutFixture {
	f := &fanoutFixture{
		dispatcher:  events.NewInMemoryDispatcher(),
		inbox:       &memoryNotificationRepo{},
		broadcaster: &fakeBroadcaster{},
		mailer:      &fakeMailer{},
	}
	svc := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: f.inbox,
		UserRepo:         newMemoryUserRepo(creator, assignee, outsider, admin),
		Dispatcher:       f.dispatcher,
		Broadcaster:      f.broadcaster,
		Mailer:           f.mailer,
		Logger:           zap.NewNop(),
	}, config.NotificationConfig{EmailTimeoutSeconds: 1})
	svc.RegisterHandlers()
	return f
}

func (f *fanoutFixture) publish(t *testing.T, event events.Event) {
	t.Helper()
	require.NoError(t, f.dispatcher.Publish(context.Background(), event))
}

func TestFanoutTicketCreatedNotifiesCreator(t *testing.T) {
	f := newFanout()

	f.publish(t, events.Event{
		Type:        events.EventTicketCreated,
		TicketID:    "t1",
		TicketTitle: "Printer down",
		ActorID:     creator.ID,
		Payload:     events.TicketCreatedPayload{CreatorID: creator.ID},
	})

	require.Equal(t, []string{creator.ID}, f.inbox.recipients())
	require.Equal(t, []string{creator.ID}, f.broadcaster.recipients())
	require.Equal(t, []string{creator.Email}, f.mailer.addresses())
	require.Contains(t, f.inbox.created[0].Title, "Printer down")
}

func TestFanoutAssignedNotifiesAssignee(t *testing.T) {
	f := newFanout()

	f.publish(t, events.Event{
		Type:        events.EventTicketAssigned,
		TicketID:    "t1",
		TicketTitle: "Printer down",
		ActorID:     creator.ID,
		Payload:     events.TicketAssignedPayload{AssigneeID: assignee.ID},
	})

	require.Equal(t, []string{assignee.ID}, f.inbox.recipients())
	require.Equal(t, []string{assignee.Email}, f.mailer.addresses())
}

func TestFanoutStatusChangedRecipients(t *testing.T) {
	assigneeID := assignee.ID

	t.Run("actor is assignee, creator only", func(t *testing.T) {
		f := newFanout()
		f.publish(t, events.Event{
			Type:        events.EventTicketStatusChanged,
			TicketID:    "t1",
			TicketTitle: "Printer down",
			ActorID:     assignee.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus:  domain.TicketStatusOpen,
				NewStatus:  domain.TicketStatusResolved,
				CreatorID:  creator.ID,
				AssigneeID: &assigneeID,
			},
		})
		require.Equal(t, []string{creator.ID}, f.inbox.recipients())
	})

	t.Run("admin actor, creator and assignee", func(t *testing.T) {
		f := newFanout()
		f.publish(t, events.Event{
			Type:        events.EventTicketStatusChanged,
			TicketID:    "t1",
			TicketTitle: "Printer down",
			ActorID:     admin.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus:  domain.TicketStatusOpen,
				NewStatus:  domain.TicketStatusClosed,
				CreatorID:  creator.ID,
				AssigneeID: &assigneeID,
			},
		})
		require.ElementsMatch(t, []string{creator.ID, assignee.ID}, f.inbox.recipients())
	})

	t.Run("creator assigned to own ticket is notified once", func(t *testing.T) {
		f := newFanout()
		creatorID := creator.ID
		f.publish(t, events.Event{
			Type:        events.EventTicketStatusChanged,
			TicketID:    "t1",
			TicketTitle: "Printer down",
			ActorID:     admin.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus:  domain.TicketStatusOpen,
				NewStatus:  domain.TicketStatusClosed,
				CreatorID:  creator.ID,
				AssigneeID: &creatorID,
			},
		})
		require.Equal(t, []string{creator.ID}, f.inbox.recipients())
	})
}

func TestFanoutCommentedNotifiesCreator(t *testing.T) {
	f := newFanout()

	f.publish(t, events.Event{
		Type:        events.EventTicketCommented,
		TicketID:    "t1",
		TicketTitle: "Printer down",
		ActorID:     outsider.ID,
		Payload:     events.TicketCommentedPayload{CreatorID: creator.ID},
	})

	require.Equal(t, []string{creator.ID}, f.inbox.recipients())
}

func TestFanoutDeletedSkipsActorAndBroadcasts(t *testing.T) {
	f := newFanout()
	assigneeID := assignee.ID

	f.publish(t, events.Event{
		Type:        events.EventTicketDeleted,
		TicketID:    "t1",
		TicketTitle: "Printer down",
		ActorID:     creator.ID,
		Payload: events.TicketDeletedPayload{
			CreatorID:  creator.ID,
			AssigneeID: &assigneeID,
		},
	})

	// The deleting creator gets no inbox record; the assignee does. The
	// realtime push is a broadcast for connected sessions to self-filter.
	require.Equal(t, []string{assignee.ID}, f.inbox.recipients())
	require.Equal(t, []string{realtime.BroadcastRecipient}, f.broadcaster.recipients())
}

func TestFanoutChannelsAreIndependent(t *testing.T) {
	t.Run("failing mailer does not stop inbox or push", func(t *testing.T) {
		f := newFanout()
		f.mailer.fail = true

		f.publish(t, events.Event{
			Type:        events.EventTicketCreated,
			TicketID:    "t1",
			TicketTitle: "Printer down",
			ActorID:     creator.ID,
			Payload:     events.TicketCreatedPayload{CreatorID: creator.ID},
		})

		require.Equal(t, []string{creator.ID}, f.inbox.recipients())
		require.Equal(t, []string{creator.ID}, f.broadcaster.recipients())
		require.Empty(t, f.mailer.addresses())
	})

	t.Run("failing inbox still pushes and emails", func(t *testing.T) {
		f := newFanout()
		f.inbox.failCreate = true

		f.publish(t, events.Event{
			Type:        events.EventTicketCreated,
			TicketID:    "t1",
			TicketTitle: "Printer down",
			ActorID:     creator.ID,
			Payload:     events.TicketCreatedPayload{CreatorID: creator.ID},
		})

		require.Empty(t, f.inbox.recipients())
		require.Equal(t, []string{creator.ID}, f.broadcaster.recipients())
		require.Equal(t, []string{creator.Email}, f.mailer.addresses())
	})

	t.Run("failing broadcaster still persists and emails", func(t *testing.T) {
		f := newFanout()
		f.broadcaster.fail = true

		f.publish(t, events.Event{
			Type:        events.EventTicketCreated,
			TicketID:    "t1",
			TicketTitle: "Printer down",
			ActorID:     creator.ID,
			Payload:     events.TicketCreatedPayload{CreatorID: creator.ID},
		})

		require.Equal(t, []string{creator.ID}, f.inbox.recipients())
		require.Equal(t, []string{creator.Email}, f.mailer.addresses())
	})
}

func TestFanoutUnknownRecipientOnlySkipsEmail(t *testing.T) {
	f := newFanout()

	f.publish(t, events.Event{
		Type:        events.EventTicketCreated,
		TicketID:    "t1",
		TicketTitle: "Printer down",
		ActorID:     "ghost",
		Payload:     events.TicketCreatedPayload{CreatorID: "ghost"},
	})

	// Inbox and push do not need a directory record; email does.
	require.Equal(t, []string{"ghost"}, f.inbox.recipients())
	require.Equal(t, []string{"ghost"}, f.broadcaster.recipients())
	require.Empty(t, f.mailer.addresses())
}
