package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/mail"
)

// memoryTicketRepo implements repository.TicketRepository with the same
// all-or-nothing UpdateAtomic contract as the Postgres implementation.
type memoryTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newMemoryTicketRepo() *memoryTicketRepo {
	return &memoryTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memoryTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	// The Postgres implementation stores a nil slice as an empty array.
	if ticket.Attachments == nil {
		ticket.Attachments = []string{}
	}
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *memoryTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *memoryTicketRepo) ListAll(_ context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		result = append(result, *cloneTicket(ticket))
	}
	return result, nil
}

func (r *memoryTicketRepo) ListForUser(_ context.Context, userID string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.CreatedBy == userID || (ticket.AssignedTo != nil && *ticket.AssignedTo == userID) {
			result = append(result, *cloneTicket(ticket))
		}
	}
	return result, nil
}

func (r *memoryTicketRepo) UpdateAtomic(_ context.Context, id string, mutate func(*domain.Ticket) error) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	candidate := cloneTicket(existing)
	if err := mutate(candidate); err != nil {
		return nil, err
	}
	candidate.UpdatedAt = time.Now().UTC()
	r.tickets[id] = cloneTicket(candidate)
	return candidate, nil
}

func (r *memoryTicketRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		clone.AssignedTo = &assignee
	}
	if t.Attachments != nil {
		clone.Attachments = append([]string{}, t.Attachments...)
	}
	clone.Participants = append([]domain.Participant(nil), t.Participants...)
	clone.History = append([]domain.HistoryEntry(nil), t.History...)
	clone.Comments = append([]domain.Comment(nil), t.Comments...)
	return &clone
}

// memoryUserRepo implements repository.UserRepository.
type memoryUserRepo struct {
	users map[string]domain.User
}

func newMemoryUserRepo(users ...domain.User) *memoryUserRepo {
	repo := &memoryUserRepo{users: make(map[string]domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *memoryUserRepo) List(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		result = append(result, user)
	}
	return result, nil
}

// recordingDispatcher captures published events in order.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

// memoryNotificationRepo records inbox writes; failCreate simulates a store
// outage on the inbox channel.
type memoryNotificationRepo struct {
	mu         sync.Mutex
	created    []domain.Notification
	failCreate bool
}

func (r *memoryNotificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return pgx.ErrTxClosed
	}
	notification.ID = uuid.NewString()
	notification.CreatedAt = time.Now().UTC()
	r.created = append(r.created, *notification)
	return nil
}

func (r *memoryNotificationRepo) ListByUser(_ context.Context, userID string) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Notification
	for _, notification := range r.created {
		if notification.UserID == userID {
			result = append(result, notification)
		}
	}
	return result, nil
}

func (r *memoryNotificationRepo) MarkRead(_ context.Context, _, _ string) (*domain.Notification, error) {
	return nil, pgx.ErrNoRows
}

func (r *memoryNotificationRepo) MarkAllRead(_ context.Context, _ string) error { return nil }

func (r *memoryNotificationRepo) Delete(_ context.Context, _, _ string) error { return nil }

func (r *memoryNotificationRepo) DeleteAllByUser(_ context.Context, _ string) error { return nil }

func (r *memoryNotificationRepo) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []string
	for _, notification := range r.created {
		result = append(result, notification.UserID)
	}
	return result
}

type recordedPush struct {
	RecipientID string
	Payload     any
}

// fakeBroadcaster records realtime pushes.
type fakeBroadcaster struct {
	mu     sync.Mutex
	pushes []recordedPush
	fail   bool
}

func (b *fakeBroadcaster) Push(_ context.Context, recipientID string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errSimulated
	}
	b.pushes = append(b.pushes, recordedPush{RecipientID: recipientID, Payload: payload})
	return nil
}

func (b *fakeBroadcaster) recipients() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var result []string
	for _, push := range b.pushes {
		result = append(result, push.RecipientID)
	}
	return result
}

// fakeMailer records outbound email.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	fail bool
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errSimulated
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) addresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []string
	for _, msg := range m.sent {
		result = append(result, msg.To)
	}
	return result
}

var errSimulated = errFake("simulated channel failure")

type errFake string

func (e errFake) Error() string { return string(e) }
