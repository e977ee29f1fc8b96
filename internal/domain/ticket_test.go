package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestTicketStatusValid(t *testing.T) {
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		require.True(t, status.Valid(), string(status))
	}
	require.False(t, domain.TicketStatus("archived").Valid())
	require.False(t, domain.TicketStatus("").Valid())
}

func TestTicketPriorityValid(t *testing.T) {
	require.True(t, domain.TicketPriorityLow.Valid())
	require.True(t, domain.TicketPriorityMedium.Valid())
	require.True(t, domain.TicketPriorityHigh.Valid())
	require.False(t, domain.TicketPriority("urgent").Valid())
}

func TestAddParticipantKeepsFirstRole(t *testing.T) {
	ticket := &domain.Ticket{}

	ticket.AddParticipant("u1", domain.ParticipantRoleCreator)
	ticket.AddParticipant("u2", domain.ParticipantRoleAssignee)
	ticket.AddParticipant("u1", domain.ParticipantRoleWatcher)
	ticket.AddParticipant("u2", domain.ParticipantRoleWatcher)

	require.Equal(t, []domain.Participant{
		{UserID: "u1", Role: domain.ParticipantRoleCreator},
		{UserID: "u2", Role: domain.ParticipantRoleAssignee},
	}, ticket.Participants)
	require.True(t, ticket.HasParticipant("u1"))
	require.False(t, ticket.HasParticipant("u3"))
}

func TestSetStatusAppendsMatchingHistory(t *testing.T) {
	ticket := &domain.Ticket{Status: domain.TicketStatusOpen}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ticket.SetStatus(domain.TicketStatusInProgress, "u2", now)
	ticket.SetStatus(domain.TicketStatusResolved, "u2", now.Add(time.Hour))

	require.Equal(t, domain.TicketStatusResolved, ticket.Status)
	require.Len(t, ticket.History, 2)
	last := ticket.History[len(ticket.History)-1]
	require.Equal(t, ticket.Status, last.Status)
	require.Equal(t, "u2", last.ChangedBy)
	require.Equal(t, now.Add(time.Hour), last.ChangedAt)
}

func TestAppendComment(t *testing.T) {
	ticket := &domain.Ticket{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ticket.AppendComment("first", "u1", now)
	ticket.AppendComment("second", "u3", now.Add(time.Minute))

	require.Equal(t, []domain.Comment{
		{Text: "first", AddedBy: "u1", CreatedAt: now},
		{Text: "second", AddedBy: "u3", CreatedAt: now.Add(time.Minute)},
	}, ticket.Comments)
}
