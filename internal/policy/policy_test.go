package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

func assignedTicket() *domain.Ticket {
	assignee := "u2"
	return &domain.Ticket{ID: "t1", CreatedBy: "u1", AssignedTo: &assignee}
}

func TestPolicyPredicates(t *testing.T) {
	adminActor := domain.Actor{ID: "u9", Role: domain.RoleAdmin}
	creatorActor := domain.Actor{ID: "u1", Role: "IT"}
	assigneeActor := domain.Actor{ID: "u2", Role: "IT"}
	otherActor := domain.Actor{ID: "u3", Role: "HR"}

	cases := []struct {
		name      string
		actor     domain.Actor
		canEdit   bool
		canStatus bool
		canDelete bool
		canView   bool
	}{
		{name: "admin", actor: adminActor, canEdit: true, canStatus: true, canDelete: true, canView: true},
		{name: "creator", actor: creatorActor, canEdit: true, canStatus: false, canDelete: true, canView: true},
		{name: "assignee", actor: assigneeActor, canEdit: false, canStatus: true, canDelete: false, canView: true},
		{name: "unrelated user", actor: otherActor, canEdit: false, canStatus: false, canDelete: false, canView: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ticket := assignedTicket()
			require.Equal(t, tc.canEdit, policy.CanEditFields(tc.actor, ticket))
			require.Equal(t, tc.canStatus, policy.CanChangeStatus(tc.actor, ticket))
			require.Equal(t, tc.canDelete, policy.CanDelete(tc.actor, ticket))
			require.Equal(t, tc.canView, policy.CanView(tc.actor, ticket))
		})
	}
}

func TestPolicyUnassignedTicket(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", CreatedBy: "u1"}

	// With no assignee only admins may change status; the creator still
	// views, edits and deletes.
	require.False(t, policy.CanChangeStatus(domain.Actor{ID: "u1", Role: "IT"}, ticket))
	require.True(t, policy.CanChangeStatus(domain.Actor{ID: "u9", Role: domain.RoleAdmin}, ticket))
	require.True(t, policy.CanView(domain.Actor{ID: "u1", Role: "IT"}, ticket))
	require.False(t, policy.CanView(domain.Actor{ID: "u3", Role: "HR"}, ticket))
}

func TestPolicyCreatorWhoIsAlsoAssignee(t *testing.T) {
	self := "u1"
	ticket := &domain.Ticket{ID: "t1", CreatedBy: "u1", AssignedTo: &self}
	actor := domain.Actor{ID: "u1", Role: "Sales"}

	require.True(t, policy.CanEditFields(actor, ticket))
	require.True(t, policy.CanChangeStatus(actor, ticket))
	require.True(t, policy.CanDelete(actor, ticket))
	require.True(t, policy.CanView(actor, ticket))
}
