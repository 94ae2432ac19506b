package request

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetservice/internal/actor"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newRequest(status Status) *ServiceRequest {
	return &ServiceRequest{
		ID:           "req-1",
		CustomerID:   "cust-1",
		VehicleID:    "veh-1",
		ServiceTitle: "Brake job",
		Status:       status,
		CreatedAt:    testNow.Add(-24 * time.Hour),
		UpdatedAt:    testNow.Add(-24 * time.Hour),
	}
}

func assigned(status Status, techID string) *ServiceRequest {
	r := newRequest(status)
	sched := testNow.Add(time.Hour)
	r.ScheduledAt = &sched
	r.TechnicianID = &techID
	return r
}

func TestApply_HappyPath(t *testing.T) {
	office := actor.Actor{ID: "office-1", Role: actor.RoleOffice}
	tech := actor.Actor{ID: "tech-1", Role: actor.RoleTech}

	r := newRequest(StatusNew)

	up, err := Apply(r, StatusReadyToSchedule, office, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusReadyToSchedule, up.Status)

	sched := testNow.Add(2 * time.Hour)
	techID := "tech-1"
	up, err = Apply(up, StatusScheduled, actor.Actor{ID: "dispatch-1", Role: actor.RoleDispatch},
		Payload{ScheduledAt: &sched, TechnicianID: &techID}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, up.Status)
	require.NotNil(t, up.TechnicianID)
	assert.Equal(t, "tech-1", *up.TechnicianID)
	require.NotNil(t, up.ScheduledAt)
	assert.True(t, up.ScheduledAt.Equal(sched))

	up, err = Apply(up, StatusInProgress, tech, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, up.Status)
	require.NotNil(t, up.StartedAt)
	assert.True(t, up.StartedAt.Equal(testNow))

	later := testNow.Add(3 * time.Hour)
	up, err = Apply(up, StatusCompleted, tech, Payload{}, later)
	require.NoError(t, err)
	require.NotNil(t, up.CompletedAt)
	assert.True(t, up.CompletedAt.Equal(later))
	assert.True(t, up.StartedAt.Before(*up.CompletedAt))

	invID := "inv-1"
	up, err = Apply(up, StatusBilled, office, Payload{InvoiceID: &invID}, later)
	require.NoError(t, err)
	assert.Equal(t, StatusBilled, up.Status)
	require.NotNil(t, up.InvoiceID)
	assert.Equal(t, "inv-1", *up.InvoiceID)
}

func TestApply_IdempotentNoOp(t *testing.T) {
	r := newRequest(StatusNew)
	up, err := Apply(r, StatusNew, actor.Actor{ID: "cust-1", Role: actor.RoleCustomer}, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, up.Status)
	assert.Equal(t, r.UpdatedAt, up.UpdatedAt)
}

// Every (from, to, role) combination outside the transition table must be
// rejected with either InvalidTransition or Forbidden, and never touch the
// input record.
func TestApply_DeniesEverythingOutsideTheTable(t *testing.T) {
	allStatuses := []Status{
		StatusNew, StatusWaitingApproval, StatusWaitingParts, StatusReadyToSchedule,
		StatusScheduled, StatusInProgress, StatusCompleted, StatusBilled,
		StatusDeclined, StatusCancelled, StatusAttentionRequired,
	}
	allRoles := []actor.Role{
		actor.RoleCustomer, actor.RoleOffice, actor.RoleDispatch, actor.RoleTech, actor.RoleAdmin,
	}

	sched := testNow.Add(time.Hour)
	techID := "tech-1"
	invID := "inv-1"
	full := Payload{ScheduledAt: &sched, TechnicianID: &techID, InvoiceID: &invID}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if from == to {
				continue
			}
			for _, role := range allRoles {
				r := assigned(from, "tech-1")
				before := *r
				up, err := Apply(r, to, actor.Actor{ID: "tech-1", Role: role}, full, testNow)
				if err == nil {
					assert.True(t, CanTransition(from, to),
						"allowed %s -> %s as %s but edge is not in the table", from, to, role)
					continue
				}
				assert.Nil(t, up)
				ok := IsCode(err, CodeInvalidTransition) || IsCode(err, CodeForbidden)
				assert.True(t, ok, "%s -> %s as %s: unexpected error %v", from, to, role, err)
				assert.Equal(t, before, *r, "input mutated on %s -> %s as %s", from, to, role)
			}
		}
	}
}

func TestApply_RoleGates(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		act  actor.Actor
		code string
	}{
		{"customer cannot triage", StatusNew, StatusReadyToSchedule, actor.Actor{ID: "c", Role: actor.RoleCustomer}, CodeForbidden},
		{"tech cannot triage", StatusNew, StatusReadyToSchedule, actor.Actor{ID: "t", Role: actor.RoleTech}, CodeForbidden},
		{"office cannot schedule", StatusReadyToSchedule, StatusScheduled, actor.Actor{ID: "o", Role: actor.RoleOffice}, CodeForbidden},
		{"dispatch cannot complete", StatusInProgress, StatusCompleted, actor.Actor{ID: "d", Role: actor.RoleDispatch}, CodeForbidden},
		{"dispatch cannot bill", StatusCompleted, StatusBilled, actor.Actor{ID: "d", Role: actor.RoleDispatch}, CodeForbidden},
		{"completed cannot revert", StatusCompleted, StatusInProgress, actor.Actor{ID: "a", Role: actor.RoleAdmin}, CodeInvalidTransition},
		{"billed is terminal", StatusBilled, StatusCompleted, actor.Actor{ID: "a", Role: actor.RoleAdmin}, CodeInvalidTransition},
		{"cannot skip to in progress", StatusReadyToSchedule, StatusInProgress, actor.Actor{ID: "a", Role: actor.RoleAdmin}, CodeInvalidTransition},
	}

	sched := testNow.Add(time.Hour)
	techID := "tech-1"
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := assigned(tc.from, "tech-1")
			_, err := Apply(r, tc.to, tc.act, Payload{ScheduledAt: &sched, TechnicianID: &techID}, testNow)
			require.Error(t, err)
			assert.True(t, IsCode(err, tc.code), "want %s, got %v", tc.code, err)
		})
	}
}

func TestApply_ScheduleRequiresPayload(t *testing.T) {
	dispatch := actor.Actor{ID: "d", Role: actor.RoleDispatch}
	r := newRequest(StatusReadyToSchedule)

	_, err := Apply(r, StatusScheduled, dispatch, Payload{}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeMissingPayload))

	sched := testNow.Add(time.Hour)
	_, err = Apply(r, StatusScheduled, dispatch, Payload{ScheduledAt: &sched}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeMissingPayload))
}

func TestApply_StartRequiresAssignedTechnician(t *testing.T) {
	// Scheduled but no technician on record: nobody can start it.
	r := newRequest(StatusScheduled)
	_, err := Apply(r, StatusInProgress, actor.Actor{ID: "a", Role: actor.RoleAdmin}, Payload{}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeMissingPayload))

	// Assigned: only that technician (or admin) may start.
	r = assigned(StatusScheduled, "tech-1")
	_, err = Apply(r, StatusInProgress, actor.Actor{ID: "tech-2", Role: actor.RoleTech}, Payload{}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeForbidden))

	up, err := Apply(r, StatusInProgress, actor.Actor{ID: "tech-1", Role: actor.RoleTech}, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, up.Status)

	up, err = Apply(r, StatusInProgress, actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, up.Status)
}

func TestApply_SecondTechnicianMayStart(t *testing.T) {
	r := assigned(StatusScheduled, "tech-1")
	second := "tech-2"
	r.SecondTechnicianID = &second

	up, err := Apply(r, StatusInProgress, actor.Actor{ID: "tech-2", Role: actor.RoleTech}, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, up.Status)
}

func TestApply_BilledRequiresInvoice(t *testing.T) {
	r := assigned(StatusCompleted, "tech-1")
	_, err := Apply(r, StatusBilled, actor.Actor{ID: "o", Role: actor.RoleOffice}, Payload{}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeMissingPayload))
}

func TestApply_StartedAtSetOnce(t *testing.T) {
	r := assigned(StatusScheduled, "tech-1")
	earlier := testNow.Add(-time.Hour)
	r.StartedAt = &earlier

	up, err := Apply(r, StatusInProgress, actor.Actor{ID: "tech-1", Role: actor.RoleTech}, Payload{}, testNow)
	require.NoError(t, err)
	assert.True(t, up.StartedAt.Equal(earlier), "startedAt must not be overwritten")
}

func TestApply_AbortEdges(t *testing.T) {
	office := actor.Actor{ID: "o", Role: actor.RoleOffice}

	for _, from := range []Status{StatusNew, StatusWaitingApproval, StatusWaitingParts, StatusReadyToSchedule, StatusScheduled} {
		up, err := Apply(assigned(from, "tech-1"), StatusCancelled, office, Payload{}, testNow)
		require.NoError(t, err, "cancel from %s", from)
		assert.Equal(t, StatusCancelled, up.Status)
	}

	// Work in progress cannot be aborted.
	_, err := Apply(assigned(StatusInProgress, "tech-1"), StatusCancelled, office, Payload{}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidTransition))

	_, err = Apply(assigned(StatusCompleted, "tech-1"), StatusDeclined, office, Payload{}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidTransition))
}

func TestApply_AttentionBranchRoundTrip(t *testing.T) {
	office := actor.Actor{ID: "o", Role: actor.RoleOffice}
	tech := actor.Actor{ID: "tech-1", Role: actor.RoleTech}

	r := assigned(StatusScheduled, "tech-1")
	flagged, err := Apply(r, StatusAttentionRequired, tech, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusAttentionRequired, flagged.Status)
	assert.Equal(t, StatusScheduled, flagged.PriorStatus)

	// Clearing returns to the prior status and keeps the assignment.
	cleared, err := Apply(flagged, StatusScheduled, office, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, cleared.Status)
	assert.Equal(t, Status(""), cleared.PriorStatus)
	require.NotNil(t, cleared.TechnicianID)
	assert.Equal(t, "tech-1", *cleared.TechnicianID)
	assert.NotNil(t, cleared.ScheduledAt)

	// Re-triage to WAITING_APPROVAL is always available.
	retriaged, err := Apply(flagged, StatusWaitingApproval, office, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingApproval, retriaged.Status)

	// Anything else out of the attention branch is not legal.
	_, err = Apply(flagged, StatusInProgress, office, Payload{}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidTransition))

	// Only office/admin clear the flag.
	_, err = Apply(flagged, StatusScheduled, tech, Payload{}, testNow)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeForbidden))
}

func TestVisible(t *testing.T) {
	r := newRequest(StatusBilled) // belongs to cust-1

	assert.True(t, r.Visible(actor.Actor{ID: "cust-1", Role: actor.RoleCustomer}))
	assert.False(t, r.Visible(actor.Actor{ID: "cust-2", Role: actor.RoleCustomer}),
		"a foreign customer must not see the record")

	for _, role := range []actor.Role{actor.RoleOffice, actor.RoleDispatch, actor.RoleTech, actor.RoleAdmin} {
		assert.True(t, r.Visible(actor.Actor{ID: "staff-1", Role: role}), "role %s", role)
	}
}

func TestApply_RetriageDropsAssignment(t *testing.T) {
	office := actor.Actor{ID: "o", Role: actor.RoleOffice}

	r := assigned(StatusScheduled, "tech-1")
	second := "tech-2"
	r.SecondTechnicianID = &second

	flagged, err := Apply(r, StatusAttentionRequired, office, Payload{}, testNow)
	require.NoError(t, err)

	// Going back through triage means the request re-enters the dispatch
	// flow; it must not carry a schedule window into WAITING_APPROVAL.
	retriaged, err := Apply(flagged, StatusWaitingApproval, office, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingApproval, retriaged.Status)
	assert.Nil(t, retriaged.ScheduledAt)
	assert.Nil(t, retriaged.TechnicianID)
	assert.Nil(t, retriaged.SecondTechnicianID)
}

func TestApply_UnassignClearsSchedule(t *testing.T) {
	r := assigned(StatusScheduled, "tech-1")
	up, err := Apply(r, StatusReadyToSchedule, actor.Actor{ID: "d", Role: actor.RoleDispatch}, Payload{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusReadyToSchedule, up.Status)
	assert.Nil(t, up.TechnicianID)
	assert.Nil(t, up.ScheduledAt)
	assert.Nil(t, up.SecondTechnicianID)
}
