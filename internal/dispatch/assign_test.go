package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetservice/internal/actor"
	"fleetservice/internal/request"
)

var (
	planNow  = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	dispatch = actor.Actor{ID: "dispatch-1", Role: actor.RoleDispatch}
)

func readyRequest() *request.ServiceRequest {
	return &request.ServiceRequest{
		ID:           "req-1",
		CustomerID:   "cust-1",
		VehicleID:    "veh-1",
		ServiceTitle: "Oil change",
		Status:       request.StatusReadyToSchedule,
		CreatedAt:    planNow.Add(-time.Hour),
		UpdatedAt:    planNow.Add(-time.Hour),
	}
}

func scheduledRequest(techID string) *request.ServiceRequest {
	r := readyRequest()
	r.Status = request.StatusScheduled
	sched := planNow.Add(2 * time.Hour)
	r.ScheduledAt = &sched
	r.TechnicianID = &techID
	return r
}

func strp(s string) *string { return &s }

func TestPlan_Assign(t *testing.T) {
	sched := planNow.Add(4 * time.Hour)
	up, pastDated, err := Plan(readyRequest(), AssignInput{
		ScheduledAt:  &sched,
		TechnicianID: strp("tech-1"),
	}, dispatch, planNow)
	require.NoError(t, err)
	assert.False(t, pastDated)
	assert.Equal(t, request.StatusScheduled, up.Status)
	require.NotNil(t, up.TechnicianID)
	assert.Equal(t, "tech-1", *up.TechnicianID)
	assert.Nil(t, up.SecondTechnicianID)
	require.NotNil(t, up.ScheduledAt)
	assert.True(t, up.ScheduledAt.Equal(sched))
}

func TestPlan_SecondTechnician(t *testing.T) {
	sched := planNow.Add(4 * time.Hour)

	up, _, err := Plan(readyRequest(), AssignInput{
		ScheduledAt:        &sched,
		TechnicianID:       strp("tech-1"),
		SecondTechnicianID: strp("tech-2"),
	}, dispatch, planNow)
	require.NoError(t, err)
	require.NotNil(t, up.SecondTechnicianID)
	assert.Equal(t, "tech-2", *up.SecondTechnicianID)

	_, _, err = Plan(readyRequest(), AssignInput{
		ScheduledAt:        &sched,
		TechnicianID:       strp("tech-1"),
		SecondTechnicianID: strp("tech-1"),
	}, dispatch, planNow)
	require.Error(t, err)
	assert.True(t, request.IsCode(err, request.CodeMissingPayload))
}

func TestPlan_PastDatedIsFlaggedNotRejected(t *testing.T) {
	sched := planNow.Add(-30 * time.Minute)
	up, pastDated, err := Plan(readyRequest(), AssignInput{
		ScheduledAt:  &sched,
		TechnicianID: strp("tech-1"),
	}, dispatch, planNow)
	require.NoError(t, err)
	assert.True(t, pastDated)
	assert.Equal(t, request.StatusScheduled, up.Status)
}

func TestPlan_RescheduleKeepsStatus(t *testing.T) {
	cur := scheduledRequest("tech-1")
	newSched := planNow.Add(6 * time.Hour)

	up, _, err := Plan(cur, AssignInput{
		ScheduledAt:  &newSched,
		TechnicianID: strp("tech-2"),
	}, dispatch, planNow)
	require.NoError(t, err)
	assert.Equal(t, request.StatusScheduled, up.Status)
	assert.Equal(t, "tech-2", *up.TechnicianID)
	assert.True(t, up.ScheduledAt.Equal(newSched))
	// Input record stays untouched.
	assert.Equal(t, "tech-1", *cur.TechnicianID)
}

func TestPlan_Unassign(t *testing.T) {
	up, pastDated, err := Plan(scheduledRequest("tech-1"), AssignInput{}, dispatch, planNow)
	require.NoError(t, err)
	assert.False(t, pastDated)
	assert.Equal(t, request.StatusReadyToSchedule, up.Status)
	assert.Nil(t, up.TechnicianID)
	assert.Nil(t, up.ScheduledAt)

	// Nothing to unassign outside SCHEDULED.
	_, _, err = Plan(readyRequest(), AssignInput{}, dispatch, planNow)
	require.Error(t, err)
	assert.True(t, request.IsCode(err, request.CodeInvalidTransition))
}

func TestPlan_RequiresSchedule(t *testing.T) {
	_, _, err := Plan(readyRequest(), AssignInput{TechnicianID: strp("tech-1")}, dispatch, planNow)
	require.Error(t, err)
	assert.True(t, request.IsCode(err, request.CodeMissingPayload))
}

func TestPlan_RoleGate(t *testing.T) {
	sched := planNow.Add(time.Hour)
	in := AssignInput{ScheduledAt: &sched, TechnicianID: strp("tech-1")}

	for _, role := range []actor.Role{actor.RoleCustomer, actor.RoleOffice, actor.RoleTech} {
		_, _, err := Plan(readyRequest(), in, actor.Actor{ID: "x", Role: role}, planNow)
		require.Error(t, err, "role %s", role)
		assert.True(t, request.IsCode(err, request.CodeForbidden))
	}

	_, _, err := Plan(readyRequest(), in, actor.Actor{ID: "a", Role: actor.RoleAdmin}, planNow)
	assert.NoError(t, err)
}

func TestPlan_OnlySchedulableStates(t *testing.T) {
	sched := planNow.Add(time.Hour)
	in := AssignInput{ScheduledAt: &sched, TechnicianID: strp("tech-1")}

	for _, status := range []request.Status{
		request.StatusNew, request.StatusInProgress, request.StatusCompleted,
		request.StatusBilled, request.StatusCancelled,
	} {
		r := readyRequest()
		r.Status = status
		_, _, err := Plan(r, in, dispatch, planNow)
		require.Error(t, err, "status %s", status)
		assert.True(t, request.IsCode(err, request.CodeInvalidTransition))
	}
}
