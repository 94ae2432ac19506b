package dispatch

import (
	"time"

	"fleetservice/internal/actor"
	"fleetservice/internal/request"
)

// AssignInput is the dispatcher's intent for one request. A nil
// TechnicianID means unassign.
type AssignInput struct {
	ScheduledAt        *time.Time
	TechnicianID       *string
	SecondTechnicianID *string
	DispatchNotes      *string
}

// Plan validates an assignment against the current record and returns the
// updated copy plus whether the schedule window is past-dated (allowed, but
// flagged for audit). It performs no I/O; the caller checks technician
// liveness and persists under the row lock it read cur with.
func Plan(cur *request.ServiceRequest, in AssignInput, act actor.Actor, now time.Time) (*request.ServiceRequest, bool, error) {
	if !act.Is(actor.RoleDispatch, actor.RoleAdmin) {
		return nil, false, request.Errf(request.CodeForbidden, "role %s may not assign technicians", act.Role)
	}

	// Unassignment: revert to the dispatch queue and clear the window.
	if in.TechnicianID == nil {
		if cur.Status != request.StatusScheduled {
			return nil, false, request.Errf(request.CodeInvalidTransition, "request %s is not scheduled", cur.ID)
		}
		up, err := request.Apply(cur, request.StatusReadyToSchedule, act, request.Payload{}, now)
		if err != nil {
			return nil, false, err
		}
		if in.DispatchNotes != nil {
			up.DispatchNotes = *in.DispatchNotes
		}
		return up, false, nil
	}

	if in.ScheduledAt == nil {
		return nil, false, request.Errf(request.CodeMissingPayload, "scheduledAt is required")
	}
	if in.SecondTechnicianID != nil && *in.SecondTechnicianID == *in.TechnicianID {
		return nil, false, request.Errf(request.CodeMissingPayload, "second technician must differ from the primary")
	}

	payload := request.Payload{
		ScheduledAt:        in.ScheduledAt,
		TechnicianID:       in.TechnicianID,
		SecondTechnicianID: in.SecondTechnicianID,
	}

	var up *request.ServiceRequest
	var err error
	if cur.Status == request.StatusScheduled {
		// Reschedule: fields change, status does not.
		up = rescheduled(cur, payload, now)
	} else {
		up, err = request.Apply(cur, request.StatusScheduled, act, payload, now)
		if err != nil {
			return nil, false, err
		}
	}
	if in.DispatchNotes != nil {
		up.DispatchNotes = *in.DispatchNotes
	}

	pastDated := in.ScheduledAt.Before(now)
	return up, pastDated, nil
}

func rescheduled(cur *request.ServiceRequest, p request.Payload, now time.Time) *request.ServiceRequest {
	cp := *cur
	cp.ScheduledAt = p.ScheduledAt
	cp.TechnicianID = p.TechnicianID
	cp.SecondTechnicianID = p.SecondTechnicianID
	cp.UpdatedAt = now
	return &cp
}
