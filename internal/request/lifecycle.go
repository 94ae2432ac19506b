package request

import (
	"time"

	"fleetservice/internal/actor"
)

// Payload carries the edge-specific data a transition may require. Fields
// are pointers so the engine can tell "absent" from "zero".
type Payload struct {
	ScheduledAt        *time.Time
	TechnicianID       *string
	SecondTechnicianID *string
	InvoiceID          *string
}

// edge is one legal move in the lifecycle. The table below is the only
// place transition legality lives; every role-specific surface calls
// through Apply rather than re-deriving its own rules.
type edge struct {
	roles []actor.Role

	// needsSchedule requires scheduledAt + technicianId in the payload.
	// Entering SCHEDULED goes through the dispatch sub-engine, which
	// supplies both as a single atomic update.
	needsSchedule bool

	// needsInvoice requires an invoice id in the payload. Entering BILLED
	// goes through the invoice deriver, never through a bare status patch.
	needsInvoice bool

	// assignedTechOnly restricts TECH actors to the request's own
	// technicians. ADMIN overrides.
	assignedTechOnly bool
}

var (
	officeAdmin   = []actor.Role{actor.RoleOffice, actor.RoleAdmin}
	dispatchAdmin = []actor.Role{actor.RoleDispatch, actor.RoleAdmin}
	techAdmin     = []actor.Role{actor.RoleTech, actor.RoleAdmin}
	anyStaff      = []actor.Role{actor.RoleOffice, actor.RoleDispatch, actor.RoleTech, actor.RoleAdmin}
)

var transitions = map[Status]map[Status]edge{
	StatusNew: {
		StatusWaitingApproval: {roles: officeAdmin},
		StatusWaitingParts:    {roles: officeAdmin},
		StatusReadyToSchedule: {roles: officeAdmin},
	},
	StatusWaitingApproval: {
		StatusReadyToSchedule: {roles: officeAdmin},
		StatusWaitingParts:    {roles: officeAdmin},
		StatusScheduled:       {roles: dispatchAdmin, needsSchedule: true},
	},
	StatusWaitingParts: {
		StatusReadyToSchedule: {roles: officeAdmin},
		StatusWaitingApproval: {roles: officeAdmin},
	},
	StatusReadyToSchedule: {
		StatusScheduled: {roles: dispatchAdmin, needsSchedule: true},
	},
	StatusScheduled: {
		StatusInProgress: {roles: techAdmin, assignedTechOnly: true},
		// Unassignment reverts to the dispatch queue; only the dispatch
		// sub-engine takes this edge (it also clears the schedule fields).
		StatusReadyToSchedule: {roles: dispatchAdmin},
	},
	StatusInProgress: {
		StatusCompleted: {roles: techAdmin, assignedTechOnly: true},
	},
	StatusCompleted: {
		StatusBilled: {roles: officeAdmin, needsInvoice: true},
	},
}

func init() {
	// Abort edges: DECLINED/CANCELLED from every abortable state. Once work
	// has started the job must run to completion and billing.
	for _, from := range []Status{
		StatusNew, StatusWaitingApproval, StatusWaitingParts,
		StatusReadyToSchedule, StatusScheduled, StatusInProgress,
		StatusAttentionRequired,
	} {
		if transitions[from] == nil {
			transitions[from] = map[Status]edge{}
		}
		if from.abortable() {
			transitions[from][StatusDeclined] = edge{roles: officeAdmin}
			transitions[from][StatusCancelled] = edge{roles: officeAdmin}
		}
	}

	// Attention side-branch: any staff role can flag an active request.
	for _, from := range []Status{
		StatusNew, StatusWaitingApproval, StatusWaitingParts,
		StatusReadyToSchedule, StatusScheduled, StatusInProgress,
	} {
		transitions[from][StatusAttentionRequired] = edge{roles: anyStaff}
	}
}

// CanTransition reports whether the edge exists at all, ignoring roles and
// payload. Dashboard queues use it to decide which actions to offer.
func CanTransition(from, to Status) bool {
	if from == StatusAttentionRequired {
		switch to {
		case StatusDeclined, StatusCancelled, StatusWaitingApproval:
			return true
		default:
			// Clearing returns to the recorded prior status; legality is
			// per-record, so anything active is a candidate here.
			return to.Active()
		}
	}
	m, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = m[to]
	return ok
}

// Apply validates and applies a status transition. It returns an updated
// copy of the request on success and never mutates its argument; callers
// persist the result under the same transaction that read it.
//
// Check order: no-op short circuit, edge legality, role authorization,
// payload completeness. No partial application on any failure.
func Apply(cur *ServiceRequest, next Status, act actor.Actor, p Payload, now time.Time) (*ServiceRequest, error) {
	if cur.Status == next {
		// Re-submitting the current status is idempotent.
		return cur.clone(), nil
	}

	e, ok := lookupEdge(cur, next)
	if !ok {
		return nil, Errf(CodeInvalidTransition, "cannot move %s from %s to %s", cur.ID, cur.Status, next)
	}

	if !act.Is(e.roles...) {
		return nil, Errf(CodeForbidden, "role %s may not move a request from %s to %s", act.Role, cur.Status, next)
	}
	if e.assignedTechOnly && act.Role == actor.RoleTech && !cur.AssignedTo(act.ID) {
		return nil, Errf(CodeForbidden, "technician %s is not assigned to request %s", act.ID, cur.ID)
	}

	if e.needsSchedule {
		if p.ScheduledAt == nil || p.TechnicianID == nil || *p.TechnicianID == "" {
			return nil, Errf(CodeMissingPayload, "scheduledAt and technicianId are required to schedule")
		}
	}
	if e.needsInvoice {
		if p.InvoiceID == nil || *p.InvoiceID == "" {
			return nil, Errf(CodeMissingPayload, "billing requires a finalized invoice")
		}
	}
	if next == StatusInProgress && cur.TechnicianID == nil {
		return nil, Errf(CodeMissingPayload, "request %s has no technician assigned", cur.ID)
	}

	up := cur.clone()
	up.Status = next
	up.UpdatedAt = now

	switch next {
	case StatusAttentionRequired:
		up.PriorStatus = cur.Status
	case StatusScheduled:
		// Clearing an attention flag back to SCHEDULED keeps the existing
		// assignment; only a scheduling edge rewrites it.
		if e.needsSchedule {
			up.ScheduledAt = p.ScheduledAt
			up.TechnicianID = p.TechnicianID
			up.SecondTechnicianID = p.SecondTechnicianID
		}
	case StatusReadyToSchedule:
		if cur.Status == StatusScheduled {
			// Unassignment clears the schedule window.
			up.ScheduledAt = nil
			up.TechnicianID = nil
			up.SecondTechnicianID = nil
		}
	case StatusInProgress:
		if up.StartedAt == nil {
			t := now
			up.StartedAt = &t
		}
	case StatusCompleted:
		if up.CompletedAt == nil {
			t := now
			up.CompletedAt = &t
		}
	case StatusBilled:
		up.InvoiceID = p.InvoiceID
	}

	if cur.Status == StatusAttentionRequired {
		up.PriorStatus = ""
		// Re-triage sends the request back through dispatch, so the old
		// schedule window and assignment do not survive into a
		// pre-SCHEDULED state.
		if next == StatusWaitingApproval {
			up.ScheduledAt = nil
			up.TechnicianID = nil
			up.SecondTechnicianID = nil
		}
	}

	return up, nil
}

func lookupEdge(cur *ServiceRequest, next Status) (edge, bool) {
	if cur.Status == StatusAttentionRequired {
		return attentionExit(cur, next)
	}
	m, ok := transitions[cur.Status]
	if !ok {
		return edge{}, false
	}
	e, ok := m[next]
	return e, ok
}

// attentionExit resolves the legal ways out of the attention branch: back
// to the recorded prior status, to WAITING_APPROVAL when the prior status
// is unknown or needs a re-triage, or aborting entirely.
func attentionExit(cur *ServiceRequest, next Status) (edge, bool) {
	switch next {
	case StatusDeclined, StatusCancelled:
		return edge{roles: officeAdmin}, true
	case StatusWaitingApproval:
		return edge{roles: officeAdmin}, true
	}
	if cur.PriorStatus != "" && next == cur.PriorStatus {
		return edge{roles: officeAdmin}, true
	}
	return edge{}, false
}
