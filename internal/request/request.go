package request

import (
	"time"

	"fleetservice/internal/actor"
)

// ServiceRequest is the aggregate root of the lifecycle. Status is the
// single source of truth for workflow position; every field that moves with
// it (scheduling, assignment, timestamps, invoice linkage) is written only
// by the engine operations in this package and in dispatch/invoice.
type ServiceRequest struct {
	ID           string  `json:"id"`
	CustomerID   string  `json:"customerId"`
	VehicleID    string  `json:"vehicleId"`
	ServiceTitle string  `json:"serviceTitle"`
	Description  string  `json:"description,omitempty"`
	Mileage      *int64  `json:"mileage,omitempty"`
	PO           string  `json:"po,omitempty"`
	FMC          string  `json:"fmc,omitempty"`

	Status Status `json:"status"`
	// PriorStatus records where an ATTENTION_REQUIRED request returns to
	// when the flag is cleared. Empty outside the attention branch.
	PriorStatus Status `json:"priorStatus,omitempty"`

	ScheduledAt        *time.Time `json:"scheduledAt,omitempty"`
	TechnicianID       *string    `json:"technicianId,omitempty"`
	SecondTechnicianID *string    `json:"secondTechnicianId,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Notes         string `json:"notes,omitempty"`
	DispatchNotes string `json:"dispatchNotes,omitempty"`

	CreatedByRole actor.Role `json:"createdByRole"`
	InvoiceID     *string    `json:"invoiceId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssignedTo reports whether technicianID is one of the request's assigned
// technicians.
func (r *ServiceRequest) AssignedTo(technicianID string) bool {
	if technicianID == "" {
		return false
	}
	if r.TechnicianID != nil && *r.TechnicianID == technicianID {
		return true
	}
	if r.SecondTechnicianID != nil && *r.SecondTechnicianID == technicianID {
		return true
	}
	return false
}

// Visible reports whether act may read this request and the records hanging
// off it (parts, events, invoice). Customers see only their own; staff roles
// see everything.
func (r *ServiceRequest) Visible(act actor.Actor) bool {
	return act.Role != actor.RoleCustomer || r.CustomerID == act.ID
}

func (r *ServiceRequest) clone() *ServiceRequest {
	cp := *r
	return &cp
}
