package request

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fleetservice/internal/actor"
	"fleetservice/internal/api"
	"fleetservice/internal/audit"
	"fleetservice/internal/events"
	"fleetservice/internal/notify"
	"fleetservice/internal/part"
	"fleetservice/pkg/db"
)

type Handlers struct {
	DB       *pgxpool.Pool
	Requests *Repository
	Parts    *part.Repository
	Audits   *audit.Repository
	Notifier notify.Sender
	Log      *logrus.Logger
}

// WriteEngineError maps lifecycle error codes to HTTP statuses. Dispatch
// and invoice handlers share it so every surface reports the same way.
func WriteEngineError(w http.ResponseWriter, err error) bool {
	var le LifecycleError
	if !errors.As(err, &le) {
		return false
	}
	status := http.StatusConflict
	switch le.Code {
	case CodeForbidden:
		status = http.StatusForbidden
	case CodeMissingPayload:
		status = http.StatusBadRequest
	}
	api.WriteError(w, status, le.Code, le.Message)
	return true
}

type CreateRequestBody struct {
	CustomerID   string `json:"customerId"`
	VehicleID    string `json:"vehicleId"`
	ServiceTitle string `json:"serviceTitle"`
	Description  string `json:"description"`
	Mileage      *int64 `json:"mileage"`
	PO           string `json:"po"`
	FMC          string `json:"fmc"`
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}
	if !act.Is(actor.RoleCustomer, actor.RoleOffice, actor.RoleAdmin) {
		api.WriteError(w, http.StatusForbidden, CodeForbidden, "role may not create requests")
		return
	}

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}
	if act.Role == actor.RoleCustomer {
		// Customers file for themselves regardless of what the body says.
		body.CustomerID = act.ID
	}
	if body.CustomerID == "" || body.VehicleID == "" || body.ServiceTitle == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "customerId, vehicleId and serviceTitle are required")
		return
	}

	req, err := h.Requests.Create(r.Context(), CreateInput{
		CustomerID:   body.CustomerID,
		VehicleID:    body.VehicleID,
		ServiceTitle: body.ServiceTitle,
		Description:  body.Description,
		Mileage:      body.Mileage,
		PO:           body.PO,
		FMC:          body.FMC,
	}, act.Role)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	notify.Async(h.Notifier, h.Log, notify.Message{
		RequestID: req.ID,
		Event:     "REQUEST_CREATED",
		Summary:   "Service request created: " + req.ServiceTitle,
	})

	api.WriteJSON(w, http.StatusCreated, req)
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}

	f := Filter{}
	switch r.URL.Query().Get("queue") {
	case "dispatch":
		f.Statuses = DispatchQueue
	case "tech-today":
		today := time.Now()
		f.Statuses = []Status{StatusScheduled, StatusInProgress}
		f.ScheduledOn = &today
		f.TechnicianID = act.ID
	case "":
		if s := r.URL.Query().Get("status"); s != "" {
			st, err := ParseStatus(s)
			if err != nil {
				api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid status")
				return
			}
			f.Statuses = []Status{st}
		}
	default:
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "unknown queue")
		return
	}

	// Customers only ever see their own requests.
	if act.Role == actor.RoleCustomer {
		f.CustomerID = act.ID
	}

	items, err := h.Requests.List(r.Context(), f)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}

	id := chi.URLParam(r, "id")
	req, err := h.Requests.GetByID(r.Context(), id)
	if err != nil {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
		return
	}
	if !req.Visible(*act) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
		return
	}

	parts, err := h.Parts.ListByRequest(r.Context(), req.ID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if parts == nil {
		parts = []part.RequestPart{}
	}

	evs, err := events.ListByRequest(r.Context(), h.DB, req.ID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"request": req,
		"parts":   parts,
		"events":  evs,
	})
}

// AuditTrail returns the request's audit rows, oldest first.
func (h Handlers) AuditTrail(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}
	if !act.Is(actor.RoleOffice, actor.RoleAdmin) {
		api.WriteError(w, http.StatusForbidden, CodeForbidden, "audit trail is office-only")
		return
	}

	id := chi.URLParam(r, "id")
	entries, err := h.Audits.ListByRequest(r.Context(), id)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": entries})
}

type PatchStatusBody struct {
	Status string `json:"status"`
}

// PatchStatus is the generic transition endpoint. Scheduling and billing
// edges carry required payloads supplied only by the dispatch and invoice
// endpoints, so those edges fail here with MISSING_PAYLOAD.
func (h Handlers) PatchStatus(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}

	var body PatchStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}
	next, err := ParseStatus(body.Status)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid status")
		return
	}

	h.transition(w, r, next, "STATUS_CHANGED")
}

// Start moves SCHEDULED → IN_PROGRESS for the assigned technician (or an
// admin override) and stamps startedAt exactly once.
func (h Handlers) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, StatusInProgress, "JOB_STARTED")
}

// Complete moves IN_PROGRESS → COMPLETED and stamps completedAt.
func (h Handlers) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, StatusCompleted, "JOB_COMPLETED")
}

func (h Handlers) transition(w http.ResponseWriter, r *http.Request, next Status, eventType string) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing id")
		return
	}

	now := time.Now()
	var updated *ServiceRequest
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		cur, err := GetForUpdate(r.Context(), tx, id)
		if err != nil {
			return err
		}

		up, err := Apply(cur, next, *act, Payload{}, now)
		if err != nil {
			return err
		}
		if up.Status == cur.Status {
			// Idempotent no-op; nothing to persist or record.
			updated = up
			return nil
		}

		if err := SaveTransition(r.Context(), tx, up, cur.Status); err != nil {
			return err
		}

		reqID := cur.ID
		meta := map[string]any{"from": cur.Status, "to": up.Status}
		if err := audit.Insert(r.Context(), tx, &reqID, eventType, *act, meta); err != nil {
			return err
		}
		if err := events.Insert(r.Context(), tx, cur.ID, eventType, "Status changed", *act, now, meta); err != nil {
			return err
		}

		updated = up
		return nil
	})
	if err != nil {
		if WriteEngineError(w, err) {
			return
		}
		if errors.Is(err, pgx.ErrNoRows) {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
			return
		}
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	notify.Async(h.Notifier, h.Log, notify.Message{
		RequestID: updated.ID,
		Event:     eventType,
		Summary:   "Request " + updated.ID + " is now " + string(updated.Status),
	})

	api.WriteJSON(w, http.StatusOK, updated)
}

type PatchMetadataBody struct {
	ServiceTitle *string `json:"serviceTitle"`
	Description  *string `json:"description"`
	Mileage      *int64  `json:"mileage"`
	PO           *string `json:"po"`
	FMC          *string `json:"fmc"`
}

func (h Handlers) PatchMetadata(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}
	if !act.Is(actor.RoleOffice, actor.RoleAdmin) {
		api.WriteError(w, http.StatusForbidden, CodeForbidden, "only office may edit request metadata")
		return
	}

	id := chi.URLParam(r, "id")
	var body PatchMetadataBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	req, err := h.Requests.UpdateMetadata(r.Context(), id, MetadataInput{
		ServiceTitle: body.ServiceTitle,
		Description:  body.Description,
		Mileage:      body.Mileage,
		PO:           body.PO,
		FMC:          body.FMC,
	})
	if err != nil {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, req)
}

type PatchNotesBody struct {
	Notes         *string `json:"notes"`
	DispatchNotes *string `json:"dispatchNotes"`
}

// PatchNotes writes the free-text note fields. Each field is owned by one
// role: notes by OFFICE, dispatchNotes by DISPATCH; ADMIN may write both.
func (h Handlers) PatchNotes(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}

	id := chi.URLParam(r, "id")
	var body PatchNotesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}
	if body.Notes == nil && body.DispatchNotes == nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "no note field provided")
		return
	}

	var req *ServiceRequest
	var err error
	if body.Notes != nil {
		if !act.Is(actor.RoleOffice, actor.RoleAdmin) {
			api.WriteError(w, http.StatusForbidden, CodeForbidden, "notes are office-owned")
			return
		}
		req, err = h.Requests.UpdateNotes(r.Context(), id, *body.Notes)
		if err != nil {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
			return
		}
	}
	if body.DispatchNotes != nil {
		if !act.Is(actor.RoleDispatch, actor.RoleAdmin) {
			api.WriteError(w, http.StatusForbidden, CodeForbidden, "dispatchNotes are dispatch-owned")
			return
		}
		req, err = h.Requests.UpdateDispatchNotes(r.Context(), id, *body.DispatchNotes)
		if err != nil {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
			return
		}
	}

	api.WriteJSON(w, http.StatusOK, req)
}

type AddPartBody struct {
	PartNumber string  `json:"partNumber"`
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	UnitCost   *string `json:"unitCost"`
	UnitPrice  *string `json:"unitPrice"`
}

// AddPart attaches a part to a request. Cost/price default from the parts
// catalog when a part number matches; explicit values win. Parts cannot be
// added once the request is billed or aborted.
func (h Handlers) AddPart(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}
	if !act.Is(actor.RoleOffice, actor.RoleTech, actor.RoleAdmin) {
		api.WriteError(w, http.StatusForbidden, CodeForbidden, "role may not add parts")
		return
	}

	id := chi.URLParam(r, "id")
	var body AddPartBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}
	if body.Quantity <= 0 {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "quantity must be > 0")
		return
	}

	in := part.AddInput{
		PartNumber: body.PartNumber,
		Name:       body.Name,
		Quantity:   body.Quantity,
	}
	if body.PartNumber != "" {
		if cat, err := h.Parts.FindCatalogByNumber(r.Context(), body.PartNumber); err == nil {
			if in.Name == "" {
				in.Name = cat.Name
			}
			in.UnitCost = cat.UnitCost
			in.UnitPrice = cat.UnitPrice
		}
	}
	if ok := overrideDecimal(&in.UnitCost, body.UnitCost); !ok {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid unitCost")
		return
	}
	if ok := overrideDecimal(&in.UnitPrice, body.UnitPrice); !ok {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid unitPrice")
		return
	}
	if in.Name == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "part name is required")
		return
	}

	var created *part.RequestPart
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		cur, err := GetForUpdate(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return Errf(CodeInvalidTransition, "request %s is %s; parts are closed", cur.ID, cur.Status)
		}

		created, err = part.Add(r.Context(), tx, cur.ID, in)
		if err != nil {
			return err
		}

		reqID := cur.ID
		return audit.Insert(r.Context(), tx, &reqID, "PART_ADDED", *act, map[string]any{
			"partId": created.ID, "name": created.Name, "quantity": created.Quantity,
		})
	})
	if err != nil {
		if WriteEngineError(w, err) {
			return
		}
		if errors.Is(err, pgx.ErrNoRows) {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
			return
		}
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	api.WriteJSON(w, http.StatusCreated, created)
}

func overrideDecimal(dst *decimal.Decimal, s *string) bool {
	if s == nil {
		return true
	}
	d, err := decimal.NewFromString(*s)
	if err != nil || d.IsNegative() {
		return false
	}
	*dst = d
	return true
}
