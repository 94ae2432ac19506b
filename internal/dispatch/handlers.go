package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"fleetservice/internal/api"
	"fleetservice/internal/audit"
	"fleetservice/internal/events"
	"fleetservice/internal/notify"
	"fleetservice/internal/request"
	"fleetservice/internal/technician"
	"fleetservice/pkg/db"
)

type Handlers struct {
	DB       *pgxpool.Pool
	Requests *request.Repository
	Notifier notify.Sender
	Log      *logrus.Logger
}

type AssignBody struct {
	ScheduledAt        *time.Time `json:"scheduledAt"`
	TechnicianID       *string    `json:"technicianId"`
	SecondTechnicianID *string    `json:"secondTechnicianId"`
	DispatchNotes      *string    `json:"dispatchNotes"`
}

// Assign binds technicians and a schedule window to a request as one
// atomic update, advancing status to SCHEDULED (or rescheduling in place).
// technicianId = null unassigns. Serialized against concurrent dispatchers
// by the request row lock.
func (h Handlers) Assign(w http.ResponseWriter, r *http.Request) {
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

	var body AssignBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	now := time.Now()
	var updated *request.ServiceRequest
	var pastDated bool
	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		cur, err := request.GetForUpdate(r.Context(), tx, id)
		if err != nil {
			return err
		}

		in := AssignInput{
			ScheduledAt:        body.ScheduledAt,
			TechnicianID:       body.TechnicianID,
			SecondTechnicianID: body.SecondTechnicianID,
			DispatchNotes:      body.DispatchNotes,
		}
		up, past, err := Plan(cur, in, *act, now)
		if err != nil {
			return err
		}

		// Liveness checks under the same transaction as the write.
		for _, techID := range []*string{up.TechnicianID, up.SecondTechnicianID} {
			if techID == nil {
				continue
			}
			t, err := technician.GetTx(r.Context(), tx, *techID)
			if err != nil {
				return request.Errf(request.CodeMissingPayload, "technician %s not found", *techID)
			}
			if !t.Active {
				return request.Errf(request.CodeMissingPayload, "technician %s is inactive", *techID)
			}
		}

		if err := request.SaveAssignment(r.Context(), tx, up, cur.Status); err != nil {
			return err
		}

		reqID := cur.ID
		meta := map[string]any{
			"from":         cur.Status,
			"to":           up.Status,
			"technicianId": body.TechnicianID,
			"scheduledAt":  body.ScheduledAt,
		}
		if past {
			meta["pastDated"] = true
		}
		eventType := "TECHNICIAN_ASSIGNED"
		if body.TechnicianID == nil {
			eventType = "TECHNICIAN_UNASSIGNED"
		} else if cur.Status == request.StatusScheduled {
			eventType = "RESCHEDULED"
		}
		if err := audit.Insert(r.Context(), tx, &reqID, eventType, *act, meta); err != nil {
			return err
		}
		if err := events.Insert(r.Context(), tx, cur.ID, eventType, "Assignment updated", *act, now, meta); err != nil {
			return err
		}

		updated = up
		pastDated = past
		return nil
	})
	if err != nil {
		if request.WriteEngineError(w, err) {
			return
		}
		if errors.Is(err, pgx.ErrNoRows) {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
			return
		}
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	if pastDated {
		h.Log.WithFields(logrus.Fields{
			"requestId":   updated.ID,
			"scheduledAt": body.ScheduledAt,
		}).Warn("past-dated schedule recorded")
	}

	notify.Async(h.Notifier, h.Log, notify.Message{
		RequestID: updated.ID,
		Event:     "ASSIGNMENT_CHANGED",
		Summary:   "Request " + updated.ID + " assignment updated",
	})

	api.WriteJSON(w, http.StatusOK, updated)
}
