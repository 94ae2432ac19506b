package invoice

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
	"fleetservice/internal/request"
	"fleetservice/internal/settings"
	"fleetservice/pkg/db"
)

type Handlers struct {
	DB       *pgxpool.Pool
	Invoices *Repository
	Requests *request.Repository
	Settings *settings.Repository
	Notifier notify.Sender
	Log      *logrus.Logger
}

type FinalizeBody struct {
	LaborCost  string `json:"laborCost"`
	PartPrices []struct {
		PartID    string `json:"partId"`
		UnitPrice string `json:"unitPrice"`
	} `json:"partPrices"`
}

// Finalize derives the one immutable invoice from a COMPLETED request and
// advances it to BILLED, all in a single transaction. Re-submission returns
// the existing invoice rather than failing: double-clicks bill once.
func (h Handlers) Finalize(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}

	if !act.Is(actor.RoleOffice, actor.RoleAdmin) {
		api.WriteError(w, http.StatusForbidden, request.CodeForbidden, "only office may finalize invoices")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing id")
		return
	}

	var body FinalizeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}
	laborCost, err := decimal.NewFromString(body.LaborCost)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid laborCost")
		return
	}

	now := time.Now()
	var inv *Invoice
	var already bool
	err = db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		cur, err := request.GetForUpdate(r.Context(), tx, id)
		if err != nil {
			return err
		}

		already, err = Finalizable(cur)
		if err != nil {
			return err
		}
		if already {
			inv, err = GetByRequestTx(r.Context(), tx, cur.ID)
			return err
		}

		// Price overrides land on the parts before totals derive from them.
		for _, pp := range body.PartPrices {
			price, err := decimal.NewFromString(pp.UnitPrice)
			if err != nil || price.IsNegative() {
				return request.Errf(request.CodeMissingPayload, "invalid price for part %s", pp.PartID)
			}
			if err := part.UpdatePrice(r.Context(), tx, cur.ID, pp.PartID, price); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return request.Errf(request.CodeMissingPayload, "part %s does not belong to request %s", pp.PartID, cur.ID)
				}
				return err
			}
		}

		parts, err := part.ListByRequestTx(r.Context(), tx, cur.ID)
		if err != nil {
			return err
		}
		cfg, err := h.Settings.GetTx(r.Context(), tx)
		if err != nil {
			return err
		}
		totals, err := DeriveTotals(laborCost, parts, cfg.TaxRate)
		if err != nil {
			return err
		}

		inv, err = Insert(r.Context(), tx, cur.ID, cfg.InvoicePrefix, totals, now)
		if err != nil {
			return err
		}

		up, err := request.Apply(cur, request.StatusBilled, *act, request.Payload{InvoiceID: &inv.ID}, now)
		if err != nil {
			return err
		}
		if err := request.SaveTransition(r.Context(), tx, up, cur.Status); err != nil {
			return err
		}

		reqID := cur.ID
		meta := map[string]any{"invoiceId": inv.ID, "grandTotal": inv.GrandTotal}
		if err := audit.Insert(r.Context(), tx, &reqID, "INVOICE_FINALIZED", *act, meta); err != nil {
			return err
		}
		return events.Insert(r.Context(), tx, cur.ID, "INVOICE_FINALIZED", "Invoice finalized", *act, now, meta)
	})
	if err != nil {
		if request.IsCode(err, request.CodeAlreadyFinalized) {
			// Lost the race inside the tx: surface the winner's invoice.
			if existing, gerr := h.Invoices.GetByRequest(r.Context(), id); gerr == nil {
				api.WriteJSON(w, http.StatusOK, existing)
				return
			}
		}
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

	if already {
		api.WriteJSON(w, http.StatusOK, inv)
		return
	}

	notify.Async(h.Notifier, h.Log, notify.Message{
		RequestID: id,
		Event:     "INVOICE_FINALIZED",
		Summary:   "Invoice " + inv.InvoiceNumber + " finalized",
	})

	api.WriteJSON(w, http.StatusCreated, inv)
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	act := api.ActorFromContext(r.Context())
	if act == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
		return
	}

	// Ownership gate before any billing amounts leave the service. A
	// foreign request id answers 404 the same way the detail endpoint does.
	id := chi.URLParam(r, "id")
	req, err := h.Requests.GetByID(r.Context(), id)
	if err != nil || !req.Visible(*act) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
		return
	}

	inv, err := h.Invoices.GetByRequest(r.Context(), id)
	if err != nil {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, inv)
}
