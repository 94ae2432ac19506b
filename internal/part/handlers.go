package part

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"fleetservice/internal/api"
)

// Handlers covers the parts catalog. Request-scoped part operations live
// with the request handlers, under the request row lock.
type Handlers struct {
	Repo *Repository
}

type UpsertCatalogBody struct {
	PartNumber string `json:"partNumber"`
	Name       string `json:"name"`
	UnitCost   string `json:"unitCost"`
	UnitPrice  string `json:"unitPrice"`
}

func (h Handlers) UpsertCatalog(w http.ResponseWriter, r *http.Request) {
	var body UpsertCatalogBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}
	if body.PartNumber == "" || body.Name == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "partNumber and name are required")
		return
	}
	cost, err := decimal.NewFromString(body.UnitCost)
	if err != nil || cost.IsNegative() {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid unitCost")
		return
	}
	price, err := decimal.NewFromString(body.UnitPrice)
	if err != nil || price.IsNegative() {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid unitPrice")
		return
	}

	p, err := h.Repo.UpsertCatalog(r.Context(), body.PartNumber, body.Name, cost, price)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

func (h Handlers) ListCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repo.ListCatalog(r.Context())
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if items == nil {
		items = []CatalogPart{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
