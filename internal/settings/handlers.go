package settings

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"fleetservice/internal/api"
)

type Handlers struct {
	Repo *Repository
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Repo.Get(r.Context())
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, s)
}

type PutBody struct {
	ShopName      string `json:"shopName"`
	InvoicePrefix string `json:"invoicePrefix"`
	TaxRate       string `json:"taxRate"`
}

func (h Handlers) Put(w http.ResponseWriter, r *http.Request) {
	var body PutBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}
	rate, err := decimal.NewFromString(body.TaxRate)
	if err != nil || rate.IsNegative() {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid taxRate")
		return
	}
	if body.InvoicePrefix == "" {
		body.InvoicePrefix = "INV"
	}

	s, err := h.Repo.Upsert(r.Context(), Settings{
		ShopName:      body.ShopName,
		InvoicePrefix: body.InvoicePrefix,
		TaxRate:       rate,
	})
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, s)
}
