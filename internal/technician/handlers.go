package technician

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fleetservice/internal/api"
)

type Handlers struct {
	Repo *Repository
}

type CreateBody struct {
	Name string `json:"name"`
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "name is required")
		return
	}

	t, err := h.Repo.Create(r.Context(), body.Name)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusCreated, t)
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("all") == "true"
	items, err := h.Repo.List(r.Context(), includeInactive)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if items == nil {
		items = []Technician{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.Repo.Deactivate(r.Context(), id)
	if err != nil {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "technician not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, t)
}
