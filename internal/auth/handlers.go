package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"fleetservice/internal/actor"
	"fleetservice/internal/api"
	"fleetservice/pkg/config"
	"fleetservice/pkg/session"
)

// Handlers issues session tokens. The real identity provider lives outside
// this service; Mint exists for local development and integration tests,
// where there is nothing upstream to hand us a token.
type Handlers struct {
	Cfg config.Config
}

const devTokenTTL = 24 * time.Hour

type MintBody struct {
	ActorID string `json:"actorId"`
	Role    string `json:"role"`
}

func (h Handlers) Mint(w http.ResponseWriter, r *http.Request) {
	if h.Cfg.AppEnv == "prod" {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "not found")
		return
	}

	var body MintBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}
	if body.ActorID == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "actorId is required")
		return
	}
	role, err := actor.ParseRole(body.Role)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "unknown role")
		return
	}

	tok, err := session.Sign(body.ActorID, role, h.Cfg.SessionSecret, devTokenTTL, time.Now())
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to sign token")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"token":     tok,
		"expiresIn": int(devTokenTTL.Seconds()),
	})
}
