package api

import (
	"net/http"
	"strings"
	"time"

	"fleetservice/internal/actor"
	"fleetservice/pkg/config"
	"fleetservice/pkg/session"
)

// SessionAuth resolves the acting user from a session token.
//
// Expected header:
// - Authorization: Bearer <JWT> (HS256, signed with SESSION_SECRET)
//
// In dev, if Authorization is missing, it falls back to X-Actor-Id /
// X-Actor-Role headers to keep local testing simple.
func SessionAuth(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token := strings.TrimSpace(authz[7:])
				vs, err := session.Verify(token, cfg.SessionSecret, time.Now())
				if err != nil {
					WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session token")
					return
				}
				a := &actor.Actor{ID: vs.ActorID, Role: vs.Role}
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
				return
			}

			// Dev fallback
			if cfg.AppEnv != "prod" {
				id := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
				roleStr := strings.TrimSpace(r.Header.Get("X-Actor-Role"))
				if id != "" && roleStr != "" {
					role, err := actor.ParseRole(roleStr)
					if err != nil {
						WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unknown role")
						return
					}
					a := &actor.Actor{ID: id, Role: role}
					next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
					return
				}
			}

			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token")
		})
	}
}

// RequireRoles rejects requests whose resolved actor is not one of roles.
// Route-level gate only; edge-level role checks stay inside the lifecycle
// engine so the transition table remains the single source of truth.
func RequireRoles(roles ...actor.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := ActorFromContext(r.Context())
			if a == nil {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor identity")
				return
			}
			if !a.Is(roles...) {
				WriteError(w, http.StatusForbidden, "FORBIDDEN", "role not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
