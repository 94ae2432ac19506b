package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetservice/internal/actor"
	"fleetservice/pkg/config"
	"fleetservice/pkg/session"
)

func echoActor(t *testing.T, got **actor.Actor) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestSessionAuthBearer(t *testing.T) {
	cfg := config.Config{AppEnv: "prod", SessionSecret: "test-secret"}
	tok, err := session.Sign("office-1", actor.RoleOffice, cfg.SessionSecret, time.Hour, time.Now())
	require.NoError(t, err)

	var got *actor.Actor
	h := SessionAuth(cfg)(echoActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "office-1", got.ID)
	assert.Equal(t, actor.RoleOffice, got.Role)
}

func TestSessionAuthRejectsBadToken(t *testing.T) {
	cfg := config.Config{AppEnv: "prod", SessionSecret: "test-secret"}

	var got *actor.Actor
	h := SessionAuth(cfg)(echoActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, got)
}

func TestSessionAuthMissingToken(t *testing.T) {
	cfg := config.Config{AppEnv: "prod", SessionSecret: "test-secret"}

	var got *actor.Actor
	h := SessionAuth(cfg)(echoActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionAuthDevHeaderFallback(t *testing.T) {
	cfg := config.Config{AppEnv: "development", SessionSecret: "test-secret"}

	var got *actor.Actor
	h := SessionAuth(cfg)(echoActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("X-Actor-Id", "tech-1")
	req.Header.Set("X-Actor-Role", "TECH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "tech-1", got.ID)
	assert.Equal(t, actor.RoleTech, got.Role)
}

func TestSessionAuthDevFallbackDisabledInProd(t *testing.T) {
	cfg := config.Config{AppEnv: "prod", SessionSecret: "test-secret"}

	var got *actor.Actor
	h := SessionAuth(cfg)(echoActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("X-Actor-Id", "tech-1")
	req.Header.Set("X-Actor-Role", "TECH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, got)
}

func TestRequireRoles(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireRoles(actor.RoleOffice, actor.RoleAdmin)(next)

	serve := func(a *actor.Actor) int {
		req := httptest.NewRequest(http.MethodPut, "/v1/settings", nil)
		if a != nil {
			req = req.WithContext(WithActor(req.Context(), a))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(&actor.Actor{ID: "o", Role: actor.RoleOffice}))
	assert.Equal(t, http.StatusNoContent, serve(&actor.Actor{ID: "a", Role: actor.RoleAdmin}))
	assert.Equal(t, http.StatusForbidden, serve(&actor.Actor{ID: "t", Role: actor.RoleTech}))
	assert.Equal(t, http.StatusUnauthorized, serve(nil))
}
