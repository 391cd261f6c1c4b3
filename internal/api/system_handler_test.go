package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler(t *testing.T) {
	h := NewSystemHandler(config.KeycloakConfig{
		URL:          "http://localhost:8080",
		Realm:        "taskflow",
		ClientID:     "taskflow-client",
		ClientSecret: "do-not-leak",
	}, func() time.Time { return testNow })

	r := chi.NewRouter()
	r.Get("/api/health", h.Health)
	r.Get("/api/keycloak-config", h.KeycloakConfig)

	w := do(t, r, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, HealthResponse{
		Status:    "healthy",
		Timestamp: "2025-07-04T10:00:00.000Z",
		Version:   "1.0.0",
	}, decodeBody[HealthResponse](t, w))

	w = do(t, r, http.MethodGet, "/api/keycloak-config", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"realm":"taskflow","url":"http://localhost:8080","clientId":"taskflow-client"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "do-not-leak")
}
