package api

import (
	"net/http"
	"time"

	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/config"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// timestampLayout matches ISO 8601 with millisecond precision in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SystemHandler serves unauthenticated operational endpoints.
type SystemHandler struct {
	keycloak config.KeycloakConfig
	now      func() time.Time
}

// NewSystemHandler creates a SystemHandler. If now is nil, time.Now is used.
func NewSystemHandler(kc config.KeycloakConfig, now func() time.Time) *SystemHandler {
	if now == nil {
		now = time.Now
	}
	return &SystemHandler{keycloak: kc, now: now}
}

// Health handles GET /health.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(timestampLayout),
		Version:   Version,
	})
}

// KeycloakConfig handles GET /keycloak-config. The client secret is never exposed.
func (h *SystemHandler) KeycloakConfig(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, KeycloakConfigResponse{
		Realm:    h.keycloak.Realm,
		URL:      h.keycloak.URL,
		ClientID: h.keycloak.ClientID,
	})
}
