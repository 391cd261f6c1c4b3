package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/phrazzld/taskflow/internal/api/middleware"
	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/platform/keycloak"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/redact"
	"golang.org/x/oauth2"
)

// LoginProvider is the part of the identity provider client used by the
// server-side login flow.
type LoginProvider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
}

// AuthHandler handles identity and login requests.
type AuthHandler struct {
	provider LoginProvider
	sessions sessions.Store
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(provider LoginProvider, store sessions.Store, log *slog.Logger) *AuthHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AuthHandler")
	}

	return &AuthHandler{
		provider: provider,
		sessions: store,
		logger:   log.With(slog.String("component", "auth_handler")),
	}
}

// CurrentUser handles GET /auth/user and returns the caller's identity.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok || user.ID == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, MsgUserNotAuthenticated)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

// Logout handles POST /auth/logout. Tokens are held by the client, which
// discards them; the server only acknowledges.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, shared.MessageResponse{
		Message: "Logged out successfully",
	})
}

// Login handles GET /auth/login. It stores a fresh state and PKCE verifier in
// the login cookie and redirects to the provider.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	session, err := h.sessions.Get(r, loginSessionName)
	if err != nil {
		// An undecodable cookie (e.g. after a secret rotation) is replaced.
		log.Debug("discarding unreadable login session", redact.ErrorAttr(err))
	}

	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()
	session.Values[sessionKeyState] = state
	session.Values[sessionKeyVerifier] = verifier

	if err := session.Save(r, w); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to start login", err)
		return
	}

	http.Redirect(w, r, h.provider.AuthCodeURL(state, verifier), http.StatusFound)
}

// Callback handles GET /auth/callback. It checks the returned state against
// the login cookie, exchanges the code and returns the tokens to the client.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	query := r.URL.Query()

	session, err := h.sessions.Get(r, loginSessionName)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid login state", err)
		return
	}

	expected, _ := session.Values[sessionKeyState].(string)
	verifier, _ := session.Values[sessionKeyVerifier].(string)
	state := query.Get("state")
	if expected == "" || verifier == "" ||
		subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		log.Warn("login callback state mismatch")
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid login state")
		return
	}

	// The pending login is single use.
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Warn("failed to clear login session", redact.ErrorAttr(err))
	}

	if providerErr := query.Get("error"); providerErr != "" {
		log.Info("provider rejected login", slog.String("provider_error", providerErr))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Login was not completed")
		return
	}

	code := query.Get("code")
	if code == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing authorization code")
		return
	}

	tok, err := h.provider.Exchange(r.Context(), code, verifier)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Failed to complete login", err)
		return
	}

	log.Info("login completed")
	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      keycloak.IDToken(tok),
		ExpiresAt:    tok.Expiry,
	})
}
