package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/identity"
)

// Client messages for rejected credentials.
const (
	MsgAccessTokenRequired = "Access token required"
	MsgInvalidToken        = "Invalid token"
)

// IdentityMiddleware attaches the caller's identity, decoded from the bearer
// token, to the request context.
type IdentityMiddleware struct {
	decoder identity.Decoder
	logger  *slog.Logger
}

// NewIdentityMiddleware creates an IdentityMiddleware using decoder.
func NewIdentityMiddleware(decoder identity.Decoder, logger *slog.Logger) *IdentityMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityMiddleware{
		decoder: decoder,
		logger:  logger.With(slog.String("component", "identity_middleware")),
	}
}

// Authenticate rejects requests without a decodable bearer token: a missing
// or malformed header yields 401, an undecodable token 403.
func (m *IdentityMiddleware) Authenticate(next http.Handler) http.Handler {
	return m.authenticate(true)(next)
}

// OptionalAuthenticate attaches the identity when a decodable token is
// present and otherwise lets the request through anonymously.
func (m *IdentityMiddleware) OptionalAuthenticate(next http.Handler) http.Handler {
	return m.authenticate(false)(next)
}

func (m *IdentityMiddleware) authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				if required {
					shared.RespondWithError(w, r, http.StatusUnauthorized, MsgAccessTokenRequired)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := identity.DecodeUser(m.decoder, token)
			if err != nil {
				if required {
					shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, MsgInvalidToken, err,
						shared.WithElevatedLogLevel())
					return
				}
				m.logger.Debug("ignoring undecodable optional token",
					slog.String("trace_id", shared.GetTraceID(r.Context())))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(shared.WithUser(r.Context(), user)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUser extracts the authenticated user from the request context.
func GetUser(r *http.Request) (identity.User, bool) {
	return shared.UserFromContext(r.Context())
}
