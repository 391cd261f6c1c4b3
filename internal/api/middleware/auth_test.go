package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, subject, username string) string {
	t.Helper()
	claims := identity.Claims{
		RegisteredClaims:  jwt.RegisteredClaims{Subject: subject},
		Email:             username + "@example.com",
		PreferredUsername: username,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unused"))
	require.NoError(t, err)
	return token
}

// echoUser writes the identity found in the context, or "anonymous".
func echoUser(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUser(r)
	if !ok {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"id": "anonymous"})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

func TestIdentityMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	m := NewIdentityMiddleware(identity.NewUnverifiedDecoder(), nil)
	handler := m.Authenticate(http.HandlerFunc(echoUser))
	valid := mintToken(t, "user-1", "alice")

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
		wantID     string
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantID: "user-1"},
		{name: "lower case scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantID: "user-1"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantError: MsgAccessTokenRequired},
		{name: "scheme only", header: "Bearer", wantStatus: http.StatusUnauthorized, wantError: MsgAccessTokenRequired},
		{name: "blank token", header: "Bearer   ", wantStatus: http.StatusUnauthorized, wantError: MsgAccessTokenRequired},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized, wantError: MsgAccessTokenRequired},
		{name: "garbage token", header: "Bearer not-a-jwt", wantStatus: http.StatusForbidden, wantError: MsgInvalidToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, body["error"])
				return
			}
			assert.Equal(t, tc.wantID, body["id"])
			assert.Equal(t, "alice", body["username"])
			assert.Equal(t, "alice", body["name"])
		})
	}
}

func TestIdentityMiddleware_OptionalAuthenticate(t *testing.T) {
	t.Parallel()

	m := NewIdentityMiddleware(identity.NewUnverifiedDecoder(), nil)
	handler := m.OptionalAuthenticate(http.HandlerFunc(echoUser))

	tests := []struct {
		name   string
		header string
		wantID string
	}{
		{name: "no header", header: "", wantID: "anonymous"},
		{name: "undecodable token", header: "Bearer nope", wantID: "anonymous"},
		{name: "valid token", header: "Bearer " + mintToken(t, "user-2", "bob"), wantID: "user-2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.wantID, body["id"])
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BearerToken(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "  Bearer abc.def.ghi ")
	token, ok := BearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)
}
