package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/taskflow/internal/api/middleware"
	"github.com/phrazzld/taskflow/internal/identity"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/platform/memory"
	"github.com/phrazzld/taskflow/internal/service"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.July, 4, 10, 0, 0, 0, time.UTC)

// stepClock returns a clock that advances one millisecond per reading.
func stepClock() func() time.Time {
	t := testNow
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func testLogger() *slog.Logger {
	log, _ := logger.NewTestLogger()
	return log
}

// newTaskRouter wires the task routes the same way the server does, over an
// in-memory store.
func newTaskRouter(t *testing.T) http.Handler {
	t.Helper()

	svc, err := service.NewTaskService(memory.NewTaskStore(testLogger()), testLogger(),
		service.WithClock(stepClock()))
	require.NoError(t, err)

	return newRouterWithService(svc)
}

func newRouterWithService(svc service.TaskService) http.Handler {
	log := testLogger()
	handler := NewTaskHandler(svc, log)
	ids := middleware.NewIdentityMiddleware(identity.NewUnverifiedDecoder(), log)

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	r.Route("/api/tasks", TaskRoutes(handler, ids.Authenticate))
	return r
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	claims := identity.Claims{
		RegisteredClaims:  jwt.RegisteredClaims{Subject: subject},
		Email:             subject + "@example.com",
		Name:              "User " + subject,
		PreferredUsername: subject,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)
	return "Bearer " + token
}

// do performs a request against h and returns the recorder.
func do(t *testing.T, h http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id"`
}
