package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware(t *testing.T) {
	log, buf := logger.NewTestLogger()

	var seen string
	handler := NewTraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(TraceIDHeader))

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		assert.Equal(t, seen, entry["trace_id"])
	}
}

func TestRequestLogger(t *testing.T) {
	log, buf := logger.NewTestLogger()

	handler := NewTraceMiddleware(log)(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks", nil))

	entries, err := buf.Entries()
	require.NoError(t, err)

	var completed map[string]any
	for _, entry := range entries {
		if entry["msg"] == "request completed" {
			completed = entry
		}
	}
	require.NotNil(t, completed, "expected a request completed entry")
	assert.Equal(t, "INFO", completed["level"])
	assert.Equal(t, float64(http.StatusTeapot), completed["status"])
	assert.Equal(t, float64(len("short and stout")), completed["bytes"])
	assert.Equal(t, "/api/tasks", completed["path"])
	assert.NotEmpty(t, completed["trace_id"])
}
