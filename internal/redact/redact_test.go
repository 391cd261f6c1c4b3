package redact_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/taskflow/internal/redact"
	"github.com/stretchr/testify/assert"
)

const sampleJWT = "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9." +
	"eyJzdWIiOiJ1c2VyLTEiLCJlbWFpbCI6ImFAYi5jb20ifQ." +
	"c2lnbmF0dXJl"

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no sensitive data",
			input:    "task not found",
			expected: "task not found",
		},
		{
			name:     "jwt in authorization header",
			input:    "rejected header: Bearer " + sampleJWT,
			expected: "rejected header: Bearer [REDACTED_JWT]",
		},
		{
			name:     "unsigned jwt",
			input:    "token eyJhbGciOiJub25lIn0.eyJzdWIiOiJ4In0. could not be decoded",
			expected: "token [REDACTED_JWT] could not be decoded",
		},
		{
			name:     "opaque bearer token",
			input:    "Authorization: Bearer abcdef0123456789",
			expected: "Authorization: Bearer [REDACTED_TOKEN]",
		},
		{
			name:     "oauth form parameters",
			input:    "POST body grant_type=refresh_token&refresh_token=r3fr35h&client_secret=s3cr3t",
			expected: "POST body grant_type=refresh_token&refresh_token=[REDACTED]&client_secret=[REDACTED]",
		},
		{
			name:     "authorization code and verifier",
			input:    "exchange failed: code=abc123&code_verifier=xyz789",
			expected: "exchange failed: code=[REDACTED]&code_verifier=[REDACTED]",
		},
		{
			name:     "database connection string",
			input:    "failed to connect to postgres://taskflow:hunter2@db:5432/taskflow",
			expected: "failed to connect to postgres://[REDACTED_CREDENTIAL]@db:5432/taskflow",
		},
		{
			name:     "password assignment",
			input:    "dsn host=db password='hunter2' sslmode=disable",
			expected: "dsn host=db password=[REDACTED_CREDENTIAL] sslmode=disable",
		},
		{
			name:     "session secret",
			input:    "secret: taskflow-secret-key-change-in-production",
			expected: "secret: [REDACTED_CREDENTIAL]",
		},
		{
			name:     "email address",
			input:    "user alice@example.com has no tasks",
			expected: "user [REDACTED_EMAIL] has no tasks",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, redact.String(tc.input))
		})
	}
}

func TestError(t *testing.T) {
	assert.Empty(t, redact.Error(nil))

	err := fmt.Errorf("refresh failed: %w", errors.New("refresh_token=abc rejected"))
	assert.Equal(t, "refresh failed: refresh_token=[REDACTED] rejected", redact.Error(err))
}

func TestErrorAttr(t *testing.T) {
	attr := redact.ErrorAttr(errors.New("bad token " + sampleJWT))
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, "bad token [REDACTED_JWT]", attr.Value.String())
}
