package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/domain"
	"github.com/phrazzld/taskflow/internal/service"
	"github.com/phrazzld/taskflow/internal/store"
)

// Client-facing messages shared by several handlers.
const (
	MsgUnexpected           = "An unexpected error occurred"
	MsgInvalidRequest       = "Invalid request format"
	MsgTaskNotFound         = "Task not found"
	MsgUserNotAuthenticated = "User not authenticated"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrTaskNotFound),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Validation errors carry their own client message.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return MsgUnexpected
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) && validationErr.Message != "" {
		return validationErr.Message
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return MsgUserNotAuthenticated
	case errors.Is(err, service.ErrTaskNotFound),
		store.IsNotFoundError(err):
		return MsgTaskNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid task data"
	default:
		return MsgUnexpected
	}
}

// HandleAPIError writes the response for err. For 5xx errors the optional
// fallback replaces the generic message so clients see which operation failed.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)

	message := GetSafeErrorMessage(err)
	if status >= http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
