package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/api/middleware"
	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/domain"
	"github.com/phrazzld/taskflow/internal/store"
)

// requireUserID extracts the authenticated user's ID from the request context.
// It writes a 401 and returns false when the identity is missing or has no subject.
func requireUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, bool) {
	user, ok := middleware.GetUser(r)
	if !ok || user.ID == "" {
		log.Debug("request has no user identity")
		shared.RespondWithError(w, r, http.StatusUnauthorized, MsgUserNotAuthenticated)
		return "", false
	}
	return user.ID, true
}

// pathTaskID parses the {id} path parameter. Ids that are not UUIDs cannot
// name a stored task, so they are reported as not found.
func pathTaskID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Debug("unparseable task id", slog.String("value", raw))
		shared.RespondWithError(w, r, http.StatusNotFound, MsgTaskNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// handleUserAndTaskID combines requireUserID and pathTaskID.
func handleUserAndTaskID(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
) (string, uuid.UUID, bool) {
	userID, ok := requireUserID(w, r, log)
	if !ok {
		return "", uuid.Nil, false
	}
	id, ok := pathTaskID(w, r, log)
	if !ok {
		return "", uuid.Nil, false
	}
	return userID, id, true
}

// decodeRequest decodes and validates the JSON body into v. An empty body is
// treated as an empty object. On failure it writes a 400 with the field's
// client message and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	err := shared.DecodeJSON(r, v)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err == nil {
		err = shared.ValidateRequest(v)
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			shared.ErrorMessage(v, err, MsgInvalidRequest), err)
		return false
	}
	return true
}

// parseTaskFilter reads the list filter from the query string. A present
// "completed" parameter filters on value == "true"; any non-empty
// "priority" filters by exact match.
func parseTaskFilter(query url.Values) store.TaskFilter {
	var filter store.TaskFilter

	if values, ok := query["completed"]; ok {
		completed := len(values) > 0 && values[0] == "true"
		filter.Completed = &completed
	}

	if priority := query.Get("priority"); priority != "" {
		p := domain.Priority(priority)
		filter.Priority = &p
	}

	return filter
}
