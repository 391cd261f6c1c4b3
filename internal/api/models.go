package api

import (
	"time"

	"github.com/phrazzld/taskflow/internal/domain"
)

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title       string          `json:"title" validate:"notblank"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// FieldMessage implements shared.FieldMessenger.
func (CreateTaskRequest) FieldMessage(field string) string {
	switch field {
	case "title":
		return domain.MsgTitleRequired
	case "priority":
		return domain.MsgInvalidPriority
	default:
		return ""
	}
}

// UpdateTaskRequest is the body of PUT /api/tasks/{id}. Absent fields keep
// their current value.
type UpdateTaskRequest struct {
	Title       *string          `json:"title" validate:"omitempty,notblank"`
	Description *string          `json:"description"`
	Completed   *bool            `json:"completed"`
	Priority    *domain.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// FieldMessage implements shared.FieldMessenger.
func (UpdateTaskRequest) FieldMessage(field string) string {
	switch field {
	case "title":
		return domain.MsgTitleBlank
	case "priority":
		return domain.MsgInvalidPriority
	default:
		return ""
	}
}

// ToDomain converts the request into a domain update.
func (r UpdateTaskRequest) ToDomain() domain.TaskUpdate {
	return domain.TaskUpdate{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		Priority:    r.Priority,
	}
}

// DeleteTaskResponse is returned after a single task is removed.
type DeleteTaskResponse struct {
	Message string       `json:"message"`
	Task    *domain.Task `json:"task"`
}

// DeleteCompletedResponse is returned after completed tasks are purged.
type DeleteCompletedResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deletedCount"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// KeycloakConfigResponse tells the client where to authenticate.
type KeycloakConfigResponse struct {
	Realm    string `json:"realm"`
	URL      string `json:"url"`
	ClientID string `json:"clientId"`
}

// TokenResponse is returned once a server-side login completes.
type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	IDToken      string    `json:"idToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
