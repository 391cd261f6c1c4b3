package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/domain"
)

// TaskFilter narrows a task listing. Nil fields do not filter.
type TaskFilter struct {
	Completed *bool
	Priority  *domain.Priority
}

// Matches reports whether task passes the filter.
func (f TaskFilter) Matches(task *domain.Task) bool {
	if f.Completed != nil && task.Completed != *f.Completed {
		return false
	}
	if f.Priority != nil && task.Priority != *f.Priority {
		return false
	}
	return true
}

// TaskStore defines the interface for task persistence.
// Every lookup is scoped by the owning user ID; a task owned by someone
// else is reported as ErrTaskNotFound.
type TaskStore interface {
	// List returns the user's tasks matching filter, newest first.
	// Returns an empty slice if nothing matches.
	List(ctx context.Context, userID string, filter TaskFilter) ([]*domain.Task, error)

	// GetByID retrieves a task owned by userID.
	// Returns ErrTaskNotFound if the task does not exist or is not owned.
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error)

	// Create saves a new task. The task is validated first.
	Create(ctx context.Context, task *domain.Task) error

	// Update merges update into the stored task in one step and bumps
	// UpdatedAt using now; UpdatedAt always moves forward. Fields absent
	// from update keep their stored values, including changes made
	// concurrently by Toggle. Returns the updated task or ErrTaskNotFound.
	Update(
		ctx context.Context,
		userID string,
		id uuid.UUID,
		update domain.TaskUpdate,
		now time.Time,
	) (*domain.Task, error)

	// Toggle flips the completion flag and bumps UpdatedAt using now.
	// Returns the updated task or ErrTaskNotFound.
	Toggle(ctx context.Context, userID string, id uuid.UUID, now time.Time) (*domain.Task, error)

	// Delete removes a task and returns it.
	// Returns ErrTaskNotFound if the task does not exist or is not owned.
	Delete(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error)

	// DeleteCompleted removes every completed task owned by userID and
	// returns how many were removed.
	DeleteCompleted(ctx context.Context, userID string) (int, error)
}
