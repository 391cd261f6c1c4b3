package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/domain"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/redact"
	"github.com/phrazzld/taskflow/internal/store"
)

// ErrTaskNotFound indicates the task does not exist or belongs to someone else.
var ErrTaskNotFound = errors.New("task not found")

// CreateTaskInput carries the caller-supplied fields of a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    domain.Priority
}

// TaskService provides task operations scoped to a single user.
type TaskService interface {
	// List returns the user's tasks matching filter, newest first.
	List(ctx context.Context, userID string, filter store.TaskFilter) ([]*domain.Task, error)

	// Get returns one of the user's tasks.
	Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error)

	// Create validates input and stores a new task owned by userID.
	Create(ctx context.Context, userID string, input CreateTaskInput) (*domain.Task, error)

	// Update merges the provided fields into the task.
	Update(ctx context.Context, userID string, id uuid.UUID, update domain.TaskUpdate) (*domain.Task, error)

	// Toggle flips the task's completion flag.
	Toggle(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error)

	// Delete removes the task and returns it.
	Delete(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error)

	// DeleteCompleted removes all of the user's completed tasks.
	DeleteCompleted(ctx context.Context, userID string) (int, error)
}

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create", "toggle")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// Sentinel and validation errors are returned as-is so callers can match them.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTaskNotFound), store.IsNotFoundError(err):
		return ErrTaskNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnauthorized):
		return err
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// Option configures a task service.
type Option func(*taskServiceImpl)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *taskServiceImpl) {
		s.now = now
	}
}

type taskServiceImpl struct {
	store  store.TaskStore
	now    func() time.Time
	logger *slog.Logger
}

var _ TaskService = (*taskServiceImpl)(nil)

// NewTaskService creates a TaskService backed by taskStore.
// It returns an error if taskStore is nil.
func NewTaskService(taskStore store.TaskStore, log *slog.Logger, opts ...Option) (TaskService, error) {
	if taskStore == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "taskStore cannot be nil",
		}
	}
	if log == nil {
		log = slog.Default()
	}

	s := &taskServiceImpl{
		store:  taskStore,
		now:    time.Now,
		logger: log.With(slog.String("component", "task_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *taskServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

func requireUser(userID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

// List implements TaskService.List.
func (s *taskServiceImpl) List(
	ctx context.Context,
	userID string,
	filter store.TaskFilter,
) ([]*domain.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	tasks, err := s.store.List(ctx, userID, filter)
	if err != nil {
		s.log(ctx).Error("failed to list tasks",
			redact.ErrorAttr(err),
			slog.String("user_id", userID))
		return nil, NewTaskServiceError("list", "failed to list tasks", err)
	}
	return tasks, nil
}

// Get implements TaskService.Get.
func (s *taskServiceImpl) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	task, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, NewTaskServiceError("get", "failed to get task", err)
	}
	return task, nil
}

// Create implements TaskService.Create.
func (s *taskServiceImpl) Create(
	ctx context.Context,
	userID string,
	input CreateTaskInput,
) (*domain.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	task, err := domain.NewTask(userID, input.Title, input.Description, input.Priority, s.now())
	if err != nil {
		s.log(ctx).Debug("rejected new task", redact.ErrorAttr(err))
		return nil, err
	}

	if err := s.store.Create(ctx, task); err != nil {
		s.log(ctx).Error("failed to create task",
			redact.ErrorAttr(err),
			slog.String("user_id", userID))
		return nil, NewTaskServiceError("create", "failed to save task", err)
	}

	s.log(ctx).Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", userID),
		slog.String("priority", string(task.Priority)))
	return task, nil
}

// Update implements TaskService.Update. The update is validated before the
// store is consulted, so an invalid payload for an unknown task is still a
// validation error.
func (s *taskServiceImpl) Update(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	update domain.TaskUpdate,
) (*domain.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	task, err := s.store.Update(ctx, userID, id, update, s.now())
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			s.log(ctx).Error("failed to update task",
				redact.ErrorAttr(err),
				slog.String("task_id", id.String()))
		}
		return nil, NewTaskServiceError("update", "failed to save task", err)
	}

	s.log(ctx).Debug("task updated", slog.String("task_id", id.String()))
	return task, nil
}

// Toggle implements TaskService.Toggle.
func (s *taskServiceImpl) Toggle(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	task, err := s.store.Toggle(ctx, userID, id, s.now())
	if err != nil {
		return nil, NewTaskServiceError("toggle", "failed to toggle task", err)
	}

	s.log(ctx).Debug("task toggled",
		slog.String("task_id", id.String()),
		slog.Bool("completed", task.Completed))
	return task, nil
}

// Delete implements TaskService.Delete.
func (s *taskServiceImpl) Delete(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	task, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return nil, NewTaskServiceError("delete", "failed to delete task", err)
	}

	s.log(ctx).Info("task deleted", slog.String("task_id", id.String()))
	return task, nil
}

// DeleteCompleted implements TaskService.DeleteCompleted.
func (s *taskServiceImpl) DeleteCompleted(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}

	count, err := s.store.DeleteCompleted(ctx, userID)
	if err != nil {
		s.log(ctx).Error("failed to delete completed tasks",
			redact.ErrorAttr(err),
			slog.String("user_id", userID))
		return 0, NewTaskServiceError("delete_completed", "failed to delete completed tasks", err)
	}

	s.log(ctx).Info("completed tasks deleted",
		slog.String("user_id", userID),
		slog.Int("count", count))
	return count, nil
}
