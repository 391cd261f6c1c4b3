// Package memory provides an in-process implementation of store.TaskStore.
// It is the default backend when no database is configured; contents are
// lost when the process exits.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/domain"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/store"
)

// TaskStore keeps tasks in a map keyed by ID. There is no secondary index:
// every user-scoped query scans the whole map.
type TaskStore struct {
	mu     sync.RWMutex
	tasks  map[uuid.UUID]*domain.Task
	logger *slog.Logger
}

// Ensure TaskStore implements store.TaskStore interface
var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates an empty in-memory task store.
// If logger is nil, a default logger will be used.
func NewTaskStore(logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskStore{
		tasks:  make(map[uuid.UUID]*domain.Task),
		logger: logger.With(slog.String("component", "memory_task_store")),
	}
}

// List implements store.TaskStore.List.
func (s *TaskStore) List(
	ctx context.Context,
	userID string,
	filter store.TaskFilter,
) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Task, 0)
	for _, task := range s.tasks {
		if task.UserID != userID || !filter.Matches(task) {
			continue
		}
		result = append(result, task.Clone())
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	logger.FromContextOrDefault(ctx, s.logger).Debug("listed tasks",
		slog.String("user_id", userID),
		slog.Int("count", len(result)))
	return result, nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *TaskStore) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.owned(userID, id)
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// Create implements store.TaskStore.Create.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return store.NewStoreError("task", "create", "id already in use", store.ErrDuplicate)
	}
	s.tasks[task.ID] = task.Clone()

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", task.UserID))
	return nil
}

// Update implements store.TaskStore.Update.
func (s *TaskStore) Update(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	update domain.TaskUpdate,
	now time.Time,
) (*domain.Task, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.owned(userID, id)
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	updated := existing.Clone()
	if err := updated.Apply(update, now); err != nil {
		return nil, err
	}
	s.tasks[id] = updated
	return updated.Clone(), nil
}

// Toggle implements store.TaskStore.Toggle.
func (s *TaskStore) Toggle(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	now time.Time,
) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.owned(userID, id)
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	task.Toggle(now)
	return task.Clone(), nil
}

// Delete implements store.TaskStore.Delete.
func (s *TaskStore) Delete(ctx context.Context, userID string, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.owned(userID, id)
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return task, nil
}

// DeleteCompleted implements store.TaskStore.DeleteCompleted.
func (s *TaskStore) DeleteCompleted(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, task := range s.tasks {
		if task.UserID == userID && task.Completed {
			delete(s.tasks, id)
			removed++
		}
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("deleted completed tasks",
		slog.String("user_id", userID),
		slog.Int("count", removed))
	return removed, nil
}

// owned returns the stored task if it exists and belongs to userID.
// Callers must hold s.mu.
func (s *TaskStore) owned(userID string, id uuid.UUID) (*domain.Task, bool) {
	task, ok := s.tasks[id]
	if !ok || task.UserID != userID {
		return nil, false
	}
	return task, true
}
