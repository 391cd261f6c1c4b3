package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/domain"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/store"
)

const taskColumns = `id, title, description, completed, priority, user_id, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a task store on top of db, which may be a
// connection pool or a transaction owned by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	// ALLOW-PANIC: Constructor enforcing required dependency
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// List implements store.TaskStore.List
func (s *PostgresTaskStore) List(
	ctx context.Context,
	userID string,
	filter store.TaskFilter,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		where = append(where, fmt.Sprintf("completed = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, string(*filter.Priority))
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	log.Debug("listed tasks",
		slog.String("user_id", userID),
		slog.Int("count", len(tasks)))
	return tasks, nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(
	ctx context.Context,
	userID string,
	id uuid.UUID,
) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID)
	return s.scanOne(ctx, row, "get", id)
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		task.ID,
		task.Title,
		task.Description,
		task.Completed,
		string(task.Priority),
		task.UserID,
		task.CreatedAt.UTC(),
		task.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.NewStoreError("task", "create", "id already in use", store.ErrDuplicate)
		}
		log.Error("failed to insert task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrDuplicate); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.NewStoreError("task", "create", "id already in use", err)
		}
		return err
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", task.UserID))
	return nil
}

// Update implements store.TaskStore.Update
// The merge happens in a single statement so a concurrent toggle is never
// overwritten by a stale read. Absent fields are passed as NULL.
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	update domain.TaskUpdate,
	now time.Time,
) (*domain.Task, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	var title, description, completed, priority any
	if update.Title != nil {
		title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		description = strings.TrimSpace(*update.Description)
	}
	if update.Completed != nil {
		completed = *update.Completed
	}
	if update.Priority != nil {
		priority = string(*update.Priority)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET title = COALESCE($3::text, title),
		    description = COALESCE($4::text, description),
		    completed = COALESCE($5::boolean, completed),
		    priority = COALESCE($6::text, priority),
		    updated_at = GREATEST($7::timestamptz, updated_at + interval '1 microsecond')
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		id, userID, title, description, completed, priority,
		now.UTC().Truncate(domain.TimestampPrecision))
	return s.scanOne(ctx, row, "update", id)
}

// Toggle implements store.TaskStore.Toggle
// The flip happens in a single statement; updated_at moves forward by at
// least one microsecond even when now is not after the stored value.
func (s *PostgresTaskStore) Toggle(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	now time.Time,
) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET completed = NOT completed,
		    updated_at = GREATEST($3::timestamptz, updated_at + interval '1 microsecond')
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		id, userID, now.UTC().Truncate(domain.TimestampPrecision))
	return s.scanOne(ctx, row, "toggle", id)
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(
	ctx context.Context,
	userID string,
	id uuid.UUID,
) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2 RETURNING `+taskColumns,
		id, userID)
	return s.scanOne(ctx, row, "delete", id)
}

// DeleteCompleted implements store.TaskStore.DeleteCompleted
func (s *PostgresTaskStore) DeleteCompleted(ctx context.Context, userID string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND completed`, userID)
	if err != nil {
		log.Error("failed to delete completed tasks",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	log.Debug("deleted completed tasks",
		slog.String("user_id", userID),
		slog.Int64("count", removed))
	return int(removed), nil
}

// scanOne scans a single-row result, reporting a missing row as
// store.ErrTaskNotFound.
func (s *PostgresTaskStore) scanOne(
	ctx context.Context,
	row *sql.Row,
	operation string,
	id uuid.UUID,
) (*domain.Task, error) {
	task, err := scanTask(row)
	if err == nil {
		return task, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}

	logger.FromContextOrDefault(ctx, s.logger).Error("task query failed",
		slog.String("operation", operation),
		slog.String("task_id", id.String()),
		slog.String("error", err.Error()))
	return nil, MapError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task     domain.Task
		priority string
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&priority,
		&task.UserID,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	task.Priority = domain.Priority(priority)
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}
