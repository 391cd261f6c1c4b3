// Package storetest holds a behavioral test suite that every
// store.TaskStore implementation must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/domain"
	"github.com/phrazzld/taskflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.TaskStore

var baseTime = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

// MustCreateTask creates and persists a task, failing the test on error.
func MustCreateTask(
	t *testing.T,
	s store.TaskStore,
	userID, title string,
	priority domain.Priority,
	createdAt time.Time,
) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(userID, title, "", priority, createdAt)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), task))
	return task
}

// RunTaskStoreTests runs the full suite against stores produced by newStore.
func RunTaskStoreTests(t *testing.T, newStore Factory) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := MustCreateTask(t, s, "alice", "Buy milk", "", baseTime)

		got, err := s.GetByID(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, "Buy milk", got.Title)
		assert.Equal(t, domain.PriorityMedium, got.Priority)
		assert.False(t, got.Completed)
		assert.Equal(t, "alice", got.UserID)
		assert.True(t, task.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("create rejects invalid task", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.Create(ctx, &domain.Task{ID: uuid.New(), UserID: "alice", Priority: domain.PriorityLow})
		require.Error(t, err)

		tasks, err := s.List(ctx, "alice", store.TaskFilter{})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("other users cannot observe tasks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := MustCreateTask(t, s, "alice", "Private", "", baseTime)

		_, err := s.GetByID(ctx, "bob", task.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		tasks, err := s.List(ctx, "bob", store.TaskFilter{})
		require.NoError(t, err)
		assert.Empty(t, tasks)

		_, err = s.Toggle(ctx, "bob", task.ID, baseTime.Add(time.Minute))
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		_, err = s.Delete(ctx, "bob", task.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		hijack := "Hijacked"
		_, err = s.Update(ctx, "bob", task.ID, domain.TaskUpdate{Title: &hijack}, baseTime.Add(time.Minute))
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		got, err := s.GetByID(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Private", got.Title)
	})

	t.Run("get unknown task", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetByID(context.Background(), "alice", uuid.New())
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("list orders newest first and filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		oldest := MustCreateTask(t, s, "alice", "Oldest", domain.PriorityLow, baseTime)
		middle := MustCreateTask(t, s, "alice", "Middle", domain.PriorityHigh, baseTime.Add(time.Minute))
		newest := MustCreateTask(t, s, "alice", "Newest", domain.PriorityHigh, baseTime.Add(2*time.Minute))
		MustCreateTask(t, s, "bob", "Bob's", domain.PriorityHigh, baseTime.Add(3*time.Minute))

		_, err := s.Toggle(ctx, "alice", middle.ID, baseTime.Add(time.Hour))
		require.NoError(t, err)

		all, err := s.List(ctx, "alice", store.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uuid.UUID{newest.ID, middle.ID, oldest.ID}, ids(all))

		done := true
		completed, err := s.List(ctx, "alice", store.TaskFilter{Completed: &done})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{middle.ID}, ids(completed))

		open := false
		high := domain.PriorityHigh
		openHigh, err := s.List(ctx, "alice", store.TaskFilter{Completed: &open, Priority: &high})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{newest.ID}, ids(openHigh))
	})

	t.Run("update merges and keeps ownership", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := MustCreateTask(t, s, "alice", "Draft", domain.PriorityLow, baseTime)

		title := "  Final  "
		updated, err := s.Update(ctx, "alice", task.ID, domain.TaskUpdate{Title: &title}, baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "Final", updated.Title)

		got, err := s.GetByID(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
		assert.Equal(t, "Final", got.Title)
		assert.Equal(t, domain.PriorityLow, got.Priority)
		assert.Equal(t, "alice", got.UserID)
		assert.True(t, got.CreatedAt.Equal(task.CreatedAt))
		assert.True(t, got.UpdatedAt.After(task.UpdatedAt))
	})

	t.Run("update keeps a prior toggle and moves updatedAt forward", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := MustCreateTask(t, s, "alice", "Report", domain.PriorityLow, baseTime)

		toggled, err := s.Toggle(ctx, "alice", task.ID, baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, toggled.Completed)

		// A clock reading taken before the toggle landed.
		high := domain.PriorityHigh
		updated, err := s.Update(ctx, "alice", task.ID, domain.TaskUpdate{Priority: &high}, baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, updated.Completed)
		assert.Equal(t, domain.PriorityHigh, updated.Priority)
		assert.True(t, updated.UpdatedAt.After(toggled.UpdatedAt))

		got, err := s.GetByID(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.True(t, got.Completed)
		assert.True(t, got.UpdatedAt.Equal(updated.UpdatedAt))
	})

	t.Run("update rejects invalid changes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := MustCreateTask(t, s, "alice", "Keep", domain.PriorityLow, baseTime)

		blank := "  "
		_, err := s.Update(ctx, "alice", task.ID, domain.TaskUpdate{Title: &blank}, baseTime.Add(time.Minute))
		assert.ErrorIs(t, err, domain.ErrEmptyTitle)

		got, err := s.GetByID(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Keep", got.Title)
		assert.True(t, got.UpdatedAt.Equal(task.UpdatedAt))
	})

	t.Run("update unknown task", func(t *testing.T) {
		s := newStore(t)
		title := "Ghost"
		_, err := s.Update(context.Background(), "alice", uuid.New(), domain.TaskUpdate{Title: &title}, baseTime)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("toggle twice restores state and bumps updatedAt", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := MustCreateTask(t, s, "alice", "Flip", "", baseTime)

		// Both toggles happen at the creation instant; UpdatedAt must still advance.
		first, err := s.Toggle(ctx, "alice", task.ID, baseTime)
		require.NoError(t, err)
		assert.True(t, first.Completed)
		assert.True(t, first.UpdatedAt.After(task.UpdatedAt))

		second, err := s.Toggle(ctx, "alice", task.ID, baseTime)
		require.NoError(t, err)
		assert.False(t, second.Completed)
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	})

	t.Run("delete returns removed task", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := MustCreateTask(t, s, "alice", "Remove me", "", baseTime)

		removed, err := s.Delete(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, removed.ID)

		_, err = s.GetByID(ctx, "alice", task.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		_, err = s.Delete(ctx, "alice", task.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("delete completed only touches caller's completed tasks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		aliceDone1 := MustCreateTask(t, s, "alice", "Done 1", "", baseTime)
		aliceDone2 := MustCreateTask(t, s, "alice", "Done 2", "", baseTime.Add(time.Second))
		aliceOpen := MustCreateTask(t, s, "alice", "Open", "", baseTime.Add(2*time.Second))
		bobDone := MustCreateTask(t, s, "bob", "Bob done", "", baseTime.Add(3*time.Second))

		for _, task := range []*domain.Task{aliceDone1, aliceDone2, bobDone} {
			_, err := s.Toggle(ctx, task.UserID, task.ID, baseTime.Add(time.Hour))
			require.NoError(t, err)
		}

		count, err := s.DeleteCompleted(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		remaining, err := s.List(ctx, "alice", store.TaskFilter{})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{aliceOpen.ID}, ids(remaining))

		bobs, err := s.List(ctx, "bob", store.TaskFilter{})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{bobDone.ID}, ids(bobs))

		count, err = s.DeleteCompleted(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("returned tasks are copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		task := MustCreateTask(t, s, "alice", "Immutable", "", baseTime)

		got, err := s.GetByID(ctx, "alice", task.ID)
		require.NoError(t, err)
		got.Title = "mutated outside the store"

		again, err := s.GetByID(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Immutable", again.Title)
	})
}

func ids(tasks []*domain.Task) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.ID)
	}
	return out
}
