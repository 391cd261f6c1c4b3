package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/service"
)

// TaskHandler handles task-related HTTP requests. Every route expects the
// identity middleware to have run.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService, log *slog.Logger) *TaskHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService: taskService,
		logger:      log.With(slog.String("component", "task_handler")),
	}
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	tasks, err := h.taskService.List(r.Context(), userID, parseTaskFilter(r.URL.Query()))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, id, ok := handleUserAndTaskID(w, r, log)
	if !ok {
		return
	}

	task, err := h.taskService.Get(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, task)
}

// UpdateTask handles PUT /tasks/{id}. The body is validated before the task
// is looked up, so a bad payload is a 400 even for an unknown id.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	id, ok := pathTaskID(w, r, log)
	if !ok {
		return
	}

	task, err := h.taskService.Update(r.Context(), userID, id, req.ToDomain())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// ToggleTask handles PATCH /tasks/{id}/toggle.
func (h *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, id, ok := handleUserAndTaskID(w, r, log)
	if !ok {
		return
	}

	task, err := h.taskService.Toggle(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to toggle task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, id, ok := handleUserAndTaskID(w, r, log)
	if !ok {
		return
	}

	task, err := h.taskService.Delete(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DeleteTaskResponse{
		Message: "Task deleted successfully",
		Task:    task,
	})
}

// DeleteCompletedTasks handles DELETE /tasks.
func (h *TaskHandler) DeleteCompletedTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	count, err := h.taskService.DeleteCompleted(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete completed tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DeleteCompletedResponse{
		Message:      fmt.Sprintf("%d completed tasks deleted", count),
		DeletedCount: count,
	})
}
