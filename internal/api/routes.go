package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// TaskRoutes registers the task endpoints on a sub-router, every one of
// them behind authenticate. Mount it with r.Route("/api/tasks", ...).
func TaskRoutes(h *TaskHandler, authenticate func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Delete("/", h.DeleteCompletedTasks)
		r.Get("/{id}", h.GetTask)
		r.Put("/{id}", h.UpdateTask)
		r.Patch("/{id}/toggle", h.ToggleTask)
		r.Delete("/{id}", h.DeleteTask)
	}
}
