package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/taskflow/internal/api"
	apiMiddleware "github.com/phrazzld/taskflow/internal/api/middleware"
	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/identity"
)

// MsgRouteNotFound is returned for requests that match no route.
const MsgRouteNotFound = "Route not found"

// setupRouter creates the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(apiMiddleware.SecurityHeaders(app.config.Keycloak.URL))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.Server.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{apiMiddleware.TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if app.config.Server.IsProduction() {
		r.NotFound(spaHandler(app.config.Server.StaticDir))
	} else {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			shared.RespondWithError(w, r, http.StatusNotFound, MsgRouteNotFound)
		})
	}

	identityMiddleware := apiMiddleware.NewIdentityMiddleware(identity.NewUnverifiedDecoder(), app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	authHandler := api.NewAuthHandler(app.keycloak, app.loginSessions, app.logger)
	systemHandler := api.NewSystemHandler(app.config.Keycloak, app.now)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", systemHandler.Health)
		r.Get("/keycloak-config", systemHandler.KeycloakConfig)

		r.Route("/auth", func(r chi.Router) {
			r.With(identityMiddleware.Authenticate).Get("/user", authHandler.CurrentUser)
			r.Post("/logout", authHandler.Logout)
			r.Get("/login", authHandler.Login)
			r.Get("/callback", authHandler.Callback)
		})

		r.Route("/tasks", api.TaskRoutes(taskHandler, identityMiddleware.Authenticate))
	})

	return r
}
