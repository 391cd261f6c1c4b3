package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/sessions"
	"github.com/phrazzld/taskflow/internal/api"
	"github.com/phrazzld/taskflow/internal/config"
	"github.com/phrazzld/taskflow/internal/platform/keycloak"
	"github.com/phrazzld/taskflow/internal/platform/memory"
	"github.com/phrazzld/taskflow/internal/platform/postgres"
	"github.com/phrazzld/taskflow/internal/redact"
	"github.com/phrazzld/taskflow/internal/service"
	"github.com/phrazzld/taskflow/internal/store"
)

// application holds the server's dependencies and ensures they are
// released on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	now    func() time.Time

	taskStore   store.TaskStore
	taskService service.TaskService

	keycloak      *keycloak.Client
	loginSessions sessions.Store
}

// newApplication wires the application. Tasks are kept in PostgreSQL when
// a database URL is configured and in memory otherwise.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}

	if cfg.Database.URL != "" {
		db, err := setupAppDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		app.db = db

		if err := postgres.Migrate(ctx, db, logger); err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		app.taskStore = postgres.NewPostgresTaskStore(db, logger)
		logger.Info("Using PostgreSQL task store")
	} else {
		app.taskStore = memory.NewTaskStore(logger)
		logger.Info("Using in-memory task store; tasks are lost on restart")
	}

	var err error
	app.taskService, err = service.NewTaskService(app.taskStore, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.keycloak = keycloak.New(cfg.Keycloak)

	app.loginSessions, err = api.NewCookieStore(cfg.Session.Secret, cfg.Server.IsProduction())
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create login session store: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run serves HTTP until ctx is canceled or a shutdown signal arrives.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", redact.ErrorAttr(err))
		}
		app.db = nil
	}

	app.logger.Info("Application shutdown completed")
}
