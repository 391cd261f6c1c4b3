// Package main is the TaskFlow API server. It serves the per-user task API,
// the identity endpoints backed by Keycloak and, in production, the built
// web client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/phrazzld/taskflow/internal/config"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/platform/postgres"
	"github.com/phrazzld/taskflow/internal/redact"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, reset, status, version) and exit")
	configPath := flag.String("config", "",
		"YAML config file (default: taskflow.yaml in . or ./config, if present)")
	flag.Parse()

	cfg, l, err := initializeApp(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx := context.Background()

	if *migrateCmd != "" {
		if err := runMigrationCommand(ctx, cfg, *migrateCmd, l); err != nil {
			l.Error("Migration failed", redact.ErrorAttr(err))
			os.Exit(1)
		}
		return
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		l.Error("Failed to create application", redact.ErrorAttr(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		l.Error("Server stopped with error", redact.ErrorAttr(err))
		os.Exit(1)
	}
}

// initializeApp loads .env, configuration and the logger.
func initializeApp(configPath string) (*config.Config, *slog.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		l.Warn("Failed to read .env file", redact.ErrorAttr(envErr))
	}

	l.Info("Server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("environment", cfg.Server.Environment),
		slog.String("keycloak_url", cfg.Keycloak.URL),
		slog.Bool("database_configured", cfg.Database.URL != ""))

	return cfg, l, nil
}

// loadConfig reads an explicit config file when one is given and falls back
// to the default search path otherwise.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// runMigrationCommand opens the configured database and runs one goose
// command against it.
func runMigrationCommand(ctx context.Context, cfg *config.Config, command string, l *slog.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is empty: set DATABASE_URL to run migrations")
	}

	db, err := setupAppDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return postgres.RunMigrations(ctx, db, command, l)
}
