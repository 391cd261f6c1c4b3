package config

import "fmt"

// Environment names recognized in ServerConfig.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// DevelopmentOrigin is the client dev server allowed by CORS outside production.
const DevelopmentOrigin = "http://localhost:5173"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Keycloak KeycloakConfig `mapstructure:"keycloak" validate:"required"`
	Session  SessionConfig  `mapstructure:"session" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port        int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel    string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Environment string `mapstructure:"environment" validate:"required,oneof=development production test"`
	// FrontendURL is the only CORS origin allowed in production.
	FrontendURL string `mapstructure:"frontend_url" validate:"required,url"`
	// StaticDir holds the built client served in production.
	StaticDir string `mapstructure:"static_dir"`
}

// IsProduction reports whether the server runs in production mode.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Addr returns the listen address for the configured port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AllowedOrigins returns the CORS origins for the current environment.
func (c ServerConfig) AllowedOrigins() []string {
	if c.IsProduction() {
		return []string{c.FrontendURL}
	}
	return []string{DevelopmentOrigin}
}

// KeycloakConfig describes the identity provider realm and client.
type KeycloakConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	Realm        string `mapstructure:"realm" validate:"required"`
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url" validate:"required,url"`
}

// SessionConfig contains the secret used to protect server-side login state.
type SessionConfig struct {
	Secret string `mapstructure:"secret" validate:"required,min=32"`
}

// DatabaseConfig selects the task store. An empty URL keeps tasks in memory.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}
