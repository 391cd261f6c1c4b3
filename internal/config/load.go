package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every configuration key when read from the environment.
const envPrefix = "TASKFLOW"

// Defaults applied before the config file and environment are read.
var defaults = map[string]any{
	"server.port":            3001,
	"server.log_level":       "info",
	"server.environment":     EnvDevelopment,
	"server.frontend_url":    "http://localhost:4173",
	"server.static_dir":      "dist/client",
	"keycloak.url":           "http://localhost:8080",
	"keycloak.realm":         "taskflow",
	"keycloak.client_id":     "taskflow-client",
	"keycloak.client_secret": "",
	"keycloak.redirect_url":  "http://localhost:3001/api/auth/callback",
	"session.secret":         "taskflow-secret-key-change-in-production",
	"database.url":           "",
}

// legacyEnv lists the unprefixed environment names accepted for each key,
// in order of precedence.
var legacyEnv = map[string][]string{
	"server.port":            {"PORT"},
	"server.log_level":       {"LOG_LEVEL"},
	"server.environment":     {"APP_ENV", "NODE_ENV"},
	"server.frontend_url":    {"FRONTEND_URL"},
	"server.static_dir":      {"STATIC_DIR"},
	"keycloak.url":           {"KEYCLOAK_URL"},
	"keycloak.realm":         {"KEYCLOAK_REALM"},
	"keycloak.client_id":     {"KEYCLOAK_CLIENT_ID"},
	"keycloak.client_secret": {"KEYCLOAK_CLIENT_SECRET"},
	"keycloak.redirect_url":  {"KEYCLOAK_REDIRECT_URL"},
	"session.secret":         {"SESSION_SECRET"},
	"database.url":           {"DATABASE_URL"},
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("taskflow")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// LoadFile loads configuration from the given YAML file, still letting the
// environment override it.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		input := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(input...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
