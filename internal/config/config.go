package config

import (
	"os"
	"strconv"
	"time"

	"datalens/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Service  ServiceConfig `validate:"required"`
	Server   ServerConfig  `validate:"required"`
	Database DatabaseConfig
}

// ServiceConfig holds settings for the remote data service
type ServiceConfig struct {
	URL         string `validate:"required"`
	Timeout     time.Duration
	MaxInFlight int64
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required"`
	GinMode string
}

// DatabaseConfig holds optional Postgres settings for the action log.
// An empty URL disables action logging entirely.
type DatabaseConfig struct {
	URL string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	serviceConfig, err := loadServiceConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load data service configuration")
	}
	config.Service = *serviceConfig

	config.Server = *loadServerConfig()
	config.Database = DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServiceConfig() (*ServiceConfig, error) {
	url := os.Getenv("DATA_SERVICE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATA_SERVICE_URL is required")
	}

	return &ServiceConfig{
		URL:         url,
		Timeout:     getEnvDurationOrDefault("SERVICE_TIMEOUT", 30*time.Second),
		MaxInFlight: int64(getEnvIntOrDefault("SERVICE_MAX_IN_FLIGHT", 4)),
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func validateConfig(config *Config) error {
	if config.Service.URL == "" {
		return errors.ConfigInvalid("data service URL is required")
	}
	if config.Service.Timeout <= 0 {
		return errors.ConfigInvalid("service timeout must be positive")
	}
	if config.Service.MaxInFlight < 1 {
		return errors.ConfigInvalid("service max in-flight must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
