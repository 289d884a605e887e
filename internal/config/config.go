package config

import (
	"os"
	"runtime"
	"strconv"

	"echidna/internal/errors"
)

// Config represents the runtime configuration read from the environment
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Paths     PathConfig
	Run       RunConfig
	Profiling ProfilingConfig
}

// DatabaseConfig selects the store holding spectra and results
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ServerConfig holds results API settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	OutputDir    string
	AnalysisFile string
}

// RunConfig holds execution settings
type RunConfig struct {
	Workers  int
	LogLevel string
}

// ProfilingConfig holds pprof server settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Paths:     *loadPathConfig(),
		Run:       *loadRunConfig(),
		Profiling: *loadProfilingConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver: getEnvOrDefault("DATABASE_DRIVER", DriverSQLite),
		URL:    getEnvOrDefault("DATABASE_URL", "echidna.db"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		OutputDir:    getEnvOrDefault("OUTPUT_DIR", "results"),
		AnalysisFile: getEnvOrDefault("ANALYSIS_FILE", "configs/klz_majoron.yaml"),
	}
}

func loadRunConfig() *RunConfig {
	return &RunConfig{
		Workers:  getEnvIntOrDefault("WORKERS", runtime.NumCPU()),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return errors.ConfigInvalid("DATABASE_DRIVER must be sqlite or postgres, got " + config.Database.Driver)
	}
	if config.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	if config.Paths.OutputDir == "" {
		return errors.ConfigInvalid("OUTPUT_DIR is required")
	}
	if config.Run.Workers < 1 {
		return errors.ConfigInvalid("WORKERS must be at least 1")
	}
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.ConfigInvalid("GIN_MODE must be debug, release or test, got " + config.Server.GinMode)
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
