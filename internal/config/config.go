// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Aggregation AggregationConfig
	Gazetteer   GazetteerConfig
	Log         LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// ConnString returns the postgres connection URL
func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// AggregationConfig holds aggregation engine and scheduler configuration
type AggregationConfig struct {
	Workers          int
	FetchTimeout     time.Duration
	UpsertTimeout    time.Duration
	ScheduleInterval time.Duration
	SchedulerEnabled bool
	TagBatch         int
}

// GazetteerConfig holds gazetteer configuration
type GazetteerConfig struct {
	// Path to a YAML gazetteer, empty selects the embedded dataset
	Path string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads configuration from a .env file, if any, and the environment
func Load() (Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv builds configuration from environment variables only
func FromEnv() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "civicpulse"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Aggregation: AggregationConfig{
			Workers:          getEnvAsInt("AGG_WORKERS", 4),
			FetchTimeout:     getEnvAsDuration("AGG_FETCH_TIMEOUT", 30*time.Second),
			UpsertTimeout:    getEnvAsDuration("AGG_UPSERT_TIMEOUT", 10*time.Second),
			ScheduleInterval: getEnvAsDuration("AGG_SCHEDULE_INTERVAL", 24*time.Hour),
			SchedulerEnabled: getEnvAsBool("AGG_SCHEDULER_ENABLED", true),
			TagBatch:         getEnvAsInt("AGG_TAG_BATCH", 500),
		},
		Gazetteer: GazetteerConfig{
			Path: getEnv("GAZETTEER_PATH", ""),
		},
		Log: LogConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
	}

	return config, validate(config)
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validate checks if config is valid
func validate(config Config) error {
	var errs []error

	if config.Aggregation.Workers <= 0 {
		errs = append(errs, fmt.Errorf("AGG_WORKERS must be positive, got %d", config.Aggregation.Workers))
	}
	if config.Aggregation.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AGG_FETCH_TIMEOUT must be positive"))
	}
	if config.Aggregation.UpsertTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AGG_UPSERT_TIMEOUT must be positive"))
	}
	if config.Aggregation.ScheduleInterval <= 0 {
		errs = append(errs, fmt.Errorf("AGG_SCHEDULE_INTERVAL must be positive"))
	}
	if config.Aggregation.TagBatch <= 0 {
		errs = append(errs, fmt.Errorf("AGG_TAG_BATCH must be positive, got %d", config.Aggregation.TagBatch))
	}
	if !validLogLevels[config.Log.Level] {
		errs = append(errs, fmt.Errorf("unknown LOG_LEVEL %q", config.Log.Level))
	}

	return errors.Join(errs...)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
