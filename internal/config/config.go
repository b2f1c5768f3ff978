package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Log      LogConfig
	Triage   TriageConfig
	Env      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	EventsQueue string
	Prefetch    int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// TriageConfig holds the board setup
type TriageConfig struct {
	// Boards lists the board IDs served, one per dashboard role.
	Boards []string
	// Pipelines holds explicit state lists keyed by board. Boards without
	// an entry use the preset of the same name.
	Pipelines        map[string][]string
	Location         *time.Location
	DirectoryRefresh time.Duration
	EventBuffer      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	shutdown, err := getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	refresh, err := getEnvAsDuration("DIRECTORY_REFRESH", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	tz := getEnv("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	boards := getEnvAsList("BOARDS", []string{"brand", "admin", "staff"})
	if len(boards) == 0 {
		return nil, fmt.Errorf("BOARDS must name at least one board")
	}
	pipelines := make(map[string][]string)
	for _, board := range boards {
		if states := getEnvAsList("PIPELINE_"+strings.ToUpper(board), nil); len(states) > 0 {
			pipelines[board] = states
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ShutdownTimeout: shutdown,
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "crmtriage"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "crmtriage_db"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:        getEnv("RABBITMQ_HOST", "localhost"),
			Port:        getEnv("RABBITMQ_PORT", "5672"),
			User:        getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password:    getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
			EventsQueue: getEnv("TRIAGE_EVENTS_QUEUE", "triage_events"),
			Prefetch:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Triage: TriageConfig{
			Boards:           boards,
			Pipelines:        pipelines,
			Location:         loc,
			DirectoryRefresh: refresh,
			EventBuffer:      getEnvAsInt("EVENT_BUFFER", 256),
		},
		Env: getEnv("ENV", "development"),
	}

	if config.Database.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if f := config.Log.Format; f != "console" && f != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be console or json, got %q", f)
	}

	return config, nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration parses a Go duration such as "30s"
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

// getEnvAsList splits a comma-separated variable, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
