package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config structure represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Reminders     RemindersConfig     `yaml:"reminders"`
	Engine        EngineConfig        `yaml:"engine"`
	SMTP          SMTPConfig          `yaml:"smtp"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"SERVER_PORT"`
	Mode string `yaml:"mode" env:"SERVER_MODE"`
	// PublicURL prefixes links in outgoing email
	PublicURL string `yaml:"public_url" env:"SERVER_PUBLIC_URL"`
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DB_DRIVER"`
	Host            string `yaml:"host" env:"DB_HOST"`
	Port            string `yaml:"port" env:"DB_PORT"`
	User            string `yaml:"user" env:"DB_USER"`
	Password        string `yaml:"password" env:"DB_PASSWORD"`
	DBName          string `yaml:"dbname" env:"DB_NAME"`
	SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	// SQLitePath is used when Driver is "sqlite"
	SQLitePath    string `yaml:"sqlite_path" env:"DB_SQLITE_PATH"`
	MigrationsDir string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
	// SeedDemo publishes sample events into an empty store at startup
	SeedDemo bool `yaml:"seed_demo" env:"DB_SEED_DEMO"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// RemindersConfig drives the periodic reminder scheduler
type RemindersConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REMINDERS_ENABLED"`
	Interval string `yaml:"interval" env:"REMINDERS_INTERVAL"`
	Lead     string `yaml:"lead" env:"REMINDERS_LEAD"`
}

type EngineConfig struct {
	MaxAttempts int `yaml:"max_attempts" env:"ENGINE_MAX_ATTEMPTS"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
	FromName string `yaml:"from_name" env:"SMTP_FROM_NAME"`
	UseTLS   bool   `yaml:"use_tls" env:"SMTP_USE_TLS"`
}

type NotificationsConfig struct {
	// Publishers receive approval requests for submitted events
	Publishers []string `yaml:"publishers" env:"PUBLISHER_EMAILS" envSeparator:","`
}

// LoadConfig loads configuration from a file, an optional .env file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// A missing .env file is fine; variables may come from the process environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.PublicURL = "http://localhost:8080"

	config.Database.Driver = DriverPostgres
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "eventsignup"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"
	config.Database.SQLitePath = "eventsignup.db"
	config.Database.MigrationsDir = "migrations"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Reminders.Enabled = true
	config.Reminders.Interval = "1h"
	config.Reminders.Lead = "72h"

	config.Engine.MaxAttempts = 3

	config.SMTP.Port = 587
	config.SMTP.FromName = "Event Signup"
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case DriverPostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if _, err := time.ParseDuration(config.Database.ConnMaxLifetime); err != nil {
			return fmt.Errorf("invalid connection max lifetime: %w", err)
		}
	case DriverSQLite:
		if config.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if _, err := time.ParseDuration(config.Reminders.Interval); err != nil {
		return fmt.Errorf("invalid reminders interval: %w", err)
	}
	if _, err := time.ParseDuration(config.Reminders.Lead); err != nil {
		return fmt.Errorf("invalid reminders lead: %w", err)
	}
	if config.Engine.MaxAttempts < 1 {
		return fmt.Errorf("engine max attempts must be at least 1")
	}

	publishers := config.Notifications.Publishers[:0]
	for _, p := range config.Notifications.Publishers {
		if p = strings.TrimSpace(p); p != "" {
			publishers = append(publishers, p)
		}
	}
	config.Notifications.Publishers = publishers
	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c DatabaseConfig) GetPostgresConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		sslMode,
	)
}
