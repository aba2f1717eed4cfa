package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Server.Port != "8080" {
		t.Fatalf("defaults = %+v %+v", cfg.Database, cfg.Server)
	}
	if !cfg.Reminders.Enabled || cfg.Reminders.Lead != "72h" || cfg.Engine.MaxAttempts != 3 {
		t.Fatalf("reminder defaults = %+v, engine = %+v", cfg.Reminders, cfg.Engine)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  sqlite_path: from-file.db
notifications:
  publishers: [file@example.org]
reminders:
  interval: 30m
`)
	t.Setenv("DB_SQLITE_PATH", "from-env.db")
	t.Setenv("PUBLISHER_EMAILS", "a@example.org, ,b@example.org")
	t.Setenv("REMINDERS_ENABLED", "false")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.SQLitePath != "from-env.db" {
		t.Fatalf("database = %+v, want sqlite from-env.db", cfg.Database)
	}
	if got := strings.Join(cfg.Notifications.Publishers, ","); got != "a@example.org,b@example.org" {
		t.Fatalf("publishers = %q", got)
	}
	if cfg.Reminders.Enabled || cfg.Reminders.Interval != "30m" {
		t.Fatalf("reminders = %+v, want disabled every 30m", cfg.Reminders)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"bad interval", "reminders:\n  interval: often\n"},
		{"bad lead", "reminders:\n  lead: soon\n"},
		{"no attempts", "engine:\n  max_attempts: 0\n"},
		{"bad lifetime", "database:\n  conn_max_lifetime: forever\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected an invalid configuration error")
			}
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: "5433", DBName: "events"}
	if got, want := c.GetPostgresConnectionString(), "postgres://u:p@db:5433/events?sslmode=disable"; got != want {
		t.Fatalf("connection string = %q, want %q", got, want)
	}
}
