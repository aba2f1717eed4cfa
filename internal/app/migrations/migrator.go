package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Target is a database the migrator can track and apply migrations on
type Target interface {
	// EnsureMigrationTable creates the schema_migrations table if needed
	EnsureMigrationTable(ctx context.Context) error
	IsApplied(ctx context.Context, version string) (bool, error)
	// Apply runs the statements and records version in one transaction
	Apply(ctx context.Context, version, statements string) error
}

// Migrator manages database migrations
type Migrator struct {
	target Target
	logger zerolog.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(target Target, logger zerolog.Logger) *Migrator {
	return &Migrator{
		target: target,
		logger: logger,
	}
}

// MigrateFromDirectory applies every .sql file in a directory on disk
func (m *Migrator) MigrateFromDirectory(ctx context.Context, dirPath string) error {
	if _, err := os.Stat(dirPath); err != nil {
		return fmt.Errorf("migrations directory not found at %s: %w", dirPath, err)
	}
	return m.Migrate(ctx, os.DirFS(dirPath))
}

// Migrate applies the .sql files at the root of fsys in name order, skipping
// versions already recorded. The version is the file name prefix before the
// first underscore ("001_init.sql" => "001").
func (m *Migrator) Migrate(ctx context.Context, fsys fs.FS) error {
	if err := m.target.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}
	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, file := range sqlFiles {
		if err := m.migrateFile(ctx, fsys, file); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) migrateFile(ctx context.Context, fsys fs.FS, filename string) error {
	version := strings.Split(path.Base(filename), "_")[0]

	applied, err := m.target.IsApplied(ctx, version)
	if err != nil {
		return err
	}
	if applied {
		m.logger.Debug().Str("file", filename).Msg("Migration already applied, skipping")
		return nil
	}

	content, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", filename, err)
	}
	if err := m.target.Apply(ctx, version, string(content)); err != nil {
		return fmt.Errorf("error applying migration %s: %w", filename, err)
	}

	m.logger.Info().Str("file", filename).Msg("Migration applied")
	return nil
}
