package journal

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

func newMigrator(logger *logrus.Logger, cfg Config) (*migrate.Migrate, error) {
	dir, err := cfg.migrationsDir()
	if err != nil {
		return nil, err
	}
	source := "file://" + dir

	logger.WithFields(logrus.Fields{
		"migrations_path": source,
		"database":        cfg.Name,
	}).Debug("Opening migrator")

	m, err := migrate.New(source, cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending migration.
func RunMigrations(logger *logrus.Logger, cfg Config) error {
	m, err := newMigrator(logger, cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrationStatus returns the current migration version and dirty state
func MigrationStatus(logger *logrus.Logger, cfg Config) (uint, bool, error) {
	m, err := newMigrator(logger, cfg)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	return readVersion(logger, m)
}

type versioner interface {
	Version() (version uint, dirty bool, err error)
}

func readVersion(logger *logrus.Logger, m versioner) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Debug("Migration status retrieved")

	return version, dirty, nil
}

// checkSchema refuses a schema left dirty by a failed migration.
func checkSchema(version uint, dirty bool) error {
	if dirty {
		return fmt.Errorf("journal schema is dirty at version %d, fix it with migrate force", version)
	}
	return nil
}
