package main

import (
	"log/slog"

	"github.com/example/apicatalog/internal/dbmigrate"
)

// ApplyMigrations brings the Postgres schema up to date before the store
// connects. An already current schema is not an error.
func ApplyMigrations(logger *slog.Logger, migrationsDir, dbURL string) error {
	m, err := dbmigrate.Open(migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	before, _, err := m.Version()
	if err != nil {
		return err
	}
	changed, err := m.Up(0)
	if err != nil {
		return err
	}
	if !changed {
		logger.Info("database is up to date", "version", before)
		return nil
	}
	after, _, _ := m.Version()
	logger.Info("migrated database", "from", before, "to", after)
	return nil
}
