// Package dbmigrate drives golang-migrate against the Postgres schema in the
// migrations directory. The server and the migrate command share it.
package dbmigrate

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// ErrDirty means a previous migration failed halfway; force a version to
// recover.
var ErrDirty = errors.New("database is in a dirty state")

// Migrator owns the database handle it opened.
type Migrator struct {
	db *sql.DB
	m  *migrate.Migrate
}

func Open(migrationsDir, dsn string) (*Migrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return &Migrator{db: db, m: m}, nil
}

func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr, g.db.Close())
}

// Version returns 0 for a database no migration has touched.
func (g *Migrator) Version() (uint, bool, error) {
	v, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Up applies every pending migration, or n of them when n > 0. It reports
// whether anything changed.
func (g *Migrator) Up(n int) (bool, error) {
	if _, dirty, err := g.Version(); err != nil {
		return false, fmt.Errorf("checking migration version: %w", err)
	} else if dirty {
		return false, ErrDirty
	}
	var err error
	if n > 0 {
		err = g.m.Steps(n)
	} else {
		err = g.m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("applying migrations: %w", err)
	}
	return true, nil
}

// Down rolls back n migrations, or all of them when n <= 0.
func (g *Migrator) Down(n int) error {
	var err error
	if n > 0 {
		err = g.m.Steps(-n)
	} else {
		err = g.m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

func (g *Migrator) Force(version int) error {
	if err := g.m.Force(version); err != nil {
		return fmt.Errorf("forcing version: %w", err)
	}
	return nil
}
