package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Schema for catalog, orders, inbox, outbox, settings and admin tables.
//
//go:embed sql/*.sql
var schema embed.FS

var drivers = map[string]func(*sql.DB) (database.Driver, error){
	"postgres": func(db *sql.DB) (database.Driver, error) { return postgres.WithInstance(db, &postgres.Config{}) },
	"mysql":    func(db *sql.DB) (database.Driver, error) { return mysql.WithInstance(db, &mysql.Config{}) },
	"sqlite":   func(db *sql.DB) (database.Driver, error) { return sqlite3.WithInstance(db, &sqlite3.Config{}) },
}

// Result describes the schema state after RunMigrations.
type Result struct {
	Version uint
	Applied bool
}

// RunMigrations brings the schema up to date. The migrator is left open
// because closing it would close db.
func RunMigrations(db *sql.DB, dialect string) error {
	_, err := Up(db, dialect)
	return err
}

// Up applies pending migrations and reports the resulting version.
func Up(db *sql.DB, dialect string) (Result, error) {
	if db == nil {
		return Result{}, errors.New("migration: nil database handle")
	}
	newDriver, ok := drivers[dialect]
	if !ok {
		return Result{}, fmt.Errorf("migration: unsupported dialect %q", dialect)
	}

	src, err := iofs.New(schema, "sql")
	if err != nil {
		return Result{}, fmt.Errorf("migration: source: %w", err)
	}
	drv, err := newDriver(db)
	if err != nil {
		return Result{}, fmt.Errorf("migration: %s driver: %w", dialect, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dialect, drv)
	if err != nil {
		return Result{}, fmt.Errorf("migration: %w", err)
	}

	res := Result{Applied: true}
	if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
		res.Applied = false
	} else if err != nil {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			return Result{}, fmt.Errorf("migration: version %d failed half way, fix the schema and force it: %w", dirty.Version, err)
		}
		return Result{}, fmt.Errorf("migration: up: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Result{}, fmt.Errorf("migration: version: %w", err)
	}
	res.Version = version
	return res, nil
}
