package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/kentoooo/mellowq/log"
)

//go:embed migrations
var dbMigrations embed.FS

// migrateLogger routes golang-migrate output to our logger.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Debugf("db.migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return false
}

// migrateDB brings the schema (tables, unique constraints and indexes) up to date.
// Running it on an up to date database is a no-op.
func migrateDB(db *sql.DB) error {
	src, err := iofs.New(dbMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("db.migrate.source: %w", err)
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("db.migrate.driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return fmt.Errorf("db.migrate.init: %w", err)
	}
	migrator.Log = migrateLogger{}

	if err = migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db.migrate.up: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("db.migrate.version: %w", err)
	}
	if dirty {
		return fmt.Errorf("db.migrate: schema version %d is dirty", version)
	}
	log.Debugf("db.migrate: schema at version %d", version)
	return nil
}
