package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/telesync/internal/store/migrations"
)

// ErrDirtySchema means an earlier migration stopped partway through.
var ErrDirtySchema = errors.New("schema left dirty by an interrupted migration")

// Migration reports the schema version before and after Migrate. Version 0
// is an empty database.
type Migration struct {
	From uint
	To   uint
}

// Changed reports whether any migration ran.
func (m *Migration) Changed() bool { return m.From != m.To }

// Migrate brings the schema to the newest embedded version. A dirty schema
// is refused, not forced.
func (db *DB) Migrate() (*Migration, error) {
	m, err := db.migrator()
	if err != nil {
		return nil, err
	}

	from, err := schemaVersion(m)
	if err != nil {
		return nil, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("migrate from version %d: %w", from, err)
	}
	to, err := schemaVersion(m)
	if err != nil {
		return nil, err
	}
	return &Migration{From: from, To: to}, nil
}

// SchemaVersion returns the applied schema version without migrating.
func (db *DB) SchemaVersion() (uint, error) {
	m, err := db.migrator()
	if err != nil {
		return 0, err
	}
	return schemaVersion(m)
}

// The migrate instance is not closed: closing it would close db.
func (db *DB) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}
	return m, nil
}

func schemaVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("schema version: %w", err)
	case dirty:
		return v, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}
	return v, nil
}
