// Package migrate applies the embedded driver-registration schema with golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"parkncharge/registration/internal/db"
)

// Direction selects whether migrations are applied or rolled back.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

var (
	// ErrNoChange is returned when the schema is already at the target version.
	ErrNoChange = migrate.ErrNoChange
	// ErrNoDSN is returned when no database URL was given.
	ErrNoDSN = errors.New("DATABASE_URL is not set; create a .env or export DATABASE_URL")
)

// ParseDirection accepts exactly "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	}
	return "", fmt.Errorf("direction must be up or down, got %q", s)
}

// Run applies (Up) or rolls back (Down) all embedded migrations against dsn.
// Already being at the target version is not an error.
func Run(dsn string, direction Direction) error {
	if dsn == "" {
		return ErrNoDSN
	}
	if _, err := ParseDirection(string(direction)); err != nil {
		return err
	}

	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if direction == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Version reports the applied schema version and whether the last migration left it dirty.
func Version(dsn string) (version uint, dirty bool, err error) {
	if dsn == "" {
		return 0, false, ErrNoDSN
	}
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, false, err
	}
	defer func() { _, _ = m.Close() }()
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
