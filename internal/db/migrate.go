package db

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Catalog schema kinds.
const (
	KindScia  = "scia"
	KindGosat = "gosat"
)

// RunMigrations applies the embedded schema of the given catalog kind.
func RunMigrations(db *sql.DB, kind string) error {
	if kind != KindScia && kind != KindGosat {
		return fmt.Errorf("unknown catalog kind %q", kind)
	}

	goose.SetBaseFS(EmbedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations/"+kind); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
