// Package db provides catalog database connectivity and schema provisioning.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"
)

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// Open modes.
const (
	ModeRead  = "read"
	ModeWrite = "write"
)

// OpenSQLite opens a *sql.DB pool for the given SQLite file path.
//
// mode controls write-safety and pool sizing:
//   - "read":  read-only and query-only, MaxOpenConns=maxOpen (0 defaults to 4).
//     The file must already exist.
//   - "write": MaxOpenConns=1, WAL journal, _txlock=immediate. Only used to
//     provision new catalogs.
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be \"read\" or \"write\"", mode)
	}
	if mode == ModeRead {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("can not find SQLite database: %s", path)
			}
			return nil, fmt.Errorf("stat sqlite: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	switch mode {
	case ModeWrite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case ModeRead:
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}

// buildDSN constructs a SQLite DSN. Read DSNs use a file: URI so that
// mode=ro reaches SQLite and a missing file is never created.
func buildDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_busy_timeout", defaultBusyTimeout)

	if mode == ModeRead {
		params.Set("mode", "ro")
		params.Set("_query_only", "true")
		return "file:" + path + "?" + params.Encode()
	}

	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}
