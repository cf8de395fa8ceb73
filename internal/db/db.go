package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	SQL *sql.DB
}

// New opens the sqlite database at path and applies the session pragmas.
// The pool is pinned to a single connection: sqlite admits one writer at a
// time, and the pragmas below are per-connection.
func New(ctx context.Context, path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma failed: %w", err)
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{SQL: sqlDB}, nil
}

func (d *DB) Close() {
	if d != nil && d.SQL != nil {
		d.SQL.Close()
	}
}
