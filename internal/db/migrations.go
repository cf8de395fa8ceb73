package db

import (
	"context"
	"fmt"
)

// Migrate creates the two durable relations if they do not exist yet.
// Status rows are append-only; nothing here ever drops or rewrites data.
func (d *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			phone TEXT,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS status (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			was_online DATETIME,
			recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_status_user_id ON status(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_status_recorded_at ON status(recorded_at)`,
	}

	for i, migration := range migrations {
		if _, err := d.SQL.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
