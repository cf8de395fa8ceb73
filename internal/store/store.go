// Package store owns the durable users/status relations. All writes are
// serialized behind a single mutex and run in their own transaction, so a
// crash cannot leave a status row without its user or a half-written record.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"presence-archive/internal/db"
	"presence-archive/internal/models"
)

// ErrIntegrity reports an AppendStatus call for a user id that has no users
// row. Callers must upsert the profile before appending history.
var ErrIntegrity = errors.New("status record references unknown user")

type Store struct {
	db  *db.DB
	mu  sync.Mutex
	log *slog.Logger
}

func New(dbConn *db.DB, log *slog.Logger) *Store {
	return &Store{db: dbConn, log: log}
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.SQL.PingContext(ctx)
}

// UpsertUser inserts the profile or refreshes its fields and updated_at.
// Idempotent.
func (s *Store) UpsertUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedAt := user.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.SQL.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, last_name, phone, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = excluded.phone,
			updated_at = excluded.updated_at
	`, user.ID, user.Username, user.FirstName, user.LastName, user.Phone, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}
	return nil
}

// LastStatus returns the most recent status category for the user, or
// ok=false when no history exists.
func (s *Store) LastStatus(ctx context.Context, userID int64) (models.Status, bool, error) {
	var status models.Status
	err := s.db.SQL.QueryRowContext(ctx, `
		SELECT status FROM status
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read last status for user %d: %w", userID, err)
	}
	return status, true, nil
}

// AppendStatus writes one immutable history row. The users row must already
// exist; the missing-user case is reported as ErrIntegrity before anything
// is written.
func (s *Store) AppendStatus(ctx context.Context, userID int64, status models.Status, wasOnline *time.Time, recordedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, userID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user %d: %w", userID, err)
	}
	if !exists {
		return fmt.Errorf("%w: user %d", ErrIntegrity, userID)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO status (user_id, status, was_online, recorded_at)
		VALUES (?, ?, ?, ?)
	`, userID, status, wasOnline, recordedAt); err != nil {
		return fmt.Errorf("failed to append status for user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}

	s.log.Debug("status_appended", "user_id", userID, "status", string(status))
	return nil
}

// GetUser returns the profile for id, or nil when it is not tracked yet.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	var username, firstName, lastName, phone sql.NullString

	err := s.db.SQL.QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, phone, updated_at
		FROM users
		WHERE id = ?
	`, id).Scan(&user.ID, &username, &firstName, &lastName, &phone, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	user.Username = nullableString(username)
	user.FirstName = nullableString(firstName)
	user.LastName = nullableString(lastName)
	user.Phone = nullableString(phone)
	return user, nil
}

// ListUsers returns every tracked profile joined with its latest status.
func (s *Store) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	rows, err := s.db.SQL.QueryContext(ctx, `
		SELECT
			u.id, u.username, u.first_name, u.last_name, u.phone, u.updated_at,
			st.status, st.recorded_at
		FROM users u
		LEFT JOIN status st ON st.id = (
			SELECT id FROM status
			WHERE user_id = u.id
			ORDER BY id DESC
			LIMIT 1
		)
		ORDER BY u.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.UserSummary, 0)
	for rows.Next() {
		var sum models.UserSummary
		var username, firstName, lastName, phone, status sql.NullString
		var recordedAt sql.NullTime

		if err := rows.Scan(
			&sum.ID, &username, &firstName, &lastName, &phone, &sum.UpdatedAt,
			&status, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}

		sum.Username = nullableString(username)
		sum.FirstName = nullableString(firstName)
		sum.LastName = nullableString(lastName)
		sum.Phone = nullableString(phone)
		if status.Valid {
			st := models.Status(status.String)
			sum.Status = &st
		}
		if recordedAt.Valid {
			t := recordedAt.Time
			sum.RecordedAt = &t
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// StatusHistory returns up to limit history rows for the user, newest first.
func (s *Store) StatusHistory(ctx context.Context, userID int64, limit int) ([]models.StatusRecord, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.SQL.QueryContext(ctx, `
		SELECT id, user_id, status, was_online, recorded_at
		FROM status
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history for user %d: %w", userID, err)
	}
	defer rows.Close()

	records := make([]models.StatusRecord, 0, limit)
	for rows.Next() {
		var rec models.StatusRecord
		var wasOnline sql.NullTime

		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Status, &wasOnline, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		if wasOnline.Valid {
			t := wasOnline.Time
			rec.WasOnline = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
