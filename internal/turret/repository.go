package turret

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists and queries fire sessions.
type Repository interface {
	SessionStore
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
}

// timeFormat is fixed-width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// defaultListLimit applies when ListSessions is called with limit <= 0.
const defaultListLimit = 50

const sessionColumns = `id, request_id, requested_count, shots_fired, status,
			failed_step, error_message, balls_remaining, started_at, completed_at, duration_ms`

// SQLiteRepository stores sessions in the fire_sessions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateSession inserts a new session row.
func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	query := `INSERT INTO fire_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.RequestID,
		s.Requested,
		s.Fired,
		string(s.Status),
		s.FailedStep,
		s.Error,
		s.BallsRemaining,
		s.StartedAt.Format(timeFormat),
		nullableTime(s.CompletedAt),
		nullableDuration(s),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// UpdateSession writes the outcome fields of an existing session.
func (r *SQLiteRepository) UpdateSession(ctx context.Context, s *Session) error {
	query := `
		UPDATE fire_sessions SET
			shots_fired = ?, status = ?, failed_step = ?, error_message = ?,
			balls_remaining = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		s.Fired,
		string(s.Status),
		s.FailedStep,
		s.Error,
		s.BallsRemaining,
		nullableTime(s.CompletedAt),
		nullableDuration(s),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession retrieves a session by ID.
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM fire_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return s, nil
}

// ListSessions returns the most recent sessions, newest first.
func (r *SQLiteRepository) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM fire_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning session: %w", scanErr)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var status, startedAt string
	var completedAt sql.NullString
	var duration sql.NullInt64

	if err := row.Scan(
		&s.ID,
		&s.RequestID,
		&s.Requested,
		&s.Fired,
		&status,
		&s.FailedStep,
		&s.Error,
		&s.BallsRemaining,
		&startedAt,
		&completedAt,
		&duration,
	); err != nil {
		return nil, err
	}

	s.Status = SessionStatus(status)
	s.StartedAt, _ = time.Parse(timeFormat, startedAt) //nolint:errcheck // written by CreateSession
	if completedAt.Valid {
		if t, err := time.Parse(timeFormat, completedAt.String); err == nil {
			s.CompletedAt = &t
		}
	}
	if duration.Valid {
		s.DurationMS = duration.Int64
	}
	return &s, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeFormat)
}

func nullableDuration(s *Session) any {
	if s.CompletedAt == nil {
		return nil
	}
	return s.DurationMS
}
