package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/duet/internal/shared"
)

// SessionRecord is a persisted listening session.
type SessionRecord struct {
	ID        string     `json:"id"`
	Persona   string     `json:"persona"`
	Catalog   string     `json:"catalog"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SessionRepository persists [SessionRecord] rows.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Start inserts a new session with a generated ID.
func (r *SessionRepository) Start(persona, catalog string) (*SessionRecord, error) {
	rec := &SessionRecord{
		ID:        shared.GenerateID(),
		Persona:   persona,
		Catalog:   catalog,
		StartedAt: r.now(),
	}

	query := `INSERT INTO sessions (id, persona, catalog, started_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.Exec(query, rec.ID, rec.Persona, rec.Catalog, rec.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return rec, nil
}

// End stamps ended_at on a running session.
func (r *SessionRepository) End(id string) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found or already ended: %s", id)
	}

	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*SessionRecord, error) {
	query := `SELECT id, persona, catalog, started_at, ended_at FROM sessions WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// Latest retrieves the most recently started session.
func (r *SessionRepository) Latest() (*SessionRecord, error) {
	query := `SELECT id, persona, catalog, started_at, ended_at FROM sessions ORDER BY started_at DESC LIMIT 1`
	return r.scan(r.db.QueryRow(query))
}

// List retrieves up to limit sessions, newest first. A non-positive limit returns all of them.
func (r *SessionRepository) List(limit int) ([]*SessionRecord, error) {
	query := `SELECT id, persona, catalog, started_at, ended_at FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*SessionRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SessionRepository) scan(row scanner) (*SessionRecord, error) {
	var (
		rec     SessionRecord
		endedAt sql.NullTime
	)

	err := row.Scan(&rec.ID, &rec.Persona, &rec.Catalog, &rec.StartedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return &rec, nil
}
