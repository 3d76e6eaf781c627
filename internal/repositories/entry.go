package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

// EntryRecord is a journaled ledger entry.
type EntryRecord struct {
	Sequence  int
	SessionID string
	Entry     models.LedgerEntry
	UpdatedAt time.Time
}

// EntryRepository persists ledger entries. Entries are inserted on first sight and only their status changes
// afterwards, mirroring the ledger.
type EntryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewEntryRepository creates a new EntryRepository with the given database connection
func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db, now: time.Now}
}

// Record inserts entry for the session, or updates its status if it was already recorded.
func (r *EntryRepository) Record(sessionID string, entry models.LedgerEntry) error {
	now := r.now()

	result, err := r.db.Exec(`UPDATE entries SET status = ?, updated_at = ? WHERE id = ?`, string(entry.Status), now, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	query := `
		INSERT INTO entries (id, sequence, session_id, item_id, title, artist, duration_ms, artwork, contributed_by, rationale, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = withTx(r.db, func(tx *sql.Tx) error {
		sequence, err := nextSequence(tx, sessionID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(query,
			entry.ID,
			sequence,
			sessionID,
			entry.Item.ID,
			entry.Item.Title,
			entry.Item.Artist,
			entry.Item.Duration.Milliseconds(),
			entry.Item.Artwork,
			string(entry.ContributedBy),
			entry.Rationale,
			string(entry.Status),
			entry.CreatedAt,
			now,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

// Get retrieves an entry by ID.
func (r *EntryRepository) Get(id string) (*EntryRecord, error) {
	query := `
		SELECT sequence, session_id, id, item_id, title, artist, duration_ms, artwork, contributed_by, rationale, status, created_at, updated_at
		FROM entries
		WHERE id = ?
	`

	rec, err := r.scan(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrEntryNotFound, id)
	}
	return rec, err
}

// ListBySession retrieves a session's entries in the order they were created.
func (r *EntryRepository) ListBySession(sessionID string) ([]*EntryRecord, error) {
	query := `
		SELECT sequence, session_id, id, item_id, title, artist, duration_ms, artwork, contributed_by, rationale, status, created_at, updated_at
		FROM entries
		WHERE session_id = ?
		ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*EntryRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// scan reads one row. sql.ErrNoRows is returned unwrapped.
func (r *EntryRepository) scan(row scanner) (*EntryRecord, error) {
	var (
		rec         EntryRecord
		durationMS  int64
		contributor string
		status      string
	)

	err := row.Scan(
		&rec.Sequence,
		&rec.SessionID,
		&rec.Entry.ID,
		&rec.Entry.Item.ID,
		&rec.Entry.Item.Title,
		&rec.Entry.Item.Artist,
		&durationMS,
		&rec.Entry.Item.Artwork,
		&contributor,
		&rec.Entry.Rationale,
		&status,
		&rec.Entry.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	rec.Entry.Item.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Entry.ContributedBy = models.Contributor(contributor)
	rec.Entry.Status = models.Status(status)
	return &rec, nil
}

// EntryRecorder journals every entry the ledger reports. Write failures are logged, never propagated, so a
// broken database cannot stall the session.
type EntryRecorder struct {
	repo      *EntryRepository
	sessionID string
	logger    *log.Logger
}

func NewEntryRecorder(repo *EntryRepository, sessionID string, logger *log.Logger) *EntryRecorder {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &EntryRecorder{repo: repo, sessionID: sessionID, logger: logger}
}

// Observe has the signature of ledger.Observer.
func (r *EntryRecorder) Observe(entry models.LedgerEntry) {
	if err := r.repo.Record(r.sessionID, entry); err != nil {
		r.logger.Error("failed to journal entry", "entry", entry.ID, "status", entry.Status, "error", err)
	}
}
