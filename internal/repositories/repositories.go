package repositories

import (
	"database/sql"
	"fmt"
)

// withTx runs fn in a transaction, committing only if fn succeeds.
func withTx(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// nextSequence returns the next entry number within a session, starting at 1.
func nextSequence(tx *sql.Tx, sessionID string) (int, error) {
	var sequence int
	err := tx.QueryRow(`SELECT COALESCE(MAX(sequence), 0) + 1 FROM entries WHERE session_id = ?`, sessionID).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get next sequence: %w", err)
	}
	return sequence, nil
}
