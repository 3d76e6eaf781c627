// Package repositories implements SQLite persistence for the session journal.
//
// Key Implementations:
//   - [SessionRepository] : one row per listening session with its persona and catalog
//   - [EntryRepository] : every ledger entry of a session with its latest status
//   - [EntryRecorder] : adapts [EntryRepository] to a ledger observer
//
// Entries carry a sequence number that restarts at 1 for every session. It is assigned in the same transaction
// as the insert and gives a stable ordering (entry #3 of a session) independent of UUIDs and timestamps.
package repositories
