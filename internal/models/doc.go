// Package models defines the value types shared by the session core and its collaborators.
//
// The package contains two categories of types:
//
// 1. Catalog and playback DTOs, produced by external services
//   - [Item] : a catalog track (external id, title, artist, duration, artwork)
//   - [PlaybackState] : what the playback transport reports as now playing
//
// 2. Session entities, owned by the ledger and the orchestration pipeline
//   - [LedgerEntry] : one contribution with its lifecycle [Status]
//   - [Recommendation] : a free-text proposal from the recommendation service
//   - [MatchResult] : a resolved catalog item with a confidence score
//   - [Turn] : derived whose-turn-is-it state, never stored
//
// Entries are immutable except for their Status; the ledger hands out copies.
package models
