// Package ui implements an interactive terminal interface for a listening session using bubbletea's Elm
// architecture.
//
// The TUI shows the playing entry, whose turn it is and, while the automated actor is working, the latest
// turn engine progress next to a spinner. Three views share that header:
//  1. [QueueView] : the queue in play order; enter or s skips to the selected entry
//  2. [ContributeView] : a text input taking "Artist - Title", resolved through the session's matcher
//  3. [HistoryView] : played entries, newest first
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern. It never holds session
// locks: a refresh tick re-reads a [ledger.Snapshot] and progress updates arrive from the turn engine's
// channel, so the UI stays responsive while a turn is in flight.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
