// Package ledger owns the session's queue and history.
//
// The queue holds entries that have not started playing, tagged [models.UpNext] or [models.Backup].
// The history holds entries that have started ([models.Playing]) or finished ([models.Played]) playing.
// An entry moves from queue to history exactly once and never back.
//
// # Concurrency
//
// All mutators take a write lock, so mutations are linearizable; readers share a read lock and receive
// copies. Observers registered with [WithObserver] are called after the write lock is released, in
// mutation order, and must not mutate the ledger.
//
// # Turns
//
// [CurrentTurn], [PriorityTagForNextAutomatedItem] and [PriorityTagAfter] derive whose turn it is and
// where an automated contribution belongs in the queue. They are pure functions of a history snapshot.
package ledger
