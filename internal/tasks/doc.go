// Package tasks orchestrates the automated actor's turn with real-time progress reporting.
//
// # Pipeline
//
// [TurnEngine.RunAutomatedTurn] runs, for each attempt:
//
//  1. Recommend : ask the [services.Recommender] for a proposal, given history, persona and style guide
//  2. Repeat guard : if the proposal was already played, ask once more with a style guide that forbids repeats
//     (first attempt only)
//  3. Search : resolve the proposal to a catalog item through the [Resolver]
//  4. Validate : optionally check the item against the persona; failures fail open, an explicit
//     invalid verdict counts as a no-match
//  5. Commit : queue the item as an automated entry with the requested priority tag
//
// A no-match runs the whole pipeline once more with a fresh recommendation. After the second failure the turn
// ends as [Failed]; this is not an error and the session stays playable.
//
// # Cancellation
//
// Each turn holds a generation number and a [context.CancelFunc] owned by the engine. Starting a new turn or
// calling [TurnEngine.Cancel] bumps the generation and cancels the context. Every step is followed by a
// checkpoint that also compares the ledger's human contribution counter with the value seen when the turn
// began; a human contribution ends the turn as [Preempted]. The final check and the enqueue happen under
// the ledger's write lock.
//
// # Progress Reporting
//
// [ProgressUpdate] values are sent on an optional channel with select/default so reporting never blocks the
// pipeline.
package tasks
