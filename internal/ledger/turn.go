package ledger

import "github.com/desertthunder/duet/internal/models"

// CurrentTurn maps a history to whose turn it is.
//
// Empty history: the human starts. After a human entry: the automated actor. After an automated
// entry: the human, with an automated backup queued in case they do not act.
func CurrentTurn(history []models.LedgerEntry) models.Turn {
	if len(history) == 0 {
		return models.TurnHuman
	}
	if history[len(history)-1].ContributedBy == models.Human {
		return models.TurnAutomated
	}
	return models.TurnHumanWithBackup
}

// PriorityTagForNextAutomatedItem is [models.UpNext] when it is the automated actor's turn and
// [models.Backup] otherwise.
func PriorityTagForNextAutomatedItem(history []models.LedgerEntry) models.Status {
	if CurrentTurn(history) == models.TurnAutomated {
		return models.UpNext
	}
	return models.Backup
}

// PriorityTagAfter is the tag for the automated prefetch scheduled when an entry contributed by c
// starts playing.
func PriorityTagAfter(c models.Contributor) models.Status {
	if c == models.Human {
		return models.UpNext
	}
	return models.Backup
}
