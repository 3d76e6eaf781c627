package tasks

import (
	"fmt"

	"github.com/desertthunder/duet/internal/models"
)

// ProgressUpdate represents a progress event during an automated turn.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current attempt number
	Total   int    // Attempts allowed for the turn
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pipeline phase enumeration
type Phase int

const (
	Recommend Phase = iota
	RepeatRetry
	Search
	Validate
	Commit
	Abort
)

func (p Phase) String() string {
	switch p {
	case Recommend:
		return "recommend"
	case RepeatRetry:
		return "repeat_retry"
	case Search:
		return "search"
	case Validate:
		return "validate"
	case Commit:
		return "commit"
	case Abort:
		return "abort"
	default:
		return ""
	}
}

func recommendUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recommend,
		Step:    step,
		Total:   total,
		Message: "Asking for a recommendation...",
	}
}

func repeatRetryUpdate(step, total int, rec *models.Recommendation) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RepeatRetry,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s was already played, asking again...", rec),
		Data:    rec,
	}
}

func searchUpdate(step, total int, rec *models.Recommendation) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Search,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Searching the catalog for %s...", rec),
		Data:    rec,
	}
}

func validateUpdate(step, total int, item *models.Item) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Validate,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Checking %s against the persona...", item),
		Data:    item,
	}
}

func commitUpdate(step, total int, entry *models.LedgerEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Commit,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Queued %s (%s)", entry.Item, entry.Status),
		Data:    entry,
	}
}

func abortUpdate(step, total int, outcome Outcome, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Abort,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Turn %s: %s", outcome, reason),
		Data:    outcome,
	}
}
