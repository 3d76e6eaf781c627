package ui

import (
	"time"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/tasks"
)

// tickMsg asks the model to re-read the session state.
type tickMsg time.Time

// progressMsg carries one update from the turn engine.
type progressMsg tasks.ProgressUpdate

// contributedMsg reports the outcome of a human contribution.
type contributedMsg struct {
	entry models.LedgerEntry
	err   error
}

// skippedMsg reports the outcome of a skip.
type skippedMsg struct {
	entry models.LedgerEntry
	err   error
}
