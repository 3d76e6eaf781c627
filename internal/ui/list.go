package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/duet/internal/models"
)

var _ list.Item = entryItem{}

// entryItem wraps [models.LedgerEntry] to implement [list.Item].
type entryItem struct {
	entry models.LedgerEntry
}

func (i entryItem) FilterValue() string { return i.entry.Item.String() }
func (i entryItem) Title() string       { return i.entry.Item.String() }
func (i entryItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.entry.ContributedBy, statusLabel(i.entry.Status))
	if i.entry.Rationale != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.entry.Rationale)
	}
	return desc
}

func statusLabel(s models.Status) string {
	switch s {
	case models.UpNext:
		return "up next"
	case models.Backup:
		return "backup"
	case models.Playing:
		return "playing"
	case models.Played:
		return "played"
	default:
		return string(s)
	}
}

// entryItems converts entries to list items. History is shown newest first.
func entryItems(entries []models.LedgerEntry, reverse bool) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		idx := i
		if reverse {
			idx = len(entries) - 1 - i
		}
		items[idx] = entryItem{entry: e}
	}
	return items
}

func newEntryList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 80, 16)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}
