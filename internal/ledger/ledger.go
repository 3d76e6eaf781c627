package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

// Observer receives a copy of every entry that was created or changed status.
type Observer func(models.LedgerEntry)

// Option configures a [Ledger].
type Option func(*Ledger)

// WithObserver registers an [Observer].
func WithObserver(o Observer) Option {
	return func(l *Ledger) {
		l.observers = append(l.observers, o)
	}
}

// WithClock overrides the clock used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Snapshot is a consistent copy of the ledger at one point in time.
type Snapshot struct {
	Queue   []models.LedgerEntry
	History []models.LedgerEntry
	Current *models.LedgerEntry
}

// Ledger is the queue + history store of a session.
type Ledger struct {
	mu                 sync.RWMutex
	notifyMu           sync.Mutex
	queue              []*models.LedgerEntry
	history            []*models.LedgerEntry
	current            *models.LedgerEntry // points into history
	humanContributions uint64
	observers          []Observer
	now                func() time.Time
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// mutate runs fn under the write lock, then hands the changed entries to observers.
//
// notifyMu is taken before the write lock is released so observers see changes in mutation order.
func (l *Ledger) mutate(fn func() []models.LedgerEntry) {
	l.mu.Lock()
	changed := fn()
	l.notifyMu.Lock()
	l.mu.Unlock()
	defer l.notifyMu.Unlock()

	for _, e := range changed {
		for _, o := range l.observers {
			o(e)
		}
	}
}

// Enqueue appends a new entry to the tail of the queue and returns it.
//
// status must be [models.UpNext] or [models.Backup]; anything else is queued as UpNext.
func (l *Ledger) Enqueue(item models.Item, by models.Contributor, rationale string, status models.Status) models.LedgerEntry {
	entry, _ := l.enqueue(item, by, rationale, status, nil)
	return entry
}

// EnqueueUnlessPreempted enqueues like [Ledger.Enqueue] only if [Ledger.HumanContributions] still equals
// seen when the write lock is held. ok is false, and nothing is queued, when the human contributed since.
func (l *Ledger) EnqueueUnlessPreempted(item models.Item, by models.Contributor, rationale string, status models.Status, seen uint64) (models.LedgerEntry, bool) {
	return l.enqueue(item, by, rationale, status, &seen)
}

func (l *Ledger) enqueue(item models.Item, by models.Contributor, rationale string, status models.Status, seen *uint64) (models.LedgerEntry, bool) {
	if !status.Queued() {
		status = models.UpNext
	}

	entry := &models.LedgerEntry{
		ID:            shared.GenerateID(),
		Item:          item,
		ContributedBy: by,
		CreatedAt:     l.now(),
		Rationale:     rationale,
		Status:        status,
	}

	ok := true
	l.mutate(func() []models.LedgerEntry {
		if seen != nil && *seen != l.humanContributions {
			ok = false
			return nil
		}
		l.queue = append(l.queue, entry)
		if by == models.Human {
			l.humanContributions++
		}
		return []models.LedgerEntry{*entry}
	})

	if !ok {
		return models.LedgerEntry{}, false
	}
	return *entry, true
}

// PromoteNext moves the highest-priority queue entry into history as the playing entry.
//
// The oldest [models.UpNext] entry wins, then the oldest [models.Backup] entry. Any entry still marked
// playing is marked played first. Returns nil when the queue is empty.
func (l *Ledger) PromoteNext() *models.LedgerEntry {
	var promoted *models.LedgerEntry

	l.mutate(func() []models.LedgerEntry {
		idx := l.nextIndex()
		if idx < 0 {
			return nil
		}

		var changed []models.LedgerEntry
		if prev := l.finishCurrent(); prev != nil {
			changed = append(changed, *prev)
		}

		entry := l.queue[idx]
		l.queue = append(l.queue[:idx:idx], l.queue[idx+1:]...)
		entry.Status = models.Playing
		l.history = append(l.history, entry)
		l.current = entry

		cp := *entry
		promoted = &cp
		return append(changed, cp)
	})

	return promoted
}

// nextIndex returns the queue index PromoteNext would take, or -1.
func (l *Ledger) nextIndex() int {
	backup := -1
	for i, e := range l.queue {
		if e.Status == models.UpNext {
			return i
		}
		if backup < 0 && e.Status == models.Backup {
			backup = i
		}
	}
	return backup
}

// finishCurrent marks the playing entry played and clears the pointer. Caller holds the write lock.
func (l *Ledger) finishCurrent() *models.LedgerEntry {
	if l.current == nil {
		return nil
	}
	prev := l.current
	prev.Status = models.Played
	l.current = nil
	return prev
}

// MarkCurrentPlayed marks the playing entry played. No-op when nothing is playing.
func (l *Ledger) MarkCurrentPlayed() {
	l.mutate(func() []models.LedgerEntry {
		if prev := l.finishCurrent(); prev != nil {
			return []models.LedgerEntry{*prev}
		}
		return nil
	})
}

// UpdateCurrentlyPlayingByExternalID reconciles the ledger with the transport after an out-of-band
// track change. The most recent history entry whose item id matches becomes the playing entry and
// the previously playing entry is marked played. Reports whether a history entry matched.
func (l *Ledger) UpdateCurrentlyPlayingByExternalID(id string) bool {
	found := false

	l.mutate(func() []models.LedgerEntry {
		var match *models.LedgerEntry
		for i := len(l.history) - 1; i >= 0; i-- {
			if l.history[i].Item.ID == id {
				match = l.history[i]
				break
			}
		}
		if match == nil {
			return nil
		}

		found = true
		if match == l.current {
			return nil
		}

		var changed []models.LedgerEntry
		if prev := l.finishCurrent(); prev != nil {
			changed = append(changed, *prev)
		}
		match.Status = models.Playing
		l.current = match
		return append(changed, *match)
	})

	return found
}

// RemoveBefore drops every queue entry ordered before entryID, leaving entryID at the head.
func (l *Ledger) RemoveBefore(entryID string) error {
	var err error

	l.mutate(func() []models.LedgerEntry {
		_, idx, ok := lo.FindIndexOf(l.queue, func(e *models.LedgerEntry) bool { return e.ID == entryID })
		if !ok {
			err = fmt.Errorf("%w: %s", shared.ErrEntryNotFound, entryID)
			return nil
		}
		l.queue = append([]*models.LedgerEntry(nil), l.queue[idx:]...)
		return nil
	})

	return err
}

// ClearAutomatedEntries removes every queue entry contributed by the automated actor and returns how many were removed.
func (l *Ledger) ClearAutomatedEntries() int {
	removed := 0

	l.mutate(func() []models.LedgerEntry {
		kept := lo.Reject(l.queue, func(e *models.LedgerEntry, _ int) bool { return e.ContributedBy == models.Automated })
		removed = len(l.queue) - len(kept)
		l.queue = kept
		return nil
	})

	return removed
}

// HasBeenPlayed reports whether history holds an entry with this artist and title, ignoring case.
func (l *Ledger) HasBeenPlayed(artist, title string) bool {
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)

	l.mu.RLock()
	defer l.mu.RUnlock()

	return lo.ContainsBy(l.history, func(e *models.LedgerEntry) bool {
		return strings.EqualFold(strings.TrimSpace(e.Item.Artist), artist) &&
			strings.EqualFold(strings.TrimSpace(e.Item.Title), title)
	})
}

// HumanContributions is a counter bumped on every human enqueue. Comparing two readings tells whether
// the human acted in between.
func (l *Ledger) HumanContributions() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.humanContributions
}

// Queue returns a copy of the queue in insertion order.
func (l *Ledger) Queue() []models.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyEntries(l.queue)
}

// History returns a copy of the history in play order.
func (l *Ledger) History() []models.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyEntries(l.history)
}

// Current returns the playing entry, or nil.
func (l *Ledger) Current() *models.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return nil
	}
	cp := *l.current
	return &cp
}

// Snapshot returns queue, history and the playing entry read under a single lock.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Snapshot{Queue: copyEntries(l.queue), History: copyEntries(l.history)}
	if l.current != nil {
		cp := *l.current
		s.Current = &cp
	}
	return s
}

// CurrentTurn derives whose turn it is from the current history.
func (l *Ledger) CurrentTurn() models.Turn {
	return CurrentTurn(l.History())
}

// PriorityTagForNextAutomatedItem returns the queue tag a new automated entry should receive now.
func (l *Ledger) PriorityTagForNextAutomatedItem() models.Status {
	return PriorityTagForNextAutomatedItem(l.History())
}

func copyEntries(src []*models.LedgerEntry) []models.LedgerEntry {
	return lo.Map(src, func(e *models.LedgerEntry, _ int) models.LedgerEntry { return *e })
}
