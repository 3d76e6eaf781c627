// Package session wires the ledger, the playback monitor and the turn engine into a running listening session.
//
// The session is the consumer of the monitor's finished events: it promotes the next entry, starts it on the
// transport and schedules the automated follow-up. Human actions go through [Session.Contribute], which always
// wins over any automated work in flight.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/duet/internal/ledger"
	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/playback"
	"github.com/desertthunder/duet/internal/services"
	"github.com/desertthunder/duet/internal/shared"
	"github.com/desertthunder/duet/internal/tasks"
)

// Session coordinates one listening session.
type Session struct {
	ledger    *ledger.Ledger
	engine    *tasks.TurnEngine
	monitor   *playback.Monitor
	transport services.Transport
	resolver  tasks.Resolver
	logger    *log.Logger

	mu   sync.Mutex // serializes session actions
	base context.Context
}

func New(l *ledger.Ledger, engine *tasks.TurnEngine, monitor *playback.Monitor, transport services.Transport, resolver tasks.Resolver, logger *log.Logger) *Session {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Session{
		ledger:    l,
		engine:    engine,
		monitor:   monitor,
		transport: transport,
		resolver:  resolver,
		logger:    logger,
		base:      context.Background(),
	}
}

// Snapshot returns a consistent copy of the ledger.
func (s *Session) Snapshot() ledger.Snapshot {
	return s.ledger.Snapshot()
}

// Thinking reports whether the automated actor is working on a turn.
func (s *Session) Thinking() bool {
	return s.engine.Thinking()
}

// Turn reports whose turn it is.
func (s *Session) Turn() models.Turn {
	return s.ledger.CurrentTurn()
}

// SetStyle changes the persona and style guide used by the next automated turn.
func (s *Session) SetStyle(persona, styleGuide string) {
	s.engine.SetStyle(persona, styleGuide)
	s.logger.Info("style updated", "persona", persona)
}

// Start runs the playback monitor and consumes its finished events until ctx is done.
//
// Automated turns launched by the session live as long as ctx; on return they are cancelled and waited for.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	go s.monitor.Run(ctx)
	s.logger.Info("session started")

	for ev := range s.monitor.Finished() {
		s.mu.Lock()
		s.finished(ctx, ev)
		s.mu.Unlock()
	}

	s.engine.Cancel()
	s.engine.Wait()
	s.logger.Info("session stopped")
	return nil
}

// Contribute is the human's direct action. It supersedes any automated turn in flight, drops queued automated
// entries, queues item as up next and starts it if nothing is playing.
func (s *Session) Contribute(ctx context.Context, item models.Item) (models.LedgerEntry, error) {
	if item.ID == "" {
		return models.LedgerEntry{}, fmt.Errorf("%w: item has no id", shared.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Cancel()
	if n := s.ledger.ClearAutomatedEntries(); n > 0 {
		s.logger.Debug("dropped automated entries", "count", n)
	}

	entry := s.ledger.Enqueue(item, models.Human, "", models.UpNext)
	s.logger.Info("human contributed", "item", item.String())

	if s.ledger.Current() == nil {
		s.advance(ctx)
	} else {
		s.engine.Launch(s.base, s.ledger.PriorityTagForNextAutomatedItem(), s.afterTurn)
	}
	return entry, nil
}

// ContributeQuery resolves a free-text request through the matcher, then contributes the result.
func (s *Session) ContributeQuery(ctx context.Context, artist, title string) (models.LedgerEntry, error) {
	item, _, err := s.resolver.SearchAndResolve(ctx, models.Recommendation{Title: title, Artist: artist})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return s.Contribute(ctx, *item)
}

// SkipTo discards every queue entry ahead of entryID and starts it.
func (s *Session) SkipTo(ctx context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.RemoveBefore(entryID); err != nil {
		return err
	}
	s.advance(ctx)
	return nil
}

// finished advances past an ended item. The monitor marks the item played before signaling, so an entry
// already playing means a contribution or a committed turn advanced first and the event is stale.
// Callers hold s.mu.
func (s *Session) finished(ctx context.Context, ev playback.Finished) {
	if cur := s.ledger.Current(); cur != nil {
		s.logger.Debug("finished event already handled", "item", ev.ItemID, "playing", cur.Item.ID)
		return
	}
	s.logger.Info("item finished", "item", ev.ItemID)
	s.advance(ctx)
}

// advance promotes the next entry, plays it and schedules the automated follow-up. With an empty queue it
// asks for an automated item, which [Session.afterTurn] starts once committed. Callers hold s.mu.
func (s *Session) advance(ctx context.Context) {
	entry := s.ledger.PromoteNext()
	if entry == nil {
		s.logger.Debug("queue empty, asking for an automated item")
		s.engine.Launch(s.base, s.ledger.PriorityTagForNextAutomatedItem(), s.afterTurn)
		return
	}

	if err := s.transport.Play(ctx, entry.Item); err != nil {
		s.logger.Error("failed to start playback", "item", entry.Item.String(), "error", err)
	}
	s.engine.Launch(s.base, ledger.PriorityTagAfter(entry.ContributedBy), s.afterTurn)
}

// afterTurn starts a freshly committed entry when nothing is playing.
func (s *Session) afterTurn(result *tasks.TurnResult, err error) {
	if err != nil || result == nil || result.Outcome != tasks.Committed {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger.Current() != nil || s.base.Err() != nil {
		return
	}
	s.advance(s.base)
}
