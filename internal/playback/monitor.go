// Package playback watches the playback transport and reports when the current item finishes.
//
// [Monitor] is a poll-driven state machine over (last tracked id, end signaled). It marks the ledger's current
// entry played and emits a [Finished] event at most once per tracked item. Events are delivered on a buffered
// channel with a non-blocking send, so a slow consumer never stalls polling; the consumer advances the ledger.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/duet/internal/services"
	"github.com/desertthunder/duet/internal/shared"
)

const (
	DefaultPollInterval    = time.Second
	DefaultFinishThreshold = 0.97
	defaultBuffer          = 8
)

// Tracker is the part of the ledger the monitor updates.
type Tracker interface {
	MarkCurrentPlayed()
	UpdateCurrentlyPlayingByExternalID(id string) bool
}

// Finished is emitted once when the tracked item reaches the finish threshold or disappears.
type Finished struct {
	ItemID string
	At     time.Time
}

// Options tunes a [Monitor]. Zero values take the defaults.
type Options struct {
	PollInterval    time.Duration
	FinishThreshold float64
	Buffer          int
}

// OptionsFromConfig converts the [playback] config section.
func OptionsFromConfig(cfg shared.PlaybackConfig) Options {
	return Options{PollInterval: cfg.PollInterval(), FinishThreshold: cfg.FinishThreshold}
}

// Monitor polls a [services.Transport] and detects the end of each item.
type Monitor struct {
	transport services.Transport
	tracker   Tracker
	interval  time.Duration
	threshold float64
	logger    *log.Logger
	finished  chan Finished
	now       func() time.Time

	mu       sync.Mutex
	lastID   string
	signaled bool
	endedID  string // id whose end was signaled before it disappeared
}

func NewMonitor(transport services.Transport, tracker Tracker, opts Options, logger *log.Logger) *Monitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FinishThreshold <= 0 || opts.FinishThreshold > 1 {
		opts.FinishThreshold = DefaultFinishThreshold
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &Monitor{
		transport: transport,
		tracker:   tracker,
		interval:  opts.PollInterval,
		threshold: opts.FinishThreshold,
		logger:    logger,
		finished:  make(chan Finished, opts.Buffer),
		now:       time.Now,
	}
}

// Finished returns the channel of end-of-item events. It is closed when [Monitor.Run] returns.
func (m *Monitor) Finished() <-chan Finished {
	return m.finished
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.finished)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Debug("playback monitor started", "interval", m.interval, "threshold", m.threshold)
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("playback monitor stopped")
			return
		case <-ticker.C:
			if _, err := m.Poll(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("playback poll skipped", "error", err)
			}
		}
	}
}

// Poll performs one step of the state machine and reports whether a [Finished] event was signaled.
//
// A transport error leaves the state untouched and is returned.
func (m *Monitor) Poll(ctx context.Context) (bool, error) {
	state, err := m.transport.NowPlaying(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case state == nil:
		if m.lastID == "" {
			return false, nil
		}
		id := m.lastID
		fired := false
		if !m.signaled {
			m.end(id)
			fired = true
		}
		m.endedID = id
		m.lastID, m.signaled = "", false
		return fired, nil

	case state.ItemID != m.lastID:
		m.logger.Debug("new item playing", "item", state.ItemID)
		m.tracker.UpdateCurrentlyPlayingByExternalID(state.ItemID)
		m.lastID = state.ItemID
		// A momentary gap in the transport's report must not re-arm an item that already ended.
		m.signaled = state.ItemID == m.endedID && state.Progress() >= m.threshold
		m.endedID = ""
		return false, nil

	default:
		if m.signaled || state.Progress() < m.threshold {
			return false, nil
		}
		m.end(state.ItemID)
		m.signaled = true
		return true, nil
	}
}

// end marks the current entry played and signals without blocking. Callers hold m.mu.
func (m *Monitor) end(id string) {
	m.tracker.MarkCurrentPlayed()

	select {
	case m.finished <- Finished{ItemID: id, At: m.now()}:
	default:
		m.logger.Warn("finished event dropped, consumer is not keeping up", "item", id)
	}
}
