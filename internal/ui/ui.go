package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/duet/internal/ledger"
	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
	"github.com/desertthunder/duet/internal/tasks"
)

const refreshInterval = 500 * time.Millisecond

var clipboardWriteAll = clipboard.WriteAll

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	ContributeView
	HistoryView
)

// Controller is the part of a running session the TUI drives. *session.Session implements it.
type Controller interface {
	Snapshot() ledger.Snapshot
	Thinking() bool
	Turn() models.Turn
	ContributeQuery(ctx context.Context, artist, title string) (models.LedgerEntry, error)
	SkipTo(ctx context.Context, entryID string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	session  Controller
	progress <-chan tasks.ProgressUpdate

	snapshot ledger.Snapshot
	thinking bool
	turn     models.Turn
	last     tasks.ProgressUpdate
	status   string
	err      error

	queueList   list.Model
	historyList list.Model
	input       textinput.Model
	spinner     spinner.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
}

// NewModel creates a new TUI model. progress may be nil; otherwise it should be the channel the turn engine
// reports to.
func NewModel(ctx context.Context, session Controller, progress <-chan tasks.ProgressUpdate) *Model {
	input := textinput.New()
	input.Placeholder = "Artist - Title"
	input.CharLimit = 200
	input.Width = 60

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	spin.Style = styles.automated

	return &Model{
		ctx:         ctx,
		view:        QueueView,
		session:     session,
		progress:    progress,
		queueList:   newEntryList("Queue"),
		historyList: newEntryList("History"),
		input:       input,
		spinner:     spin,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init syncs the session state and starts the refresh, progress and spinner loops.
func (m *Model) Init() tea.Cmd {
	m.sync()
	return tea.Batch(m.tick(), m.waitForProgress(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.queueList.SetSize(msg.Width-4, msg.Height-12)
		m.historyList.SetSize(msg.Width-4, msg.Height-12)
		m.input.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueueView:
			return m.handleQueueKeys(msg)
		case ContributeView:
			return m.handleContributeKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		}

	case tickMsg:
		m.sync()
		return m, m.tick()

	case progressMsg:
		m.last = tasks.ProgressUpdate(msg)
		m.sync()
		return m, m.waitForProgress()

	case contributedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = fmt.Sprintf("Queued %s", msg.entry.Item)
		} else {
			m.status = ""
		}
		m.sync()
		return m, nil

	case skippedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = fmt.Sprintf("Skipped to %s", msg.entry.Item)
		} else {
			m.status = ""
		}
		m.sync()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("duet"))
	b.WriteString("\n")
	b.WriteString(m.renderNowPlaying())
	b.WriteString("\n")
	b.WriteString(m.renderTurn())
	b.WriteString("\n\n")

	switch m.view {
	case QueueView:
		b.WriteString(m.renderQueue())
	case ContributeView:
		b.WriteString(m.renderContribute())
	case HistoryView:
		b.WriteString(m.historyList.View())
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(styles.ok.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.add):
		m.view = ContributeView
		m.err = nil
		m.input.Reset()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.history):
		m.view = HistoryView
		return m, nil
	case key.Matches(msg, m.keys.yank):
		m.yankCurrent()
		return m, nil
	case key.Matches(msg, m.keys.skip):
		if selected, ok := m.queueList.SelectedItem().(entryItem); ok {
			return m, m.skipTo(selected.entry)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

// yankCurrent copies "Artist - Title" of the playing entry to the system clipboard.
func (m *Model) yankCurrent() {
	current := m.snapshot.Current
	if current == nil {
		m.status = "Nothing playing"
		return
	}
	if err := clipboardWriteAll(current.Item.String()); err != nil {
		m.err = fmt.Errorf("clipboard: %w", err)
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("Copied %s", current.Item)
}

func (m *Model) handleContributeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = QueueView
		m.input.Blur()
		return m, nil
	case "enter":
		artist, title, err := shared.ParseArtistTitle(m.input.Value())
		if err != nil {
			m.err = err
			return m, nil
		}
		m.view = QueueView
		m.input.Blur()
		m.err = nil
		m.status = fmt.Sprintf("Searching for %s - %s...", artist, title)
		return m, m.contribute(artist, title)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.history):
		m.view = QueueView
		return m, nil
	}

	var cmd tea.Cmd
	m.historyList, cmd = m.historyList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case QueueView:
		m.queueList, cmd = m.queueList.Update(msg)
	case HistoryView:
		m.historyList, cmd = m.historyList.Update(msg)
	}
	return m, cmd
}

// sync copies the session state into the model.
func (m *Model) sync() {
	m.snapshot = m.session.Snapshot()
	m.thinking = m.session.Thinking()
	m.turn = m.session.Turn()
	m.queueList.SetItems(entryItems(m.snapshot.Queue, false))
	m.historyList.SetItems(entryItems(m.snapshot.History, true))
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-m.progress
		if !ok {
			return nil
		}
		return progressMsg(update)
	}
}

func (m *Model) contribute(artist, title string) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.session.ContributeQuery(m.ctx, artist, title)
		return contributedMsg{entry: entry, err: err}
	}
}

func (m *Model) skipTo(entry models.LedgerEntry) tea.Cmd {
	return func() tea.Msg {
		return skippedMsg{entry: entry, err: m.session.SkipTo(m.ctx, entry.ID)}
	}
}

func (m *Model) renderNowPlaying() string {
	current := m.snapshot.Current
	if current == nil {
		return styles.panel.Render(styles.help.Render("Nothing playing"))
	}

	by := styles.Contributor(current.ContributedBy).Render(string(current.ContributedBy))
	line := fmt.Sprintf("▶ %s  (%s)", current.Item, by)
	if current.Rationale != "" {
		line += "\n" + styles.help.Render(current.Rationale)
	}
	return styles.panel.Render(line)
}

func (m *Model) renderTurn() string {
	turn := fmt.Sprintf("Turn: %s", m.turn)
	if !m.thinking {
		return styles.help.Render(turn)
	}

	thinking := "thinking..."
	if m.last.Message != "" {
		thinking = m.last.Message
	}
	return fmt.Sprintf("%s  %s %s", styles.help.Render(turn), m.spinner.View(), styles.warn.Render(thinking))
}

func (m *Model) renderQueue() string {
	if len(m.snapshot.Queue) == 0 {
		return styles.help.Render("Queue is empty. Press a to add a track.")
	}
	return m.queueList.View()
}

func (m *Model) renderContribute() string {
	return fmt.Sprintf("%s\n\n%s", styles.title.Render("Add a track"), m.input.View())
}

func (m *Model) renderHelp() string {
	var keys []key.Binding
	switch m.view {
	case ContributeView:
		keys = []key.Binding{m.keys.submit, m.keys.back}
	case HistoryView:
		keys = []key.Binding{m.keys.up, m.keys.down, m.keys.back, m.keys.quit}
	default:
		keys = m.keys.ShortHelp()
	}
	return m.help.ShortHelpView(keys)
}
