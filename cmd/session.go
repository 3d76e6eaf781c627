package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/server"
	"github.com/desertthunder/duet/internal/shared"
	"github.com/desertthunder/duet/internal/tasks"
)

const replHelp = `Commands:
  add Artist - Title   queue a track (also: + Artist - Title)
  skip N|ID            jump to queue entry N or the entry with ID
  queue                show the queue
  history              show what has played
  status               show now playing and whose turn it is
  quit                 end the session
`

// SessionRun runs a session without the terminal UI. Commands are read line by line from the runner's input;
// with --listen the control API is served alongside.
//
// End of input leaves the session running until the process is interrupted.
func (r *Runner) SessionRun(ctx context.Context, cmd *cli.Command) error {
	progress := make(chan tasks.ProgressUpdate, 32)
	live, err := r.buildSession(ctx, cmd.String("persona"), progress)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-progress:
				r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "of", u.Total)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.watchStyle(ctx, live, cmd.String("persona"))
	}()

	if addr := cmd.String("listen"); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Serve(ctx, addr, server.NewControlRouter(live, r.logger), r.logger); err != nil {
				r.logger.Error("control API stopped", "error", err)
			}
		}()
	}

	done := make(chan error, 1)
	go func() { done <- live.Start(ctx) }()

	r.writePlain("Session %s started as %q. Type 'help' for commands.\n", live.record.ID, live.record.Persona)
	if r.repl(ctx, live) {
		cancel()
	}

	<-ctx.Done()
	err = <-done
	wg.Wait()
	live.end(r.logger)
	return err
}

// repl reads commands until quit, end of input, or ctx is done. It reports whether the user asked to quit.
func (r *Runner) repl(ctx context.Context, s sessionController) bool {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	interactive := r.isTerminal()
	for {
		if interactive {
			r.writePlain("%s> ", s.Turn())
		}

		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}
			if quit := r.handleLine(ctx, s, line); quit {
				return true
			}
		}
	}
}

// sessionController is the part of a session the line commands drive.
type sessionController = server.Controller

// handleLine executes one REPL command and reports whether it was quit.
func (r *Runner) handleLine(ctx context.Context, s sessionController, line string) bool {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "":
	case "quit", "exit":
		return true
	case "help", "?":
		r.writePlain(replHelp)
	case "add", "+":
		artist, title, err := shared.ParseArtistTitle(rest)
		if err != nil {
			r.writePlain("✗ %v\n", err)
			return false
		}
		entry, err := s.ContributeQuery(ctx, artist, title)
		if err != nil {
			r.writePlain("✗ %v\n", err)
			return false
		}
		r.writePlain("✓ Queued %s\n", entry.Item)
	case "skip":
		id, err := resolveEntry(s.Snapshot().Queue, rest)
		if err == nil {
			err = s.SkipTo(ctx, id)
		}
		if err != nil {
			r.writePlain("✗ %v\n", err)
			return false
		}
		r.writePlain("✓ Skipped\n")
	case "queue":
		queue := s.Snapshot().Queue
		if len(queue) == 0 {
			r.writePlain("Queue is empty.\n")
			return false
		}
		r.writeEntries(queue)
	case "history":
		history := s.Snapshot().History
		if len(history) == 0 {
			r.writePlain("Nothing has played yet.\n")
			return false
		}
		r.writeEntries(history)
	case "status", "now":
		r.writeStatus(s)
	default:
		r.writePlain("Unknown command %q. Type 'help' for commands.\n", verb)
	}
	return false
}

// resolveEntry accepts a 1-based queue position or an entry ID.
func resolveEntry(queue []models.LedgerEntry, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: skip needs a queue position or entry id", shared.ErrMissingArgument)
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(queue) {
			return "", fmt.Errorf("%w: no queue position %d", shared.ErrEntryNotFound, n)
		}
		return queue[n-1].ID, nil
	}
	return ref, nil
}

func (r *Runner) writeStatus(s sessionController) {
	snap := s.Snapshot()
	if snap.Current != nil {
		r.writePlain("▶ %s (%s)\n", snap.Current.Item, snap.Current.ContributedBy)
	} else {
		r.writePlain("Nothing playing\n")
	}

	turn := s.Turn().String()
	if s.Thinking() {
		turn += ", picking a track"
	}
	r.writePlain("Turn: %s\nQueued: %d  Played: %d\n", turn, len(snap.Queue), len(snap.History))
}
