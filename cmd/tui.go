package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/duet/internal/server"
	"github.com/desertthunder/duet/internal/shared"
	"github.com/desertthunder/duet/internal/tasks"
	"github.com/desertthunder/duet/internal/ui"
)

// TUI runs a session in the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	progress := make(chan tasks.ProgressUpdate, 32)
	live, err := r.buildSession(ctx, cmd.String("persona"), progress)
	if err != nil {
		return err
	}
	defer live.end(r.logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- live.Start(ctx) }()

	go r.watchStyle(ctx, live, cmd.String("persona"))

	if addr := cmd.String("listen"); addr != "" {
		go func() {
			if err := server.Serve(ctx, addr, server.NewControlRouter(live, r.logger), r.logger); err != nil {
				r.logger.Error("control API stopped", "error", err)
			}
		}()
	}

	model := ui.NewModel(ctx, live, progress)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err = p.Run()
	cancel()
	<-done

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
