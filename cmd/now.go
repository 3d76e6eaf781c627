package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Now prints the transport's playback state.
func (r *Runner) Now(ctx context.Context, cmd *cli.Command) error {
	transport, err := r.Transport(ctx)
	if err != nil {
		return err
	}

	state, err := transport.NowPlaying(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(state, true)
	}

	if state == nil || state.ItemID == "" {
		return r.writePlain("Nothing playing\n")
	}

	icon := "⏸"
	if state.IsPlaying {
		icon = "▶"
	}
	return r.writePlain("%s %s  %s / %s (%.0f%%)\n", icon, state.ItemID,
		formatDuration(state.Position), formatDuration(state.Duration), state.Progress()*100)
}
