// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func listenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "listen",
		Usage: "Serve the session control API on this address (e.g. 127.0.0.1:8787)",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config.toml template",
				Action: r.SetupConfig,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// sessionCommand starts listening sessions
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Run a listening session",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a headless session, reading commands from stdin",
				Flags: []cli.Flag{
					listenFlag(),
					&cli.StringFlag{
						Name:  "persona",
						Usage: "Override the configured persona",
					},
				},
				Action: r.SessionRun,
			},
			{
				Name:    "ui",
				Aliases: []string{"tui"},
				Usage:   "Run a session in the interactive terminal UI",
				Flags: []cli.Flag{
					listenFlag(),
					&cli.StringFlag{
						Name:  "persona",
						Usage: "Override the configured persona",
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Where to write logs while the UI owns the terminal",
						Value: "./tmp/duet-tui.log",
					},
				},
				Action: r.TUI,
			},
		},
	}
}

// matchCommand resolves one free-text request against the catalog
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "match",
		Usage:     "Search the catalog and resolve \"Artist - Title\" to one track",
		ArgsUsage: "\"Artist - Title\"",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			jsonFlag(),
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		},
		Action: r.Match,
	}
}

// nowCommand prints the transport's playback state
func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "now",
		Usage:  "Show what the playback transport is playing",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Now,
	}
}

// historyCommand reads the session journal
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse past sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded sessions, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of sessions to list",
						Value: 20,
					},
					jsonFlag(),
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show the entries of a session (defaults to the latest)",
				ArgsUsage: "[session-id]",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.HistoryShow,
			},
			{
				Name:      "export",
				Usage:     "Export a session journal as csv, md, txt or json",
				ArgsUsage: "[session-id]",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, md, txt or json",
						Value:   "md",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (defaults to the session ID)",
					},
					&cli.BoolFlag{
						Name:  "cover",
						Usage: "Download the first played artwork as the Markdown cover",
					},
				},
				Action: r.HistoryExport,
			},
		},
	}
}
