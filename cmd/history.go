package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/duet/internal/formatter"
	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/repositories"
	"github.com/desertthunder/duet/internal/shared"
)

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "running"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// HistoryList prints recorded sessions, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}

	sessions, err := repositories.NewSessionRepository(db).List(int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sessions, true)
	}

	if len(sessions) == 0 {
		return r.writePlain("No sessions recorded yet.\n")
	}

	tw := r.newTable()
	tw.AppendHeader(table.Row{"ID", "Started", "Length", "Persona", "Catalog"})
	for _, s := range sessions {
		length := "running"
		if s.EndedAt != nil {
			length = strings.TrimSpace(humanize.RelTime(s.StartedAt, *s.EndedAt, "", ""))
		}
		tw.AppendRow(table.Row{s.ID, humanize.Time(s.StartedAt), length, s.Persona, s.Catalog})
	}
	tw.Render()
	return nil
}

// journal loads a session and its entries. An empty id selects the latest session.
func (r *Runner) journal(id string) (*formatter.Journal, error) {
	db, err := r.openDB()
	if err != nil {
		return nil, err
	}

	sessions := repositories.NewSessionRepository(db)
	var rec *repositories.SessionRecord
	if id == "" {
		rec, err = sessions.Latest()
	} else {
		rec, err = sessions.Get(id)
	}
	if err != nil {
		return nil, err
	}

	records, err := repositories.NewEntryRepository(db).ListBySession(rec.ID)
	if err != nil {
		return nil, err
	}

	return &formatter.Journal{
		SessionID: rec.ID,
		Persona:   rec.Persona,
		Catalog:   rec.Catalog,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
		Entries: lo.Map(records, func(er *repositories.EntryRecord, _ int) models.LedgerEntry {
			return er.Entry
		}),
	}, nil
}

// HistoryShow prints the entries of one session.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	j, err := r.journal(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(j, true)
	}

	r.writePlainHeader(fmt.Sprintf("Session %s", j.SessionID))
	r.writePlain("Started: %s  Ended: %s\n", formatTime(&j.StartedAt), formatTime(j.EndedAt))
	if j.Persona != "" {
		r.writePlain("Persona: %s\n", j.Persona)
	}

	counts := j.Counts()
	r.writePlain("Played:  %d (%d human, %d automated)\n\n", len(j.Played()), counts[models.Human], counts[models.Automated])

	if len(j.Entries) == 0 {
		return r.writePlain("No entries recorded.\n")
	}
	r.writeEntries(j.Entries)
	return nil
}

// HistoryExport writes a session journal in the chosen format.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	j, err := r.journal(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	output := cmd.String("output")
	switch format := strings.ToLower(cmd.String("format")); format {
	case "csv":
		path, err := formatter.WriteCSVExport(j, strings.TrimSuffix(output, ".csv"))
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s\n", path)
	case "md", "markdown":
		res, err := formatter.WriteMarkdownExport(j, output, cmd.Bool("cover"))
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s\n", filepath.Join(res.Directory, "README.md"))
		if res.CoverImage != "" {
			r.writePlain("  cover: %s\n", res.CoverImage)
		}
	case "txt", "text":
		path, err := formatter.WriteTextExport(j, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s\n", path)
	case "json":
		data, err := formatter.ToJSON(j)
		if err != nil {
			return err
		}
		if output == "" {
			_, err = r.output.Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return err
		}
		r.writePlain("✓ Exported %s\n", output)
	default:
		return fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}

	r.logger.Debug("exported session", "session", j.SessionID, "entries", len(j.Entries))
	return nil
}
