package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

// MatchOutput is the JSON shape printed by the match command.
type MatchOutput struct {
	Query  models.Recommendation `json:"query"`
	Item   *models.Item          `json:"item,omitempty"`
	Result models.MatchResult    `json:"result"`
}

// Match resolves an "Artist - Title" query against the configured catalog without starting a session.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	artist, title, err := shared.ParseArtistTitle(query)
	if err != nil {
		return err
	}

	resolver, err := r.Resolver(ctx)
	if err != nil {
		return err
	}

	rec := models.Recommendation{Title: title, Artist: artist}
	r.logger.Debug("resolving", "query", rec.String())

	item, result, err := resolver.SearchAndResolve(ctx, rec)
	if err != nil && !errors.Is(err, shared.ErrNoMatch) {
		return err
	}

	if cmd.Bool("json") {
		if werr := r.writeJSON(MatchOutput{Query: rec, Item: item, Result: result}, cmd.Bool("pretty")); werr != nil {
			return werr
		}
		return err
	}

	if err != nil {
		r.writePlain("✗ No match for %s\n", rec)
		if result.Explanation != "" {
			r.writePlain("  %s\n", result.Explanation)
		}
		return err
	}

	r.writePlain("✓ %s [%s]\n", item, formatDuration(item.Duration))
	r.writePlain("  id:         %s\n", item.ID)
	r.writePlain("  confidence: %.2f (%s)\n", result.Confidence, result.Matcher)
	if result.Explanation != "" {
		r.writePlain("  reason:     %s\n", result.Explanation)
	}
	return nil
}
