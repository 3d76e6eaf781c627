package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/services"
	"github.com/desertthunder/duet/internal/shared"
)

// Options tunes [Resolver.SearchAndResolve].
type Options struct {
	AcceptThreshold float64
	TopCandidates   int
	MaxResults      int
	PageSize        int
}

// DefaultOptions returns the thresholds used when none are configured.
func DefaultOptions() Options {
	return Options{AcceptThreshold: 0.7, TopCandidates: 3, MaxResults: MaxSemanticCandidates, PageSize: 50}
}

// OptionsFromConfig converts the [matcher] config section, keeping defaults for zero values.
func OptionsFromConfig(cfg shared.MatcherConfig) Options {
	opts := DefaultOptions()
	if cfg.AcceptThreshold > 0 {
		opts.AcceptThreshold = cfg.AcceptThreshold
	}
	if cfg.TopCandidates > 0 {
		opts.TopCandidates = cfg.TopCandidates
	}
	if cfg.MaxResults > 0 {
		opts.MaxResults = min(cfg.MaxResults, shared.MaxMatchCandidates)
	}
	if cfg.PageSize > 0 {
		opts.PageSize = cfg.PageSize
	}
	return opts
}

// Resolver searches a catalog for a recommendation and picks the matching item.
type Resolver struct {
	catalog services.Catalog
	matcher Matcher
	opts    Options
	logger  *log.Logger
}

func NewResolver(catalog services.Catalog, m Matcher, opts Options, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Resolver{catalog: catalog, matcher: m, opts: opts, logger: logger}
}

// SearchAndResolve queries the catalog with "artist title", falling back to the title alone when that finds
// nothing. It first matches against the top candidates, then against the result set capped at
// [shared.MaxMatchCandidates]; a match is accepted only when its confidence reaches the accept threshold.
//
// Returns [shared.ErrNoMatch] when nothing qualifies. Catalog errors are returned wrapped as they are.
func (r *Resolver) SearchAndResolve(ctx context.Context, rec models.Recommendation) (*models.Item, models.MatchResult, error) {
	results, err := r.search(ctx, rec)
	if err != nil {
		return nil, models.MatchResult{}, err
	}
	if len(results) == 0 {
		return nil, models.MatchResult{}, fmt.Errorf("%w: catalog returned nothing for %q", shared.ErrNoMatch, rec.String())
	}

	top := results[:min(r.opts.TopCandidates, len(results))]
	result, ok, err := r.try(ctx, rec, top)
	if err != nil {
		return nil, result, err
	}
	if ok {
		return result.Item, result, nil
	}

	if len(results) > len(top) {
		result, ok, err = r.try(ctx, rec, results[:min(len(results), shared.MaxMatchCandidates)])
		if err != nil {
			return nil, result, err
		}
		if ok {
			return result.Item, result, nil
		}
	}

	return nil, result, fmt.Errorf("%w: best confidence %.2f below %.2f for %q",
		shared.ErrNoMatch, result.Confidence, r.opts.AcceptThreshold, rec.String())
}

func (r *Resolver) search(ctx context.Context, rec models.Recommendation) ([]models.Item, error) {
	title := strings.TrimSpace(rec.Title)
	query := strings.TrimSpace(strings.TrimSpace(rec.Artist) + " " + title)
	if query == "" {
		return nil, fmt.Errorf("%w: empty recommendation", shared.ErrNoMatch)
	}

	results, err := r.catalog.Search(ctx, query, r.opts.PageSize, r.opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("catalog search %q: %w", query, err)
	}
	if len(results) > 0 || title == "" || title == query {
		return results, nil
	}

	r.logger.Debug("no results for full query, retrying with title", "query", query, "title", title)
	results, err = r.catalog.Search(ctx, title, r.opts.PageSize, r.opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("catalog search %q: %w", title, err)
	}
	return results, nil
}

// try runs the matcher over candidates. ok reports an accepted match; err is only set for cancellation.
func (r *Resolver) try(ctx context.Context, rec models.Recommendation, candidates []models.Item) (models.MatchResult, bool, error) {
	result, err := r.matcher.FindMatch(ctx, rec, candidates)
	if err != nil {
		if ctx.Err() != nil {
			return models.MatchResult{}, false, ctx.Err()
		}
		r.logger.Warn("matcher produced no answer", "candidates", len(candidates), "error", err)
		return models.MatchResult{}, false, nil
	}

	accepted := result.Found() && result.Confidence >= r.opts.AcceptThreshold
	r.logger.Debug("match attempt",
		"candidates", len(candidates), "matcher", result.Matcher,
		"confidence", result.Confidence, "accepted", accepted)
	return result, accepted, nil
}
