package matcher

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/services"
	"github.com/desertthunder/duet/internal/shared"
)

// MaxSemanticCandidates bounds the candidate list sent to the ranker.
const MaxSemanticCandidates = shared.MaxMatchCandidates

// Semantic asks a [services.SemanticRanker] to choose among indexed candidates.
//
// Unavailability, ranker errors, empty responses and out-of-range indexes are reported as errors so a
// [Chain] can fall through. An explicit "none" from the ranker is an answer without an item.
type Semantic struct {
	ranker services.SemanticRanker
}

func NewSemantic(ranker services.SemanticRanker) *Semantic {
	return &Semantic{ranker: ranker}
}

func (s *Semantic) Name() string {
	return "semantic"
}

func (s *Semantic) FindMatch(ctx context.Context, rec models.Recommendation, candidates []models.Item) (models.MatchResult, error) {
	if s.ranker == nil || !s.ranker.Available() {
		return models.MatchResult{}, fmt.Errorf("%w: semantic ranker unavailable", ErrNoAnswer)
	}
	if len(candidates) > MaxSemanticCandidates {
		candidates = candidates[:MaxSemanticCandidates]
	}

	req := services.RankRequest{
		Recommendation: rec,
		Candidates: lo.Map(candidates, func(c models.Item, i int) services.IndexedCandidate {
			return services.IndexedCandidate{Index: i, Title: c.Title, Artist: c.Artist}
		}),
	}

	resp, err := s.ranker.Rank(ctx, req)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("semantic rank: %w", err)
	}
	if resp == nil {
		return models.MatchResult{}, fmt.Errorf("%w: empty rank response", ErrNoAnswer)
	}

	if resp.Index == nil {
		return models.MatchResult{Explanation: resp.Reasoning, Matcher: s.Name()}, nil
	}

	idx := *resp.Index
	if idx < 0 || idx >= len(candidates) {
		return models.MatchResult{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrNoAnswer, idx, len(candidates))
	}

	item := candidates[idx]
	return models.MatchResult{
		Item:        &item,
		Confidence:  resp.Confidence.Score(),
		Explanation: resp.Reasoning,
		Matcher:     s.Name(),
	}, nil
}
