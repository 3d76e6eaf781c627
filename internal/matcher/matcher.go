package matcher

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/services"
	"github.com/desertthunder/duet/internal/shared"
)

// ErrNoAnswer is returned by a strategy that declines to choose, letting the next one in a [Chain] try.
var ErrNoAnswer = errors.New("matcher declined to answer")

// Matcher picks the candidate that best corresponds to a recommendation.
type Matcher interface {
	Name() string

	// FindMatch returns the best candidate. A result without an item means nothing matched.
	FindMatch(ctx context.Context, rec models.Recommendation, candidates []models.Item) (models.MatchResult, error)
}

// Chain tries each matcher in order and returns the first answer.
type Chain struct {
	matchers []Matcher
	logger   *log.Logger
}

// NewChain builds a fallback chain. Matchers are tried in the order given.
func NewChain(logger *log.Logger, matchers ...Matcher) *Chain {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Chain{matchers: matchers, logger: logger}
}

// NewDefault returns Semantic then Deterministic, or Deterministic alone when ranker is nil.
func NewDefault(ranker services.SemanticRanker, logger *log.Logger) Matcher {
	if ranker == nil {
		return NewDeterministic()
	}
	return NewChain(logger, NewSemantic(ranker), NewDeterministic())
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) FindMatch(ctx context.Context, rec models.Recommendation, candidates []models.Item) (models.MatchResult, error) {
	var lastErr error
	for _, m := range c.matchers {
		result, err := m.FindMatch(ctx, rec, candidates)
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return models.MatchResult{}, ctx.Err()
		}

		lastErr = err
		if !errors.Is(err, ErrNoAnswer) {
			c.logger.Warn("matcher failed, falling back", "matcher", m.Name(), "error", err)
		} else {
			c.logger.Debug("matcher declined, falling back", "matcher", m.Name())
		}
	}

	if lastErr == nil {
		lastErr = ErrNoAnswer
	}
	return models.MatchResult{}, lastErr
}
