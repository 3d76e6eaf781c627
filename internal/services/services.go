package services

import (
	"context"

	"github.com/desertthunder/duet/internal/models"
)

// Catalog searches an external track catalog.
type Catalog interface {
	// Search returns up to maxResults items for query, fetching pageSize results per request.
	Search(ctx context.Context, query string, pageSize, maxResults int) ([]models.Item, error)

	// Name returns the name of the service (e.g., "Spotify", "YouTube Music")
	Name() string
}

// Transport is the playback transport. The core only polls it; Play is used by the session to start
// the entry it just promoted.
type Transport interface {
	// NowPlaying returns the current playback state, or nil when nothing is loaded.
	NowPlaying(ctx context.Context) (*models.PlaybackState, error)

	// Play starts playback of item.
	Play(ctx context.Context, item models.Item) error
}

// RecommendRequest is the context handed to the recommendation service.
type RecommendRequest struct {
	History    []models.LedgerEntry `json:"history"`
	Persona    string               `json:"persona"`
	StyleGuide string               `json:"style_guide"`
}

// Recommender proposes the automated actor's next contribution.
type Recommender interface {
	Recommend(ctx context.Context, req RecommendRequest) (*models.Recommendation, error)
}

// IndexedCandidate is a catalog item labelled with its position in the candidate list.
type IndexedCandidate struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// RankRequest asks the semantic matcher to pick one of the candidates.
type RankRequest struct {
	Recommendation models.Recommendation `json:"recommendation"`
	Candidates     []IndexedCandidate    `json:"candidates"`
}

// RankResponse is the semantic matcher's answer. A nil Index means no candidate matches.
type RankResponse struct {
	Index      *int                   `json:"index"`
	Confidence models.ConfidenceLevel `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
}

// SemanticRanker picks the candidate that best matches a recommendation.
type SemanticRanker interface {
	// Available reports whether the capability is configured and usable.
	Available() bool
	Rank(ctx context.Context, req RankRequest) (*RankResponse, error)
}

// Verdict is the validation service's opinion of a resolved item.
type Verdict struct {
	Valid     bool   `json:"valid"`
	Reasoning string `json:"reasoning"`
}

// Validator checks a resolved item against the persona before it is committed.
type Validator interface {
	Validate(ctx context.Context, item models.Item, persona string) (*Verdict, error)
}
