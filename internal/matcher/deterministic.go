package matcher

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

const (
	titleWeight  = 0.6
	artistWeight = 0.4

	// titleMatchConfidence is the medium level a title-only match never drops below.
	titleMatchConfidence = 0.7
)

// Deterministic scores candidates by normalized title and artist similarity.
//
// An exact match on both fields scores 1.0 and an exact title alone scores at least 0.7. Otherwise the score
// is 0.6 * title similarity + 0.4 * artist similarity, where similarity is 1 for equal normalized strings and
// token Jaccard otherwise.
type Deterministic struct{}

func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

func (d *Deterministic) Name() string {
	return "deterministic"
}

// FindMatch never fails. Ties keep the earliest candidate.
func (d *Deterministic) FindMatch(_ context.Context, rec models.Recommendation, candidates []models.Item) (models.MatchResult, error) {
	title := shared.NormalizeText(rec.Title)
	artist := shared.NormalizeText(rec.Artist)

	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := Score(title, artist, shared.NormalizeText(c.Title), shared.NormalizeText(c.Artist))
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return models.MatchResult{Explanation: "no candidate shares a word with the recommendation", Matcher: d.Name()}, nil
	}

	item := candidates[best]
	return models.MatchResult{
		Item:        &item,
		Confidence:  bestScore,
		Explanation: fmt.Sprintf("candidate %d scored %.2f on title and artist", best, bestScore),
		Matcher:     d.Name(),
	}, nil
}

// Score compares already normalized title/artist pairs.
func Score(wantTitle, wantArtist, title, artist string) float64 {
	if wantTitle == title && wantArtist == artist {
		return 1.0
	}
	score := titleWeight*Similarity(wantTitle, title) + artistWeight*Similarity(wantArtist, artist)
	if title != "" && wantTitle == title {
		return max(score, titleMatchConfidence)
	}
	return score
}

// Similarity is 1 for equal strings and the Jaccard index of their word sets otherwise.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}

	ta := lo.Uniq(shared.Tokens(a))
	tb := lo.Uniq(shared.Tokens(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := len(lo.Intersect(ta, tb))
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}
