package matcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/services"
	tu "github.com/desertthunder/duet/internal/testing"
)

var testCandidates = []models.Item{
	{ID: "1", Title: "Teardrop", Artist: "Massive Attack"},
	{ID: "2", Title: "Angel", Artist: "Massive Attack"},
	{ID: "3", Title: "Glory Box", Artist: "Portishead"},
}

func TestSemantic(t *testing.T) {
	ctx := context.Background()
	rec := models.Recommendation{Title: "Angel", Artist: "Massive Attack"}

	t.Run("maps confidence levels", func(t *testing.T) {
		tests := []struct {
			level models.ConfidenceLevel
			want  float64
		}{
			{models.ConfidenceHigh, 0.9},
			{models.ConfidenceMedium, 0.7},
			{models.ConfidenceLow, 0.5},
			{models.ConfidenceUnspecified, 0.6},
		}

		for _, tt := range tests {
			t.Run(string(tt.level), func(t *testing.T) {
				ranker := &tu.MockRanker{Response: &services.RankResponse{Index: tu.IntPtr(1), Confidence: tt.level}}

				result, err := NewSemantic(ranker).FindMatch(ctx, rec, testCandidates)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if result.Item == nil || result.Item.ID != "2" {
					t.Fatalf("expected candidate 2, got %+v", result.Item)
				}
				if result.Confidence != tt.want {
					t.Errorf("expected %v, got %v", tt.want, result.Confidence)
				}
			})
		}
	})

	t.Run("sends indexed candidates capped at 200", func(t *testing.T) {
		many := make([]models.Item, 250)
		for i := range many {
			many[i] = models.Item{ID: fmt.Sprint(i), Title: fmt.Sprintf("Song %d", i)}
		}

		var got services.RankRequest
		ranker := &tu.MockRanker{RankFunc: func(ctx context.Context, req services.RankRequest) (*services.RankResponse, error) {
			got = req
			return &services.RankResponse{Index: tu.IntPtr(199), Confidence: models.ConfidenceHigh}, nil
		}}

		result, err := NewSemantic(ranker).FindMatch(ctx, rec, many)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got.Candidates) != MaxSemanticCandidates {
			t.Errorf("expected %d candidates, got %d", MaxSemanticCandidates, len(got.Candidates))
		}
		if got.Candidates[42].Index != 42 || got.Candidates[42].Title != "Song 42" {
			t.Errorf("unexpected candidate: %+v", got.Candidates[42])
		}
		if result.Item.ID != "199" {
			t.Errorf("expected item 199, got %s", result.Item.ID)
		}
	})

	t.Run("explicit none is an answer", func(t *testing.T) {
		ranker := &tu.MockRanker{Response: &services.RankResponse{Reasoning: "none fit"}}

		result, err := NewSemantic(ranker).FindMatch(ctx, rec, testCandidates)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Found() {
			t.Errorf("expected no item, got %+v", result.Item)
		}
	})

	t.Run("falls through", func(t *testing.T) {
		tests := []struct {
			name   string
			ranker *tu.MockRanker
		}{
			{"unavailable", &tu.MockRanker{Disabled: true}},
			{"error", &tu.MockRanker{Err: errors.New("boom")}},
			{"nil response", &tu.MockRanker{}},
			{"index out of range", &tu.MockRanker{Response: &services.RankResponse{Index: tu.IntPtr(3)}}},
			{"negative index", &tu.MockRanker{Response: &services.RankResponse{Index: tu.IntPtr(-1)}}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := NewSemantic(tt.ranker).FindMatch(ctx, rec, testCandidates); err == nil {
					t.Error("expected an error")
				}
			})
		}
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	rec := models.Recommendation{Title: "Glory Box", Artist: "Portishead"}

	t.Run("semantic answer wins", func(t *testing.T) {
		ranker := &tu.MockRanker{Response: &services.RankResponse{Index: tu.IntPtr(2), Confidence: models.ConfidenceMedium}}

		result, err := NewDefault(ranker, nil).FindMatch(ctx, rec, testCandidates)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Matcher != "semantic" || result.Confidence != 0.7 {
			t.Errorf("expected semantic result, got %+v", result)
		}
	})

	t.Run("falls back to deterministic", func(t *testing.T) {
		ranker := &tu.MockRanker{Err: errors.New("service down")}

		result, err := NewDefault(ranker, nil).FindMatch(ctx, rec, testCandidates)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Matcher != "deterministic" || result.Item.ID != "3" {
			t.Errorf("expected deterministic match on 3, got %+v", result)
		}
		if ranker.Calls() != 1 {
			t.Errorf("expected one rank call, got %d", ranker.Calls())
		}
	})

	t.Run("nil ranker yields deterministic", func(t *testing.T) {
		if m := NewDefault(nil, nil); m.Name() != "deterministic" {
			t.Errorf("expected deterministic matcher, got %s", m.Name())
		}
	})

	t.Run("empty chain", func(t *testing.T) {
		_, err := NewChain(nil).FindMatch(ctx, rec, testCandidates)
		if !errors.Is(err, ErrNoAnswer) {
			t.Errorf("expected ErrNoAnswer, got %v", err)
		}
	})
}
