// package testing contains shared testing utilities and test doubles for the collaborator interfaces in services
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/services"
)

// MockCatalog is a test double for [services.Catalog].
//
// Results are looked up by exact query; SearchFunc, when set, takes precedence.
type MockCatalog struct {
	mu         sync.Mutex
	Results    map[string][]models.Item
	Err        error
	SearchFunc func(ctx context.Context, query string) ([]models.Item, error)
	queries    []string
}

func (m *MockCatalog) Search(ctx context.Context, query string, _, maxResults int) ([]models.Item, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	fn, results, err := m.SearchFunc, m.Results[query], m.Err
	m.mu.Unlock()

	if fn != nil {
		items, err := fn(ctx, query)
		if err != nil {
			return nil, err
		}
		results = items
	} else if err != nil {
		return nil, err
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return append([]models.Item(nil), results...), nil
}

// Queries returns every query received, in order.
func (m *MockCatalog) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

func (m *MockCatalog) Name() string { return "mock" }

// PollResult is one scripted [MockTransport.NowPlaying] answer.
type PollResult struct {
	State *models.PlaybackState
	Err   error
}

// MockTransport is a test double for [services.Transport].
//
// NowPlaying consumes Script in order, then reports whatever Play last started.
type MockTransport struct {
	mu      sync.Mutex
	Script  []PollResult
	PlayErr error
	state   *models.PlaybackState
	played  []models.Item
}

func (m *MockTransport) NowPlaying(ctx context.Context) (*models.PlaybackState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Script) > 0 {
		next := m.Script[0]
		m.Script = m.Script[1:]
		return next.State, next.Err
	}
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}

func (m *MockTransport) Play(ctx context.Context, item models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.played = append(m.played, item)
	m.state = &models.PlaybackState{ItemID: item.ID, Duration: item.Duration, IsPlaying: true}
	return nil
}

// SetState replaces the reported playback state.
func (m *MockTransport) SetState(s *models.PlaybackState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// Played returns every item passed to Play, in order.
func (m *MockTransport) Played() []models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Item(nil), m.played...)
}

// MockRecommender is a test double for [services.Recommender].
//
// Without RecommendFunc it returns Recs in order, repeating the last one.
type MockRecommender struct {
	mu            sync.Mutex
	Recs          []models.Recommendation
	Err           error
	RecommendFunc func(ctx context.Context, req services.RecommendRequest) (*models.Recommendation, error)
	requests      []services.RecommendRequest
}

func (m *MockRecommender) Recommend(ctx context.Context, req services.RecommendRequest) (*models.Recommendation, error) {
	m.mu.Lock()
	call := len(m.requests)
	m.requests = append(m.requests, req)
	fn := m.RecommendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Recs) == 0 {
		return nil, errors.New("no recommendations scripted")
	}
	rec := m.Recs[min(call, len(m.Recs)-1)]
	return &rec, nil
}

// Requests returns every request received, in order.
func (m *MockRecommender) Requests() []services.RecommendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.RecommendRequest(nil), m.requests...)
}

// MockRanker is a test double for [services.SemanticRanker].
type MockRanker struct {
	mu       sync.Mutex
	Disabled bool
	Response *services.RankResponse
	Err      error
	RankFunc func(ctx context.Context, req services.RankRequest) (*services.RankResponse, error)
	calls    int
}

func (m *MockRanker) Available() bool { return !m.Disabled }

func (m *MockRanker) Rank(ctx context.Context, req services.RankRequest) (*services.RankResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RankFunc != nil {
		return m.RankFunc(ctx, req)
	}
	return m.Response, m.Err
}

// Calls returns the number of Rank calls.
func (m *MockRanker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockValidator is a test double for [services.Validator].
type MockValidator struct {
	Verdict      *services.Verdict
	Err          error
	ValidateFunc func(ctx context.Context, item models.Item, persona string) (*services.Verdict, error)
}

func (m *MockValidator) Validate(ctx context.Context, item models.Item, persona string) (*services.Verdict, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, item, persona)
	}
	return m.Verdict, m.Err
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Errorf("Directory does not exist: %s", path)
	}
}
