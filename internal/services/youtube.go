// YouTube Music [Catalog] implementation
//
// Communicates with the ytmusicapi proxy server running on port 8080.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a song result in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	Thumbnails  []YouTubeImage  `json:"thumbnails"`
}

func (t YouTubeTrack) toItem() models.Item {
	item := models.Item{
		ID:       t.VideoID,
		Title:    t.Title,
		Duration: time.Duration(t.DurationSec) * time.Second,
		URI:      "https://music.youtube.com/watch?v=" + t.VideoID,
	}
	if item.Duration == 0 {
		item.Duration = parseYouTubeDuration(t.Duration)
	}
	if len(t.Artists) > 0 {
		item.Artist = t.Artists[0].Name
	}
	if len(t.Thumbnails) > 0 {
		item.Artwork = t.Thumbnails[len(t.Thumbnails)-1].URL
	}
	return item
}

// parseYouTubeDuration parses "m:ss" or "h:mm:ss" display durations. Returns 0 when unparseable.
func parseYouTubeDuration(s string) time.Duration {
	if s == "" {
		return 0
	}

	var total int
	for part := range strings.SplitSeq(s, ":") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}

// YouTubeService implements [Catalog] for YouTube Music via proxy.
type YouTubeService struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	return &YouTubeService{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

// Authenticate stores the authentication file path for subsequent requests.
//
// Expects credentials["auth_file"] to contain the path to browser.json or oauth.json.
func (y *YouTubeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	authFile, ok := credentials["auth_file"]
	if !ok || authFile == "" {
		return fmt.Errorf("%w: missing auth_file", shared.ErrMissingCredentials)
	}

	y.authFile = authFile
	return nil
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube music status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: youtube music status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDecode, err)
		}
	}

	return nil
}

// Search calls GET /api/search?filter=songs on the proxy.
//
// The proxy returns a single batch, so pageSize is ignored and results are truncated to maxResults.
func (y *YouTubeService) Search(ctx context.Context, query string, _, maxResults int) ([]models.Item, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("filter", "songs")
	params.Set("limit", strconv.Itoa(maxResults))

	var results []YouTubeTrack
	if err := y.doRequest(ctx, http.MethodGet, "/api/search?"+params.Encode(), &results); err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(results))
	for _, t := range results {
		if t.VideoID == "" {
			continue
		}
		items = append(items, t.toItem())
		if len(items) == maxResults {
			break
		}
	}
	return items, nil
}
