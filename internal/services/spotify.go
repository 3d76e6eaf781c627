// Spotify Web API implementation of [Catalog] and [Transport]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// spotifyMaxPageSize is the largest limit the search endpoint accepts.
	spotifyMaxPageSize = 50
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyPaginatedTracks is the paging object returned for track searches.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyTrack `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Next   *string        `json:"next"`
}

type spotifySearchResponse struct {
	Tracks SpotifyPaginatedTracks `json:"tracks"`
}

// SpotifyCurrentlyPlaying is the response of GET /me/player/currently-playing.
type SpotifyCurrentlyPlaying struct {
	IsPlaying  bool          `json:"is_playing"`
	ProgressMS int           `json:"progress_ms"`
	Item       *SpotifyTrack `json:"item"`
	Type       string        `json:"currently_playing_type"`
}

// toItem converts a [SpotifyTrack] to a catalog [models.Item], using the first credited artist.
func (t SpotifyTrack) toItem() models.Item {
	item := models.Item{
		ID:       t.ID,
		Title:    t.Name,
		Duration: time.Duration(t.DurationMS) * time.Millisecond,
		URI:      t.URI,
	}
	if len(t.Artists) > 0 {
		item.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		item.Artwork = t.Album.Images[0].URL
	}
	return item
}

// SpotifyService implements [Catalog] and [Transport] for the Spotify Web API.
//
// Uses [oauth2] for authentication; the token source refreshes the access token with the configured refresh token.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-playback-state",
			"user-read-currently-playing",
			"user-modify-playback-state",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}, nil
}

// Authenticate installs an OAuth2 token built from "access_token" and/or "refresh_token" in credentials.
//
// With only a refresh token the first request refreshes the access token.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	accessToken := credentials["access_token"]
	refreshToken := credentials["refresh_token"]
	if accessToken == "" && refreshToken == "" {
		return fmt.Errorf("%w: missing access_token or refresh_token", shared.ErrMissingCredentials)
	}

	s.token = &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "Bearer"}
	s.httpClient = s.config.Client(ctx, s.token)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// A 204 No Content response leaves result untouched and reports ok = false.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) (bool, error) {
	if s.token == nil {
		return false, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, nil)
	}
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return false, fmt.Errorf("%w: %v", shared.ErrDecode, err)
		}
	}

	return true, nil
}

// SearchTracks fetches one page of track search results.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit, offset int) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > spotifyMaxPageSize {
		limit = spotifyMaxPageSize
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(limit))
	params.Set("offset", fmt.Sprint(offset))

	var response spotifySearchResponse
	if _, err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	return &response.Tracks, nil
}

// Search pages through track search results until maxResults items are collected or results run out.
func (s *SpotifyService) Search(ctx context.Context, query string, pageSize, maxResults int) ([]models.Item, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	if pageSize <= 0 || pageSize > spotifyMaxPageSize {
		pageSize = spotifyMaxPageSize
	}

	items := make([]models.Item, 0, min(pageSize, maxResults))
	for offset := 0; len(items) < maxResults; offset += pageSize {
		limit := min(pageSize, maxResults-len(items))
		page, err := s.SearchTracks(ctx, query, limit, offset)
		if err != nil {
			return nil, err
		}

		for _, t := range page.Items {
			if t.ID == "" {
				continue
			}
			items = append(items, t.toItem())
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
	}

	if len(items) > maxResults {
		items = items[:maxResults]
	}
	return items, nil
}

// NowPlaying reports the currently playing track. Returns nil when nothing (or a non-track item) is loaded.
func (s *SpotifyService) NowPlaying(ctx context.Context) (*models.PlaybackState, error) {
	var current SpotifyCurrentlyPlaying
	ok, err := s.doRequest(ctx, http.MethodGet, "/me/player/currently-playing", nil, &current)
	if err != nil {
		return nil, err
	}
	if !ok || current.Item == nil || current.Item.ID == "" {
		return nil, nil
	}

	return &models.PlaybackState{
		ItemID:    current.Item.ID,
		Position:  time.Duration(current.ProgressMS) * time.Millisecond,
		Duration:  time.Duration(current.Item.DurationMS) * time.Millisecond,
		IsPlaying: current.IsPlaying,
	}, nil
}

// Play starts playback of item on the user's active device.
func (s *SpotifyService) Play(ctx context.Context, item models.Item) error {
	uri := item.URI
	if uri == "" {
		uri = "spotify:track:" + item.ID
	}

	body := struct {
		URIs []string `json:"uris"`
	}{URIs: []string{uri}}

	_, err := s.doRequest(ctx, http.MethodPut, "/me/player/play", body, nil)
	return err
}
