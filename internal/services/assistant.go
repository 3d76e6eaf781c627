// Assistant proxy implementation of [Recommender], [SemanticRanker] and [Validator]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

const (
	defaultAssistantBaseURL = "http://localhost:8090"
	defaultAssistantTimeout = 30 * time.Second
)

// AssistantService talks to the assistant HTTP proxy that fronts the language model.
//
// Calls are rate limited with a token bucket and bounded by a per-call timeout.
type AssistantService struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewAssistantService creates an assistant client. A zero or negative requests-per-second disables the limiter.
func NewAssistantService(creds shared.AssistantCredentials, cfg shared.AssistantConfig) *AssistantService {
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAssistantBaseURL
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultAssistantTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &AssistantService{
		baseURL:    baseURL,
		apiKey:     creds.APIKey,
		model:      creds.Model,
		timeout:    timeout,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: http.DefaultClient,
	}
}

func (a *AssistantService) Name() string {
	return "Assistant"
}

// Available reports whether an API key is configured.
func (a *AssistantService) Available() bool {
	return a.apiKey != ""
}

// doRequest POSTs body as JSON to endpoint and decodes the response into result.
//
// Authentication failures map to [shared.ErrInvalidCredentials] so callers can tell them apart from
// transient failures ([shared.ErrServiceUnavailable], [shared.ErrTimeout], [shared.ErrAPIRequest]).
func (a *AssistantService) doRequest(ctx context.Context, endpoint string, body, result any) error {
	if a.apiKey == "" {
		return fmt.Errorf("%w: assistant api_key is not set", shared.ErrMissingCredentials)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", shared.ErrTimeout, err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", shared.ErrTimeout, endpoint)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: assistant status %d", shared.ErrInvalidCredentials, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: assistant status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: assistant status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	return nil
}

type recommendPayload struct {
	RecommendRequest
	Model string `json:"model,omitempty"`
}

// Recommend calls POST /v1/recommend.
func (a *AssistantService) Recommend(ctx context.Context, req RecommendRequest) (*models.Recommendation, error) {
	var rec models.Recommendation
	if err := a.doRequest(ctx, "/v1/recommend", recommendPayload{RecommendRequest: req, Model: a.model}, &rec); err != nil {
		return nil, err
	}

	rec.Title = strings.TrimSpace(rec.Title)
	rec.Artist = strings.TrimSpace(rec.Artist)
	if rec.Title == "" {
		return nil, fmt.Errorf("%w: recommendation has no title", shared.ErrDecode)
	}
	if rec.Model == "" {
		rec.Model = a.model
	}
	return &rec, nil
}

// Rank calls POST /v1/rank.
func (a *AssistantService) Rank(ctx context.Context, req RankRequest) (*RankResponse, error) {
	var resp RankResponse
	if err := a.doRequest(ctx, "/v1/rank", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate calls POST /v1/validate.
func (a *AssistantService) Validate(ctx context.Context, item models.Item, persona string) (*Verdict, error) {
	body := struct {
		Item    models.Item `json:"item"`
		Persona string      `json:"persona"`
		Model   string      `json:"model,omitempty"`
	}{Item: item, Persona: persona, Model: a.model}

	var verdict Verdict
	if err := a.doRequest(ctx, "/v1/validate", body, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}
