package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Session     SessionConfig     `toml:"session"`
	Playback    PlaybackConfig    `toml:"playback"`
	Matcher     MatcherConfig     `toml:"matcher"`
	Assistant   AssistantConfig   `toml:"assistant"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify   SpotifyConfig        `toml:"spotify"`
	YouTube   YouTubeConfig        `toml:"youtube"`
	Assistant AssistantCredentials `toml:"assistant"`
}

// SpotifyConfig contains Spotify API credentials.
//
// Tokens are obtained out of band; the OAuth2 client refreshes the access token with the refresh token.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
}

// YouTubeConfig contains YouTube Music proxy settings.
type YouTubeConfig struct {
	ProxyURL string `toml:"proxy_url"`
	AuthFile string `toml:"auth_file"`
}

// AssistantCredentials contains the credentials for the recommendation/matching/validation proxy.
type AssistantCredentials struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SessionConfig selects which collaborators the session uses and the persona it plays as.
type SessionConfig struct {
	Catalog          string `toml:"catalog"` // spotify or youtube
	SemanticMatching bool   `toml:"semantic_matching"`
	Validation       bool   `toml:"validation"`
	Persona          string `toml:"persona"`
	StyleGuide       string `toml:"style_guide"`
}

// PlaybackConfig tunes the playback monitor.
type PlaybackConfig struct {
	PollIntervalMS  int     `toml:"poll_interval_ms"`
	FinishThreshold float64 `toml:"finish_threshold"`
}

// PollInterval returns the poll interval as a [time.Duration].
func (p PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

// MatcherConfig tunes search-and-resolve.
type MatcherConfig struct {
	AcceptThreshold float64 `toml:"accept_threshold"`
	TopCandidates   int     `toml:"top_candidates"`
	MaxResults      int     `toml:"max_results"`
	PageSize        int     `toml:"page_size"`
}

// AssistantConfig bounds calls made to the assistant proxy.
type AssistantConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Timeout returns the per-call timeout as a [time.Duration].
func (a AssistantConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MaxMatchCandidates caps how many catalog results a match is ever chosen from.
const MaxMatchCandidates = 200

// Validate checks value ranges that would otherwise break the session at runtime.
func (c *Config) Validate() error {
	switch c.Session.Catalog {
	case "spotify", "youtube":
	default:
		return fmt.Errorf("%w: unknown catalog %q", ErrInvalidConfig, c.Session.Catalog)
	}

	if c.Playback.PollIntervalMS <= 0 {
		return fmt.Errorf("%w: playback.poll_interval_ms must be positive", ErrInvalidConfig)
	}
	if c.Playback.FinishThreshold <= 0 || c.Playback.FinishThreshold > 1 {
		return fmt.Errorf("%w: playback.finish_threshold must be in (0, 1]", ErrInvalidConfig)
	}
	if c.Matcher.AcceptThreshold < 0 || c.Matcher.AcceptThreshold > 1 {
		return fmt.Errorf("%w: matcher.accept_threshold must be in [0, 1]", ErrInvalidConfig)
	}
	if c.Matcher.TopCandidates <= 0 || c.Matcher.MaxResults <= 0 || c.Matcher.PageSize <= 0 {
		return fmt.Errorf("%w: matcher sizes must be positive", ErrInvalidConfig)
	}
	if c.Matcher.MaxResults > MaxMatchCandidates {
		return fmt.Errorf("%w: matcher.max_results must be at most %d", ErrInvalidConfig, MaxMatchCandidates)
	}
	if c.Assistant.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: assistant.requests_per_second must be positive", ErrInvalidConfig)
	}

	return nil
}
