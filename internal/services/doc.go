// Package services defines the contracts the session core needs from external collaborators and implements
// them for Spotify, YouTube Music and the assistant proxy.
//
// # Interfaces
//
//   - [Catalog] : track search
//   - [Transport] : now-playing state and playback control
//   - [Recommender] : the automated actor's next proposal
//   - [SemanticRanker] : picks the catalog candidate that best fits a proposal
//   - [Validator] : checks a resolved item against the persona
//
// # Spotify Implementation
//
// [SpotifyService] implements [Catalog] and [Transport]. It uses OAuth2 for authentication; the
// [oauth2.Config.Client] refreshes expired access tokens with the configured refresh token. Obtaining
// the tokens is left to the user.
//
// # YouTube Music Implementation
//
// [YouTubeService] implements [Catalog] against the FastAPI proxy wrapping ytmusicapi. The auth_file path is
// sent via the X-Auth-File header on each request.
//
// # Assistant Implementation
//
// [AssistantService] implements [Recommender], [SemanticRanker] and [Validator] against an HTTP proxy
// (/v1/recommend, /v1/rank, /v1/validate). Requests share a [rate.Limiter] and each carries a timeout.
//
// # Error Handling
//
// Services wrap sentinel errors from the shared package:
//   - [shared.ErrMissingCredentials], [shared.ErrInvalidCredentials] : configuration problems, not retried
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrAPIRequest], [shared.ErrServiceUnavailable], [shared.ErrTimeout], [shared.ErrDecode] : transient
package services
