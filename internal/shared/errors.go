package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors abort an automated turn without retrying.
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")

	// Transient collaborator failures. A turn treats these like a missing match.
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrDecode             = fmt.Errorf("failed to decode response")
	ErrTimeout            = fmt.Errorf("operation timed out")

	ErrNoMatch       = fmt.Errorf("no matching track found")
	ErrEntryNotFound = fmt.Errorf("entry not found")

	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsConfigError reports whether err comes from missing or rejected configuration or credentials.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrInvalidConfig)
}
