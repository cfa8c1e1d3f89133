package update

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyURL is returned when a config carries no URL.
	ErrEmptyURL = errors.New("url must not be empty")
	// ErrNilConfig is returned when Start is called without a config.
	ErrNilConfig = errors.New("config must not be nil")
	// ErrInvalidFilename is returned when a file name is not a plain base name.
	ErrInvalidFilename = errors.New("filename must be a plain file name")
	// ErrNegativeRetries is returned when the retry budget is negative.
	ErrNegativeRetries = errors.New("max retries must not be negative")
	// ErrUnsupportedScheme is returned when no transport handles a URL.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrInvalidTransition is returned on an illegal session state change.
	ErrInvalidTransition = errors.New("invalid session state transition")
	// ErrManifestNotFound is returned when an artifact has no package manifest.
	ErrManifestNotFound = errors.New("package manifest not found")
	// ErrSessionNotFound is returned when a session record does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// ConfigError reports an invalid config field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransportError is delivered to observers when a fetch fails.
type TransportError struct {
	URL          string
	Err          error
	RetryAllowed bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("download %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is returned for a non-success HTTP response.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.StatusCode, e.Status)
}
