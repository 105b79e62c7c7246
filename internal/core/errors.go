package core

import (
	"errors"
	"fmt"
)

// ErrCursorExpired signals that the mail provider rejected a persisted delta
// cursor. It is a recoverable condition handled by falling back to a full
// windowed fetch, not an operator-facing failure.
var ErrCursorExpired = errors.New("sync cursor expired")

// ConfigError represents missing or invalid configuration. Fatal at startup,
// never retried.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid configuration %q", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError for the given configuration field
func NewConfigError(field string, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// TransientProviderError wraps a mail or sentiment backend failure that is
// worth retrying with bounded backoff
type TransientProviderError struct {
	Op  string
	Err error
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("transient provider error during %s: %v", e.Op, e.Err)
}

func (e *TransientProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientProviderError
func IsTransient(err error) bool {
	var te *TransientProviderError
	return errors.As(err, &te)
}

// SentimentUnavailableError is returned after the sentiment backend retry
// budget is exhausted and the neutral fallback is disabled
type SentimentUnavailableError struct {
	Attempts int
	Err      error
}

func (e *SentimentUnavailableError) Error() string {
	return fmt.Sprintf("sentiment backend unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SentimentUnavailableError) Unwrap() error {
	return e.Err
}
