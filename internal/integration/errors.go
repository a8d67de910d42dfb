// Package integration holds the error taxonomy shared by the remote
// integration clients (Google Calendar, Home Assistant). Callers distinguish
// the categories with errors.As and map them to user-facing responses.
package integration

import "fmt"

// ConfigurationError means required credentials or settings are missing; the
// user must (re)configure the integration before the call can ever succeed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "integration not configured: " + e.Reason
}

// AuthError means the remote rejected our credentials. Not transient: the
// caller should prompt the user to re-authorize rather than retry.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authorization failed: " + e.Reason
}

// APIError is a non-2xx response from a remote API. Body is truncated to a
// reasonable size for logging.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api error: status %d: %s", e.Status, e.Body)
}

// NetworkError wraps a transport-level failure (dial, timeout, broken pipe).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError reports malformed user-supplied input, such as an invalid
// instance URL.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
