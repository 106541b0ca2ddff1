package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrValidation indicates a client-side field check failed; never reaches the network
	ErrValidation = errors.New("validation failed")

	// ErrAuthFailed indicates the server rejected the credentials or session token
	ErrAuthFailed = errors.New("authentication failed")

	// ErrInvalidCredentials indicates a login with the wrong username or password
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthFailed)

	// ErrPermissionDenied indicates a staff-only action attempted by a non-staff user
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates the server refused the request in its current state
	ErrConflict = errors.New("request conflicts with server state")

	// ErrServerOffline indicates the server is unreachable
	ErrServerOffline = errors.New("blog server is unreachable")

	// ErrServer indicates a 5xx response
	ErrServer = errors.New("server error")

	// ErrMalformedResponse indicates a payload that does not match its contract
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrServer)
)

// APIError carries the HTTP status and any string-shaped detail the server
// returned. It unwraps to one of the sentinel errors above.
type APIError struct {
	Status int
	Detail string
	Err    error
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Err, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (status %d)", e.Err, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// ValidationError is a single failed field check
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// FieldErrors maps form fields to their validation message
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + fe[f]
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) Is(target error) bool { return target == ErrValidation }

// OrNil returns nil when no field failed
func (fe FieldErrors) OrNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// UserMessage returns the server's detail when one was provided, otherwise
// the fallback. Validation messages are returned as-is.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	return fallback
}

// IsAuthError reports whether err should be treated as an authentication
// failure. Permission errors are deliberately indistinguishable.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrPermissionDenied)
}
