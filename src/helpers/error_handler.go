package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"options-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrUnauthorized marks an upstream authorization-expired response.
	ErrUnauthorized = errors.New("authorization expired")

	// ErrNotAuthenticated is returned when no session exists at all.
	ErrNotAuthenticated = errors.New("not authenticated, please login")

	// ErrReloginRequired is returned once refresh has failed or its budget is spent.
	ErrReloginRequired = errors.New("authentication failed, please login again")
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ ObserverError }
type NetworkError struct{ ObserverError }
type DataSourceError struct{ ObserverError }
type DatabaseError struct{ ObserverError }
type ValidationError struct{ ObserverError }
type AuthError struct{ ObserverError }
type DecodeError struct{ ObserverError }
type ResolutionError struct{ ObserverError }

// UpstreamError is an explicit failure status inside an otherwise successful
// broker response. Message is the broker's own text.
type UpstreamError struct {
	Operation string
	Code      string
	Message   string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Operation, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// -----------------------------------------------------------------------------

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{ObserverError{Message: fmt.Sprintf(format, args...)}}
}

func NewNetworkError(message string, cause error) error {
	return &NetworkError{ObserverError{Message: message, Cause: cause}}
}

func NewDataSourceError(message string, cause error) error {
	return &DataSourceError{ObserverError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{ObserverError{Message: message, Cause: cause}}
}

func NewDecodeError(message string, cause error) error {
	return &DecodeError{ObserverError{Message: message, Cause: cause}}
}

func NewResolutionError(format string, args ...interface{}) error {
	return &ResolutionError{ObserverError{Message: fmt.Sprintf(format, args...)}}
}

func NewAuthError(message string, cause error) error {
	return &AuthError{ObserverError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsAuthFailure reports errors that mean the caller has to log in again.
func IsAuthFailure(err error) bool {
	var authErr *AuthError
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrReloginRequired) ||
		errors.As(err, &authErr)
}

// IsValidation reports caller input errors.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts fn up to maxRetries times with exponential backoff.
// It stops early when ctx is done.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s cancelled: %w", operation, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries, lastErr)
}
