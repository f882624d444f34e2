package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyProcessed indicates a payment that has already settled.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrUnauthorized indicates a missing or invalid bearer credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation indicates a malformed request payload.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ProviderError wraps a failed call to the external payment gateway,
// carrying the provider's response body for passthrough.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

// UserSafeMessage returns a message safe to surface to callers. Internal
// errors are summarised; sentinel errors keep their text.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "transaction not found"
	case errors.Is(err, ErrAlreadyProcessed):
		return "payment already processed"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidCredentials):
		return err.Error()
	default:
		var pe *ProviderError
		if errors.As(err, &pe) {
			return pe.Body
		}
		return "internal error"
	}
}
