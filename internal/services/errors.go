// Package services provides business logic and orchestration services.
package services

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMessagingDisabled  = errors.New("messaging is not configured")
)

// ValidationError marks user input that failed a domain check. Its message
// is safe to show to the caller.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}
