package forecast

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidInput     = errors.New("invalid input")
)

// InsufficientDataError carries how much history was found. It matches
// ErrInsufficientData under errors.Is.
type InsufficientDataError struct {
	Available int
	Required  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d of %d required months available", e.Available, e.Required)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// UserMessage is the text shown to end users.
func (e *InsufficientDataError) UserMessage() string {
	return fmt.Sprintf("Not enough expense history to forecast. Add expenses in at least %d different months (found %d).", e.Required, e.Available)
}
