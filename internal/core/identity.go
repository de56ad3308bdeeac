package core

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var (
	ErrInvalidAadhar = errors.New("Invalid Aadhar format. Must be XXXX XXXX XXXX (cannot start with 0 or 1)")

	aadharPattern   = regexp.MustCompile(`^[2-9][0-9]{3}\s[0-9]{4}\s[0-9]{4}$`)
	usernamePattern = regexp.MustCompile(`^[\w.@+-]{3,150}$`)
)

// ValidateAadhar checks the XXXX XXXX XXXX layout. The first digit may not
// be 0 or 1.
func ValidateAadhar(s string) error {
	if !aadharPattern.MatchString(s) {
		return ErrInvalidAadhar
	}
	return nil
}

// NormalizeAadhar collapses runs of whitespace to single spaces so
// "2345  6789 0123" and "2345 6789 0123" compare equal.
func NormalizeAadhar(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Registration is the input to user sign-up.
type Registration struct {
	Username    string
	Email       string
	Password    string
	Aadhar      string
	Phone       string
	DateOfBirth Date
}

func (r Registration) Validate() error {
	if !usernamePattern.MatchString(r.Username) {
		return ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || !strings.Contains(r.Email, "@") {
		return ErrInvalidEmail
	}
	if len(r.Password) < 8 {
		return ErrWeakPassword
	}
	if err := ValidateAadhar(r.Aadhar); err != nil {
		return err
	}
	if len(r.Phone) > 15 {
		return errors.New("phone number too long (max 15 characters)")
	}
	if !r.DateOfBirth.IsZero() && r.DateOfBirth.After(Today().Time) {
		return ErrFutureDate
	}
	return nil
}
