package core

import (
	"errors"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Expense struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		Category    string // category name, filled on reads
		Amount      Money
		Description string
		Date        Date
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Category struct {
		ID          int64
		Name        string
		Description string
		Icon        string
		Color       string
		IsActive    bool
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		Aadhar       string
		Phone        string
		DateOfBirth  Date // optional
		CreatedAt    time.Time
	}

	// ExpenseFilter narrows an expense listing. Zero values mean "no filter".
	ExpenseFilter struct {
		CategoryID int64
		From       Date
		To         Date
		Limit      int
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrFutureDate       = errors.New("date cannot be in the future")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidUsername  = errors.New("username must be 3-150 characters of letters, digits or @.+-_")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrWeakPassword     = errors.New("password must be at least 8 characters")
	ErrInvalidRange     = errors.New("date_from must not be after date_to")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Today returns the current UTC date truncated to midnight.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Month returns the calendar month the date falls in.
func (d Date) Month() Month {
	return Month{Year: d.Time.Year(), Month: d.Time.Month()}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if d.Time.Year() < 1900 {
		return ErrInvalidDate
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Date.After(Today().Time) {
		return ErrFutureDate
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (f ExpenseFilter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To.Time) {
		return ErrInvalidRange
	}
	return nil
}

// Matches reports whether e passes the filter.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.CategoryID > 0 && e.CategoryID != f.CategoryID {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	return true
}
