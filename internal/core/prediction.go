package core

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateAadhar   = errors.New("This Aadhar number is already registered. Each person can register only once.")
)

// Session is an authenticated login. Token is an opaque UUID.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Headline is one news signal recorded with a prediction.
type Headline struct {
	Title  string  `json:"title"`
	Impact float64 `json:"impact"`
}

// CategoryPrediction is one row of a prediction's breakdown.
type CategoryPrediction struct {
	Category  string
	Predicted Money
	Mean      Money
	Trend     float64
	Months    int
}

// Prediction is a persisted forecast for one user and target month. A later
// prediction for the same month replaces it.
type Prediction struct {
	ID               int64
	UserID           int64
	Month            Month
	Total            Money
	Confidence       float64
	SentimentFactor  float64
	NewsSource       string
	Headlines        []Headline
	Breakdown        []CategoryPrediction
	AvailableMonths  int
	WindowMonths     int
	AlgorithmVersion string
	CreatedAt        time.Time
}
