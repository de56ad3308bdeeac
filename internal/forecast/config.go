package forecast

import (
	"fmt"
	"math"
)

// AlgorithmVersion is stored alongside every persisted prediction.
const AlgorithmVersion = "v2.0"

const (
	availabilityWeight = 0.6
	stabilityWeight    = 0.4
)

// Config holds the tunable constants of the estimator.
type Config struct {
	// WindowMonths is the trailing window before the target month.
	WindowMonths int `yaml:"window_months"`
	// MinMonths is the number of distinct months with data required.
	MinMonths int `yaml:"min_months"`

	TrendMin float64 `yaml:"trend_min"`
	TrendMax float64 `yaml:"trend_max"`

	SentimentMin   float64 `yaml:"sentiment_min"`
	SentimentMax   float64 `yaml:"sentiment_max"`
	SentimentScale float64 `yaml:"sentiment_scale"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		WindowMonths:   6,
		MinMonths:      2,
		TrendMin:       1.05,
		TrendMax:       1.15,
		SentimentMin:   0.95,
		SentimentMax:   1.10,
		SentimentScale: 0.10,
	}
}

// Validate reports the first inconsistent setting, wrapped in ErrInvalidInput.
func (c Config) Validate() error {
	switch {
	case c.WindowMonths < 1:
		return fmt.Errorf("%w: window_months must be at least 1, got %d", ErrInvalidInput, c.WindowMonths)
	case c.MinMonths < 1:
		return fmt.Errorf("%w: min_months must be at least 1, got %d", ErrInvalidInput, c.MinMonths)
	case c.MinMonths > c.WindowMonths:
		return fmt.Errorf("%w: min_months %d exceeds window_months %d", ErrInvalidInput, c.MinMonths, c.WindowMonths)
	case !finitePositive(c.TrendMin) || !finitePositive(c.TrendMax) || c.TrendMin > c.TrendMax:
		return fmt.Errorf("%w: trend bounds [%v, %v] must be positive and ordered", ErrInvalidInput, c.TrendMin, c.TrendMax)
	case !finitePositive(c.SentimentMin) || !finitePositive(c.SentimentMax) || c.SentimentMin > c.SentimentMax:
		return fmt.Errorf("%w: sentiment bounds [%v, %v] must be positive and ordered", ErrInvalidInput, c.SentimentMin, c.SentimentMax)
	case math.IsNaN(c.SentimentScale) || math.IsInf(c.SentimentScale, 0) || c.SentimentScale < 0:
		return fmt.Errorf("%w: sentiment_scale must be a non-negative number, got %v", ErrInvalidInput, c.SentimentScale)
	}
	return nil
}

func finitePositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}
