package forecast

import (
	"fmt"
	"math"
)

// Headline is one news signal. Impact lies in [-1, 1]; positive values
// push spending up.
type Headline struct {
	Title  string  `json:"title" toml:"title"`
	Impact float64 `json:"impact" toml:"impact"`
}

// Sentiment is the injected news input for one forecast.
type Sentiment struct {
	Source    string
	Headlines []Headline
}

// Validate rejects impacts outside [-1, 1].
func (s Sentiment) Validate() error {
	for i, h := range s.Headlines {
		if math.IsNaN(h.Impact) || h.Impact < -1 || h.Impact > 1 {
			return fmt.Errorf("%w: headline %d impact %v outside [-1, 1]", ErrInvalidInput, i, h.Impact)
		}
	}
	return nil
}

// Factor maps the mean headline impact to a bounded multiplier. No
// headlines means no adjustment.
func (s Sentiment) Factor(cfg Config) float64 {
	if len(s.Headlines) == 0 {
		return 1
	}
	var sum float64
	for _, h := range s.Headlines {
		sum += h.Impact
	}
	f := 1 + (sum/float64(len(s.Headlines)))*cfg.SentimentScale
	return round4(clamp(f, cfg.SentimentMin, cfg.SentimentMax))
}

// Neutral is a sentiment with no headlines.
func Neutral() Sentiment {
	return Sentiment{Source: "neutral"}
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
