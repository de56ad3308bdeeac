// Package forecast predicts next-month spending per category from monthly
// aggregates.
//
// The estimator is a pure function of its inputs: history, target month,
// injected sentiment and tuning. It performs no I/O and holds no mutable
// state, so one Estimator may be shared across goroutines.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"kharcha/internal/core"
)

// Point is one monthly total for a category.
type Point struct {
	Month core.Month
	Total decimal.Decimal
}

// History maps a category name to its monthly totals in any order.
type History map[string][]Point

// HistoryFromAggregates adapts storage aggregates to estimator input.
func HistoryFromAggregates(aggs []core.MonthlyAggregate) History {
	h := make(History)
	for _, a := range aggs {
		h[a.Category] = append(h[a.Category], Point{Month: a.Month, Total: a.Total.Decimal()})
	}
	return h
}

// CategoryForecast is the prediction for one category.
type CategoryForecast struct {
	Category  string
	Predicted decimal.Decimal
	Mean      decimal.Decimal
	Variance  float64
	Trend     float64
	Months    int
}

// SentimentSummary records which news signal was applied.
type SentimentSummary struct {
	Factor    float64
	Source    string
	Headlines []Headline
}

// Result is one prediction for one target month.
type Result struct {
	TargetMonth      core.Month
	Categories       []CategoryForecast
	Total            decimal.Decimal
	Confidence       float64
	Sentiment        SentimentSummary
	AvailableMonths  int
	WindowMonths     int
	AlgorithmVersion string
}

// Estimator applies a fixed Config.
type Estimator struct {
	cfg Config
}

// NewEstimator validates cfg and returns an estimator bound to it.
func NewEstimator(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg}, nil
}

// Config returns the tuning in use.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Estimate forecasts spending for target from the trailing window of
// history. It fails with an *InsufficientDataError when fewer than
// MinMonths distinct months in the window carry data, and with
// ErrInvalidInput on negative totals or out-of-range sentiment.
func (e *Estimator) Estimate(target core.Month, history History, sentiment Sentiment) (Result, error) {
	cfg := e.cfg
	if target.IsZero() {
		return Result{}, fmt.Errorf("%w: target month is required", ErrInvalidInput)
	}
	if err := sentiment.Validate(); err != nil {
		return Result{}, err
	}

	windowStart := target.AddMonths(-cfg.WindowMonths)
	inWindow := func(m core.Month) bool {
		return !m.Before(windowStart) && m.Before(target)
	}

	seen := make(map[core.Month]struct{})
	series := make(map[string][]Point)
	for name, points := range history {
		if strings.TrimSpace(name) == "" {
			return Result{}, fmt.Errorf("%w: empty category name", ErrInvalidInput)
		}
		byMonth := make(map[core.Month]decimal.Decimal)
		for _, p := range points {
			if p.Total.IsNegative() {
				return Result{}, fmt.Errorf("%w: negative total %s for %s in %s", ErrInvalidInput, p.Total, name, p.Month)
			}
			if !inWindow(p.Month) {
				continue
			}
			byMonth[p.Month] = byMonth[p.Month].Add(p.Total)
			seen[p.Month] = struct{}{}
		}
		for m, total := range byMonth {
			series[name] = append(series[name], Point{Month: m, Total: total})
		}
	}

	available := len(seen)
	if available < cfg.MinMonths {
		return Result{}, &InsufficientDataError{Available: available, Required: cfg.MinMonths}
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	factor := sentiment.Factor(cfg)
	factorDec := decimal.NewFromFloat(factor)

	res := Result{
		TargetMonth: target,
		Total:       decimal.Zero,
		Sentiment: SentimentSummary{
			Factor:    factor,
			Source:    sentiment.Source,
			Headlines: append([]Headline(nil), sentiment.Headlines...),
		},
		AvailableMonths:  available,
		WindowMonths:     cfg.WindowMonths,
		AlgorithmVersion: AlgorithmVersion,
	}

	var normVarSum float64
	for _, name := range names {
		points := series[name]
		sort.Slice(points, func(i, j int) bool { return points[i].Month.Before(points[j].Month) })

		mean, variance := meanVariance(points)
		meanF := mean.InexactFloat64()
		recent := points[len(points)-1].Total.InexactFloat64()
		trend := trendMultiplier(recent, meanF, cfg)

		predicted := mean.Mul(decimal.NewFromFloat(trend)).Mul(factorDec).Round(2)
		res.Categories = append(res.Categories, CategoryForecast{
			Category:  name,
			Predicted: predicted,
			Mean:      mean.Round(2),
			Variance:  variance,
			Trend:     trend,
			Months:    len(points),
		})
		res.Total = res.Total.Add(predicted)
		normVarSum += normalizedVariance(variance, meanF)
	}

	normVar := 0.0
	if len(names) > 0 {
		normVar = normVarSum / float64(len(names))
	}
	res.Confidence = confidence(available, cfg.WindowMonths, normVar)
	return res, nil
}

// meanVariance returns the arithmetic mean and the population variance.
func meanVariance(points []Point) (decimal.Decimal, float64) {
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(p.Total)
	}
	n := decimal.NewFromInt(int64(len(points)))
	mean := sum.Div(n)

	meanF := mean.InexactFloat64()
	var sq float64
	for _, p := range points {
		d := p.Total.InexactFloat64() - meanF
		sq += d * d
	}
	return mean, sq / float64(len(points))
}

// trendMultiplier is 1+growth when the latest month beats the mean, and the
// flat lower bound otherwise.
func trendMultiplier(recent, mean float64, cfg Config) float64 {
	if mean <= 0 || recent <= mean {
		return cfg.TrendMin
	}
	growth := (recent - mean) / mean
	return round4(clamp(1+growth, cfg.TrendMin, cfg.TrendMax))
}

// normalizedVariance is the squared coefficient of variation capped at 1.
// Magnitudes past float64 range count as fully unstable.
func normalizedVariance(variance, mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	cv := math.Sqrt(variance) / mean
	r := cv * cv
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 1
	}
	return math.Min(r, 1)
}

func confidence(available, window int, normVar float64) float64 {
	availability := math.Min(float64(available)/float64(window), 1)
	stability := 1 - normVar
	score := 100 * (availabilityWeight*availability + stabilityWeight*stability)
	return math.Round(clamp(score, 0, 100)*100) / 100
}
