package news

import (
	"context"
	"math/rand/v2"

	"kharcha/internal/core"
	"kharcha/internal/forecast"
)

var staticHeadlines = []forecast.Headline{
	{Title: "RBI maintains repo rate, inflation concerns persist", Impact: 0.3},
	{Title: "Consumer price index shows 5.2% inflation", Impact: 0.5},
	{Title: "Festival season boosts retail spending", Impact: 0.4},
	{Title: "Fuel prices increase by 2% this month", Impact: 0.6},
	{Title: "Digital payment adoption reaches new high", Impact: 0.2},
}

// StaticSource returns the same built-in headlines for every month.
type StaticSource struct{}

func (StaticSource) Sentiment(_ context.Context, _ core.Month) (forecast.Sentiment, error) {
	return forecast.Sentiment{
		Source:    string(KindStatic),
		Headlines: append([]forecast.Headline(nil), staticHeadlines...),
	}, nil
}

// SimulatedSource draws pseudo-random impacts for the built-in headlines.
// The draw depends only on Seed and the month, so repeated calls agree.
type SimulatedSource struct {
	Seed int64
}

func (s SimulatedSource) Sentiment(_ context.Context, month core.Month) (forecast.Sentiment, error) {
	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(month.Index())))
	headlines := make([]forecast.Headline, len(staticHeadlines))
	for i, h := range staticHeadlines {
		impact := float64(int(rng.Float64()*2000)-1000) / 1000
		headlines[i] = forecast.Headline{Title: h.Title, Impact: impact}
	}
	return forecast.Sentiment{Source: string(KindSimulated), Headlines: headlines}, nil
}
