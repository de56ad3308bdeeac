package sheets

import (
	"context"
	"time"

	"kharcha/internal/core"
)

// Ports for outbound adapters.
type (
	// PredictionExporter publishes a generated prediction outside the
	// application. Exports are best effort; callers log failures.
	PredictionExporter interface {
		ExportPrediction(ctx context.Context, p core.Prediction, username string) error
	}
)

// Header is the column layout written by exporters.
var Header = []any{"Month", "User", "Total", "Confidence", "Sentiment", "Version", "Generated At"}

// Row renders p in Header order. Totals are plain rupee strings so the
// sheet parses them as numbers.
func Row(p core.Prediction, username string) []any {
	return []any{
		p.Month.String(),
		username,
		p.Total.String(),
		p.Confidence,
		p.SentimentFactor,
		p.AlgorithmVersion,
		p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
