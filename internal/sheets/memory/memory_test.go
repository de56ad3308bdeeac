package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kharcha/internal/core"
)

func TestExporterRecordsRows(t *testing.T) {
	e := New()
	p := core.Prediction{
		Month:            core.NewMonth(2025, time.June),
		Total:            core.Money{Paise: 12345},
		Confidence:       80,
		SentimentFactor:  1.04,
		AlgorithmVersion: "v2.0",
	}
	if err := e.ExportPrediction(context.Background(), p, "asha"); err != nil {
		t.Fatalf("ExportPrediction() error = %v", err)
	}
	rows := e.Rows()
	if len(rows) != 1 || rows[0][0] != "2025-06" || rows[0][1] != "asha" || rows[0][2] != "123.45" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestExporterErrors(t *testing.T) {
	e := New()
	if err := e.ExportPrediction(context.Background(), core.Prediction{}, "asha"); err == nil {
		t.Fatal("expected error for missing month")
	}
	e.Err = errors.New("quota exceeded")
	p := core.Prediction{Month: core.NewMonth(2025, time.June)}
	if err := e.ExportPrediction(context.Background(), p, "asha"); !errors.Is(err, e.Err) {
		t.Fatalf("got %v, want injected error", err)
	}
	if len(e.Rows()) != 0 {
		t.Fatal("failed exports must not record rows")
	}
}
