package memory

import (
	"context"
	"errors"
	"sync"

	"kharcha/internal/core"
	ports "kharcha/internal/sheets"
)

var _ ports.PredictionExporter = (*Exporter)(nil)

// Exporter keeps exported rows in memory. Err, when set, is returned by
// every export.
type Exporter struct {
	mu   sync.Mutex
	rows [][]any
	Err  error
}

func New() *Exporter {
	return &Exporter{}
}

// ExportPrediction records the row that would be written to a sheet.
func (e *Exporter) ExportPrediction(_ context.Context, p core.Prediction, username string) error {
	if p.Month.IsZero() {
		return errors.New("prediction has no target month")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.rows = append(e.rows, ports.Row(p, username))
	return nil
}

// Rows returns a copy of the recorded rows.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.rows...)
}
