package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/forecast"
	"kharcha/internal/services"
)

type fakeForecaster struct {
	mu      sync.Mutex
	target  core.Month
	window  int
	err     error
	calls   []core.Month
	batches int
}

func (f *fakeForecaster) Generate(_ context.Context, _ int64, target core.Month) (core.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if target.IsZero() {
		target = f.target
	}
	f.calls = append(f.calls, target)
	return core.Prediction{ID: 1, Month: target}, f.err
}

func (f *fakeForecaster) DefaultTarget() core.Month { return f.target }
func (f *fakeForecaster) WindowMonths() int         { return f.window }

func (f *fakeForecaster) GenerateAll(_ context.Context, target core.Month, _ int) (services.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	f.calls = append(f.calls, target)
	return services.BatchResult{Generated: 2}, f.err
}

func TestForecastWorker_HandleExpenseChanged(t *testing.T) {
	june := core.NewMonth(2025, time.June)
	tests := []struct {
		name      string
		month     string
		genErr    error
		wantCalls int
		wantErr   bool
	}{
		{"inside window", "2025-05", nil, 1, false},
		{"window start", "2024-12", nil, 1, false},
		{"before window", "2024-11", nil, 0, false},
		{"target month", "2025-06", nil, 0, false},
		{"no month", "", nil, 1, false},
		{"bad month", "May", nil, 0, false},
		{"insufficient data is acked", "2025-05", &forecast.InsufficientDataError{Available: 1, Required: 2}, 1, false},
		{"unknown user is acked", "2025-05", core.ErrNotFound, 1, false},
		{"storage error requeues", "2025-05", errors.New("database is locked"), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeForecaster{target: june, window: 6, err: tt.genErr}
			w := NewForecastWorker(f, nil)
			err := w.HandleExpenseChanged(context.Background(), amqp.NewExpenseChangedMessage(1, 2, tt.month, amqp.ActionCreated))
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleExpenseChanged() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(f.calls) != tt.wantCalls {
				t.Fatalf("Generate called %d times, want %d", len(f.calls), tt.wantCalls)
			}
			if tt.wantCalls > 0 && f.calls[0] != june {
				t.Errorf("target = %s, want %s", f.calls[0], june)
			}
		})
	}
}

func TestForecastWorker_HandleForecastRequested(t *testing.T) {
	june := core.NewMonth(2025, time.June)
	f := &fakeForecaster{target: june, window: 6}
	w := NewForecastWorker(f, nil)
	ctx := context.Background()

	if err := w.HandleForecastRequested(ctx, amqp.NewForecastRequestedMessage(1, "2025-09")); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleForecastRequested(ctx, amqp.NewForecastRequestedMessage(1, "")); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleForecastRequested(ctx, amqp.NewForecastRequestedMessage(1, "2025-13")); err != nil {
		t.Fatal(err)
	}
	if len(f.calls) != 2 || f.calls[0] != core.NewMonth(2025, time.September) || f.calls[1] != june {
		t.Errorf("calls = %v", f.calls)
	}
}

func TestScheduler(t *testing.T) {
	f := &fakeForecaster{target: core.NewMonth(2025, time.June)}

	if _, err := NewScheduler("not a cron", f, 2, nil); err == nil {
		t.Fatal("invalid spec accepted")
	}

	s, err := NewScheduler("0 0 6 1 * *", f, 2, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.AddSessionCleanup(cleanerFunc(func(context.Context) (int64, error) { return 0, nil })); err != nil {
		t.Fatal(err)
	}
	if s.Entries() != 2 {
		t.Errorf("Entries() = %d, want 2", s.Entries())
	}

	res, err := s.RunNow(context.Background())
	if err != nil || res.Generated != 2 || f.batches != 1 {
		t.Fatalf("RunNow() = %+v, %v", res, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

type cleanerFunc func(context.Context) (int64, error)

func (f cleanerFunc) CleanupSessions(ctx context.Context) (int64, error) { return f(ctx) }

type blockingConsumer struct{}

func (blockingConsumer) ConsumeWithRetry(ctx context.Context, _ amqp.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

type failingConsumer struct{}

func (failingConsumer) ConsumeWithRetry(context.Context, amqp.Handler) error {
	return errors.New("access refused")
}

func TestRun(t *testing.T) {
	f := &fakeForecaster{target: core.NewMonth(2025, time.June)}
	s, err := NewScheduler("@monthly", f, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := Run(ctx, blockingConsumer{}, NewForecastWorker(f, nil), s); err != nil {
		t.Fatalf("Run() after shutdown = %v, want nil", err)
	}

	s2, _ := NewScheduler("@monthly", f, 1, nil)
	if err := Run(context.Background(), failingConsumer{}, nil, s2); err == nil {
		t.Fatal("consumer failure should stop Run")
	}
}
