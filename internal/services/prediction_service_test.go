package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/forecast"
	"kharcha/internal/news"
	sheetsmem "kharcha/internal/sheets/memory"
	"kharcha/internal/storage/memory"
)

type predictionFixture struct {
	svc      *PredictionService
	store    *memory.Store
	exporter *sheetsmem.Exporter
	pub      *recordingPublisher
	cats     map[string]int64
}

func newPredictionFixture(t *testing.T, source news.Source) predictionFixture {
	t.Helper()
	store := memory.New()
	est, err := forecast.NewEstimator(forecast.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	exporter := sheetsmem.New()
	pub := &recordingPublisher{}
	svc := NewPredictionService(store, est, source, exporter, pub, nil).
		WithClock(fixedClock(time.Date(2025, 4, 15, 8, 0, 0, 0, time.UTC)))

	cats, _ := store.ListCategories(context.Background())
	ids := make(map[string]int64)
	for _, c := range cats {
		ids[c.Name] = c.ID
	}
	return predictionFixture{svc: svc, store: store, exporter: exporter, pub: pub, cats: ids}
}

func (f predictionFixture) addUser(t *testing.T, name, aadhar string) core.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), core.User{Username: name, Email: name + "@example.in", Aadhar: aadhar})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (f predictionFixture) spend(t *testing.T, userID int64, cat string, rupees int64, month time.Month) {
	t.Helper()
	_, err := f.store.CreateExpense(context.Background(), core.Expense{
		UserID:      userID,
		CategoryID:  f.cats[cat],
		Amount:      core.Money{Paise: rupees * 100},
		Description: "seed",
		Date:        core.NewDate(2025, int(month), 10),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f predictionFixture) seedWorkedExample(t *testing.T, userID int64) {
	t.Helper()
	food := []int64{100, 120, 110}
	transport := []int64{50, 55, 52}
	for i, m := range []time.Month{time.January, time.February, time.March} {
		f.spend(t, userID, "Food", food[i], m)
		f.spend(t, userID, "Transportation", transport[i], m)
	}
}

func TestPredictionService_Generate(t *testing.T) {
	ctx := context.Background()
	f := newPredictionFixture(t, neutralSource{})
	u := f.addUser(t, "asha", "2345 6789 0123")
	f.seedWorkedExample(t, u.ID)

	p, err := f.svc.Generate(ctx, u.ID, core.Month{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if p.Month != core.NewMonth(2025, time.May) {
		t.Errorf("default target = %s, want 2025-05", p.Month)
	}
	if math.Abs(p.Confidence-69.86) > 0.01 {
		t.Errorf("Confidence = %v, want 69.86", p.Confidence)
	}
	if p.AvailableMonths != 3 || p.WindowMonths != 6 || p.AlgorithmVersion != forecast.AlgorithmVersion {
		t.Errorf("metadata = %d/%d/%s", p.AvailableMonths, p.WindowMonths, p.AlgorithmVersion)
	}

	var sum int64
	for _, c := range p.Breakdown {
		sum += c.Predicted.Paise
		if c.Category == "Food" && c.Predicted.Paise != 11550 {
			t.Errorf("Food predicted = %d paise, want 11550", c.Predicted.Paise)
		}
	}
	if sum != p.Total.Paise {
		t.Errorf("breakdown sums to %d, total %d", sum, p.Total.Paise)
	}

	latest, err := f.svc.Latest(ctx, u.ID)
	if err != nil || latest.ID != p.ID {
		t.Fatalf("Latest() = %+v, %v", latest, err)
	}
	rows := f.exporter.Rows()
	if len(rows) != 1 || rows[0][1] != "asha" {
		t.Errorf("exported rows = %v", rows)
	}

	again, err := f.svc.Generate(ctx, u.ID, core.NewMonth(2025, time.May))
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != p.ID {
		t.Error("regenerating the same month must replace the prediction")
	}
}

func TestPredictionService_InsufficientData(t *testing.T) {
	f := newPredictionFixture(t, neutralSource{})
	u := f.addUser(t, "asha", "2345 6789 0123")
	f.spend(t, u.ID, "Food", 100, time.March)

	_, err := f.svc.Generate(context.Background(), u.ID, core.Month{})
	if !errors.Is(err, forecast.ErrInsufficientData) {
		t.Fatalf("Generate() error = %v, want ErrInsufficientData", err)
	}
	var ide *forecast.InsufficientDataError
	if !errors.As(err, &ide) || ide.Available != 1 || ide.Required != 2 {
		t.Errorf("unexpected error detail %+v", ide)
	}
	if _, err := f.svc.Latest(context.Background(), u.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("a failed forecast must not be stored: %v", err)
	}
}

func TestPredictionService_NewsFailureUsesNeutral(t *testing.T) {
	f := newPredictionFixture(t, failingSource{})
	u := f.addUser(t, "asha", "2345 6789 0123")
	f.seedWorkedExample(t, u.ID)

	p, err := f.svc.Generate(context.Background(), u.ID, core.Month{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if p.SentimentFactor != 1 || p.NewsSource != "neutral" {
		t.Errorf("sentiment = %v from %q", p.SentimentFactor, p.NewsSource)
	}
}

func TestPredictionService_ExportFailureIsNotFatal(t *testing.T) {
	f := newPredictionFixture(t, news.StaticSource{})
	f.exporter.Err = errors.New("quota exceeded")
	u := f.addUser(t, "asha", "2345 6789 0123")
	f.seedWorkedExample(t, u.ID)

	p, err := f.svc.Generate(context.Background(), u.ID, core.Month{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if p.SentimentFactor != 1.04 {
		t.Errorf("static sentiment factor = %v, want 1.04", p.SentimentFactor)
	}
}

func TestPredictionService_HistoryAndRequest(t *testing.T) {
	ctx := context.Background()
	f := newPredictionFixture(t, neutralSource{})
	u := f.addUser(t, "asha", "2345 6789 0123")
	f.seedWorkedExample(t, u.ID)

	for i := 0; i < 6; i++ {
		if _, err := f.svc.Generate(ctx, u.ID, core.NewMonth(2025, time.March).AddMonths(i)); err != nil {
			t.Fatalf("Generate(%d) error = %v", i, err)
		}
	}
	history, err := f.svc.History(ctx, u.ID)
	if err != nil || len(history) != HistoryLimit {
		t.Fatalf("History() = %d, %v", len(history), err)
	}

	if err := f.svc.RequestForecast(ctx, u.ID, core.NewMonth(2025, time.June)); err != nil {
		t.Fatal(err)
	}
	if len(f.pub.requested) != 1 || f.pub.requested[0].Month != "2025-06" {
		t.Errorf("requested = %+v", f.pub.requested)
	}

	f.svc.publisher = nil
	if err := f.svc.RequestForecast(ctx, u.ID, core.Month{}); !errors.Is(err, ErrMessagingDisabled) {
		t.Errorf("RequestForecast() without publisher = %v", err)
	}
}

func TestPredictionService_GenerateAll(t *testing.T) {
	f := newPredictionFixture(t, neutralSource{})
	a := f.addUser(t, "asha", "2345 6789 0123")
	b := f.addUser(t, "ravi", "3456 7890 1234")
	f.addUser(t, "meera", "4567 8901 2345")
	f.seedWorkedExample(t, a.ID)
	f.seedWorkedExample(t, b.ID)

	res, err := f.svc.GenerateAll(context.Background(), core.NewMonth(2025, time.May), 2)
	if err != nil {
		t.Fatalf("GenerateAll() error = %v", err)
	}
	if res.Generated != 2 || res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("GenerateAll() = %+v", res)
	}
	if len(f.exporter.Rows()) != 2 {
		t.Errorf("exported %d rows, want 2", len(f.exporter.Rows()))
	}
}
