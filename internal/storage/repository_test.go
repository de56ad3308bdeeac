package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kharcha/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "kharcha.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustUser(t *testing.T, repo *SQLiteRepository, username, aadhar string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{
		Username:     username,
		Email:        username + "@example.in",
		PasswordHash: "hash",
		Aadhar:       aadhar,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func categoryID(t *testing.T, repo *SQLiteRepository, name string) int64 {
	t.Helper()
	cats, err := repo.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %s not seeded", name)
	return 0
}

func TestSeededCategories(t *testing.T) {
	repo := newTestRepo(t)
	cats, err := repo.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 8 {
		t.Fatalf("expected 8 seeded categories, got %d", len(cats))
	}
	if cats[0].Name != "Education" || cats[0].Icon == "" || cats[0].Color == "" {
		t.Fatalf("categories should be sorted by name with icon and color: %+v", cats[0])
	}
}

func TestCreateUserUniqueness(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustUser(t, repo, "asha", "2345 6789 0123")

	tests := []struct {
		name string
		user core.User
		want error
	}{
		{"same username", core.User{Username: "asha", Email: "x@example.in", Aadhar: "3456 7890 1234"}, core.ErrDuplicateUsername},
		{"same email", core.User{Username: "ravi", Email: "asha@example.in", Aadhar: "3456 7890 1234"}, core.ErrDuplicateEmail},
		{"same aadhar", core.User{Username: "ravi", Email: "ravi@example.in", Aadhar: "2345 6789 0123"}, core.ErrDuplicateAadhar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.CreateUser(ctx, tt.user); !errors.Is(err, tt.want) {
				t.Fatalf("CreateUser() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "asha", "2345 6789 0123")

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	if err := repo.CreateSession(ctx, core.Session{Token: "live", UserID: u.ID, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := repo.CreateSession(ctx, core.Session{Token: "old", UserID: u.ID, ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	s, err := repo.GetSession(ctx, "live")
	if err != nil || s.UserID != u.ID || !s.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("GetSession = %+v, %v", s, err)
	}

	n, err := repo.DeleteExpiredSessions(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredSessions = %d, %v", n, err)
	}
	if _, err := repo.GetSession(ctx, "old"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expired session should be gone, got %v", err)
	}

	if err := repo.DeleteSession(ctx, "live"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := repo.GetSession(ctx, "live"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("deleted session should be gone, got %v", err)
	}
}

func TestExpenseLifecycleIsOwnerScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	asha := mustUser(t, repo, "asha", "2345 6789 0123")
	ravi := mustUser(t, repo, "ravi", "3456 7890 1234")
	food := categoryID(t, repo, "Food")

	e, err := repo.CreateExpense(ctx, core.Expense{
		UserID:      asha.ID,
		CategoryID:  food,
		Amount:      core.Money{Paise: 45050},
		Description: "Groceries",
		Date:        core.NewDate(2025, 5, 3),
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if e.Category != "Food" || e.Amount.Paise != 45050 || e.Date.String() != "2025-05-03" {
		t.Fatalf("unexpected expense: %+v", e)
	}

	if _, err := repo.GetExpense(ctx, ravi.ID, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("other user must not see expense, got %v", err)
	}

	e.Amount = core.Money{Paise: 50000}
	e.Description = "Groceries and milk"
	updated, err := repo.UpdateExpense(ctx, e)
	if err != nil || updated.Amount.Paise != 50000 || updated.Description != "Groceries and milk" {
		t.Fatalf("UpdateExpense = %+v, %v", updated, err)
	}

	stolen := e
	stolen.UserID = ravi.ID
	if _, err := repo.UpdateExpense(ctx, stolen); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update by other user should be not found, got %v", err)
	}
	if err := repo.DeleteExpense(ctx, ravi.ID, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete by other user should be not found, got %v", err)
	}

	if err := repo.DeleteExpense(ctx, asha.ID, e.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if _, err := repo.GetExpense(ctx, asha.ID, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("deleted expense still readable: %v", err)
	}
}

func TestListExpensesAndAggregates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "asha", "2345 6789 0123")
	food := categoryID(t, repo, "Food")
	transport := categoryID(t, repo, "Transportation")

	seed := []struct {
		cat   int64
		paise int64
		date  core.Date
	}{
		{food, 10000, core.NewDate(2025, 2, 5)},
		{food, 2000, core.NewDate(2025, 2, 20)},
		{transport, 5000, core.NewDate(2025, 2, 9)},
		{food, 11000, core.NewDate(2025, 3, 1)},
		{transport, 5500, core.NewDate(2025, 3, 31)},
		{food, 9900, core.NewDate(2025, 4, 15)},
	}
	for _, s := range seed {
		if _, err := repo.CreateExpense(ctx, core.Expense{UserID: u.ID, CategoryID: s.cat, Amount: core.Money{Paise: s.paise}, Description: "x", Date: s.date}); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	all, err := repo.ListExpenses(ctx, u.ID, core.ExpenseFilter{})
	if err != nil || len(all) != 6 {
		t.Fatalf("ListExpenses = %d, %v", len(all), err)
	}
	if all[0].Date.String() != "2025-04-15" || all[5].Date.String() != "2025-02-05" {
		t.Fatalf("expected newest first, got %s .. %s", all[0].Date, all[5].Date)
	}

	filtered, err := repo.ListExpenses(ctx, u.ID, core.ExpenseFilter{
		CategoryID: food,
		From:       core.NewDate(2025, 2, 10),
		To:         core.NewDate(2025, 3, 31),
	})
	if err != nil || len(filtered) != 2 {
		t.Fatalf("filtered ListExpenses = %d, %v", len(filtered), err)
	}

	limited, _ := repo.ListExpenses(ctx, u.ID, core.ExpenseFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("limit not applied: %d", len(limited))
	}

	aggs, err := repo.MonthlyAggregates(ctx, u.ID, core.NewMonth(2025, time.February), core.NewMonth(2025, time.April))
	if err != nil {
		t.Fatalf("MonthlyAggregates: %v", err)
	}
	want := []struct {
		cat   string
		month string
		paise int64
	}{
		{"Food", "2025-02", 12000},
		{"Food", "2025-03", 11000},
		{"Transportation", "2025-02", 5000},
		{"Transportation", "2025-03", 5500},
	}
	if len(aggs) != len(want) {
		t.Fatalf("MonthlyAggregates = %+v", aggs)
	}
	for i, w := range want {
		if aggs[i].Category != w.cat || aggs[i].Month.String() != w.month || aggs[i].Total.Paise != w.paise {
			t.Fatalf("aggregate %d = %+v, want %+v", i, aggs[i], w)
		}
	}

	totals, err := repo.CategoryTotals(ctx, u.ID, core.Date{}, core.Date{})
	if err != nil || len(totals) != 2 || totals[0].Name != "Food" || totals[0].Amount.Paise != 32900 {
		t.Fatalf("CategoryTotals = %+v, %v", totals, err)
	}

	daily, err := repo.DailyTotals(ctx, u.ID, core.NewDate(2025, 3, 1), core.NewDate(2025, 4, 30))
	if err != nil || len(daily) != 3 || daily[0].Date.String() != "2025-03-01" {
		t.Fatalf("DailyTotals = %+v, %v", daily, err)
	}
}

func TestPredictionUpsertAndHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "asha", "2345 6789 0123")

	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	p := core.Prediction{
		UserID:          u.ID,
		Month:           core.NewMonth(2025, time.June),
		Total:           core.Money{Paise: 17325},
		Confidence:      69.86,
		SentimentFactor: 1.04,
		NewsSource:      "static",
		Headlines:       []core.Headline{{Title: "RBI holds repo rate", Impact: 0.3}},
		Breakdown: []core.CategoryPrediction{
			{Category: "Food", Predicted: core.Money{Paise: 12012}, Mean: core.Money{Paise: 11000}, Trend: 1.05, Months: 3},
		},
		AvailableMonths:  3,
		WindowMonths:     6,
		AlgorithmVersion: "v2.0",
		CreatedAt:        base,
	}
	first, err := repo.UpsertPrediction(ctx, p)
	if err != nil {
		t.Fatalf("UpsertPrediction: %v", err)
	}

	p.Total = core.Money{Paise: 20000}
	p.CreatedAt = base.Add(time.Minute)
	second, err := repo.UpsertPrediction(ctx, p)
	if err != nil {
		t.Fatalf("UpsertPrediction: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same month should upsert in place: %d != %d", second.ID, first.ID)
	}

	p.Month = core.NewMonth(2025, time.July)
	p.CreatedAt = base.Add(2 * time.Minute)
	if _, err := repo.UpsertPrediction(ctx, p); err != nil {
		t.Fatalf("UpsertPrediction: %v", err)
	}

	history, err := repo.ListPredictions(ctx, u.ID, 5)
	if err != nil || len(history) != 2 {
		t.Fatalf("ListPredictions = %d, %v", len(history), err)
	}
	if history[0].Month.String() != "2025-07" {
		t.Fatalf("newest first expected, got %s", history[0].Month)
	}
	june := history[1]
	if june.Total.Paise != 20000 || len(june.Headlines) != 1 || june.Breakdown[0].Predicted.Paise != 12012 || june.Breakdown[0].Trend != 1.05 {
		t.Fatalf("round trip lost data: %+v", june)
	}

	latest, err := repo.LatestPrediction(ctx, u.ID)
	if err != nil || latest.Month.String() != "2025-07" {
		t.Fatalf("LatestPrediction = %+v, %v", latest, err)
	}
	if _, err := repo.LatestPrediction(ctx, u.ID+100); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kharcha.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	v, dirty, err := MigrationVersion(path)
	if err != nil || v != 1 || dirty {
		t.Fatalf("MigrationVersion = %d, %v, %v", v, dirty, err)
	}
	if err := RollbackMigrations(path, 1); err != nil {
		t.Fatalf("RollbackMigrations: %v", err)
	}
	v, _, err = MigrationVersion(path)
	if err != nil || v != 0 {
		t.Fatalf("after rollback MigrationVersion = %d, %v", v, err)
	}
}
