package storage

import (
	"context"
	"time"

	"kharcha/internal/core"
)

// Ports implemented by the SQLite repository and the in-memory store.
// Lookups that miss return core.ErrNotFound; expense reads and writes are
// always scoped to the owning user.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	SessionStore interface {
		CreateSession(ctx context.Context, s core.Session) error
		GetSession(ctx context.Context, token string) (core.Session, error)
		DeleteSession(ctx context.Context, token string) error
		DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id int64) error
		// ListExpenses orders by date, then creation time, newest first.
		ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error)
	}

	// AggregateReader serves the derived totals. Zero bounds are open.
	AggregateReader interface {
		// MonthlyAggregates sums expenses per category and month for
		// months in [from, to).
		MonthlyAggregates(ctx context.Context, userID int64, from, to core.Month) ([]core.MonthlyAggregate, error)
		// CategoryTotals sums expenses per category for dates in [from, to].
		CategoryTotals(ctx context.Context, userID int64, from, to core.Date) ([]core.CategoryAmount, error)
		// DailyTotals sums expenses per day for dates in [from, to].
		DailyTotals(ctx context.Context, userID int64, from, to core.Date) ([]core.DailyAmount, error)
	}

	PredictionStore interface {
		UpsertPrediction(ctx context.Context, p core.Prediction) (core.Prediction, error)
		// ListPredictions returns the newest predictions first.
		ListPredictions(ctx context.Context, userID int64, limit int) ([]core.Prediction, error)
		LatestPrediction(ctx context.Context, userID int64) (core.Prediction, error)
	}

	// Store is the full persistence surface.
	Store interface {
		UserStore
		SessionStore
		CategoryStore
		ExpenseStore
		AggregateReader
		PredictionStore
		Ping(ctx context.Context) error
		Close() error
	}
)
