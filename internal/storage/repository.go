package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"kharcha/internal/core"
)

// timeLayout is fixed-width UTC so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05Z"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// uniqueViolation maps a UNIQUE constraint failure on users to the matching
// duplicate error.
func uniqueViolation(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}
	msg := se.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return core.ErrDuplicateUsername
	case strings.Contains(msg, "users.email"):
		return core.ErrDuplicateEmail
	case strings.Contains(msg, "users.aadhar"):
		return core.ErrDuplicateAadhar
	}
	return err
}

func userFromRow(u User) core.User {
	return core.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Aadhar:       u.Aadhar,
		Phone:        u.Phone,
		DateOfBirth:  parseDate(u.DateOfBirth),
		CreatedAt:    parseTime(u.CreatedAt),
	}
}

// CreateUser inserts u after checking the username, email and Aadhar
// uniqueness rules in that order.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	taken, err := q.UserExistsBy(ctx, u.Username, u.Email, u.Aadhar)
	if err != nil {
		return core.User{}, fmt.Errorf("check user uniqueness: %w", err)
	}
	switch {
	case taken.UsernameTaken:
		return core.User{}, core.ErrDuplicateUsername
	case taken.EmailTaken:
		return core.User{}, core.ErrDuplicateEmail
	case taken.AadharTaken:
		return core.User{}, core.ErrDuplicateAadhar
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	row, err := q.CreateUser(ctx, CreateUserParams{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Aadhar:       u.Aadhar,
		Phone:        u.Phone,
		DateOfBirth:  u.DateOfBirth.String(),
		CreatedAt:    formatTime(u.CreatedAt),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", uniqueViolation(err))
	}
	if err := tx.Commit(); err != nil {
		return core.User{}, fmt.Errorf("commit user: %w", uniqueViolation(err))
	}

	slog.InfoContext(ctx, "User saved to SQLite", "user_id", row.ID, "username", row.Username)
	return userFromRow(row), nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, notFound(err))
	}
	return userFromRow(row), nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row, err := r.queries.GetUserByUsername(ctx, username)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %q: %w", username, notFound(err))
	}
	return userFromRow(row), nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]core.User, len(rows))
	for i, row := range rows {
		users[i] = userFromRow(row)
	}
	return users, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	err := r.queries.CreateSession(ctx, CreateSessionParams{
		Token:     s.Token,
		UserID:    s.UserID,
		ExpiresAt: formatTime(s.ExpiresAt),
		CreatedAt: formatTime(s.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (core.Session, error) {
	row, err := r.queries.GetSession(ctx, token)
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", notFound(err))
	}
	return core.Session{
		Token:     row.Token,
		UserID:    row.UserID,
		ExpiresAt: parseTime(row.ExpiresAt),
		CreatedAt: parseTime(row.CreatedAt),
	}, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if err := r.queries.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.queries.DeleteExpiredSessions(ctx, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

func categoryFromRow(c ExpenseCategory) core.Category {
	return core.Category{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Color:       c.Color,
		IsActive:    c.IsActive,
	}
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats := make([]core.Category, len(rows))
	for i, row := range rows {
		cats[i] = categoryFromRow(row)
	}
	return cats, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, notFound(err))
	}
	return categoryFromRow(row), nil
}

func expenseFromRow(row ExpenseRow) core.Expense {
	e := row.Expense
	return core.Expense{
		ID:          e.ID,
		UserID:      e.UserID,
		CategoryID:  e.CategoryID,
		Category:    row.CategoryName,
		Amount:      core.Money{Paise: e.AmountPaise},
		Description: e.Description,
		Date:        parseDate(e.Date),
		CreatedAt:   parseTime(e.CreatedAt),
		UpdatedAt:   parseTime(e.UpdatedAt),
	}
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := time.Now()
	id, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		UserID:      e.UserID,
		CategoryID:  e.CategoryID,
		AmountPaise: e.Amount.Paise,
		Description: e.Description,
		Date:        e.Date.String(),
		CreatedAt:   formatTime(now),
		UpdatedAt:   formatTime(now),
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"expense_id", id,
		"user_id", e.UserID,
		"amount_paise", e.Amount.Paise,
		"date", e.Date.String())

	return r.GetExpense(ctx, e.UserID, id)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id, userID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, notFound(err))
	}
	return expenseFromRow(row), nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	n, err := r.queries.UpdateExpense(ctx, UpdateExpenseParams{
		CategoryID:  e.CategoryID,
		AmountPaise: e.Amount.Paise,
		Description: e.Description,
		Date:        e.Date.String(),
		UpdatedAt:   formatTime(time.Now()),
		ID:          e.ID,
		UserID:      e.UserID,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if n == 0 {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, core.ErrNotFound)
	}
	return r.GetExpense(ctx, e.UserID, e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	n, err := r.queries.DeleteExpense(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete expense %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "expense_id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	limit := int64(-1)
	if f.Limit > 0 {
		limit = int64(f.Limit)
	}
	rows, err := r.queries.ListExpenses(ctx, ListExpensesParams{
		UserID:     userID,
		CategoryID: f.CategoryID,
		DateFrom:   f.From.String(),
		DateTo:     f.To.String(),
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	expenses := make([]core.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = expenseFromRow(row)
	}
	return expenses, nil
}

func monthBound(m core.Month) string {
	if m.IsZero() {
		return ""
	}
	return m.Start().String()
}

func (r *SQLiteRepository) MonthlyAggregates(ctx context.Context, userID int64, from, to core.Month) ([]core.MonthlyAggregate, error) {
	rows, err := r.queries.MonthlyAggregates(ctx, MonthlyAggregatesParams{
		UserID:   userID,
		DateFrom: monthBound(from),
		DateTo:   monthBound(to),
	})
	if err != nil {
		return nil, fmt.Errorf("monthly aggregates: %w", err)
	}
	aggs := make([]core.MonthlyAggregate, 0, len(rows))
	for _, row := range rows {
		m, err := core.ParseMonth(row.Month)
		if err != nil {
			return nil, fmt.Errorf("monthly aggregates: bad stored month %q: %w", row.Month, err)
		}
		aggs = append(aggs, core.MonthlyAggregate{
			Category: row.CategoryName,
			Month:    m,
			Total:    core.Money{Paise: row.TotalPaise},
		})
	}
	return aggs, nil
}

func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64, from, to core.Date) ([]core.CategoryAmount, error) {
	rows, err := r.queries.CategoryTotals(ctx, CategoryTotalsParams{
		UserID:   userID,
		DateFrom: from.String(),
		DateTo:   to.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	out := make([]core.CategoryAmount, len(rows))
	for i, row := range rows {
		out[i] = core.CategoryAmount{
			Name:   row.CategoryName,
			Color:  row.Color,
			Amount: core.Money{Paise: row.TotalPaise},
		}
	}
	return out, nil
}

func (r *SQLiteRepository) DailyTotals(ctx context.Context, userID int64, from, to core.Date) ([]core.DailyAmount, error) {
	rows, err := r.queries.DailyTotals(ctx, DailyTotalsParams{
		UserID:   userID,
		DateFrom: from.String(),
		DateTo:   to.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	out := make([]core.DailyAmount, len(rows))
	for i, row := range rows {
		out[i] = core.DailyAmount{
			Date:   parseDate(row.Date),
			Amount: core.Money{Paise: row.TotalPaise},
		}
	}
	return out, nil
}

// breakdownJSON is the stored shape of one category_breakdown entry.
type breakdownJSON struct {
	Category  string  `json:"category"`
	Predicted string  `json:"predicted"`
	Mean      string  `json:"mean"`
	Trend     float64 `json:"trend"`
	Months    int     `json:"months"`
}

// EncodeBreakdown renders a prediction breakdown as the stored JSON text.
func EncodeBreakdown(items []core.CategoryPrediction) (string, error) {
	out := make([]breakdownJSON, len(items))
	for i, c := range items {
		out[i] = breakdownJSON{
			Category:  c.Category,
			Predicted: c.Predicted.String(),
			Mean:      c.Mean.String(),
			Trend:     c.Trend,
			Months:    c.Months,
		}
	}
	b, err := json.Marshal(out)
	return string(b), err
}

// DecodeBreakdown parses the stored JSON text of a prediction breakdown.
func DecodeBreakdown(s string) ([]core.CategoryPrediction, error) {
	var in []breakdownJSON
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return nil, err
	}
	out := make([]core.CategoryPrediction, len(in))
	for i, c := range in {
		predicted, err := decimal.NewFromString(c.Predicted)
		if err != nil {
			return nil, fmt.Errorf("category %s predicted %q: %w", c.Category, c.Predicted, err)
		}
		mean, err := decimal.NewFromString(c.Mean)
		if err != nil {
			return nil, fmt.Errorf("category %s mean %q: %w", c.Category, c.Mean, err)
		}
		out[i] = core.CategoryPrediction{
			Category:  c.Category,
			Predicted: core.MoneyFromDecimal(predicted),
			Mean:      core.MoneyFromDecimal(mean),
			Trend:     c.Trend,
			Months:    c.Months,
		}
	}
	return out, nil
}

func predictionFromRow(row Prediction) (core.Prediction, error) {
	month, err := core.ParseMonth(row.PredictionMonth)
	if err != nil {
		return core.Prediction{}, fmt.Errorf("prediction %d month: %w", row.ID, err)
	}
	var headlines []core.Headline
	if err := json.Unmarshal([]byte(row.NewsHeadlines), &headlines); err != nil {
		return core.Prediction{}, fmt.Errorf("prediction %d headlines: %w", row.ID, err)
	}
	breakdown, err := DecodeBreakdown(row.CategoryBreakdown)
	if err != nil {
		return core.Prediction{}, fmt.Errorf("prediction %d breakdown: %w", row.ID, err)
	}
	return core.Prediction{
		ID:               row.ID,
		UserID:           row.UserID,
		Month:            month,
		Total:            core.Money{Paise: row.TotalPaise},
		Confidence:       row.Confidence,
		SentimentFactor:  row.SentimentFactor,
		NewsSource:       row.NewsSource,
		Headlines:        headlines,
		Breakdown:        breakdown,
		AvailableMonths:  int(row.AvailableMonths),
		WindowMonths:     int(row.WindowMonths),
		AlgorithmVersion: row.AlgorithmVersion,
		CreatedAt:        parseTime(row.CreatedAt),
	}, nil
}

func (r *SQLiteRepository) UpsertPrediction(ctx context.Context, p core.Prediction) (core.Prediction, error) {
	if p.Headlines == nil {
		p.Headlines = []core.Headline{}
	}
	headlines, err := json.Marshal(p.Headlines)
	if err != nil {
		return core.Prediction{}, fmt.Errorf("encode headlines: %w", err)
	}
	breakdown, err := EncodeBreakdown(p.Breakdown)
	if err != nil {
		return core.Prediction{}, fmt.Errorf("encode breakdown: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = p.CreatedAt.UTC().Truncate(time.Second)

	id, err := r.queries.UpsertPrediction(ctx, UpsertPredictionParams{
		UserID:            p.UserID,
		PredictionMonth:   p.Month.String(),
		TotalPaise:        p.Total.Paise,
		Confidence:        p.Confidence,
		SentimentFactor:   p.SentimentFactor,
		NewsSource:        p.NewsSource,
		NewsHeadlines:     string(headlines),
		CategoryBreakdown: breakdown,
		AvailableMonths:   int64(p.AvailableMonths),
		WindowMonths:      int64(p.WindowMonths),
		AlgorithmVersion:  p.AlgorithmVersion,
		CreatedAt:         formatTime(p.CreatedAt),
	})
	if err != nil {
		return core.Prediction{}, fmt.Errorf("upsert prediction: %w", err)
	}
	p.ID = id
	return p, nil
}

func (r *SQLiteRepository) ListPredictions(ctx context.Context, userID int64, limit int) ([]core.Prediction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.ListPredictions(ctx, userID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	out := make([]core.Prediction, 0, len(rows))
	for _, row := range rows {
		p, err := predictionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *SQLiteRepository) LatestPrediction(ctx context.Context, userID int64) (core.Prediction, error) {
	preds, err := r.ListPredictions(ctx, userID, 1)
	if err != nil {
		return core.Prediction{}, err
	}
	if len(preds) == 0 {
		return core.Prediction{}, fmt.Errorf("latest prediction: %w", core.ErrNotFound)
	}
	return preds[0], nil
}
