package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kharcha/internal/amqp"
	"kharcha/internal/cache"
	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

const (
	recentExpenses     = 5
	dailyAverageDays   = 30
	DefaultChartMonths = 6
	MaxChartMonths     = 24
)

// ExpenseService orchestrates expense operations across storage and AMQP.
type ExpenseService struct {
	store     ExpenseRepository
	publisher Publisher
	charts    *cache.LRUCache[core.ChartData]
	logger    *applog.Logger
	events    *applog.StructuredLogger
	now       func() time.Time
}

// NewExpenseService wires the service. publisher may be nil.
func NewExpenseService(store ExpenseRepository, publisher Publisher, logger *applog.Logger) *ExpenseService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		charts:    cache.NewLRUCache[core.ChartData](256, 10*time.Minute),
		logger:    logger.WithComponent(applog.ComponentExpense),
		events:    applog.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// WithClock replaces the time source used for dashboard windows.
func (s *ExpenseService) WithClock(now func() time.Time) *ExpenseService {
	s.now = now
	s.charts.WithClock(now)
	return s
}

// ChartCache exposes the chart cache for registration with a cache.Manager.
func (s *ExpenseService) ChartCache() *cache.LRUCache[core.ChartData] {
	return s.charts
}

func (s *ExpenseService) today() core.Date {
	t := s.now().UTC()
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}

// Categories lists the active categories.
func (s *ExpenseService) Categories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *ExpenseService) checkCategory(ctx context.Context, id int64) error {
	c, err := s.store.GetCategory(ctx, id)
	if errors.Is(err, core.ErrNotFound) || (err == nil && !c.IsActive) {
		return invalid(core.ErrInvalidCategory)
	}
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}
	return nil
}

// CreateExpense saves an expense owned by userID and announces the change.
func (s *ExpenseService) CreateExpense(ctx context.Context, userID int64, e core.Expense) (core.Expense, error) {
	e.UserID = userID
	if err := e.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}
	if err := s.checkCategory(ctx, e.CategoryID); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.changed(ctx, applog.OpCreate, amqp.ActionCreated, saved)
	return saved, nil
}

// GetExpense returns one of the user's expenses. Other users' expenses are
// reported as core.ErrNotFound.
func (s *ExpenseService) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// UpdateExpense replaces the editable fields of an existing expense.
func (s *ExpenseService) UpdateExpense(ctx context.Context, userID, id int64, e core.Expense) (core.Expense, error) {
	prev, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	e.ID = id
	e.UserID = userID
	if err := e.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}
	if err := s.checkCategory(ctx, e.CategoryID); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}

	s.changed(ctx, applog.OpUpdate, amqp.ActionUpdated, saved)
	if prev.Date.Month() != saved.Date.Month() {
		s.publishChanged(ctx, amqp.ActionUpdated, prev)
	}
	return saved, nil
}

// DeleteExpense removes one of the user's expenses.
func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, id int64) error {
	prev, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("get expense %d: %w", id, err)
	}
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.changed(ctx, applog.OpDelete, amqp.ActionDeleted, prev)
	return nil
}

// ListExpenses returns the user's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	if err := f.Validate(); err != nil {
		return nil, invalid(err)
	}
	list, err := s.store.ListExpenses(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

// Dashboard assembles the landing summary for userID.
func (s *ExpenseService) Dashboard(ctx context.Context, userID int64) (core.Dashboard, error) {
	today := s.today()
	month := today.Month()
	d := core.Dashboard{CurrentMonth: month}

	all, err := s.store.CategoryTotals(ctx, userID, core.Date{}, core.Date{})
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("category totals: %w", err)
	}
	for _, c := range all {
		d.TotalSpent = d.TotalSpent.Add(c.Amount)
	}
	d.CategoriesUsed = len(all)

	d.MonthByCategory, err = s.store.CategoryTotals(ctx, userID, month.Start(), month.End())
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("month totals: %w", err)
	}
	for _, c := range d.MonthByCategory {
		d.MonthSpent = d.MonthSpent.Add(c.Amount)
	}

	from := core.Date{Time: today.AddDate(0, 0, -(dailyAverageDays - 1))}
	daily, err := s.store.DailyTotals(ctx, userID, from, today)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("daily totals: %w", err)
	}
	var last30 core.Money
	for _, day := range daily {
		last30 = last30.Add(day.Amount)
	}
	d.DailyAverage = core.MoneyFromDecimal(last30.Decimal().Div(decimal.NewFromInt(dailyAverageDays)))

	d.RecentExpenses, err = s.store.ListExpenses(ctx, userID, core.ExpenseFilter{Limit: recentExpenses})
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("recent expenses: %w", err)
	}

	latest, err := s.store.LatestPrediction(ctx, userID)
	switch {
	case err == nil:
		d.LatestPrediction = &latest
	case !errors.Is(err, core.ErrNotFound):
		return core.Dashboard{}, fmt.Errorf("latest prediction: %w", err)
	}
	return d, nil
}

// Charts returns the chart series covering the last months calendar
// months, the current one included. Results are cached per user until the
// user's expenses change.
func (s *ExpenseService) Charts(ctx context.Context, userID int64, months int) (core.ChartData, error) {
	if months == 0 {
		months = DefaultChartMonths
	}
	if months < 1 || months > MaxChartMonths {
		return core.ChartData{}, invalid(fmt.Errorf("months must be between 1 and %d", MaxChartMonths))
	}

	today := s.today()
	key := fmt.Sprintf("%s%d:%s", chartKeyPrefix(userID), months, today)
	if data, ok := s.charts.Get(key); ok {
		return data, nil
	}

	current := today.Month()
	first := current.AddMonths(-(months - 1))

	var data core.ChartData
	var err error
	data.ByCategory, err = s.store.CategoryTotals(ctx, userID, first.Start(), today)
	if err != nil {
		return core.ChartData{}, fmt.Errorf("category totals: %w", err)
	}
	from := core.Date{Time: today.AddDate(0, 0, -(dailyAverageDays - 1))}
	data.ByDay, err = s.store.DailyTotals(ctx, userID, from, today)
	if err != nil {
		return core.ChartData{}, fmt.Errorf("daily totals: %w", err)
	}

	aggs, err := s.store.MonthlyAggregates(ctx, userID, first, current.Next())
	if err != nil {
		return core.ChartData{}, fmt.Errorf("monthly aggregates: %w", err)
	}
	byMonth := make(map[core.Month]core.Money)
	for _, a := range aggs {
		byMonth[a.Month] = byMonth[a.Month].Add(a.Total)
	}
	for m := first; !m.After(current); m = m.Next() {
		data.ByMonth = append(data.ByMonth, core.MonthAmount{Month: m, Amount: byMonth[m]})
	}

	s.charts.Set(key, data)
	return data, nil
}

func chartKeyPrefix(userID int64) string {
	return fmt.Sprintf("charts:%d:", userID)
}

// changed invalidates the user's cached charts, logs the event and
// publishes it. Publish failures never fail the caller.
func (s *ExpenseService) changed(ctx context.Context, op, action string, e core.Expense) {
	s.charts.DeletePrefix(chartKeyPrefix(e.UserID))
	s.events.LogExpenseChanged(ctx, op, e.UserID, e.ID, e.Category, e.Amount.Paise)
	s.publishChanged(ctx, action, e)
}

func (s *ExpenseService) publishChanged(ctx context.Context, action string, e core.Expense) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping change message")
		return
	}
	msg := amqp.NewExpenseChangedMessage(e.UserID, e.ID, e.Date.Month().String(), action)
	if err := s.publisher.PublishExpenseChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense change",
			applog.FieldExpenseID, e.ID,
			applog.FieldUserID, e.UserID,
			applog.FieldError, err)
	}
}
