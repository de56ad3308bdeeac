package storage

import (
	"context"
)

const createUser = `-- name: CreateUser :one
INSERT INTO users (username, email, password_hash, aadhar, phone, date_of_birth, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id, username, email, password_hash, aadhar, phone, date_of_birth, created_at
`

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Aadhar       string
	Phone        string
	DateOfBirth  string
	CreatedAt    string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Username,
		arg.Email,
		arg.PasswordHash,
		arg.Aadhar,
		arg.Phone,
		arg.DateOfBirth,
		arg.CreatedAt,
	)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.Email,
		&i.PasswordHash,
		&i.Aadhar,
		&i.Phone,
		&i.DateOfBirth,
		&i.CreatedAt,
	)
	return i, err
}

const getUser = `-- name: GetUser :one
SELECT id, username, email, password_hash, aadhar, phone, date_of_birth, created_at
FROM users
WHERE id = ?
`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.Email,
		&i.PasswordHash,
		&i.Aadhar,
		&i.Phone,
		&i.DateOfBirth,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByUsername = `-- name: GetUserByUsername :one
SELECT id, username, email, password_hash, aadhar, phone, date_of_birth, created_at
FROM users
WHERE username = ?
`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.Email,
		&i.PasswordHash,
		&i.Aadhar,
		&i.Phone,
		&i.DateOfBirth,
		&i.CreatedAt,
	)
	return i, err
}

const listUsers = `-- name: ListUsers :many
SELECT id, username, email, password_hash, aadhar, phone, date_of_birth, created_at
FROM users
ORDER BY id
`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(
			&i.ID,
			&i.Username,
			&i.Email,
			&i.PasswordHash,
			&i.Aadhar,
			&i.Phone,
			&i.DateOfBirth,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const userExistsBy = `-- name: UserExistsBy :one
SELECT
    EXISTS (SELECT 1 FROM users WHERE username = ?) AS username_taken,
    EXISTS (SELECT 1 FROM users WHERE email = ?) AS email_taken,
    EXISTS (SELECT 1 FROM users WHERE aadhar = ?) AS aadhar_taken
`

type UserExistsByRow struct {
	UsernameTaken bool
	EmailTaken    bool
	AadharTaken   bool
}

func (q *Queries) UserExistsBy(ctx context.Context, username, email, aadhar string) (UserExistsByRow, error) {
	row := q.db.QueryRowContext(ctx, userExistsBy, username, email, aadhar)
	var i UserExistsByRow
	err := row.Scan(&i.UsernameTaken, &i.EmailTaken, &i.AadharTaken)
	return i, err
}

const createSession = `-- name: CreateSession :exec
INSERT INTO sessions (token, user_id, expires_at, created_at)
VALUES (?, ?, ?, ?)
`

type CreateSessionParams struct {
	Token     string
	UserID    int64
	ExpiresAt string
	CreatedAt string
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	_, err := q.db.ExecContext(ctx, createSession,
		arg.Token,
		arg.UserID,
		arg.ExpiresAt,
		arg.CreatedAt,
	)
	return err
}

const getSession = `-- name: GetSession :one
SELECT token, user_id, expires_at, created_at
FROM sessions
WHERE token = ?
`

func (q *Queries) GetSession(ctx context.Context, token string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSession, token)
	var i Session
	err := row.Scan(
		&i.Token,
		&i.UserID,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const deleteSession = `-- name: DeleteSession :exec
DELETE FROM sessions WHERE token = ?
`

func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, token)
	return err
}

const deleteExpiredSessions = `-- name: DeleteExpiredSessions :execrows
DELETE FROM sessions WHERE expires_at <= ?
`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCategories = `-- name: ListCategories :many
SELECT id, name, description, icon, color, is_active
FROM expense_categories
WHERE is_active = 1
ORDER BY name
`

func (q *Queries) ListCategories(ctx context.Context) ([]ExpenseCategory, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseCategory
	for rows.Next() {
		var i ExpenseCategory
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Description,
			&i.Icon,
			&i.Color,
			&i.IsActive,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `-- name: GetCategory :one
SELECT id, name, description, icon, color, is_active
FROM expense_categories
WHERE id = ?
`

func (q *Queries) GetCategory(ctx context.Context, id int64) (ExpenseCategory, error) {
	row := q.db.QueryRowContext(ctx, getCategory, id)
	var i ExpenseCategory
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Icon,
		&i.Color,
		&i.IsActive,
	)
	return i, err
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (user_id, category_id, amount_paise, description, date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateExpenseParams struct {
	UserID      int64
	CategoryID  int64
	AmountPaise int64
	Description string
	Date        string
	CreatedAt   string
	UpdatedAt   string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.UserID,
		arg.CategoryID,
		arg.AmountPaise,
		arg.Description,
		arg.Date,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getExpense = `-- name: GetExpense :one
SELECT e.id, e.user_id, e.category_id, e.amount_paise, e.description, e.date, e.created_at, e.updated_at,
    c.name AS category_name
FROM expenses e
JOIN expense_categories c ON c.id = e.category_id
WHERE e.id = ? AND e.user_id = ?
`

type ExpenseRow struct {
	Expense      Expense
	CategoryName string
}

func (q *Queries) GetExpense(ctx context.Context, id, userID int64) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id, userID)
	var i ExpenseRow
	err := row.Scan(
		&i.Expense.ID,
		&i.Expense.UserID,
		&i.Expense.CategoryID,
		&i.Expense.AmountPaise,
		&i.Expense.Description,
		&i.Expense.Date,
		&i.Expense.CreatedAt,
		&i.Expense.UpdatedAt,
		&i.CategoryName,
	)
	return i, err
}

const updateExpense = `-- name: UpdateExpense :execrows
UPDATE expenses
SET category_id = ?, amount_paise = ?, description = ?, date = ?, updated_at = ?
WHERE id = ? AND user_id = ?
`

type UpdateExpenseParams struct {
	CategoryID  int64
	AmountPaise int64
	Description string
	Date        string
	UpdatedAt   string
	ID          int64
	UserID      int64
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpense,
		arg.CategoryID,
		arg.AmountPaise,
		arg.Description,
		arg.Date,
		arg.UpdatedAt,
		arg.ID,
		arg.UserID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `-- name: DeleteExpense :execrows
DELETE FROM expenses WHERE id = ? AND user_id = ?
`

func (q *Queries) DeleteExpense(ctx context.Context, id, userID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listExpenses = `-- name: ListExpenses :many
SELECT e.id, e.user_id, e.category_id, e.amount_paise, e.description, e.date, e.created_at, e.updated_at,
    c.name AS category_name
FROM expenses e
JOIN expense_categories c ON c.id = e.category_id
WHERE e.user_id = ?
  AND (? = 0 OR e.category_id = ?)
  AND (? = '' OR e.date >= ?)
  AND (? = '' OR e.date <= ?)
ORDER BY e.date DESC, e.created_at DESC, e.id DESC
LIMIT ?
`

type ListExpensesParams struct {
	UserID     int64
	CategoryID int64
	DateFrom   string
	DateTo     string
	Limit      int64 // -1 for no limit
}

func (q *Queries) ListExpenses(ctx context.Context, arg ListExpensesParams) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses,
		arg.UserID,
		arg.CategoryID, arg.CategoryID,
		arg.DateFrom, arg.DateFrom,
		arg.DateTo, arg.DateTo,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseRow
	for rows.Next() {
		var i ExpenseRow
		if err := rows.Scan(
			&i.Expense.ID,
			&i.Expense.UserID,
			&i.Expense.CategoryID,
			&i.Expense.AmountPaise,
			&i.Expense.Description,
			&i.Expense.Date,
			&i.Expense.CreatedAt,
			&i.Expense.UpdatedAt,
			&i.CategoryName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const monthlyAggregates = `-- name: MonthlyAggregates :many
SELECT c.name AS category_name, substr(e.date, 1, 7) AS month, SUM(e.amount_paise) AS total_paise
FROM expenses e
JOIN expense_categories c ON c.id = e.category_id
WHERE e.user_id = ?
  AND (? = '' OR e.date >= ?)
  AND (? = '' OR e.date < ?)
GROUP BY c.name, month
ORDER BY c.name, month
`

type MonthlyAggregatesParams struct {
	UserID   int64
	DateFrom string
	DateTo   string // exclusive
}

type MonthlyAggregatesRow struct {
	CategoryName string
	Month        string
	TotalPaise   int64
}

func (q *Queries) MonthlyAggregates(ctx context.Context, arg MonthlyAggregatesParams) ([]MonthlyAggregatesRow, error) {
	rows, err := q.db.QueryContext(ctx, monthlyAggregates,
		arg.UserID,
		arg.DateFrom, arg.DateFrom,
		arg.DateTo, arg.DateTo,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthlyAggregatesRow
	for rows.Next() {
		var i MonthlyAggregatesRow
		if err := rows.Scan(&i.CategoryName, &i.Month, &i.TotalPaise); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const categoryTotals = `-- name: CategoryTotals :many
SELECT c.name AS category_name, c.color, SUM(e.amount_paise) AS total_paise
FROM expenses e
JOIN expense_categories c ON c.id = e.category_id
WHERE e.user_id = ?
  AND (? = '' OR e.date >= ?)
  AND (? = '' OR e.date <= ?)
GROUP BY c.id
ORDER BY total_paise DESC, c.name
`

type CategoryTotalsParams struct {
	UserID   int64
	DateFrom string
	DateTo   string
}

type CategoryTotalsRow struct {
	CategoryName string
	Color        string
	TotalPaise   int64
}

func (q *Queries) CategoryTotals(ctx context.Context, arg CategoryTotalsParams) ([]CategoryTotalsRow, error) {
	rows, err := q.db.QueryContext(ctx, categoryTotals,
		arg.UserID,
		arg.DateFrom, arg.DateFrom,
		arg.DateTo, arg.DateTo,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryTotalsRow
	for rows.Next() {
		var i CategoryTotalsRow
		if err := rows.Scan(&i.CategoryName, &i.Color, &i.TotalPaise); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const dailyTotals = `-- name: DailyTotals :many
SELECT e.date, SUM(e.amount_paise) AS total_paise
FROM expenses e
WHERE e.user_id = ?
  AND (? = '' OR e.date >= ?)
  AND (? = '' OR e.date <= ?)
GROUP BY e.date
ORDER BY e.date
`

type DailyTotalsParams struct {
	UserID   int64
	DateFrom string
	DateTo   string
}

type DailyTotalsRow struct {
	Date       string
	TotalPaise int64
}

func (q *Queries) DailyTotals(ctx context.Context, arg DailyTotalsParams) ([]DailyTotalsRow, error) {
	rows, err := q.db.QueryContext(ctx, dailyTotals,
		arg.UserID,
		arg.DateFrom, arg.DateFrom,
		arg.DateTo, arg.DateTo,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyTotalsRow
	for rows.Next() {
		var i DailyTotalsRow
		if err := rows.Scan(&i.Date, &i.TotalPaise); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertPrediction = `-- name: UpsertPrediction :one
INSERT INTO predictions (
    user_id, prediction_month, total_paise, confidence, sentiment_factor, news_source,
    news_headlines, category_breakdown, available_months, window_months, algorithm_version, created_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, prediction_month) DO UPDATE SET
    total_paise = excluded.total_paise,
    confidence = excluded.confidence,
    sentiment_factor = excluded.sentiment_factor,
    news_source = excluded.news_source,
    news_headlines = excluded.news_headlines,
    category_breakdown = excluded.category_breakdown,
    available_months = excluded.available_months,
    window_months = excluded.window_months,
    algorithm_version = excluded.algorithm_version,
    created_at = excluded.created_at
RETURNING id
`

type UpsertPredictionParams struct {
	UserID            int64
	PredictionMonth   string
	TotalPaise        int64
	Confidence        float64
	SentimentFactor   float64
	NewsSource        string
	NewsHeadlines     string
	CategoryBreakdown string
	AvailableMonths   int64
	WindowMonths      int64
	AlgorithmVersion  string
	CreatedAt         string
}

func (q *Queries) UpsertPrediction(ctx context.Context, arg UpsertPredictionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertPrediction,
		arg.UserID,
		arg.PredictionMonth,
		arg.TotalPaise,
		arg.Confidence,
		arg.SentimentFactor,
		arg.NewsSource,
		arg.NewsHeadlines,
		arg.CategoryBreakdown,
		arg.AvailableMonths,
		arg.WindowMonths,
		arg.AlgorithmVersion,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listPredictions = `-- name: ListPredictions :many
SELECT id, user_id, prediction_month, total_paise, confidence, sentiment_factor, news_source,
    news_headlines, category_breakdown, available_months, window_months, algorithm_version, created_at
FROM predictions
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListPredictions(ctx context.Context, userID, limit int64) ([]Prediction, error) {
	rows, err := q.db.QueryContext(ctx, listPredictions, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Prediction
	for rows.Next() {
		var i Prediction
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.PredictionMonth,
			&i.TotalPaise,
			&i.Confidence,
			&i.SentimentFactor,
			&i.NewsSource,
			&i.NewsHeadlines,
			&i.CategoryBreakdown,
			&i.AvailableMonths,
			&i.WindowMonths,
			&i.AlgorithmVersion,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
