// Package memory is a process-local implementation of storage.Store used
// by the memory backend and by service tests.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

var defaultCategories = []core.Category{
	{Name: "Education", Icon: "fas fa-graduation-cap", Color: "#FF9F40"},
	{Name: "Entertainment", Icon: "fas fa-film", Color: "#FFCE56"},
	{Name: "Food", Icon: "fas fa-utensils", Color: "#FF6384"},
	{Name: "Healthcare", Icon: "fas fa-heartbeat", Color: "#4BC0C0"},
	{Name: "Other", Icon: "fas fa-ellipsis-h", Color: "#6c757d"},
	{Name: "Shopping", Icon: "fas fa-shopping-bag", Color: "#C9CBCF"},
	{Name: "Transportation", Icon: "fas fa-car", Color: "#36A2EB"},
	{Name: "Utilities", Icon: "fas fa-bolt", Color: "#9966FF"},
}

type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	cats        []core.Category
	users       []core.User
	sessions    map[string]core.Session
	expenses    []core.Expense
	predictions []core.Prediction
	nextID      int64
}

var _ storage.Store = (*Store)(nil)

// New creates a store seeded with the default categories.
func New() *Store {
	s := &Store{now: time.Now, sessions: make(map[string]core.Session)}
	for _, c := range defaultCategories {
		s.addCategory(c)
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, one name per
// line, falling back to the defaults when the file is missing or empty.
func NewFromFiles(base string) *Store {
	names := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(names) == 0 {
		return New()
	}
	s := &Store{now: time.Now, sessions: make(map[string]core.Session)}
	for _, n := range names {
		s.addCategory(core.Category{Name: n, Color: "#6c757d"})
	}
	return s
}

// WithClock overrides the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) addCategory(c core.Category) {
	c.ID = s.id()
	c.IsActive = true
	s.cats = append(s.cats, c)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return core.User{}, core.ErrDuplicateUsername
		}
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.User{}, core.ErrDuplicateEmail
		}
	}
	for _, existing := range s.users {
		if existing.Aadhar == u.Aadhar {
			return core.User{}, core.ErrDuplicateAadhar
		}
	}
	u.ID = s.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.User(nil), s.users...), nil
}

func (s *Store) CreateSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, token string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return core.Session{}, core.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.cats))
	for _, c := range s.cats {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.category(id)
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) category(id int64) (core.Category, bool) {
	for _, c := range s.cats {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.category(e.CategoryID)
	if !ok {
		return core.Expense{}, core.ErrInvalidCategory
	}
	e.ID = s.id()
	e.Category = c.Name
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) find(userID, id int64) int {
	for i, e := range s.expenses {
		if e.ID == id && e.UserID == userID {
			return i
		}
	}
	return -1
}

func (s *Store) GetExpense(_ context.Context, userID, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(userID, id)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return s.expenses[i], nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(e.UserID, e.ID)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	c, ok := s.category(e.CategoryID)
	if !ok {
		return core.Expense{}, core.ErrInvalidCategory
	}
	cur := s.expenses[i]
	cur.CategoryID = e.CategoryID
	cur.Category = c.Name
	cur.Amount = e.Amount
	cur.Description = e.Description
	cur.Date = e.Date
	cur.UpdatedAt = s.now()
	s.expenses[i] = cur
	return cur, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(userID, id)
	if i < 0 {
		return core.ErrNotFound
	}
	s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID == userID && f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) MonthlyAggregates(_ context.Context, userID int64, from, to core.Month) ([]core.MonthlyAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct {
		cat   string
		month core.Month
	}
	sums := make(map[key]int64)
	for _, e := range s.expenses {
		if e.UserID != userID {
			continue
		}
		m := e.Date.Month()
		if (!from.IsZero() && m.Before(from)) || (!to.IsZero() && !m.Before(to)) {
			continue
		}
		sums[key{e.Category, m}] += e.Amount.Paise
	}
	out := make([]core.MonthlyAggregate, 0, len(sums))
	for k, v := range sums {
		out = append(out, core.MonthlyAggregate{Category: k.cat, Month: k.month, Total: core.Money{Paise: v}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Month.Before(out[j].Month)
	})
	return out, nil
}

func inRange(d, from, to core.Date) bool {
	if !from.IsZero() && d.Before(from.Time) {
		return false
	}
	if !to.IsZero() && d.After(to.Time) {
		return false
	}
	return true
}

func (s *Store) CategoryTotals(_ context.Context, userID int64, from, to core.Date) ([]core.CategoryAmount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := make(map[int64]int64)
	for _, e := range s.expenses {
		if e.UserID == userID && inRange(e.Date, from, to) {
			sums[e.CategoryID] += e.Amount.Paise
		}
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for id, v := range sums {
		c, _ := s.category(id)
		out = append(out, core.CategoryAmount{Name: c.Name, Color: c.Color, Amount: core.Money{Paise: v}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Paise != out[j].Amount.Paise {
			return out[i].Amount.Paise > out[j].Amount.Paise
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) DailyTotals(_ context.Context, userID int64, from, to core.Date) ([]core.DailyAmount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := make(map[string]int64)
	for _, e := range s.expenses {
		if e.UserID == userID && inRange(e.Date, from, to) {
			sums[e.Date.String()] += e.Amount.Paise
		}
	}
	days := make([]string, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]core.DailyAmount, len(days))
	for i, d := range days {
		date, _ := core.ParseDate(d)
		out[i] = core.DailyAmount{Date: date, Amount: core.Money{Paise: sums[d]}}
	}
	return out, nil
}

func (s *Store) UpsertPrediction(_ context.Context, p core.Prediction) (core.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	for i, existing := range s.predictions {
		if existing.UserID == p.UserID && existing.Month == p.Month {
			p.ID = existing.ID
			s.predictions[i] = p
			return p, nil
		}
	}
	p.ID = s.id()
	s.predictions = append(s.predictions, p)
	return p, nil
}

func (s *Store) ListPredictions(_ context.Context, userID int64, limit int) ([]core.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Prediction
	for _, p := range s.predictions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LatestPrediction(ctx context.Context, userID int64) (core.Prediction, error) {
	preds, err := s.ListPredictions(ctx, userID, 1)
	if err != nil {
		return core.Prediction{}, err
	}
	if len(preds) == 0 {
		return core.Prediction{}, core.ErrNotFound
	}
	return preds[0], nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	sort.Strings(out)
	return out
}
