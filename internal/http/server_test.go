package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kharcha/internal/core"
	"kharcha/internal/forecast"
	applog "kharcha/internal/log"
	"kharcha/internal/middleware/ratelimit"
	"kharcha/internal/services"
	"kharcha/internal/storage/memory"
)

var testNow = time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC)

type neutralSource struct{}

func (neutralSource) Sentiment(context.Context, core.Month) (forecast.Sentiment, error) {
	return forecast.Sentiment{Source: "test"}, nil
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("database is locked") }

type testEnv struct {
	srv   *Server
	store *memory.Store
	cats  map[string]int64
}

func newTestEnv(t *testing.T, opts Options) testEnv {
	t.Helper()
	store := memory.New()
	logger := applog.New(applog.Config{Output: io.Discard})
	est, err := forecast.NewEstimator(forecast.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	clock := func() time.Time { return testNow }

	auth := services.NewAuthService(store, store, services.AuthConfig{
		SessionTTL:  time.Hour,
		RememberTTL: 24 * time.Hour,
		BcryptCost:  bcrypt.MinCost,
	}, logger).WithClock(clock)
	expenses := services.NewExpenseService(store, nil, logger).WithClock(clock)
	predictions := services.NewPredictionService(store, est, neutralSource{}, nil, nil, logger).WithClock(clock)

	opts.Logger = logger
	srv := NewServer(":0", auth, expenses, predictions, store, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	cats, _ := store.ListCategories(context.Background())
	ids := make(map[string]int64)
	for _, c := range cats {
		ids[c.Name] = c.ID
	}
	return testEnv{srv: srv, store: store, cats: ids}
}

func (e testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// signUp registers and logs in a user, returning the session token.
func (e testEnv) signUp(t *testing.T, username, aadhar string) string {
	t.Helper()
	body := `{"username":"` + username + `","email":"` + username + `@example.in","password":"s3cret-pass","aadhar":"` + aadhar + `"}`
	if rr := e.do(t, http.MethodPost, "/api/users/register", body, ""); rr.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, rr.Code, rr.Body.String())
	}
	rr := e.do(t, http.MethodPost, "/api/users/login", `{"username":"`+username+`","password":"s3cret-pass"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rr, &resp)
	return resp.Token
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decodeBody(t, rr, &body)
	return body.Code
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing security headers", path)
		}
	}

	env.srv.store = downStore{}
	if rr := env.do(t, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store = %d", rr.Code)
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.signUp(t, "asha", "2345 6789 0123")

	tests := []struct {
		name     string
		body     string
		want     int
		wantCode string
		wantMsg  string
	}{
		{
			name: "valid with optional fields",
			body: `{"username":"ravi","email":"Ravi@Example.in","password":"longenough","aadhar":"3456  7890 1234","phone":"+919800000000","date_of_birth":"1990-02-01"}`,
			want: http.StatusCreated,
		},
		{
			name:     "aadhar starting with 1",
			body:     `{"username":"meena","email":"m@example.in","password":"longenough","aadhar":"1234 5678 9012"}`,
			want:     http.StatusBadRequest,
			wantCode: CodeValidation,
			wantMsg:  core.ErrInvalidAadhar.Error(),
		},
		{
			name:     "duplicate aadhar",
			body:     `{"username":"meena","email":"m@example.in","password":"longenough","aadhar":"2345 6789 0123"}`,
			want:     http.StatusConflict,
			wantCode: CodeConflict,
			wantMsg:  core.ErrDuplicateAadhar.Error(),
		},
		{
			name:     "duplicate username",
			body:     `{"username":"asha","email":"other@example.in","password":"longenough","aadhar":"4567 8901 2345"}`,
			want:     http.StatusConflict,
			wantCode: CodeConflict,
		},
		{
			name:     "weak password",
			body:     `{"username":"meena","email":"m@example.in","password":"short","aadhar":"4567 8901 2345"}`,
			want:     http.StatusBadRequest,
			wantCode: CodeValidation,
		},
		{
			name:     "bad date of birth",
			body:     `{"username":"meena","email":"m@example.in","password":"longenough","aadhar":"4567 8901 2345","date_of_birth":"01/02/1990"}`,
			want:     http.StatusBadRequest,
			wantCode: CodeValidation,
		},
		{
			name:     "unknown field",
			body:     `{"username":"meena","is_admin":true}`,
			want:     http.StatusBadRequest,
			wantCode: CodeValidation,
		},
		{
			name:     "malformed json",
			body:     `{"username":`,
			want:     http.StatusBadRequest,
			wantCode: CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/users/register", tt.body, "")
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
			if tt.wantCode == "" {
				var u userView
				decodeBody(t, rr, &u)
				if u.Aadhar != "XXXX XXXX 1234" || u.Email != "ravi@example.in" || u.DateOfBirth != "1990-02-01" {
					t.Fatalf("user = %+v", u)
				}
				return
			}
			var body errorBody
			decodeBody(t, rr, &body)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{SecureCookies: true})
	env.signUp(t, "asha", "2345 6789 0123")

	if rr := env.do(t, http.MethodPost, "/api/users/login", `{"username":"asha","password":"wrong-pass"}`, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rr.Code)
	}

	rr := env.do(t, http.MethodPost, "/api/users/login", `{"username":"asha","password":"s3cret-pass","remember":true}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d", rr.Code)
	}
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || !cookie.Secure {
		t.Fatalf("session cookie = %+v", cookie)
	}
	if !cookie.Expires.Equal(testNow.Add(24 * time.Hour)) {
		t.Errorf("remember-me expiry = %v", cookie.Expires)
	}

	withCookie := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rr, req)
		return rr
	}

	rr = withCookie(http.MethodGet, "/api/users/me")
	if rr.Code != http.StatusOK {
		t.Fatalf("me status = %d", rr.Code)
	}
	var me userView
	decodeBody(t, rr, &me)
	if me.Username != "asha" {
		t.Fatalf("me = %+v", me)
	}

	if rr := withCookie(http.MethodPost, "/api/users/logout"); rr.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rr.Code)
	}
	rr = withCookie(http.MethodGet, "/api/users/me")
	if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != CodeUnauthorized {
		t.Fatalf("me after logout = %d %s", rr.Code, rr.Body.String())
	}
}

func TestExpenseEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})
	asha := env.signUp(t, "asha", "2345 6789 0123")
	ravi := env.signUp(t, "ravi", "3456 7890 1234")
	food := env.cats["Food"]

	create := func(token, body string) *httptest.ResponseRecorder {
		return env.do(t, http.MethodPost, "/api/expenses", body, token)
	}

	rr := create(asha, `{"category_id":`+itoa(food)+`,"amount":"1,250.50","description":"Groceries","date":"2025-04-10"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	var created expenseView
	decodeBody(t, rr, &created)
	if created.Amount.Amount != "1250.50" || created.Amount.Display != "₹1,250.50" || created.Category != "Food" {
		t.Fatalf("created = %+v", created)
	}
	if rr := create(asha, `{"category_id":`+itoa(env.cats["Transportation"])+`,"amount":80,"description":"Auto","date":"2025-03-02"}`); rr.Code != http.StatusCreated {
		t.Fatalf("numeric amount status = %d: %s", rr.Code, rr.Body.String())
	}

	invalid := []struct {
		name string
		body string
	}{
		{"unknown category", `{"category_id":999,"amount":"10","description":"x","date":"2025-04-10"}`},
		{"zero amount", `{"category_id":` + itoa(food) + `,"amount":"0","description":"x","date":"2025-04-10"}`},
		{"negative amount", `{"category_id":` + itoa(food) + `,"amount":"-5","description":"x","date":"2025-04-10"}`},
		{"future date", `{"category_id":` + itoa(food) + `,"amount":"10","description":"x","date":"2999-01-01"}`},
		{"empty description", `{"category_id":` + itoa(food) + `,"amount":"10","description":"  ","date":"2025-04-10"}`},
		{"bad date", `{"category_id":` + itoa(food) + `,"amount":"10","description":"x","date":"10-04-2025"}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if rr := create(asha, tt.body); rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
			}
		})
	}

	path := "/api/expenses/" + itoa(created.ID)
	if rr := env.do(t, http.MethodGet, path, "", asha); rr.Code != http.StatusOK {
		t.Fatalf("get own = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, path, "", ravi); rr.Code != http.StatusNotFound {
		t.Fatalf("get other user's expense = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, path, "", ravi); rr.Code != http.StatusNotFound {
		t.Fatalf("delete other user's expense = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/expenses/abc", "", asha); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPatch, path, `{}`, asha); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PATCH = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/expenses", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPut, path, `{"category_id":`+itoa(food)+`,"amount":"999.99","description":"Groceries and fruit","date":"2025-04-11"}`, asha)
	if rr.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rr.Code, rr.Body.String())
	}
	var updated expenseView
	decodeBody(t, rr, &updated)
	if updated.Amount.Amount != "999.99" || updated.Date != "2025-04-11" {
		t.Fatalf("updated = %+v", updated)
	}

	listTests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?category=" + itoa(food), 1},
		{"?date_from=2025-04-01&date_to=2025-04-30", 1},
		{"?date_from=2025-01-01&date_to=2025-03-31", 1},
	}
	for _, tt := range listTests {
		rr := env.do(t, http.MethodGet, "/api/expenses"+tt.query, "", asha)
		if rr.Code != http.StatusOK {
			t.Fatalf("list %q = %d", tt.query, rr.Code)
		}
		var list struct {
			Expenses []expenseView `json:"expenses"`
			Count    int           `json:"count"`
		}
		decodeBody(t, rr, &list)
		if list.Count != tt.want || len(list.Expenses) != tt.want {
			t.Errorf("list %q = %d, want %d", tt.query, list.Count, tt.want)
		}
	}
	for _, q := range []string{"?date_from=2025-05-01&date_to=2025-04-01", "?category=food", "?date_to=yesterday"} {
		if rr := env.do(t, http.MethodGet, "/api/expenses"+q, "", asha); rr.Code != http.StatusBadRequest {
			t.Errorf("list %q = %d, want 400", q, rr.Code)
		}
	}

	if rr := env.do(t, http.MethodDelete, path, "", asha); rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, path, "", asha); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rr.Code)
	}
}

func TestCategoriesDashboardAndCharts(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.signUp(t, "asha", "2345 6789 0123")

	rr := env.do(t, http.MethodGet, "/api/categories", "", token)
	var cats struct {
		Categories []categoryView `json:"categories"`
	}
	decodeBody(t, rr, &cats)
	if len(cats.Categories) != 8 || cats.Categories[0].Icon == "" {
		t.Fatalf("categories = %+v", cats)
	}

	for _, body := range []string{
		`{"category_id":` + itoa(env.cats["Food"]) + `,"amount":"300","description":"Dinner","date":"2025-04-14"}`,
		`{"category_id":` + itoa(env.cats["Utilities"]) + `,"amount":"150","description":"Power","date":"2025-04-01"}`,
		`{"category_id":` + itoa(env.cats["Food"]) + `,"amount":"1000","description":"Party","date":"2025-01-20"}`,
	} {
		if rr := env.do(t, http.MethodPost, "/api/expenses", body, token); rr.Code != http.StatusCreated {
			t.Fatalf("seed = %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard = %d", rr.Code)
	}
	var d dashboardView
	decodeBody(t, rr, &d)
	if d.TotalSpent.Amount != "1450.00" || d.MonthSpent.Amount != "450.00" || d.CurrentMonth != "2025-04" {
		t.Errorf("totals = %+v / %+v / %s", d.TotalSpent, d.MonthSpent, d.CurrentMonth)
	}
	if d.CategoriesUsed != 2 || len(d.RecentExpenses) != 3 || d.RecentExpenses[0].Description != "Dinner" {
		t.Errorf("dashboard = %+v", d)
	}
	if d.DailyAverage.Amount != "15.00" {
		t.Errorf("daily average = %s, want 15.00", d.DailyAverage.Amount)
	}
	if d.LatestPrediction != nil {
		t.Errorf("unexpected prediction %+v", d.LatestPrediction)
	}

	rr = env.do(t, http.MethodGet, "/api/charts?months=4", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("charts = %d", rr.Code)
	}
	var c chartsView
	decodeBody(t, rr, &c)
	if len(c.ByMonth) != 4 || c.ByMonth[0].Month != "2025-01" || c.ByMonth[0].Amount.Amount != "1000.00" {
		t.Errorf("by_month = %+v", c.ByMonth)
	}
	if len(c.ByDay) != 2 || len(c.ByCategory) != 2 {
		t.Errorf("by_day = %+v by_category = %+v", c.ByDay, c.ByCategory)
	}

	for _, q := range []string{"?months=0x", "?months=99"} {
		if rr := env.do(t, http.MethodGet, "/api/charts"+q, "", token); rr.Code != http.StatusBadRequest {
			t.Errorf("charts %s = %d, want 400", q, rr.Code)
		}
	}
}

func TestPredictionEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.signUp(t, "asha", "2345 6789 0123")
	empty := env.signUp(t, "ravi", "3456 7890 1234")

	if rr := env.do(t, http.MethodGet, "/api/predictions/latest", "", token); rr.Code != http.StatusNotFound {
		t.Fatalf("latest before any = %d", rr.Code)
	}

	food := []string{"100", "120", "110"}
	transport := []string{"50", "55", "52"}
	for i, month := range []string{"2025-01", "2025-02", "2025-03"} {
		for _, body := range []string{
			`{"category_id":` + itoa(env.cats["Food"]) + `,"amount":"` + food[i] + `","description":"Food","date":"` + month + `-10"}`,
			`{"category_id":` + itoa(env.cats["Transportation"]) + `,"amount":"` + transport[i] + `","description":"Bus","date":"` + month + `-12"}`,
		} {
			if rr := env.do(t, http.MethodPost, "/api/expenses", body, token); rr.Code != http.StatusCreated {
				t.Fatalf("seed = %d: %s", rr.Code, rr.Body.String())
			}
		}
	}

	rr := env.do(t, http.MethodPost, "/api/predictions", `{"month":"2025-04"}`, token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate = %d: %s", rr.Code, rr.Body.String())
	}
	var p predictionView
	decodeBody(t, rr, &p)
	if p.Month != "2025-04" || math.Abs(p.Confidence-69.86) > 0.01 || p.AvailableMonths != 3 {
		t.Fatalf("prediction = %+v", p)
	}
	var foodPredicted string
	for _, c := range p.Categories {
		if c.Category == "Food" {
			foodPredicted = c.Predicted.Amount
		}
	}
	if foodPredicted != "115.50" {
		t.Errorf("food predicted = %s, want 115.50", foodPredicted)
	}

	rr = env.do(t, http.MethodPost, "/api/predictions", "", token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate default month = %d: %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &p)
	if p.Month != "2025-05" {
		t.Fatalf("default target = %s, want 2025-05", p.Month)
	}

	rr = env.do(t, http.MethodGet, "/api/predictions/latest", "", token)
	decodeBody(t, rr, &p)
	if rr.Code != http.StatusOK || p.Month != "2025-05" {
		t.Fatalf("latest = %d %s", rr.Code, p.Month)
	}

	rr = env.do(t, http.MethodGet, "/api/predictions", "", token)
	var history struct {
		Predictions []predictionView `json:"predictions"`
	}
	decodeBody(t, rr, &history)
	if len(history.Predictions) != 2 {
		t.Fatalf("history = %d predictions", len(history.Predictions))
	}

	rr = env.do(t, http.MethodPost, "/api/predictions", `{}`, empty)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient data = %d", rr.Code)
	}
	var body errorBody
	decodeBody(t, rr, &body)
	if body.Code != CodeInsufficientData || body.Details["required_months"] != float64(2) || body.Details["available_months"] != float64(0) {
		t.Fatalf("insufficient body = %+v", body)
	}

	failures := []struct {
		name string
		body string
		want int
	}{
		{"bad month", `{"month":"April"}`, http.StatusBadRequest},
		{"async without messaging", `{"async":true}`, http.StatusServiceUnavailable},
		{"trailing data", `{"month":"2025-04"} {}`, http.StatusBadRequest},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, http.MethodPost, "/api/predictions", tt.body, token); rr.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 2}})

	for i := 0; i < 2; i++ {
		env.do(t, http.MethodPost, "/api/users/login", `{"username":"x","password":"y"}`, "")
	}
	rr := env.do(t, http.MethodPost, "/api/users/login", `{"username":"x","password":"y"}`, "")
	if rr.Code != http.StatusTooManyRequests || errorCode(t, rr) != CodeRateLimited {
		t.Fatalf("third write = %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := env.do(t, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rr.Code)
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", core.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", errors.Join(errors.New("get expense 4"), core.ErrNotFound), http.StatusNotFound},
		{"duplicate email", core.ErrDuplicateEmail, http.StatusConflict},
		{"validation", &services.ValidationError{Err: core.ErrInvalidAmount}, http.StatusBadRequest},
		{"invalid forecast input", fmt.Errorf("category %q: %w", "food", forecast.ErrInvalidInput), http.StatusBadRequest},
		{"unauthorized", services.ErrUnauthorized, http.StatusUnauthorized},
		{"insufficient", &forecast.InsufficientDataError{Available: 1, Required: 2}, http.StatusUnprocessableEntity},
		{"bare insufficient", forecast.ErrInsufficientData, http.StatusUnprocessableEntity},
		{"messaging", services.ErrMessagingDisabled, http.StatusServiceUnavailable},
		{"unexpected", errors.New("disk I/O error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			errorFor(tt.err).Write(rr)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if strings.Contains(rr.Body.String(), "disk") {
				t.Fatal("internal error message leaked")
			}
		})
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
