package http

import (
	"time"

	"kharcha/internal/core"
)

// JSON views of the domain types. Money is rendered as a fixed two-decimal
// rupee string, with a display form carrying the rupee sign and Indian
// grouping.

type moneyView struct {
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

func newMoneyView(m core.Money) moneyView {
	return moneyView{Amount: m.String(), Display: core.FormatRupees(m)}
}

type userView struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Aadhar      string    `json:"aadhar"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newUserView(u core.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Aadhar:      maskAadhar(u.Aadhar),
		Phone:       u.Phone,
		DateOfBirth: u.DateOfBirth.String(),
		CreatedAt:   u.CreatedAt,
	}
}

// maskAadhar keeps only the last group: "XXXX XXXX 0123".
func maskAadhar(a string) string {
	if len(a) < 4 {
		return a
	}
	return "XXXX XXXX " + a[len(a)-4:]
}

type categoryView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
}

func newCategoryViews(cats []core.Category) []categoryView {
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView{ID: c.ID, Name: c.Name, Description: c.Description, Icon: c.Icon, Color: c.Color})
	}
	return out
}

type expenseView struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	Category    string    `json:"category"`
	Amount      moneyView `json:"amount"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newExpenseView(e core.Expense) expenseView {
	return expenseView{
		ID:          e.ID,
		CategoryID:  e.CategoryID,
		Category:    e.Category,
		Amount:      newMoneyView(e.Amount),
		Description: e.Description,
		Date:        e.Date.String(),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func newExpenseViews(list []core.Expense) []expenseView {
	out := make([]expenseView, 0, len(list))
	for _, e := range list {
		out = append(out, newExpenseView(e))
	}
	return out
}

type categoryAmountView struct {
	Category string    `json:"category"`
	Color    string    `json:"color,omitempty"`
	Amount   moneyView `json:"amount"`
}

func newCategoryAmountViews(list []core.CategoryAmount) []categoryAmountView {
	out := make([]categoryAmountView, 0, len(list))
	for _, c := range list {
		out = append(out, categoryAmountView{Category: c.Name, Color: c.Color, Amount: newMoneyView(c.Amount)})
	}
	return out
}

type categoryPredictionView struct {
	Category  string    `json:"category"`
	Predicted moneyView `json:"predicted"`
	Mean      moneyView `json:"mean"`
	Trend     float64   `json:"trend"`
	Months    int       `json:"months"`
}

type predictionView struct {
	ID               int64                    `json:"id"`
	Month            string                   `json:"month"`
	Total            moneyView                `json:"total"`
	Confidence       float64                  `json:"confidence"`
	SentimentFactor  float64                  `json:"sentiment_factor"`
	NewsSource       string                   `json:"news_source"`
	Headlines        []core.Headline          `json:"headlines"`
	Categories       []categoryPredictionView `json:"categories"`
	AvailableMonths  int                      `json:"available_months"`
	WindowMonths     int                      `json:"window_months"`
	AlgorithmVersion string                   `json:"algorithm_version"`
	CreatedAt        time.Time                `json:"created_at"`
}

func newPredictionView(p core.Prediction) predictionView {
	v := predictionView{
		ID:               p.ID,
		Month:            p.Month.String(),
		Total:            newMoneyView(p.Total),
		Confidence:       p.Confidence,
		SentimentFactor:  p.SentimentFactor,
		NewsSource:       p.NewsSource,
		Headlines:        p.Headlines,
		Categories:       make([]categoryPredictionView, 0, len(p.Breakdown)),
		AvailableMonths:  p.AvailableMonths,
		WindowMonths:     p.WindowMonths,
		AlgorithmVersion: p.AlgorithmVersion,
		CreatedAt:        p.CreatedAt,
	}
	if v.Headlines == nil {
		v.Headlines = []core.Headline{}
	}
	for _, c := range p.Breakdown {
		v.Categories = append(v.Categories, categoryPredictionView{
			Category:  c.Category,
			Predicted: newMoneyView(c.Predicted),
			Mean:      newMoneyView(c.Mean),
			Trend:     c.Trend,
			Months:    c.Months,
		})
	}
	return v
}

type dashboardView struct {
	TotalSpent       moneyView            `json:"total_spent"`
	MonthSpent       moneyView            `json:"month_spent"`
	CurrentMonth     string               `json:"current_month"`
	CategoriesUsed   int                  `json:"categories_used"`
	DailyAverage     moneyView            `json:"daily_average"`
	RecentExpenses   []expenseView        `json:"recent_expenses"`
	MonthByCategory  []categoryAmountView `json:"month_by_category"`
	LatestPrediction *predictionView      `json:"latest_prediction"`
}

func newDashboardView(d core.Dashboard) dashboardView {
	v := dashboardView{
		TotalSpent:      newMoneyView(d.TotalSpent),
		MonthSpent:      newMoneyView(d.MonthSpent),
		CurrentMonth:    d.CurrentMonth.String(),
		CategoriesUsed:  d.CategoriesUsed,
		DailyAverage:    newMoneyView(d.DailyAverage),
		RecentExpenses:  newExpenseViews(d.RecentExpenses),
		MonthByCategory: newCategoryAmountViews(d.MonthByCategory),
	}
	if d.LatestPrediction != nil {
		p := newPredictionView(*d.LatestPrediction)
		v.LatestPrediction = &p
	}
	return v
}

type dailyView struct {
	Date   string    `json:"date"`
	Amount moneyView `json:"amount"`
}

type monthView struct {
	Month  string    `json:"month"`
	Amount moneyView `json:"amount"`
}

type chartsView struct {
	ByCategory []categoryAmountView `json:"by_category"`
	ByDay      []dailyView          `json:"by_day"`
	ByMonth    []monthView          `json:"by_month"`
}

func newChartsView(c core.ChartData) chartsView {
	v := chartsView{
		ByCategory: newCategoryAmountViews(c.ByCategory),
		ByDay:      make([]dailyView, 0, len(c.ByDay)),
		ByMonth:    make([]monthView, 0, len(c.ByMonth)),
	}
	for _, d := range c.ByDay {
		v.ByDay = append(v.ByDay, dailyView{Date: d.Date.String(), Amount: newMoneyView(d.Amount)})
	}
	for _, m := range c.ByMonth {
		v.ByMonth = append(v.ByMonth, monthView{Month: m.Month.String(), Amount: newMoneyView(m.Amount)})
	}
	return v
}
