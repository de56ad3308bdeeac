package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Color  string
	Amount Money
}

// MonthlyAggregate is the total of one category within one month.
type MonthlyAggregate struct {
	Category string
	Month    Month
	Total    Money
}

// DailyAmount is a per-day total used for the spending line chart.
type DailyAmount struct {
	Date   Date
	Amount Money
}

// MonthAmount is a per-month total used for the trend chart.
type MonthAmount struct {
	Month  Month
	Amount Money
}

// Dashboard is the landing summary for a user.
type Dashboard struct {
	TotalSpent      Money
	MonthSpent      Money
	CategoriesUsed  int
	DailyAverage    Money // last 30 days
	RecentExpenses  []Expense
	MonthByCategory []CategoryAmount
	CurrentMonth    Month
	// LatestPrediction is nil until a forecast has been generated.
	LatestPrediction *Prediction
}

// ChartData is the raw series the presentation layer draws from.
type ChartData struct {
	ByCategory []CategoryAmount
	ByDay      []DailyAmount
	ByMonth    []MonthAmount
}

// GroupByCategory turns flat aggregates into the per-category ordered
// series the forecast estimator consumes. Input order within a category
// is preserved.
func GroupByCategory(aggs []MonthlyAggregate) map[string][]MonthlyAggregate {
	out := make(map[string][]MonthlyAggregate)
	for _, a := range aggs {
		out[a.Category] = append(out[a.Category], a)
	}
	return out
}
