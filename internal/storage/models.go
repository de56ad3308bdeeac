package storage

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Aadhar       string
	Phone        string
	DateOfBirth  string
	CreatedAt    string
}

type Session struct {
	Token     string
	UserID    int64
	ExpiresAt string
	CreatedAt string
}

type ExpenseCategory struct {
	ID          int64
	Name        string
	Description string
	Icon        string
	Color       string
	IsActive    bool
}

type Expense struct {
	ID          int64
	UserID      int64
	CategoryID  int64
	AmountPaise int64
	Description string
	Date        string
	CreatedAt   string
	UpdatedAt   string
}

type Prediction struct {
	ID                int64
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
