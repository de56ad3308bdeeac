package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Routing keys; the forecast queue is bound to both.
const (
	RoutingExpenseChanged    = "expense.changed"
	RoutingForecastRequested = "forecast.requested"
)

// Expense change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseChangedMessage announces that a user's expense history moved.
// Month is the month of the affected expense, YYYY-MM.
type ExpenseChangedMessage struct {
	UserID    int64     `json:"user_id"`
	ExpenseID int64     `json:"expense_id"`
	Month     string    `json:"month"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseChangedMessage creates a change message stamped with the current time.
func NewExpenseChangedMessage(userID, expenseID int64, month, action string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		UserID:    userID,
		ExpenseID: expenseID,
		Month:     month,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON parses and checks a change message.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID <= 0 {
		return nil, fmt.Errorf("expense.changed: missing user_id")
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("expense.changed: unknown action %q", msg.Action)
	}
	return &msg, nil
}

// ForecastRequestedMessage asks the worker to (re)generate a prediction.
// An empty Month means the month after the current one.
type ForecastRequestedMessage struct {
	UserID    int64     `json:"user_id"`
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewForecastRequestedMessage creates a request stamped with the current time.
func NewForecastRequestedMessage(userID int64, month string) *ForecastRequestedMessage {
	return &ForecastRequestedMessage{
		UserID:    userID,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ForecastRequestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ForecastRequestedMessageFromJSON parses and checks a forecast request.
func ForecastRequestedMessageFromJSON(data []byte) (*ForecastRequestedMessage, error) {
	var msg ForecastRequestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID <= 0 {
		return nil, fmt.Errorf("forecast.requested: missing user_id")
	}
	return &msg, nil
}
