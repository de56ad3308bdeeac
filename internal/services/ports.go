package services

import (
	"context"

	"kharcha/internal/amqp"
	"kharcha/internal/storage"
)

// Publisher announces changes to the forecast worker. *amqp.Client
// implements it; a nil Publisher disables messaging.
type Publisher interface {
	PublishExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
	PublishForecastRequested(ctx context.Context, msg *amqp.ForecastRequestedMessage) error
}

var _ Publisher = (*amqp.Client)(nil)

// ExpenseRepository is the storage surface used by ExpenseService.
type ExpenseRepository interface {
	storage.CategoryStore
	storage.ExpenseStore
	storage.AggregateReader
	storage.PredictionStore
}

// PredictionRepository is the storage surface used by PredictionService.
type PredictionRepository interface {
	storage.UserStore
	storage.AggregateReader
	storage.PredictionStore
}
