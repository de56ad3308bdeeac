package worker

import (
	"context"
	"errors"
	"fmt"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/forecast"
	applog "kharcha/internal/log"
)

// Forecaster is the part of services.PredictionService the worker drives.
type Forecaster interface {
	Generate(ctx context.Context, userID int64, target core.Month) (core.Prediction, error)
	DefaultTarget() core.Month
	WindowMonths() int
}

// ForecastWorker regenerates predictions in response to AMQP messages.
type ForecastWorker struct {
	forecasts Forecaster
	logger    *applog.Logger
}

var _ amqp.Handler = (*ForecastWorker)(nil)

func NewForecastWorker(forecasts Forecaster, logger *applog.Logger) *ForecastWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ForecastWorker{
		forecasts: forecasts,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleExpenseChanged refreshes the upcoming forecast when the changed
// expense falls inside its window. Changes outside the window are acked
// without work.
func (w *ForecastWorker) HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	target := w.forecasts.DefaultTarget()
	if msg.Month != "" {
		m, err := core.ParseMonth(msg.Month)
		if err != nil {
			w.logger.WarnContext(ctx, "Dropping change with bad month",
				applog.FieldUserID, msg.UserID,
				applog.FieldMonth, msg.Month)
			return nil
		}
		windowStart := target.AddMonths(-w.forecasts.WindowMonths())
		if m.Before(windowStart) || !m.Before(target) {
			w.logger.DebugContext(ctx, "Change outside forecast window",
				applog.FieldUserID, msg.UserID,
				applog.FieldMonth, msg.Month)
			return nil
		}
	}

	w.logger.InfoContext(ctx, "Processing expense change",
		applog.FieldUserID, msg.UserID,
		applog.FieldExpenseID, msg.ExpenseID,
		"action", msg.Action)
	return w.generate(ctx, msg.UserID, target)
}

// HandleForecastRequested generates the requested month, defaulting to
// next month.
func (w *ForecastWorker) HandleForecastRequested(ctx context.Context, msg *amqp.ForecastRequestedMessage) error {
	var target core.Month
	if msg.Month != "" {
		m, err := core.ParseMonth(msg.Month)
		if err != nil {
			w.logger.WarnContext(ctx, "Dropping forecast request with bad month",
				applog.FieldUserID, msg.UserID,
				applog.FieldMonth, msg.Month)
			return nil
		}
		target = m
	}
	w.logger.InfoContext(ctx, "Processing forecast request",
		applog.FieldUserID, msg.UserID,
		applog.FieldMonth, msg.Month)
	return w.generate(ctx, msg.UserID, target)
}

// generate treats missing history as done so the message is not requeued.
func (w *ForecastWorker) generate(ctx context.Context, userID int64, target core.Month) error {
	p, err := w.forecasts.Generate(ctx, userID, target)
	if errors.Is(err, forecast.ErrInsufficientData) {
		w.logger.InfoContext(ctx, "Skipping forecast, not enough history",
			applog.FieldUserID, userID,
			applog.FieldError, err)
		return nil
	}
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Skipping forecast for unknown user", applog.FieldUserID, userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("generate forecast for user %d: %w", userID, err)
	}
	w.logger.DebugContext(ctx, "Forecast regenerated",
		applog.FieldUserID, userID,
		applog.FieldPredictionID, p.ID)
	return nil
}
