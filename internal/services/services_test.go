package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/forecast"
)

type recordingPublisher struct {
	mu        sync.Mutex
	changed   []*amqp.ExpenseChangedMessage
	requested []*amqp.ForecastRequestedMessage
	err       error
}

func (p *recordingPublisher) PublishExpenseChanged(_ context.Context, msg *amqp.ExpenseChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, msg)
	return p.err
}

func (p *recordingPublisher) PublishForecastRequested(_ context.Context, msg *amqp.ForecastRequestedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = append(p.requested, msg)
	return p.err
}

type neutralSource struct{}

func (neutralSource) Sentiment(context.Context, core.Month) (forecast.Sentiment, error) {
	return forecast.Sentiment{Source: "test"}, nil
}

type failingSource struct{}

func (failingSource) Sentiment(context.Context, core.Month) (forecast.Sentiment, error) {
	return forecast.Sentiment{}, errors.New("feed down")
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
