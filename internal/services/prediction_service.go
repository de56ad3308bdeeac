package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/forecast"
	applog "kharcha/internal/log"
	"kharcha/internal/news"
	"kharcha/internal/sheets"
)

// HistoryLimit is the number of predictions returned by History.
const HistoryLimit = 5

// PredictionService runs the forecast estimator over stored aggregates and
// persists the result.
type PredictionService struct {
	store     PredictionRepository
	estimator *forecast.Estimator
	news      news.Source
	exporter  sheets.PredictionExporter
	publisher Publisher
	logger    *applog.Logger
	events    *applog.StructuredLogger
	now       func() time.Time
}

// NewPredictionService wires the service. exporter and publisher may be nil.
func NewPredictionService(store PredictionRepository, estimator *forecast.Estimator, source news.Source, exporter sheets.PredictionExporter, publisher Publisher, logger *applog.Logger) *PredictionService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if source == nil {
		source = news.StaticSource{}
	}
	return &PredictionService{
		store:     store,
		estimator: estimator,
		news:      source,
		exporter:  exporter,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentForecast),
		events:    applog.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *PredictionService) WithClock(now func() time.Time) *PredictionService {
	s.now = now
	return s
}

// WindowMonths is the trailing window the estimator reads.
func (s *PredictionService) WindowMonths() int {
	return s.estimator.Config().WindowMonths
}

// DefaultTarget is the month after the current one.
func (s *PredictionService) DefaultTarget() core.Month {
	return core.MonthOf(s.now().UTC()).Next()
}

// Generate forecasts spending for target (zero means next month), stores
// the prediction and exports it. Estimator errors are returned unchanged so
// callers can match forecast.ErrInsufficientData.
func (s *PredictionService) Generate(ctx context.Context, userID int64, target core.Month) (core.Prediction, error) {
	if target.IsZero() {
		target = s.DefaultTarget()
	}

	aggs, err := s.store.MonthlyAggregates(ctx, userID, target.AddMonths(-s.WindowMonths()), target)
	if err != nil {
		return core.Prediction{}, fmt.Errorf("monthly aggregates: %w", err)
	}

	sentiment, err := s.news.Sentiment(ctx, target)
	if err != nil {
		s.logger.WarnContext(ctx, "News source failed, using neutral sentiment",
			applog.FieldMonth, target.String(),
			applog.FieldError, err)
		sentiment = forecast.Neutral()
	}

	res, err := s.estimator.Estimate(target, forecast.HistoryFromAggregates(aggs), sentiment)
	if err != nil {
		return core.Prediction{}, err
	}

	p, err := s.store.UpsertPrediction(ctx, toPrediction(userID, res, s.now()))
	if err != nil {
		return core.Prediction{}, fmt.Errorf("save prediction: %w", err)
	}
	s.events.LogPrediction(ctx, userID, target.String(), p.Total.String(), p.Confidence, p.SentimentFactor, p.AvailableMonths, p.NewsSource)

	s.export(ctx, p)
	return p, nil
}

func toPrediction(userID int64, res forecast.Result, now time.Time) core.Prediction {
	p := core.Prediction{
		UserID:           userID,
		Month:            res.TargetMonth,
		Total:            core.MoneyFromDecimal(res.Total),
		Confidence:       res.Confidence,
		SentimentFactor:  res.Sentiment.Factor,
		NewsSource:       res.Sentiment.Source,
		AvailableMonths:  res.AvailableMonths,
		WindowMonths:     res.WindowMonths,
		AlgorithmVersion: res.AlgorithmVersion,
		CreatedAt:        now.UTC(),
	}
	for _, h := range res.Sentiment.Headlines {
		p.Headlines = append(p.Headlines, core.Headline{Title: h.Title, Impact: h.Impact})
	}
	for _, c := range res.Categories {
		p.Breakdown = append(p.Breakdown, core.CategoryPrediction{
			Category:  c.Category,
			Predicted: core.MoneyFromDecimal(c.Predicted),
			Mean:      core.MoneyFromDecimal(c.Mean),
			Trend:     c.Trend,
			Months:    c.Months,
		})
	}
	return p
}

func (s *PredictionService) export(ctx context.Context, p core.Prediction) {
	if s.exporter == nil {
		return
	}
	username := fmt.Sprintf("user-%d", p.UserID)
	if u, err := s.store.GetUser(ctx, p.UserID); err == nil {
		username = u.Username
	}
	if err := s.exporter.ExportPrediction(ctx, p, username); err != nil {
		s.events.LogError(ctx, "Failed to export prediction", err, applog.ComponentSheets, applog.OpExport,
			applog.NewFields().WithUser(p.UserID))
	}
}

// History returns the user's most recent predictions, newest first.
func (s *PredictionService) History(ctx context.Context, userID int64) ([]core.Prediction, error) {
	preds, err := s.store.ListPredictions(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return preds, nil
}

// Latest returns the newest prediction or core.ErrNotFound.
func (s *PredictionService) Latest(ctx context.Context, userID int64) (core.Prediction, error) {
	p, err := s.store.LatestPrediction(ctx, userID)
	if err != nil {
		return core.Prediction{}, fmt.Errorf("latest prediction: %w", err)
	}
	return p, nil
}

// RequestForecast queues a forecast for the worker instead of computing it
// inline.
func (s *PredictionService) RequestForecast(ctx context.Context, userID int64, target core.Month) error {
	if s.publisher == nil {
		return ErrMessagingDisabled
	}
	month := ""
	if !target.IsZero() {
		month = target.String()
	}
	if err := s.publisher.PublishForecastRequested(ctx, amqp.NewForecastRequestedMessage(userID, month)); err != nil {
		return fmt.Errorf("request forecast: %w", err)
	}
	return nil
}

// BatchResult counts the outcome of GenerateAll.
type BatchResult struct {
	Generated int64
	Skipped   int64
	Failed    int64
}

// GenerateAll forecasts target for every user with at most concurrency
// forecasts in flight. Users without enough history are skipped; other
// failures are counted and logged but do not stop the batch.
func (s *PredictionService) GenerateAll(ctx context.Context, target core.Month, concurrency int) (BatchResult, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list users: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var res BatchResult
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, u := range users {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			_, err := s.Generate(gctx, u.ID, target)
			switch {
			case err == nil:
				atomic.AddInt64(&res.Generated, 1)
			case errors.Is(err, forecast.ErrInsufficientData):
				atomic.AddInt64(&res.Skipped, 1)
			default:
				atomic.AddInt64(&res.Failed, 1)
				s.events.LogError(gctx, "Failed to generate prediction", err, applog.ComponentForecast, applog.OpPredict,
					applog.NewFields().WithUser(u.ID))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
