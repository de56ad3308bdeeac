package cli

import (
	"context"
	"fmt"
	"time"

	"kharcha/internal/backend"
	"kharcha/internal/cache"
	"kharcha/internal/config"
	"kharcha/internal/forecast"
	applog "kharcha/internal/log"
	"kharcha/internal/news"
	"kharcha/internal/services"
)

// cacheCleanupInterval is how often the cache janitor sweeps.
const cacheCleanupInterval = 5 * time.Minute

// App is the fully wired service layer shared by the binaries.
type App struct {
	Config  *config.Config
	Backend *backend.BackendResult
	Caches  *cache.Manager
	News    news.Source

	Auth        *services.AuthService
	Expenses    *services.ExpenseService
	Predictions *services.PredictionService

	logger *applog.Logger
}

// Build opens the configured backend and wires the services on top of it.
// The caller owns the returned App and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*App, error) {
	fc, err := cfg.Forecast()
	if err != nil {
		return nil, err
	}
	estimator, err := forecast.NewEstimator(fc)
	if err != nil {
		return nil, err
	}

	source, err := newsSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("news source: %w", err)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	auth := services.NewAuthService(res.Store, res.Store, services.AuthConfig{
		SessionTTL:  cfg.SessionTTL,
		RememberTTL: cfg.SessionRememberTTL,
	}, logger)
	expenses := services.NewExpenseService(res.Store, res.Publisher, logger)
	predictions := services.NewPredictionService(res.Store, estimator, source, res.Exporter, res.Publisher, logger)

	caches := cache.NewManager(logger)
	caches.Register("expense_charts", expenses.ChartCache())
	if fb, ok := source.(news.Fallback); ok {
		if feed, ok := fb.Primary.(*news.FeedSource); ok {
			caches.Register("news_feed", feed.Cache())
		}
	}

	logger.Info("Services initialized",
		"backend", cfg.DataBackend,
		applog.FieldNewsSource, cfg.NewsSource,
		"window_months", fc.WindowMonths,
		"messaging", res.Publisher != nil,
		"export", res.Exporter != nil)

	return &App{
		Config:      cfg,
		Backend:     res,
		Caches:      caches,
		News:        source,
		Auth:        auth,
		Expenses:    expenses,
		Predictions: predictions,
		logger:      logger,
	}, nil
}

// newsSource builds the configured source. A remote feed falls back to the
// static headlines when it cannot be reached.
func newsSource(cfg *config.Config) (news.Source, error) {
	src, err := news.New(news.Options{
		Kind:    news.Kind(cfg.NewsSource),
		File:    cfg.NewsFile,
		FeedURL: cfg.NewsFeedURL,
		Seed:    cfg.NewsSeed,
	})
	if err != nil {
		return nil, err
	}
	if news.Kind(cfg.NewsSource) == news.KindFeed {
		return news.Fallback{Primary: src, Secondary: news.StaticSource{}}, nil
	}
	return src, nil
}

// StartCaches begins background eviction of expired cache entries.
func (a *App) StartCaches() {
	a.Caches.StartCleanup(cacheCleanupInterval)
}

// Close stops the cache janitor and releases the backend.
func (a *App) Close() error {
	a.Caches.Stop()
	if a.Backend == nil || a.Backend.Cleanup == nil {
		return nil
	}
	if err := a.Backend.Cleanup(); err != nil {
		a.logger.Error("Backend cleanup failed", applog.FieldError, err)
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}
