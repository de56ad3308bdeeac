package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/middleware/ratelimit"
	"kharcha/internal/middleware/security"
	"kharcha/internal/middleware/trace"
	"kharcha/internal/services"
)

// Authenticator is the part of the auth service the handlers use.
type Authenticator interface {
	Register(ctx context.Context, r core.Registration) (core.User, error)
	Login(ctx context.Context, username, password string, remember bool) (core.Session, core.User, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (core.User, error)
}

// ExpenseManager is the part of the expense service the handlers use.
type ExpenseManager interface {
	Categories(ctx context.Context) ([]core.Category, error)
	CreateExpense(ctx context.Context, userID int64, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, userID, id int64, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id int64) error
	ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.Expense, error)
	Dashboard(ctx context.Context, userID int64) (core.Dashboard, error)
	Charts(ctx context.Context, userID int64, months int) (core.ChartData, error)
}

// Forecaster is the part of the prediction service the handlers use.
type Forecaster interface {
	Generate(ctx context.Context, userID int64, target core.Month) (core.Prediction, error)
	History(ctx context.Context, userID int64) ([]core.Prediction, error)
	Latest(ctx context.Context, userID int64) (core.Prediction, error)
	RequestForecast(ctx context.Context, userID int64, target core.Month) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Authenticator  = (*services.AuthService)(nil)
	_ ExpenseManager = (*services.ExpenseService)(nil)
	_ Forecaster     = (*services.PredictionService)(nil)
)

// Options tunes the server. Zero values take the defaults.
type Options struct {
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	RateLimit      ratelimit.Config
	TrustedProxies []string
	// TrustRequestID reuses a caller's X-Request-ID, for deployments behind
	// a gateway that assigns one.
	TrustRequestID bool
	SecureCookies  bool

	Logger *applog.Logger
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 15 * time.Second
	}
	if o.ReadHeaderTimeout == 0 {
		o.ReadHeaderTimeout = 5 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.Logger == nil {
		o.Logger = applog.New(applog.DefaultConfig())
	}
	return o
}

type Server struct {
	http.Server

	auth        Authenticator
	expenses    ExpenseManager
	predictions Forecaster
	store       Pinger

	logger        *applog.Logger
	limiter       *ratelimit.Limiter
	detector      *security.Detector
	tracer        *trace.Middleware
	secureCookies bool

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// Invalid trusted proxy CIDRs are logged and skipped.
func NewServer(addr string, auth Authenticator, expenses ExpenseManager, predictions Forecaster, store Pinger, opts Options) *Server {
	opts = opts.withDefaults()

	s := &Server{
		auth:          auth,
		expenses:      expenses,
		predictions:   predictions,
		store:         store,
		logger:        opts.Logger.WithComponent(applog.ComponentHTTP),
		limiter:       ratelimit.NewLimiter(opts.RateLimit),
		detector:      security.NewDetector(),
		tracer:        trace.NewMiddleware(opts.TrustRequestID),
		secureCookies: opts.SecureCookies,
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.routes()),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/users/register", s.handleRegister)
	mux.HandleFunc("POST /api/users/login", s.handleLogin)
	mux.HandleFunc("POST /api/users/logout", s.handleLogout)
	mux.HandleFunc("GET /api/users/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("GET /api/categories", s.requireAuth(s.handleCategories))

	mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/dashboard", s.requireAuth(s.handleDashboard))
	mux.HandleFunc("GET /api/charts", s.requireAuth(s.handleCharts))

	mux.HandleFunc("GET /api/predictions", s.requireAuth(s.handleListPredictions))
	mux.HandleFunc("POST /api/predictions", s.requireAuth(s.handleCreatePrediction))
	mux.HandleFunc("GET /api/predictions/latest", s.requireAuth(s.handleLatestPrediction))
	return mux
}

// middleware wraps mux, outermost first: request id, security headers,
// request logging, probe screening, then rate limiting of writes.
func (s *Server) middleware(mux http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(mux)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			mux.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
	h = s.screen(h)
	h = applog.Middleware(s.logger, trace.FromRequest, s.detector.ClientIP)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// screen logs requests that look like scanner probes. Probes carrying an
// unusual method are refused outright.
func (s *Server) screen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, s.detector.ClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.UserAgent())
			switch r.Method {
			case "TRACE", "TRACK", "DEBUG", "CONNECT":
				ErrorResponse(http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed").Write(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter, drains the HTTP server and logs the
// request counters.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)

		limits := s.limiter.GetMetrics()
		probes := s.detector.Metrics()
		s.logger.Info("HTTP server stopped",
			applog.FieldOperation, applog.OpShutdown,
			"requests", s.tracer.TotalRequests(),
			"rate_limited", limits.Rejected,
			"suspicious", probes.SuspiciousRequests,
			"invalid_ips", probes.InvalidIPAttempts)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
