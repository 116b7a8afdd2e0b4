// Package http serves the JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tipid/internal/log"
	"tipid/internal/middleware/ratelimit"
	"tipid/internal/middleware/security"
	"tipid/internal/middleware/trace"
	"tipid/internal/services"
	"tipid/internal/store"
)

// Services are the operations the API exposes.
type Services struct {
	Auth      *services.AuthService
	Expenses  *services.ExpenseService
	Budgets   *services.BudgetService
	Goals     *services.GoalService
	Dashboard *services.DashboardService
	Prices    *services.PriceService
}

type Options struct {
	SessionCookie      string
	SecureCookies      bool
	RateLimitPerMinute int
	TrustedProxies     []string
	// Location calendar dates in query strings are read in.
	Location *time.Location
}

type Server struct {
	http.Server
	store    store.Store
	svc      Services
	opts     Options
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, st store.Store, svc Services, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.SessionCookie == "" {
		opts.SessionCookie = "tipid_session"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		store:    st,
		svc:      svc,
		opts:     opts,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}, logger),
		detector: security.NewDetector(logger),
		now:      time.Now,
		started:  time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// SetClock replaces the time source. Tests only.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// localNow is the current time in the zone expense dates are stored in, so
// day and month boundaries line up with them.
func (s *Server) localNow() time.Time {
	return s.now().In(s.opts.Location)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/me", s.authed(s.handleMe))

	mux.HandleFunc("GET /api/expenses", s.authed(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.authed(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.authed(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.authed(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/budget", s.authed(s.handleGetBudget))
	mux.HandleFunc("POST /api/budget", s.authed(s.handleCreateBudget))
	mux.HandleFunc("PUT /api/budget", s.authed(s.handleEditBudget))

	mux.HandleFunc("GET /api/goal", s.authed(s.handleGetGoal))
	mux.HandleFunc("POST /api/goal", s.authed(s.handleCreateGoal))
	mux.HandleFunc("PUT /api/goal", s.authed(s.handleUpdateGoal))
	mux.HandleFunc("POST /api/goal/reset", s.authed(s.handleResetGoal))
	mux.HandleFunc("POST /api/goal/add", s.authed(s.handleAddToGoal))

	mux.HandleFunc("GET /api/dashboard", s.authed(s.handleDashboard))
	mux.HandleFunc("GET /api/analytics/trends", s.authed(s.handleTrends))
	mux.HandleFunc("GET /api/prices", s.authed(s.handleMarketPrices))
	mux.HandleFunc("GET /api/prices/compare", s.authed(s.handleComparePrice))
	mux.HandleFunc("GET /api/categories", s.handleCategories)
}

// middleware wraps the mux: tracing outermost, then security headers and
// probe detection, then rate limiting of anything that is not a read.
func (s *Server) middleware(mux http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(mux)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			mux.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return s.tracer.Middleware(h)
}

// Shutdown stops background routines and drains the server. Only the first
// call has effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type healthStatus struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Body(healthStatus{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports 503 until the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := healthStatus{Status: "ready", Checks: map[string]string{"store": "ok"}}
	code := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		status.Status = "not_ready"
		status.Checks["store"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	NewResponse().Status(code).Body(status).Write(w)
}
