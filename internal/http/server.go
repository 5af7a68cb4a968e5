// Package http provides the JSON API server and its handlers.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

// Pinger reports whether the storage engine is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers delegate to.
type Deps struct {
	Auth       *services.AuthService
	Categories *services.CategoryService
	Ledger     *services.LedgerService
	Stats      *services.StatsService
	Ready      Pinger
}

// Options tune the transport.
type Options struct {
	CORSAllowedOrigins []string
	// AuthRateLimit is the per-client request budget per minute for /auth/*.
	AuthRateLimit int
	StoreTimeout  time.Duration
	Logger        *slog.Logger
}

type Server struct {
	http.Server
	auth       *services.AuthService
	categories *services.CategoryService
	ledger     *services.LedgerService
	stats      *services.StatsService
	ready      Pinger

	detector     *security.Detector
	authLimiter  *ratelimit.Limiter
	tracer       *trace.Middleware
	storeTimeout time.Duration

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	detector := security.NewDetector()

	s := &Server{
		auth:         deps.Auth,
		categories:   deps.Categories,
		ledger:       deps.Ledger,
		stats:        deps.Stats,
		ready:        deps.Ready,
		detector:     detector,
		authLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.AuthRateLimit}),
		tracer:       trace.NewMiddleware(detector.ExtractClientIP),
		storeTimeout: opts.StoreTimeout,
	}

	mux := http.NewServeMux()
	limited := s.authLimiter.Middleware(detector.ExtractClientIP, rateLimited)

	mux.HandleFunc("GET /{$}", handleBanner)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /auth/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /auth/me", limited(s.requireAuth(s.handleMe)))

	mux.HandleFunc("GET /categories", s.requireAuth(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.requireAuth(s.handleCreateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.requireAuth(s.handleDeleteCategory))

	mux.HandleFunc("GET /expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("POST /expenses", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("PUT /expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("GET /stats/top-days", s.requireAuth(s.handleTopDays))
	mux.HandleFunc("GET /stats/mom-change", s.requireAuth(s.handleMonthChange))
	mux.HandleFunc("GET /stats/predict-next", s.requireAuth(s.handlePredictNext))

	cors := security.DefaultCORSConfig()
	if len(opts.CORSAllowedOrigins) > 0 {
		cors.AllowedOrigins = opts.CORSAllowedOrigins
	}
	logger := applog.New(applog.Config{Handler: opts.Logger.Handler(), Component: applog.ComponentHTTP})

	s.Server = http.Server{
		Addr: addr,
		Handler: chain(mux,
			s.tracer.Middleware,
			applog.Middleware(logger),
			applog.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) }),
			security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
			security.NewCORSMiddleware(cors).Middleware,
			detector.Middleware,
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the limiter cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
