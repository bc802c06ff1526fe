// Package web exposes the store, report catalog and ledger over a JSON API.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/banksight/internal/config"
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/ledger"
	"github.com/JonMunkholm/banksight/internal/metrics"
	"github.com/JonMunkholm/banksight/internal/report"
	"github.com/JonMunkholm/banksight/internal/store"
	banksightmw "github.com/JonMunkholm/banksight/internal/web/middleware"
)

// Tables is the CRUD surface of the schema store.
type Tables interface {
	Registry() *core.Registry
	Counts(ctx context.Context) ([]store.TableCount, error)
	List(ctx context.Context, table string, limit int, filters ...store.Filter) (*core.Result, error)
	Get(ctx context.Context, table, key string) (*core.Result, error)
	Insert(ctx context.Context, table string, values map[string]string) (string, error)
	Update(ctx context.Context, table, key string, values map[string]string) error
	Delete(ctx context.Context, table, key string) error
}

// Reports runs catalog reports.
type Reports interface {
	List() []report.Report
	Get(id int) (report.Report, error)
	Run(ctx context.Context, id int) (*core.Result, error)
	Overview(ctx context.Context) (*report.Overview, error)
	Invalidate(ctx context.Context) error
	Limiter() *report.Limiter
}

// Teller posts ledger operations.
type Teller interface {
	Deposit(ctx context.Context, customerID string, amount float64) (*ledger.Posting, error)
	Withdraw(ctx context.Context, customerID string, amount float64) (*ledger.Posting, error)
	Recent(ctx context.Context, customerID string, n int) ([]ledger.Entry, error)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Tables  Tables
	Reports Reports
	Ledger  Teller
	Metrics *metrics.Metrics

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// Ping reports store health for /healthz. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// Server is the HTTP server for the banksight API.
type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	router   *chi.Mux
	server   *http.Server
	validate *validate
}

// NewServer creates a new Server instance.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		router:   chi.NewRouter(),
		validate: newValidate(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(banksightmw.TrustedRealIP(s.cfg.TrustedProxies))
	s.router.Use(banksightmw.Logger(s.deps.Metrics))
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.Route("/tables/{table}/rows", func(r chi.Router) {
			r.Get("/", s.handleListRows)
			r.Post("/", s.handleCreateRow)
			r.Get("/{key}", s.handleGetRow)
			r.Put("/{key}", s.handleUpdateRow)
			r.Delete("/{key}", s.handleDeleteRow)
		})

		r.Get("/reports", s.handleListReports)
		r.Get("/reports/status", s.handleReportStatus)
		r.Get("/reports/{id}", s.handleRunReport)
		r.Get("/overview", s.handleOverview)

		r.Route("/accounts/{customerID}", func(r chi.Router) {
			r.Post("/deposit", s.handleDeposit)
			r.Post("/withdraw", s.handleWithdraw)
			r.Get("/transactions", s.handleRecent)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for running reports to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	if s.deps.Reports != nil {
		return s.deps.Reports.Limiter().WaitForDrain(ctx)
	}
	return nil
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// The API serves JSON only; nothing should be loaded from a response.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
