// Package app wires the server's components together and registers the
// route table.
package app

import (
	"database/sql"
	"log/slog"
	"time"

	"cero/internal/auth"
	"cero/internal/billing"
	"cero/internal/config"
	"cero/internal/httpd"
	"cero/internal/metrics"
	"cero/internal/ratelimit"
	"cero/internal/reports"
	"cero/internal/session"
)

// App holds every constructed component of the server.
type App struct {
	Cfg      *config.Config
	DB       *sql.DB
	Logger   *slog.Logger
	Sessions *session.Store
	Limiter  *ratelimit.Limiter
	Auth     *auth.Service
	Billing  *billing.Store
	Reports  *reports.Service
	Metrics  *metrics.Metrics
	Router   *httpd.Router
	Server   *httpd.Server
}

// New constructs all components on top of an open database handle and
// registers the route table.
func New(cfg *config.Config, d *sql.DB, logger *slog.Logger) *App {
	sessions := session.NewStore(d, logger)
	sessions.Expiry = time.Duration(cfg.Session.ExpiryHours) * time.Hour
	sessions.Inactivity = time.Duration(cfg.Session.InactivityHours) * time.Hour

	limiter := ratelimit.New(d, logger)
	limiter.Limit = cfg.Server.RateLimit.RequestsPerMinute
	limiter.Window = time.Duration(cfg.Server.RateLimit.WindowSeconds) * time.Second

	billingStore := billing.NewStore(d, logger)

	a := &App{
		Cfg:      cfg,
		DB:       d,
		Logger:   logger,
		Sessions: sessions,
		Limiter:  limiter,
		Auth:     &auth.Service{DB: d, Sessions: sessions, Logger: logger},
		Billing:  billingStore,
		Reports:  reports.NewService(billingStore, logger),
		Router:   httpd.NewRouter(logger),
	}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	a.registerRoutes()

	a.Server = &httpd.Server{
		Addr:          cfg.Server.Addr(),
		Router:        a.Router,
		Limiter:       limiter,
		Sessions:      sessions,
		SessionCookie: session.CookieName,
		Logger:        logger,
	}
	if a.Metrics != nil {
		a.Server.Observe = a.Metrics.Observe
		a.Server.Sessions = countedValidator{inner: sessions, metrics: a.Metrics}
	}
	return a
}

// countedValidator records every session validation outcome before
// passing the result through.
type countedValidator struct {
	inner   httpd.SessionValidator
	metrics *metrics.Metrics
}

func (v countedValidator) Validate(token string, req *httpd.Request) bool {
	ok := v.inner.Validate(token, req)
	outcome := "invalid"
	if ok {
		outcome = "valid"
	}
	v.metrics.SessionValidations.WithLabelValues(outcome).Inc()
	return ok
}

func (a *App) registerRoutes() {
	rt := a.Router

	// Public routes
	rt.Add(httpd.MethodGet, "/", a.Home, false, false)
	rt.Add(httpd.MethodGet, "/login", a.Auth.LoginPage, false, false)
	rt.Add(httpd.MethodPost, "/login", a.Auth.LoginSubmit, false, false)
	rt.Add(httpd.MethodGet, "/logout", a.Auth.Logout, false, false)

	// Authenticated routes
	rt.Add(httpd.MethodGet, "/dashboard", a.Dashboard, true, false)
	rt.Add(httpd.MethodGet, "/billing", a.BillingPage, true, false)
	rt.Add(httpd.MethodGet, "/reports", a.Reports.ReportsPage, true, false)
	rt.Add(httpd.MethodPost, "/reports/generate", a.Reports.ReportsGenerate, true, false)
	rt.Add(httpd.MethodGet, "/reports/export", a.Reports.ReportsExportCSV, true, false)

	// Admin routes
	rt.Add(httpd.MethodGet, "/admin/billing", a.Billing.AdminBillingPage, true, true)
	rt.Add(httpd.MethodPost, "/admin/billing/mark-paid", a.Billing.AdminMarkPaid, true, true)
	rt.Add(httpd.MethodPost, "/admin/search", a.Billing.AdminSearchAccounts, true, true)

	if a.Metrics != nil {
		rt.Add(httpd.MethodGet, "/metrics", a.Metrics.Handler(), false, false)
	}

	a.Logger.Info("routes registered", "count", rt.Len())
}
