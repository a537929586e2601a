// Package web provides the HTTP server: the HTMX claim browser, the admin
// import pages, sign-in, and a small JSON API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/claimdesk/internal/auth"
	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/metrics"
	"github.com/JonMunkholm/claimdesk/internal/web/middleware"
)

// Server is the HTTP server for claimdesk.
type Server struct {
	cfg     *config.Config
	service *core.Service
	auth    *auth.Manager
	metrics *metrics.Metrics // nil when metrics are disabled

	router *chi.Mux
	server *http.Server

	limiter       *middleware.RateLimiter
	importLimiter *middleware.RateLimiter
	stop          chan struct{}
}

// NewServer wires the middleware and routes. m may be nil.
func NewServer(cfg *config.Config, service *core.Service, authMgr *auth.Manager, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		auth:    authMgr,
		metrics: m,
		router:  chi.NewRouter(),
		stop:    make(chan struct{}),
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute)
		s.importLimiter = middleware.NewRateLimiter(cfg.Rate.ImportLimit)
		go s.limiter.Run(s.stop)
		go s.importLimiter.Run(s.stop)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(exceptPaths(s.auth.LoadUser, "/healthz", s.cfg.Metrics.Path))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	// Pages and HTMX partials. Imports get their own group without the
	// request timeout since they are bounded by the import timeout.
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/claims", http.StatusSeeOther)
		})
		r.Get(auth.LoginPath, s.handleLoginPage)
		r.Post(auth.LoginPath, s.handleLogin)
		r.Get("/register", s.handleRegisterPage)
		r.Post("/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLogin)
			r.Get("/claims", s.handleClaimList)
			r.Get("/claims/{id}", s.handleClaimDetail)
			r.Post("/claims/{id}/flag", s.handleToggleFlag)
			r.Post("/claims/{id}/notes", s.handleAddNote)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/admin", s.handleDashboard)
			r.Get("/admin/upload", s.handleUploadPage)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		if s.importLimiter != nil {
			r.Use(s.importLimiter.Middleware)
		}
		r.Post("/admin/upload", s.handleUpload)
	})

	r.Route("/api", func(r chi.Router) {
		if s.cfg.Security.RequireAPIKey {
			r.Use(middleware.APIKeyAuth(s.cfg.Security))
		} else {
			r.Use(auth.RequireLogin)
		}

		r.With(chimw.Timeout(s.cfg.Server.RequestTimeout)).Get("/claims", s.handleAPIListClaims)
		r.With(chimw.Timeout(s.cfg.Server.RequestTimeout)).Get("/claims/{id}", s.handleAPIGetClaim)
		r.With(chimw.Timeout(s.cfg.Server.RequestTimeout)).Get("/import/status", s.handleAPIImportStatus)

		r.Group(func(r chi.Router) {
			if !s.cfg.Security.RequireAPIKey {
				r.Use(auth.RequireAdmin)
			}
			if s.importLimiter != nil {
				r.Use(s.importLimiter.Middleware)
			}
			r.Post("/import", s.handleAPIImport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errPageNotFound, http.StatusNotFound)
	})
}

// exceptPaths applies mw to every request but those for paths. Health and
// metrics scrapes skip the session user lookup, which waits on the database
// connection a running SQLite import holds.
func exceptPaths(mw func(http.Handler) http.Handler, paths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(paths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

// Start listens until Shutdown is called. It returns nil after a graceful
// shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight requests, then
// waits for a running import to finish, all within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.service.WaitForImports(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
