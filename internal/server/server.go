package server

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/distributed-ci/dci-server/internal/auth"
	"github.com/distributed-ci/dci-server/internal/handler"
	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/server/middleware"
	"github.com/distributed-ci/dci-server/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
	RequestsPerMinute int

	// SSOPublicKey enables the SSO mechanism when set; bearer tokens are
	// rejected otherwise.
	SSOPublicKey *rsa.PublicKey
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       []string{"*"},
		RequestsPerMinute: 600,
	}
}

// Server is the control server's HTTP front. It owns the chi router, the
// store, and the authentication mechanisms the guard dispatches to.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired, ready to
// listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "If-Match",
			"DCI-Client-Info", "DCI-Auth-Signature"},
		ExposedHeaders: []string{"ETag", "X-Request-ID"},
		MaxAge:         300,
	}))
	if s.cfg.RequestsPerMinute > 0 {
		r.Use(middleware.RateLimitByAgent(s.cfg.RequestsPerMinute))
	}

	// Health checks, no auth required.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	mechanisms := middleware.Mechanisms{
		Basic:     auth.NewBasicAuth(s.store),
		Signature: auth.NewSignatureAuth(s.store),
	}
	if s.cfg.SSOPublicKey != nil {
		mechanisms.SSO = auth.NewSSOAuth(s.store, s.cfg.SSOPublicKey)
	}

	roleHandler := handler.NewRoleHandler(s.store)
	remoteciHandler := handler.NewRemoteCIHandler(s.store)
	userHandler := handler.NewUserHandler(s.store)
	teamHandler := handler.NewTeamHandler(s.store)
	feederHandler := handler.NewFeederHandler(s.store)

	superAdminOnly := middleware.RequireRole(model.RoleSuperAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(mechanisms))

		r.Route("/roles", func(r chi.Router) {
			r.With(superAdminOnly).Post("/", roleHandler.Create)
			r.Get("/", roleHandler.List)
			r.With(superAdminOnly).Get("/purge", roleHandler.ListPurge)
			r.With(superAdminOnly).Post("/purge", roleHandler.Purge)
			r.Get("/{roleID}", roleHandler.Get)
			r.With(superAdminOnly).Put("/{roleID}", roleHandler.Update)
			r.With(superAdminOnly).Delete("/{roleID}", roleHandler.Delete)
			r.With(superAdminOnly).Post("/{roleID}/permissions", roleHandler.AddPermission)
			r.With(superAdminOnly).Delete("/{roleID}/permissions/{permissionID}", roleHandler.RemovePermission)
		})

		r.Route("/permissions", func(r chi.Router) {
			r.With(superAdminOnly).Post("/", roleHandler.CreatePermission)
			r.Get("/", roleHandler.ListPermissions)
		})

		r.Route("/remotecis", func(r chi.Router) {
			r.Post("/", remoteciHandler.Create)
			r.Get("/", remoteciHandler.List)
			r.Get("/purge", remoteciHandler.ListPurge)
			r.Post("/purge", remoteciHandler.Purge)
			r.Get("/{remoteciID}", remoteciHandler.Get)
			r.Put("/{remoteciID}", remoteciHandler.Update)
			r.Delete("/{remoteciID}", remoteciHandler.Delete)
			r.Put("/{remoteciID}/api_secret", remoteciHandler.RotateSecret)
			r.Post("/{remoteciID}/rconfigurations", remoteciHandler.CreateConfiguration)
			r.Get("/{remoteciID}/rconfigurations", remoteciHandler.ListConfigurations)
			r.Get("/{remoteciID}/rconfigurations/{configID}", remoteciHandler.GetConfiguration)
			r.Delete("/{remoteciID}/rconfigurations/{configID}", remoteciHandler.DeleteConfiguration)
		})

		r.Route("/teams", func(r chi.Router) {
			r.With(middleware.RequireRole(model.RoleSuperAdmin, model.RoleProductOwner)).
				Post("/", teamHandler.Create)
			r.Get("/", teamHandler.List)
			r.Get("/{teamID}", teamHandler.Get)
			r.With(superAdminOnly).Delete("/{teamID}", teamHandler.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Get("/me", userHandler.Me)
			r.Get("/{userID}", userHandler.Get)
		})

		r.Post("/feeders", feederHandler.Create)
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the store answers a
// trivial query, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := s.store.ListTeams(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received, then drains in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
