package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Services are the core services the API exposes
type Services struct {
	Auth          driving.AuthService
	Users         driving.UserService
	Storage       driving.StorageManager
	Configuration driving.ConfigurationService
	Connections   driving.ConnectionService
	Health        driving.HealthService
	Relay         driving.RelayService
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	authService    driving.AuthService
	userService    driving.UserService
	storageManager driving.StorageManager
	configService  driving.ConfigurationService
	connService    driving.ConnectionService
	healthService  driving.HealthService
	relayService   driving.RelayService

	testLimiter   *RateLimiter
	maxUploadSize int64
	now           func() time.Time
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string

	// MaxUploadSize caps multipart bodies, 0 for the default
	MaxUploadSize int64

	// TestRateLimit is how many connection tests a client may run per minute
	TestRateLimit int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          8080,
		Version:       "dev",
		MaxUploadSize: 100 << 20,
		TestRateLimit: 10,
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaults.MaxUploadSize
	}
	if cfg.TestRateLimit <= 0 {
		cfg.TestRateLimit = defaults.TestRateLimit
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		authService:    svc.Auth,
		userService:    svc.Users,
		storageManager: svc.Storage,
		configService:  svc.Configuration,
		connService:    svc.Connections,
		healthService:  svc.Health,
		relayService:   svc.Relay,
		testLimiter:    NewRateLimiter(cfg.TestRateLimit, cfg.TestRateLimit),
		maxUploadSize:  cfg.MaxUploadSize,
		now:            time.Now,
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewLoggingMiddleware(logger).Handler(handler)
	if len(cfg.AllowedOrigins) > 0 {
		handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	}
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	user := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireAdmin(h))
	}
	staff := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(
			authMiddleware.RequireRole(staffRoles...)(h))
	}

	s.router.HandleFunc("GET /version", s.handleVersion)

	// Auth
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.Handle("GET /api/v1/auth/me", user(s.handleGetMe))

	// Cloud storage selection and connections
	s.router.Handle("GET /api/v1/cloud-storage/providers", user(s.handleListProviders))
	s.router.Handle("POST /api/v1/cloud-storage/set-provider", user(s.handleSetProvider))
	s.router.Handle("POST /api/v1/cloud-storage/test",
		authMiddleware.Authenticate(s.testLimiter.Limit(http.HandlerFunc(s.handleTestConnection))))
	s.router.Handle("GET /api/v1/cloud-storage/{provider}/connect", staff(s.handleConnect))
	// Callback carries the user in the signed state, so it is reachable by the browser redirect
	s.router.HandleFunc("GET /api/v1/cloud-storage/{provider}/callback", s.handleCallback)
	s.router.Handle("DELETE /api/v1/cloud-storage/{provider}/connection", staff(s.handleDisconnect))

	// Provider configuration (admin)
	s.router.Handle("GET /api/v1/admin/cloud-storage/providers/{provider}/config", admin(s.handleGetProviderConfig))
	s.router.Handle("PUT /api/v1/admin/cloud-storage/providers/{provider}/config", admin(s.handleSaveProviderConfig))

	// Files
	s.router.Handle("POST /api/v1/files", staff(s.handleUploadFile))
	s.router.Handle("GET /api/v1/files", staff(s.handleListFiles))
	s.router.Handle("GET /api/v1/files/{id}", user(s.handleGetFile))
	s.router.Handle("POST /api/v1/files/{id}/retry", user(s.handleRetryFile))
	s.router.HandleFunc("POST /api/v1/upload/{slug}", s.handlePublicUpload)

	// Health
	s.router.HandleFunc("GET /api/v1/health/cloud-storage/basic", s.handleHealthBasic)
	s.router.Handle("GET /api/v1/health/cloud-storage/comprehensive", admin(s.handleHealthComprehensive))
	s.router.Handle("GET /api/v1/health/cloud-storage/provider/{name}", user(s.handleHealthProvider))
	s.router.Handle("GET /api/v1/health/cloud-storage/user", user(s.handleHealthUser))
	s.router.Handle("GET /api/v1/health/cloud-storage/configuration", admin(s.handleHealthConfiguration))
	s.router.HandleFunc("GET /api/v1/health/cloud-storage/readiness", s.handleHealthReadiness)
	s.router.HandleFunc("GET /api/v1/health/cloud-storage/liveness", s.handleHealthLiveness)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
