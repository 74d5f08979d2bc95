package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	handlers "github.com/wekeepgrowing/hospital-payment/internal/adapter/handler/http"
	"github.com/wekeepgrowing/hospital-payment/internal/config"
	"github.com/wekeepgrowing/hospital-payment/internal/middleware/auth"
	"github.com/wekeepgrowing/hospital-payment/pkg/logger"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the handlers and probes the server exposes.
type Dependencies struct {
	Payments *handlers.PaymentHandler
	Push     *handlers.PushPaymentHandler
	Registry *prometheus.Registry
	Health   map[string]HealthCheck
}

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()

	s := &Server{
		config: cfg,
		logger: logger,
		echo:   e,
		deps:   deps,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := s.config.Server.HTTP.Address()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	logger.WithEchoLogger(s.echo, s.logger)

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(logger.NewEchoRequestLogger(s.logger))

	if s.deps.Registry != nil {
		s.echo.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Namespace:  "payment",
			Subsystem:  "http",
			Registerer: s.deps.Registry,
			Skipper: func(c echo.Context) bool {
				path := c.Path()
				return path == "/metrics" || path == "/health"
			},
		}))
	}

	if s.config.Service.ClientURL != "" {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{s.config.Service.ClientURL},
			AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
		}))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)

	if s.deps.Registry != nil {
		s.echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
			Gatherer: s.deps.Registry,
		}))
	}

	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
	}

	mw := handlers.RouteMiddleware{
		Authenticated: []echo.MiddlewareFunc{auth.JWTMiddleware(jwtConfig)},
	}
	if len(s.config.JWT.AdminRoles) > 0 {
		mw.Admin = []echo.MiddlewareFunc{auth.RequireRoles(s.logger, s.config.JWT.AdminRoles...)}
	}

	handlers.RegisterRoutes(s.echo, s.deps.Payments, s.deps.Push, mw)
}

func (s *Server) health(c echo.Context) error {
	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Health))

	for name, check := range s.deps.Health {
		if err := check(c.Request().Context()); err != nil {
			s.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = strings.TrimSpace(err.Error())
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  "healthy",
		"service": s.config.Service.Name,
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	return c.JSON(status, body)
}
