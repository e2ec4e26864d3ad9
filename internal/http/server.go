// Package http serves the review control plane API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides the HTTP endpoints of reviewd.
type Server struct {
	echo     *echo.Echo
	control  Controller
	history  HistoryLister
	logger   *zap.Logger
	config   *Config
	counters *reviewCounters
	limiter  *ipLimiter
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit float64
	RateBurst int
	// WebhookSecret enables POST /api/v1/webhooks/github when set.
	WebhookSecret config.Secret
}

// ConfigFrom maps the loaded configuration onto the server config.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		RateLimit:     cfg.Server.RateLimit,
		RateBurst:     cfg.Server.RateBurst,
		WebhookSecret: cfg.GitHub.WebhookSecret,
	}
}

// NewServer creates a new HTTP server. history may be nil, in which case
// the history endpoint reports an empty list.
func NewServer(ctrl Controller, history HistoryLister, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()
	s := &Server{
		echo:     e,
		control:  ctrl,
		history:  history,
		logger:   logger,
		config:   cfg,
		counters: newReviewCounters(registry),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newIPLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	e.HTTPErrorHandler = s.handleError

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	if s.limiter != nil {
		e.Use(s.limiter.middleware(logger, s.counters.rateLimited))
	}

	s.registerRoutes(registry)
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes(registry *prometheus.Registry) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/reviews", s.handleStartReview)
	v1.GET("/reviews/current", s.handleCurrentReview)
	v1.GET("/reviews/:id", s.handleGetReview)
	v1.DELETE("/reviews/:id", s.handleCancelReview)
	v1.POST("/reviews/:id/extend", s.handleExtendWindow)
	v1.POST("/reviews/:id/challenges", s.handleSubmitChallenges)
	v1.GET("/history", s.handleHistory)
	if s.config.WebhookSecret.IsSet() {
		v1.POST("/webhooks/github", s.handleGitHubWebhook)
	}
}

// Echo exposes the router for callers that mount extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// handleError renders every error as {"error": "..."} with a status derived
// from the control plane sentinels.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := http.StatusInternalServerError, "internal error"
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status, msg = he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, control.ErrNoActiveSession):
		status, msg = http.StatusNotFound, "no active session"
	case errors.Is(err, control.ErrSessionNotFound):
		status, msg = http.StatusNotFound, "session not found"
	case errors.Is(err, control.ErrSessionRunning):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, workflows.ErrInvalidInput), errors.Is(err, workflows.ErrEmptyField):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
	}
	if err := c.JSON(status, ErrorResponse{Error: msg}); err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
