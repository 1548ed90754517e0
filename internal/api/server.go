// Package api hosts the HTTP server and mounts the versioned API on it.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apiv2 "github.com/smartgarden/gardend/internal/api/v2"
	"github.com/smartgarden/gardend/internal/conf"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
)

// Server owns the echo instance and its http.Server.
type Server struct {
	echo     *echo.Echo
	settings conf.ServerSettings
	log      logger.Logger
}

// NewServer builds the middleware chain and registers the v2 routes. The
// /metrics route is only mounted when metrics are enabled in settings.
func NewServer(settings conf.ServerSettings, deps apiv2.Dependencies, log logger.Logger) *Server {
	s := &Server{
		echo:     echo.New(),
		settings: settings,
		log:      log.Module("http"),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	if !settings.EnableMetrics {
		deps.Metrics = nil
	}

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(s.requestLogger())
	s.echo.Use(deps.Metrics.EchoMiddleware())

	apiv2.New(s.echo, deps, log)
	return s
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// requestLogger logs one line per request at debug level, or warn for
// server errors.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			if v.Status >= http.StatusInternalServerError {
				s.log.Warn("request failed", fields...)
				return nil
			}
			s.log.Debug("request", fields...)
			return nil
		},
	})
}

// Start listens on the configured address and blocks until the server stops.
// A graceful shutdown is not an error.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.settings.Listen,
		Handler:      s.echo,
		ReadTimeout:  s.settings.ReadTimeout.Std(),
		WriteTimeout: s.settings.WriteTimeout.Std(),
	}
	s.log.Info("http server listening", logger.String("listen", s.settings.Listen))

	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("http").
			Category(errors.CategoryConfig).
			Context("listen", s.settings.Listen).
			Build()
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
