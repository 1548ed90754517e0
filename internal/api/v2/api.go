// Package api implements the /api/v2 HTTP endpoints.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/smartgarden/gardend/internal/alerting"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/ingest"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/notification"
	"github.com/smartgarden/gardend/internal/observability"
	"github.com/smartgarden/gardend/internal/trends"
	"github.com/smartgarden/gardend/internal/watering"
)

// Prefix is the mount point of the API.
const Prefix = "/api/v2"

// Notifier sends a single message through one channel type.
type Notifier interface {
	Send(ctx context.Context, channelType string, cfg notification.Config, msg notification.Message) bool
}

// Dependencies are the services the controller serves.
type Dependencies struct {
	Store    *repository.Store
	Ingest   *ingest.Service
	Alerts   *alerting.Engine
	Watering *watering.Service
	Trends   *trends.Aggregator
	Notifier Notifier
	Metrics  *observability.Metrics
	// Ping checks the store for the health endpoint. Nil means always healthy.
	Ping func() error
}

// Controller holds the route handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	store    *repository.Store
	ingest   *ingest.Service
	alerts   *alerting.Engine
	watering *watering.Service
	trends   *trends.Aggregator
	notifier Notifier
	metrics  *observability.Metrics
	ping     func() error
	log      logger.Logger
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// New creates the controller and registers its routes on e.
func New(e *echo.Echo, deps Dependencies, log logger.Logger) *Controller {
	c := &Controller{
		Echo:     e,
		Group:    e.Group(Prefix),
		store:    deps.Store,
		ingest:   deps.Ingest,
		alerts:   deps.Alerts,
		watering: deps.Watering,
		trends:   deps.Trends,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		ping:     deps.Ping,
		log:      log.Module("api"),
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.Health)
	if c.metrics != nil {
		c.Group.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	c.initReadingRoutes()
	c.initAlertRoutes()
	c.initWateringRoutes()
	c.initNotificationChannelRoutes()
}

// Health reports whether the store answers.
func (c *Controller) Health(ctx echo.Context) error {
	if c.ping != nil {
		if err := c.ping(); err != nil {
			c.log.Warn("health check failed", logger.Error(err))
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleError writes an error reply. The status comes from the error category
// when it has one, otherwise code is used. Server errors are logged and
// reported; their cause is not echoed to the client.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	status := statusFor(err, code)
	resp := ErrorResponse{Error: message}
	if status >= http.StatusInternalServerError {
		c.logErrorIfEnabled(message,
			logger.Error(err),
			logger.String("method", ctx.Request().Method),
			logger.String("path", ctx.Path()))
		observability.CaptureError(err)
	} else if err != nil {
		resp.Message = err.Error()
	}
	return ctx.JSON(status, resp)
}

func statusFor(err error, fallback int) int {
	switch {
	case err == nil:
		return fallback
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryNotFound), repository.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryStore):
		return http.StatusInternalServerError
	}
	return fallback
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func notFound(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: message})
}

func (c *Controller) logErrorIfEnabled(msg string, fields ...logger.Field) {
	if c.log != nil {
		c.log.Error(msg, fields...)
	}
}

func (c *Controller) logInfoIfEnabled(msg string, fields ...logger.Field) {
	if c.log != nil {
		c.log.Info(msg, fields...)
	}
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// parseUintQuery parses an optional uint query parameter. A missing value
// returns 0 and ok.
func parseUintQuery(ctx echo.Context, name string) (uint, bool) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}

// pageParams reads limit and offset. An unparseable or non-positive limit
// falls back to def; limits above maxLimit are clamped.
func pageParams(ctx echo.Context, def, maxLimit int) (limit, offset int) {
	limit = def
	if raw := ctx.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = min(v, maxLimit)
		}
	}
	if raw := ctx.QueryParam("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
