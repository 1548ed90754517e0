package api

import (
	"math"
	"net/http"
	"net/mail"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/smartgarden/gardend/internal/alerting"
	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/notification"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// initAlertRoutes registers alert rule API endpoints.
func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")

	alerts.GET("/schema", c.GetAlertSchema)
	alerts.GET("/history", c.ListAlertHistory)
	alerts.GET("", c.ListAlertRules)
	alerts.POST("", c.CreateAlertRule)
	alerts.GET("/:id", c.GetAlertRule)
	alerts.DELETE("/:id", c.DeactivateAlertRule)
	alerts.POST("/:id/test", c.TestAlertRule)
}

// CreateAlertRequest is the body of POST /alerts.
type CreateAlertRequest struct {
	SensorID  uint     `json:"sensor_id"`
	Metric    string   `json:"metric"`
	Condition string   `json:"condition"`
	Threshold *float64 `json:"threshold"`
	Email     string   `json:"email"`
}

func (r *CreateAlertRequest) validate() string {
	switch {
	case r.SensorID == 0:
		return "sensor_id is required"
	case !entities.IsValidMetric(r.Metric):
		return "Unknown metric"
	case !entities.IsValidCondition(r.Condition):
		return "Condition must be above or below"
	case r.Threshold == nil || math.IsNaN(*r.Threshold) || math.IsInf(*r.Threshold, 0):
		return "A numeric threshold is required"
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return "A valid email is required"
	}
	return ""
}

// GetAlertSchema describes metrics, conditions and channel types for the UI.
func (c *Controller) GetAlertSchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, alerting.GetSchema())
}

// ListAlertRules returns rules, optionally filtered by sensor and state.
func (c *Controller) ListAlertRules(ctx echo.Context) error {
	filter := repository.AlertRuleFilter{}

	sensorID, ok := parseUintQuery(ctx, "sensor_id")
	if !ok {
		return badRequest(ctx, "Invalid sensor_id")
	}
	filter.SensorID = sensorID

	if raw := ctx.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(ctx, "Invalid active flag")
		}
		filter.Active = &active
	}

	rules, err := c.store.Alerts.ListRules(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert rules", http.StatusInternalServerError)
	}
	if rules == nil {
		rules = []entities.AlertRule{}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"data":  rules,
		"count": len(rules),
	})
}

// GetAlertRule returns a single rule.
func (c *Controller) GetAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	rule, err := c.store.Alerts.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return notFound(ctx, "Alert rule not found")
		}
		return c.HandleError(ctx, err, "Failed to get alert rule", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, rule)
}

// CreateAlertRule stores a new active rule.
func (c *Controller) CreateAlertRule(ctx echo.Context) error {
	var req CreateAlertRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(ctx, msg)
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.store.Sensors.Get(reqCtx, req.SensorID); err != nil {
		if errors.Is(err, repository.ErrSensorNotFound) {
			return notFound(ctx, "Sensor not found")
		}
		return c.HandleError(ctx, err, "Failed to look up sensor", http.StatusInternalServerError)
	}

	rule := entities.AlertRule{
		SensorID:  req.SensorID,
		Metric:    req.Metric,
		Condition: req.Condition,
		Threshold: *req.Threshold,
		Email:     req.Email,
		Active:    true,
	}
	if err := c.store.Alerts.CreateRule(reqCtx, &rule); err != nil {
		return c.HandleError(ctx, err, "Failed to create alert rule", http.StatusInternalServerError)
	}

	c.logInfoIfEnabled("alert rule created",
		logger.Uint64("id", uint64(rule.ID)),
		logger.Uint64("sensor_id", uint64(rule.SensorID)),
		logger.String("metric", rule.Metric))

	return ctx.JSON(http.StatusCreated, rule)
}

// DeactivateAlertRule clears a rule's active flag. Rules are never removed.
func (c *Controller) DeactivateAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	if err := c.store.Alerts.DeactivateRule(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return notFound(ctx, "Alert rule not found")
		}
		return c.HandleError(ctx, err, "Failed to deactivate alert rule", http.StatusInternalServerError)
	}

	c.logInfoIfEnabled("alert rule deactivated", logger.Uint64("id", uint64(id)))
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// TestAlertRule sends a rule's notification without evaluating it.
func (c *Controller) TestAlertRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	rule, err := c.store.Alerts.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return notFound(ctx, "Alert rule not found")
		}
		return c.HandleError(ctx, err, "Failed to get alert rule", http.StatusInternalServerError)
	}

	results := c.alerts.TestFire(ctx.Request().Context(), rule)
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":    "test fired",
		"targets":   len(results),
		"delivered": notification.Delivered(results),
	})
}

// ListAlertHistory returns paginated alert firing history.
func (c *Controller) ListAlertHistory(ctx echo.Context) error {
	ruleID, ok := parseUintQuery(ctx, "rule_id")
	if !ok {
		return badRequest(ctx, "Invalid rule_id")
	}
	filter := repository.AlertHistoryFilter{RuleID: ruleID}
	filter.Limit, filter.Offset = pageParams(ctx, defaultHistoryLimit, maxHistoryLimit)

	items, total, err := c.store.Alerts.ListHistory(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert history", http.StatusInternalServerError)
	}
	if items == nil {
		items = []entities.AlertHistory{}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"history": items,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}
