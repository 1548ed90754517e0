package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

func (c *Controller) initWateringRoutes() {
	plants := c.Group.Group("/plants/:id")
	plants.GET("/watering-events", c.ListWateringEvents)
	plants.POST("/watering-events", c.CreateWateringEvent)
	plants.GET("/watering-schedule", c.ListWateringSchedules)
	plants.POST("/watering-schedule", c.CreateWateringSchedule)

	c.Group.DELETE("/watering-events/:id", c.DeleteWateringEvent)
	c.Group.PUT("/watering-schedules/:id", c.UpdateWateringSchedule)
	c.Group.DELETE("/watering-schedules/:id", c.DeleteWateringSchedule)
}

// CreateWateringEventRequest is the body of a manual watering log.
type CreateWateringEventRequest struct {
	DetectedAt *time.Time `json:"detected_at"`
}

// CreateScheduleRequest is the body of POST /plants/:id/watering-schedule.
type CreateScheduleRequest struct {
	IntervalDays int    `json:"interval_days"`
	Notes        string `json:"notes"`
}

// UpdateScheduleRequest carries the editable schedule fields. Absent fields
// are left unchanged.
type UpdateScheduleRequest struct {
	IntervalDays *int    `json:"interval_days"`
	Enabled      *bool   `json:"enabled"`
	Notes        *string `json:"notes"`
}

// plantParam resolves the :id route parameter to an existing plant. On
// failure the reply has already been written and ok is false.
func (c *Controller) plantParam(ctx echo.Context) (id uint, ok bool, err error) {
	id, perr := parseUintParam(ctx, "id")
	if perr != nil {
		return 0, false, badRequest(ctx, "Invalid plant ID")
	}
	if _, gerr := c.store.Plants.GetPlant(ctx.Request().Context(), id); gerr != nil {
		if errors.Is(gerr, repository.ErrPlantNotFound) {
			return 0, false, notFound(ctx, "Plant not found")
		}
		return 0, false, c.HandleError(ctx, gerr, "Failed to look up plant", http.StatusInternalServerError)
	}
	return id, true, nil
}

// ListWateringEvents returns a plant's watering events, newest first.
func (c *Controller) ListWateringEvents(ctx echo.Context) error {
	plantID, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid plant ID")
	}
	limit, _ := pageParams(ctx, defaultEventsLimit, maxEventsLimit)

	events, err := c.watering.ListEvents(ctx.Request().Context(), plantID, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list watering events", http.StatusInternalServerError)
	}
	if events == nil {
		events = []entities.WateringEvent{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"data":  events,
		"count": len(events),
	})
}

// CreateWateringEvent logs a manual watering and refreshes the plant's
// schedules.
func (c *Controller) CreateWateringEvent(ctx echo.Context) error {
	plantID, ok, err := c.plantParam(ctx)
	if !ok {
		return err
	}

	var req CreateWateringEventRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	event, err := c.watering.RecordManual(ctx.Request().Context(), plantID, req.DetectedAt)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create watering event", http.StatusInternalServerError)
	}

	c.logInfoIfEnabled("manual watering logged",
		logger.Uint64("plant_id", uint64(plantID)),
		logger.Uint64("event_id", uint64(event.ID)))

	return ctx.JSON(http.StatusCreated, event)
}

// DeleteWateringEvent removes a watering event.
func (c *Controller) DeleteWateringEvent(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid event ID")
	}
	if err := c.watering.DeleteEvent(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete watering event", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListWateringSchedules returns a plant's schedules.
func (c *Controller) ListWateringSchedules(ctx echo.Context) error {
	plantID, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid plant ID")
	}

	schedules, err := c.watering.ListSchedules(ctx.Request().Context(), plantID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list watering schedules", http.StatusInternalServerError)
	}
	if schedules == nil {
		schedules = []entities.WateringSchedule{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"data":  schedules,
		"count": len(schedules),
	})
}

// CreateWateringSchedule adds a schedule first due one interval from now.
func (c *Controller) CreateWateringSchedule(ctx echo.Context) error {
	plantID, ok, err := c.plantParam(ctx)
	if !ok {
		return err
	}

	var req CreateScheduleRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	schedule, err := c.watering.CreateSchedule(ctx.Request().Context(), plantID, req.IntervalDays, req.Notes)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create watering schedule", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, schedule)
}

// UpdateWateringSchedule applies a partial update.
func (c *Controller) UpdateWateringSchedule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid schedule ID")
	}

	var req UpdateScheduleRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	schedule, err := c.watering.UpdateSchedule(ctx.Request().Context(), id, repository.ScheduleUpdate{
		IntervalDays: req.IntervalDays,
		Enabled:      req.Enabled,
		Notes:        req.Notes,
	})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update watering schedule", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, schedule)
}

// DeleteWateringSchedule removes a schedule.
func (c *Controller) DeleteWateringSchedule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid schedule ID")
	}
	if err := c.watering.DeleteSchedule(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete watering schedule", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
