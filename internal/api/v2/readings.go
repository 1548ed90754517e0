package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/ingest"
	"github.com/smartgarden/gardend/internal/logger"
)

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 1000
)

const dateLayout = "2006-01-02"

func (c *Controller) initReadingRoutes() {
	readings := c.Group.Group("/readings")
	readings.POST("", c.CreateReadings)
	readings.GET("", c.ListReadings)
	readings.GET("/trends", c.GetReadingTrends)
}

// CreateReadings ingests a telemetry batch.
func (c *Controller) CreateReadings(ctx echo.Context) error {
	var batch ingest.Batch
	if err := ctx.Bind(&batch); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	res, err := c.ingest.Ingest(ctx.Request().Context(), ingest.TransportHTTP, &batch)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to store readings", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, res)
}

// ListReadings returns readings of one sensor, most recent first.
func (c *Controller) ListReadings(ctx echo.Context) error {
	sensorID, ok := parseUintQuery(ctx, "sensor_id")
	if !ok || sensorID == 0 {
		return badRequest(ctx, "sensor_id is required")
	}

	filter := repository.ReadingFilter{SensorID: sensorID}
	if metric := ctx.QueryParam("metric"); metric != "" {
		if !entities.IsValidMetric(metric) {
			return badRequest(ctx, "Unknown metric")
		}
		filter.Metric = metric
	}

	if raw := ctx.QueryParam("from"); raw != "" {
		from, _, err := parseTimeParam(raw)
		if err != nil {
			return badRequest(ctx, "Invalid from date")
		}
		filter.From = from
	}
	if raw := ctx.QueryParam("to"); raw != "" {
		to, dateOnly, err := parseTimeParam(raw)
		if err != nil {
			return badRequest(ctx, "Invalid to date")
		}
		if dateOnly {
			to = endOfDay(to)
		}
		filter.Until = to
	}
	filter.Limit, filter.Offset = pageParams(ctx, defaultReadingsLimit, maxReadingsLimit)

	readings, err := c.store.Readings.ListReadings(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list readings", http.StatusInternalServerError)
	}
	if readings == nil {
		readings = []entities.Reading{}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"data":  readings,
		"count": len(readings),
	})
}

// GetReadingTrends summarizes one metric of one sensor over a period.
func (c *Controller) GetReadingTrends(ctx echo.Context) error {
	sensorID, ok := parseUintQuery(ctx, "sensor_id")
	if !ok || sensorID == 0 {
		return badRequest(ctx, "sensor_id is required")
	}
	metric := ctx.QueryParam("metric")
	if !entities.IsValidMetric(metric) {
		return badRequest(ctx, "A valid metric is required")
	}

	resp, err := c.trends.Trend(ctx.Request().Context(), sensorID, metric, ctx.QueryParam("period"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute trend", http.StatusInternalServerError)
	}

	c.log.Debug("trend computed",
		logger.Uint64("sensor_id", uint64(sensorID)),
		logger.String("metric", metric),
		logger.String("period", resp.Period),
		logger.Int("points", len(resp.Points)))

	return ctx.JSON(http.StatusOK, resp)
}

// parseTimeParam accepts RFC 3339 or a plain date. dateOnly reports the
// latter.
func parseTimeParam(raw string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

// endOfDay returns 23:59:59 of the day, so a date-only upper bound includes
// the whole day.
func endOfDay(day time.Time) time.Time {
	return day.Add(24*time.Hour - time.Second)
}
