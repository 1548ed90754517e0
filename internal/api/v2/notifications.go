package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/smartgarden/gardend/internal/alerting"
	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/notification"
)

// Test message sent by POST /notification-channels/:id/test.
const (
	testSubject = "Smart Garden Test"
	testBody    = "This is a test notification from your Smart Garden system."
)

func (c *Controller) initNotificationChannelRoutes() {
	channels := c.Group.Group("/notification-channels")
	channels.GET("", c.ListNotificationChannels)
	channels.POST("", c.CreateNotificationChannel)
	channels.PUT("/:id", c.UpdateNotificationChannel)
	channels.DELETE("/:id", c.DeleteNotificationChannel)
	channels.POST("/:id/test", c.TestNotificationChannel)
}

// CreateChannelRequest is the body of POST /notification-channels.
type CreateChannelRequest struct {
	ChannelType string         `json:"channel_type"`
	Config      map[string]any `json:"config"`
	Enabled     *bool          `json:"enabled"`
}

// UpdateChannelRequest is the body of PUT /notification-channels/:id.
type UpdateChannelRequest struct {
	ChannelType *string        `json:"channel_type"`
	Config      map[string]any `json:"config"`
	Enabled     *bool          `json:"enabled"`
}

// validateChannel checks the type and its required config keys.
func validateChannel(channelType string, cfg map[string]any) string {
	if !alerting.IsValidChannelType(channelType) {
		return "Unknown channel type"
	}
	if missing := alerting.MissingConfig(channelType, cfg); len(missing) > 0 {
		return "Missing config: " + strings.Join(missing, ", ")
	}
	return ""
}

// ListNotificationChannels returns every channel in creation order.
func (c *Controller) ListNotificationChannels(ctx echo.Context) error {
	channels, err := c.store.Channels.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list notification channels", http.StatusInternalServerError)
	}
	if channels == nil {
		channels = []entities.NotificationChannel{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"data":  channels,
		"count": len(channels),
	})
}

// CreateNotificationChannel stores a channel. Channels are enabled unless the
// request says otherwise.
func (c *Controller) CreateNotificationChannel(ctx echo.Context) error {
	var req CreateChannelRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if msg := validateChannel(req.ChannelType, req.Config); msg != "" {
		return badRequest(ctx, msg)
	}

	channel := entities.NotificationChannel{
		ChannelType: req.ChannelType,
		Config:      req.Config,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if err := c.store.Channels.Create(ctx.Request().Context(), &channel); err != nil {
		return c.HandleError(ctx, err, "Failed to create notification channel", http.StatusInternalServerError)
	}

	c.logInfoIfEnabled("notification channel created",
		logger.Uint64("id", uint64(channel.ID)),
		logger.String("type", channel.ChannelType))

	return ctx.JSON(http.StatusCreated, channel)
}

// UpdateNotificationChannel applies a partial update. The resulting type and
// config must still be valid together.
func (c *Controller) UpdateNotificationChannel(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid channel ID")
	}

	var req UpdateChannelRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	update := repository.ChannelUpdate{
		ChannelType: req.ChannelType,
		Config:      req.Config,
		Enabled:     req.Enabled,
	}
	if update.IsEmpty() {
		return badRequest(ctx, "No fields to update")
	}

	reqCtx := ctx.Request().Context()
	existing, err := c.store.Channels.Get(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound(ctx, "Notification channel not found")
		}
		return c.HandleError(ctx, err, "Failed to get notification channel", http.StatusInternalServerError)
	}

	channelType, cfg := existing.ChannelType, existing.Config
	if req.ChannelType != nil {
		channelType = *req.ChannelType
	}
	if req.Config != nil {
		cfg = req.Config
	}
	if msg := validateChannel(channelType, cfg); msg != "" {
		return badRequest(ctx, msg)
	}

	channel, err := c.store.Channels.Update(reqCtx, id, update)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound(ctx, "Notification channel not found")
		}
		return c.HandleError(ctx, err, "Failed to update notification channel", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, channel)
}

// DeleteNotificationChannel removes a channel.
func (c *Controller) DeleteNotificationChannel(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid channel ID")
	}

	if err := c.store.Channels.Delete(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound(ctx, "Notification channel not found")
		}
		return c.HandleError(ctx, err, "Failed to delete notification channel", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// TestNotificationChannel sends a fixed test message through one channel. A
// failed delivery is reported as 502 with success false.
func (c *Controller) TestNotificationChannel(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid channel ID")
	}

	reqCtx := ctx.Request().Context()
	channel, err := c.store.Channels.Get(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound(ctx, "Notification channel not found")
		}
		return c.HandleError(ctx, err, "Failed to get notification channel", http.StatusInternalServerError)
	}

	ok := c.notifier.Send(reqCtx, channel.ChannelType, notification.Config(channel.Config),
		notification.Message{Subject: testSubject, Body: testBody})
	if !ok {
		c.log.Warn("test notification failed",
			logger.Uint64("id", uint64(channel.ID)),
			logger.String("type", channel.ChannelType))
		return ctx.JSON(http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   "Notification delivery failed",
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"success": true})
}
