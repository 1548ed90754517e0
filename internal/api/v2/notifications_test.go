package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
)

type channelList struct {
	Data  []entities.NotificationChannel `json:"data"`
	Count int                            `json:"count"`
}

func (h *harness) createChannel(t *testing.T, body map[string]any) entities.NotificationChannel {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/notification-channels", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[entities.NotificationChannel](t, rec)
}

func TestNotificationChannelCRUD(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	webhook := h.createChannel(t, map[string]any{
		"channel_type": "webhook",
		"config":       map[string]any{"url": "https://hooks.example.com/a", "secret": "s3cret"},
	})
	assert.True(t, webhook.Enabled, "channels default to enabled")

	telegram := h.createChannel(t, map[string]any{
		"channel_type": "telegram",
		"config":       map[string]any{"bot_token": "123:abc", "chat_id": 42},
		"enabled":      false,
	})
	assert.False(t, telegram.Enabled)

	list := decode[channelList](t, h.do(t, http.MethodGet, "/notification-channels", nil))
	require.Equal(t, 2, list.Count)
	assert.Equal(t, webhook.ID, list.Data[0].ID)

	t.Run("create validation", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/notification-channels", map[string]any{"channel_type": "pager", "config": map[string]any{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = h.do(t, http.MethodPost, "/notification-channels", map[string]any{
			"channel_type": "telegram", "config": map[string]any{"bot_token": "t"},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Error, "chat_id")
	})

	t.Run("update", func(t *testing.T) {
		path := fmt.Sprintf("/notification-channels/%d", telegram.ID)
		rec := h.do(t, http.MethodPut, path, map[string]any{"enabled": true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decode[entities.NotificationChannel](t, rec).Enabled)

		assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPut, path, map[string]any{}).Code, "empty update")
		assert.Equal(t, http.StatusBadRequest,
			h.do(t, http.MethodPut, path, map[string]any{"channel_type": "discord"}).Code,
			"type change without matching config")
		assert.Equal(t, http.StatusNotFound,
			h.do(t, http.MethodPut, "/notification-channels/999", map[string]any{"enabled": true}).Code)
	})

	t.Run("delete", func(t *testing.T) {
		path := fmt.Sprintf("/notification-channels/%d", telegram.ID)
		assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, path, nil).Code)
		assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, path, nil).Code)
	})
}

func TestTestNotificationChannel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	email := h.createChannel(t, map[string]any{
		"channel_type": "email", "config": map[string]any{"address": "ops@example.com"},
	})
	rec := h.do(t, http.MethodPost, fmt.Sprintf("/notification-channels/%d/test", email.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	sent := h.email.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, testSubject, sent[0].Subject)

	// the harness webhook channel always fails
	webhook := h.createChannel(t, map[string]any{
		"channel_type": "webhook", "config": map[string]any{"url": "https://hooks.example.com/b"},
	})
	rec = h.do(t, http.MethodPost, fmt.Sprintf("/notification-channels/%d/test", webhook.ID), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["success"])

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/notification-channels/999/test", nil).Code)
}
