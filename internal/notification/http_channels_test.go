package notification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/gardend/internal/logger"
)

var testMsg = Message{Subject: "Smart Garden Alert: temperature above 30", Body: "Sensor 1 reported temperature = 31.5"}

// mockClient returns a resty client whose requests are served by a private
// httpmock transport.
func mockClient(t *testing.T) (*resty.Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	return NewHTTPClient(time.Second).SetTransport(mock), mock
}

// capture records the last request body and headers seen by a responder.
type capture struct {
	body   []byte
	header http.Header
}

func (c *capture) responder(status int) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		c.body = b
		c.header = req.Header.Clone()
		return httpmock.NewStringResponse(status, `{}`), nil
	}
}

func TestEmailChannel(t *testing.T) {
	t.Parallel()

	t.Run("sends sendgrid payload with bearer key", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		var got capture
		mock.RegisterResponder(http.MethodPost, "https://sendgrid.test/v3/mail/send", got.responder(http.StatusAccepted))

		ch := NewEmailChannel(client, "https://sendgrid.test/", "SG.key", "alerts@smartgarden.local", logger.Silent())
		require.True(t, ch.Deliver(t.Context(), Config{"address": "owner@example.com"}, testMsg))

		assert.Equal(t, "Bearer SG.key", got.header.Get("Authorization"))
		var payload map[string]any
		require.NoError(t, json.Unmarshal(got.body, &payload))
		assert.Equal(t, testMsg.Subject, payload["subject"])
		assert.Equal(t, map[string]any{"email": "alerts@smartgarden.local"}, payload["from"])
		personalizations := payload["personalizations"].([]any)
		require.Len(t, personalizations, 1)
		to := personalizations[0].(map[string]any)["to"].([]any)
		assert.Equal(t, "owner@example.com", to[0].(map[string]any)["email"])
	})

	t.Run("missing api key does no io", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		ch := NewEmailChannel(client, "https://sendgrid.test", "", "from@x", logger.Silent())
		assert.False(t, ch.Deliver(t.Context(), Config{"address": "owner@example.com"}, testMsg))
		assert.Zero(t, mock.GetTotalCallCount())
	})

	t.Run("missing address does no io", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		ch := NewEmailChannel(client, "https://sendgrid.test", "SG.key", "from@x", logger.Silent())
		assert.False(t, ch.Deliver(t.Context(), Config{}, testMsg))
		assert.Zero(t, mock.GetTotalCallCount())
	})

	t.Run("non-2xx is failure", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		mock.RegisterResponder(http.MethodPost, "https://sendgrid.test/v3/mail/send", httpmock.NewStringResponder(http.StatusUnauthorized, `{}`))
		ch := NewEmailChannel(client, "https://sendgrid.test", "SG.key", "from@x", logger.Silent())
		assert.False(t, ch.Deliver(t.Context(), Config{"address": "owner@example.com"}, testMsg))
	})
}

func TestTelegramChannel(t *testing.T) {
	t.Parallel()

	const endpoint = "https://telegram.test/bot123:abc/sendMessage"

	t.Run("markdown text with numeric chat id", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		var got capture
		mock.RegisterResponder(http.MethodPost, endpoint, got.responder(http.StatusOK))

		ch := NewTelegramChannel(client, "https://telegram.test", logger.Silent())
		// JSON-decoded configs carry numbers as float64
		ok := ch.Deliver(t.Context(), Config{"bot_token": "123:abc", "chat_id": float64(-100123)}, testMsg)
		require.True(t, ok)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(got.body, &payload))
		assert.Equal(t, "-100123", payload["chat_id"])
		assert.Equal(t, "*"+testMsg.Subject+"*\n"+testMsg.Body, payload["text"])
		assert.Equal(t, "Markdown", payload["parse_mode"])
	})

	t.Run("only 200 counts as success", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		mock.RegisterResponder(http.MethodPost, endpoint, httpmock.NewStringResponder(http.StatusAccepted, `{}`))
		ch := NewTelegramChannel(client, "https://telegram.test", logger.Silent())
		assert.False(t, ch.Deliver(t.Context(), Config{"bot_token": "123:abc", "chat_id": "42"}, testMsg))
	})

	t.Run("missing chat id does no io", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		ch := NewTelegramChannel(client, "https://telegram.test", logger.Silent())
		assert.False(t, ch.Deliver(t.Context(), Config{"bot_token": "123:abc"}, testMsg))
		assert.Zero(t, mock.GetTotalCallCount())
	})
}

func TestDiscordChannel(t *testing.T) {
	t.Parallel()

	t.Run("posts bold subject", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		var got capture
		mock.RegisterResponder(http.MethodPost, "https://discord.test/api/webhooks/1/x", got.responder(http.StatusNoContent))

		ch := NewDiscordChannel(client, logger.Silent())
		require.True(t, ch.Deliver(t.Context(), Config{"webhook_url": "https://discord.test/api/webhooks/1/x"}, testMsg))
		assert.JSONEq(t, `{"content":"**`+testMsg.Subject+`**\n`+testMsg.Body+`"}`, string(got.body))
	})

	t.Run("missing webhook url does no io", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		ch := NewDiscordChannel(client, logger.Silent())
		assert.False(t, ch.Deliver(t.Context(), Config{"webhook_url": "  "}, testMsg))
		assert.Zero(t, mock.GetTotalCallCount())
	})

	t.Run("transport error is failure", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		mock.RegisterResponder(http.MethodPost, "https://discord.test/hook", httpmock.NewErrorResponder(errors.New("connection reset")))
		ch := NewDiscordChannel(client, logger.Silent())
		assert.False(t, ch.Deliver(t.Context(), Config{"webhook_url": "https://discord.test/hook"}, testMsg))
	})
}

func TestWebhookChannel(t *testing.T) {
	t.Parallel()

	t.Run("signed when secret is set", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		var got capture
		mock.RegisterResponder(http.MethodPost, "https://hooks.test/garden", got.responder(http.StatusOK))

		ch := NewWebhookChannel(client, "smart-garden", logger.Silent())
		require.True(t, ch.Deliver(t.Context(), Config{"url": "https://hooks.test/garden", "secret": "s3cret"}, testMsg))

		assert.JSONEq(t, `{"subject":"`+testMsg.Subject+`","body":"`+testMsg.Body+`","source":"smart-garden"}`, string(got.body))
		assert.Equal(t, Sign("s3cret", got.body), got.header.Get(SignatureHeader))
		assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	})

	t.Run("unsigned without secret", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		var got capture
		mock.RegisterResponder(http.MethodPost, "https://hooks.test/garden", got.responder(http.StatusCreated))

		ch := NewWebhookChannel(client, "smart-garden", logger.Silent())
		require.True(t, ch.Deliver(t.Context(), Config{"url": "https://hooks.test/garden"}, testMsg))
		assert.Empty(t, got.header.Get(SignatureHeader))
	})

	t.Run("server error is failure", func(t *testing.T) {
		t.Parallel()
		client, mock := mockClient(t)
		mock.RegisterResponder(http.MethodPost, "https://hooks.test/garden", httpmock.NewStringResponder(http.StatusInternalServerError, ""))
		ch := NewWebhookChannel(client, "smart-garden", logger.Silent())
		assert.False(t, ch.Deliver(t.Context(), Config{"url": "https://hooks.test/garden"}, testMsg))
	})
}

func TestSign(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "sha256=88a67f24bbcdaed0e6c997404bb79a743baf44c6bab2f4c27328e3009d22e342", Sign("key", []byte(`{"a":1}`)))
}

func TestConfigString(t *testing.T) {
	t.Parallel()
	cfg := Config{"s": " x ", "n": float64(42), "f": 1.5, "nil": nil, "b": true}
	assert.Equal(t, "x", cfg.String("s"))
	assert.Equal(t, "42", cfg.String("n"))
	assert.Equal(t, "1.5", cfg.String("f"))
	assert.Empty(t, cfg.String("nil"))
	assert.Empty(t, cfg.String("missing"))
	assert.Equal(t, "true", cfg.String("b"))
}
