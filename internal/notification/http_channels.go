package notification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/smartgarden/gardend/internal/logger"
)

// SignatureHeader carries the HMAC-SHA256 of a webhook body when a secret is
// configured.
const SignatureHeader = "X-Signature-256"

// EmailChannel sends plain-text mail through the SendGrid v3 API.
type EmailChannel struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	from    string
	log     logger.Logger
}

// NewEmailChannel creates the SendGrid-backed email channel. The recipient is
// read from the "address" config key.
func NewEmailChannel(client *resty.Client, baseURL, apiKey, from string, log logger.Logger) *EmailChannel {
	return &EmailChannel{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		log:     log.With(logger.String("channel", TypeEmail)),
	}
}

func (c *EmailChannel) Type() string { return TypeEmail }

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

func (c *EmailChannel) Deliver(ctx context.Context, cfg Config, msg Message) bool {
	to := cfg.String("address")
	if c.apiKey == "" || to == "" {
		c.log.Warn("sendgrid api key or recipient address missing")
		return false
	}

	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: to}}}},
		From:             sendGridAddress{Email: c.from},
		Subject:          msg.Subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: msg.Body}},
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(mail).
		Post(c.baseURL + "/v3/mail/send")
	if err != nil {
		c.log.Error("sendgrid request failed", logger.Error(err))
		return false
	}
	if !resp.IsSuccess() {
		c.log.Warn("sendgrid rejected message", logger.Int("status", resp.StatusCode()))
		return false
	}
	return true
}

// TelegramChannel posts to the Telegram Bot API.
type TelegramChannel struct {
	client *resty.Client
	apiURL string
	log    logger.Logger
}

// NewTelegramChannel creates the Telegram channel. Config keys: "bot_token"
// and "chat_id".
func NewTelegramChannel(client *resty.Client, apiURL string, log logger.Logger) *TelegramChannel {
	return &TelegramChannel{
		client: client,
		apiURL: strings.TrimRight(apiURL, "/"),
		log:    log.With(logger.String("channel", TypeTelegram)),
	}
}

func (c *TelegramChannel) Type() string { return TypeTelegram }

func (c *TelegramChannel) Deliver(ctx context.Context, cfg Config, msg Message) bool {
	token := cfg.String("bot_token")
	chatID := cfg.String("chat_id")
	if token == "" || chatID == "" {
		c.log.Warn("telegram bot_token or chat_id missing")
		return false
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    chatID,
			"text":       "*" + msg.Subject + "*\n" + msg.Body,
			"parse_mode": "Markdown",
		}).
		Post(c.apiURL + "/bot" + token + "/sendMessage")
	if err != nil {
		// the error text embeds the URL and therefore the token
		c.log.Error("telegram request failed", logger.String("chat_id", chatID))
		return false
	}
	if resp.StatusCode() != http.StatusOK {
		c.log.Warn("telegram rejected message", logger.Int("status", resp.StatusCode()))
		return false
	}
	return true
}

// DiscordChannel posts to a Discord incoming webhook.
type DiscordChannel struct {
	client *resty.Client
	log    logger.Logger
}

// NewDiscordChannel creates the Discord channel. Config key: "webhook_url".
func NewDiscordChannel(client *resty.Client, log logger.Logger) *DiscordChannel {
	return &DiscordChannel{client: client, log: log.With(logger.String("channel", TypeDiscord))}
}

func (c *DiscordChannel) Type() string { return TypeDiscord }

func (c *DiscordChannel) Deliver(ctx context.Context, cfg Config, msg Message) bool {
	webhookURL := cfg.String("webhook_url")
	if webhookURL == "" {
		c.log.Warn("discord webhook_url missing")
		return false
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"content": "**" + msg.Subject + "**\n" + msg.Body}).
		Post(webhookURL)
	if err != nil {
		c.log.Error("discord request failed", logger.Error(err))
		return false
	}
	if !resp.IsSuccess() {
		c.log.Warn("discord rejected message", logger.Int("status", resp.StatusCode()))
		return false
	}
	return true
}

// WebhookChannel posts a JSON envelope to an arbitrary URL.
type WebhookChannel struct {
	client *resty.Client
	source string
	log    logger.Logger
}

// NewWebhookChannel creates the generic webhook channel. Config keys: "url"
// and the optional "secret".
func NewWebhookChannel(client *resty.Client, source string, log logger.Logger) *WebhookChannel {
	return &WebhookChannel{client: client, source: source, log: log.With(logger.String("channel", TypeWebhook))}
}

func (c *WebhookChannel) Type() string { return TypeWebhook }

type webhookPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Source  string `json:"source"`
}

func (c *WebhookChannel) Deliver(ctx context.Context, cfg Config, msg Message) bool {
	target := cfg.String("url")
	if target == "" {
		c.log.Warn("webhook url missing")
		return false
	}

	// The signature covers the exact bytes sent, so the body is marshalled
	// here rather than by resty.
	payload, err := json.Marshal(webhookPayload{Subject: msg.Subject, Body: msg.Body, Source: c.source})
	if err != nil {
		c.log.Error("failed to encode webhook payload", logger.Error(err))
		return false
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	if secret := cfg.String("secret"); secret != "" {
		req.SetHeader(SignatureHeader, Sign(secret, payload))
	}

	resp, err := req.Post(target)
	if err != nil {
		c.log.Error("webhook request failed", logger.Error(err))
		return false
	}
	if !resp.IsSuccess() {
		c.log.Warn("webhook rejected message", logger.Int("status", resp.StatusCode()))
		return false
	}
	return true
}

// Sign returns the X-Signature-256 header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
