// Package notification delivers alert messages over pluggable channels.
//
// Every channel reports delivery as a plain success flag. Transport errors,
// non-success responses and panics are logged and turned into false; they
// never propagate to the caller.
package notification

import (
	"context"
	"fmt"
	"strings"
)

// Channel type identifiers stored in NotificationChannel.ChannelType.
const (
	TypeEmail    = "email"
	TypeTelegram = "telegram"
	TypeDiscord  = "discord"
	TypeWebhook  = "webhook"
	TypeShoutrrr = "shoutrrr"
)

// Types lists every channel type the default dispatcher registers.
func Types() []string {
	return []string{TypeEmail, TypeTelegram, TypeDiscord, TypeWebhook, TypeShoutrrr}
}

// Message is the rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Config is a channel's free-form configuration as stored in the database.
type Config map[string]any

// String returns the trimmed string value of key, or "" when the key is
// absent. Non-string scalars are formatted, so a numeric Telegram chat id
// decoded from JSON still works.
func (c Config) String(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

// Channel is one delivery mechanism. Deliver must return false without any
// network I/O when required configuration is missing.
type Channel interface {
	Type() string
	Deliver(ctx context.Context, cfg Config, msg Message) bool
}

// Target is a single delivery destination for Broadcast.
type Target struct {
	Type   string
	Config Config
	// Label identifies the target in logs, e.g. "rule-email" or "channel:3".
	Label string
}

// Result is the outcome of delivering to one Target.
type Result struct {
	Target  Target
	Success bool
}

// Delivered counts successful results.
func Delivered(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}
