package alerting

import (
	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/notification"
)

// Schema describes what alert rules and notification channels can be built
// from. It backs the rule editor in the UI.
type Schema struct {
	Metrics      []MetricSchema      `json:"metrics"`
	Conditions   []ConditionSchema   `json:"conditions"`
	ChannelTypes []ChannelTypeSchema `json:"channel_types"`
}

// MetricSchema describes one alertable metric.
type MetricSchema struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Unit  string `json:"unit"`
	// Calibrated is true when thresholds are compared against a converted
	// value rather than the raw reading.
	Calibrated bool `json:"calibrated"`
}

// ConditionSchema describes a threshold comparison.
type ConditionSchema struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// ChannelTypeSchema describes a notification channel type and its config keys.
type ChannelTypeSchema struct {
	Name   string            `json:"name"`
	Label  string            `json:"label"`
	Config []ConfigKeySchema `json:"config"`
}

// ConfigKeySchema describes one key of a channel's config object.
type ConfigKeySchema struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Secret   bool   `json:"secret,omitempty"`
}

// GetSchema returns the full alerting schema for the UI.
func GetSchema() Schema {
	return Schema{
		Metrics: []MetricSchema{
			{Name: entities.MetricTemperature, Label: "Temperature", Unit: "°C"},
			{Name: entities.MetricHumidity, Label: "Humidity", Unit: "%"},
			{Name: entities.MetricSoilMoisture, Label: "Soil Moisture", Unit: "%", Calibrated: true},
			{Name: entities.MetricLightLux, Label: "Light", Unit: "lx"},
			{Name: entities.MetricCO2, Label: "CO₂", Unit: "ppm"},
		},
		Conditions: []ConditionSchema{
			{Name: entities.ConditionAbove, Label: "above"},
			{Name: entities.ConditionBelow, Label: "below"},
		},
		ChannelTypes: []ChannelTypeSchema{
			{
				Name:  notification.TypeEmail,
				Label: "Email",
				Config: []ConfigKeySchema{
					{Key: "address", Label: "Recipient Address", Required: true},
				},
			},
			{
				Name:  notification.TypeTelegram,
				Label: "Telegram",
				Config: []ConfigKeySchema{
					{Key: "bot_token", Label: "Bot Token", Required: true, Secret: true},
					{Key: "chat_id", Label: "Chat ID", Required: true},
				},
			},
			{
				Name:  notification.TypeDiscord,
				Label: "Discord",
				Config: []ConfigKeySchema{
					{Key: "webhook_url", Label: "Webhook URL", Required: true, Secret: true},
				},
			},
			{
				Name:  notification.TypeWebhook,
				Label: "Webhook",
				Config: []ConfigKeySchema{
					{Key: "url", Label: "URL", Required: true},
					{Key: "secret", Label: "Signing Secret", Secret: true},
				},
			},
			{
				Name:  notification.TypeShoutrrr,
				Label: "Shoutrrr Service URL",
				Config: []ConfigKeySchema{
					{Key: "url", Label: "Service URL", Required: true, Secret: true},
				},
			},
		},
	}
}

// IsValidChannelType reports whether t is a channel type the schema lists.
func IsValidChannelType(t string) bool {
	for _, ct := range GetSchema().ChannelTypes {
		if ct.Name == t {
			return true
		}
	}
	return false
}

// MissingConfig returns the required config keys of channelType that cfg
// leaves empty.
func MissingConfig(channelType string, cfg notification.Config) []string {
	var missing []string
	for _, ct := range GetSchema().ChannelTypes {
		if ct.Name != channelType {
			continue
		}
		for _, key := range ct.Config {
			if key.Required && cfg.String(key.Key) == "" {
				missing = append(missing, key.Key)
			}
		}
	}
	return missing
}
