package entities

import "time"

// NotificationChannel is a user-configured delivery target. Config holds the
// channel specific keys (bot_token, webhook_url, url, secret, address, ...).
type NotificationChannel struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ChannelType string         `gorm:"size:32;not null" json:"channel_type"`
	Config      map[string]any `gorm:"serializer:json;type:text" json:"config"`
	Enabled     bool           `gorm:"not null;index" json:"enabled"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (NotificationChannel) TableName() string {
	return "notification_channels"
}
