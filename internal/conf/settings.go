// Package conf loads gardend settings from config files, .env files and
// GARDEND_* environment variables.
package conf

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/smartgarden/gardend/internal/errors"
)

const envPrefix = "GARDEND"

// Settings is the full runtime configuration. It is loaded once at startup and
// passed explicitly into constructors.
type Settings struct {
	Server       ServerSettings       `mapstructure:"server" yaml:"server" json:"server"`
	Database     DatabaseSettings     `mapstructure:"database" yaml:"database" json:"database"`
	Alerting     AlertingSettings     `mapstructure:"alerting" yaml:"alerting" json:"alerting"`
	Notification NotificationSettings `mapstructure:"notification" yaml:"notification" json:"notification"`
	MQTT         MQTTSettings         `mapstructure:"mqtt" yaml:"mqtt" json:"mqtt"`
	Log          LogSettings          `mapstructure:"log" yaml:"log" json:"log"`
	Sentry       SentrySettings       `mapstructure:"sentry" yaml:"sentry" json:"sentry"`
}

type ServerSettings struct {
	Listen        string   `mapstructure:"listen" yaml:"listen" json:"listen"`
	ReadTimeout   Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout  Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	EnableMetrics bool     `mapstructure:"enable_metrics" yaml:"enable_metrics" json:"enable_metrics"`
}

// DatabaseSettings selects the gorm dialect. Path is used by sqlite, DSN by
// mysql and postgres.
type DatabaseSettings struct {
	Type         string `mapstructure:"type" yaml:"type" json:"type"`
	Path         string `mapstructure:"path" yaml:"path" json:"path"`
	DSN          string `mapstructure:"dsn" yaml:"dsn" json:"-"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
	Debug        bool   `mapstructure:"debug" yaml:"debug" json:"debug"`
}

type AlertingSettings struct {
	CooldownMinutes      int `mapstructure:"cooldown_minutes" yaml:"cooldown_minutes" json:"cooldown_minutes"`
	HistoryRetentionDays int `mapstructure:"history_retention_days" yaml:"history_retention_days" json:"history_retention_days"`
}

// Cooldown returns the per-rule suppression window.
func (a AlertingSettings) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

type NotificationSettings struct {
	Timeout         Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	SendGridAPIKey  string   `mapstructure:"sendgrid_api_key" yaml:"sendgrid_api_key" json:"-"`
	SendGridBaseURL string   `mapstructure:"sendgrid_base_url" yaml:"sendgrid_base_url" json:"sendgrid_base_url"`
	FromAddress     string   `mapstructure:"from_address" yaml:"from_address" json:"from_address"`
	TelegramAPIURL  string   `mapstructure:"telegram_api_url" yaml:"telegram_api_url" json:"telegram_api_url"`
	WebhookSource   string   `mapstructure:"webhook_source" yaml:"webhook_source" json:"webhook_source"`
	MaxParallel     int      `mapstructure:"max_parallel" yaml:"max_parallel" json:"max_parallel"`
}

type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker" json:"broker"`
	ClientID string `mapstructure:"client_id" yaml:"client_id" json:"client_id"`
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	Topic    string `mapstructure:"topic" yaml:"topic" json:"topic"`
	QoS      int    `mapstructure:"qos" yaml:"qos" json:"qos"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

type SentrySettings struct {
	DSN         string `mapstructure:"dsn" yaml:"dsn" json:"-"`
	Environment string `mapstructure:"environment" yaml:"environment" json:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "gardend.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.debug", false)

	v.SetDefault("alerting.cooldown_minutes", 60)
	v.SetDefault("alerting.history_retention_days", 90)

	v.SetDefault("notification.timeout", "10s")
	v.SetDefault("notification.sendgrid_api_key", "")
	v.SetDefault("notification.sendgrid_base_url", "https://api.sendgrid.com")
	v.SetDefault("notification.from_address", "alerts@smartgarden.local")
	v.SetDefault("notification.telegram_api_url", "https://api.telegram.org")
	v.SetDefault("notification.webhook_source", "smart-garden")
	v.SetDefault("notification.max_parallel", 8)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "gardend")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "smartgarden/+/telemetry")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}

// Load reads settings. configFile may be empty, in which case config.yaml is
// searched for in the working directory, $HOME/.config/gardend and
// /etc/gardend. A missing config file is not an error.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "gardend"))
		}
		v.AddConfigPath("/etc/gardend")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfig).
				Context("config_file", configFile).
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfig).
			Context("operation", "unmarshal").
			Build()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (s *Settings) Validate() error {
	switch s.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		return invalid("database.type", s.Database.Type, "must be sqlite, mysql or postgres")
	}
	if s.Database.Type != "sqlite" && s.Database.DSN == "" {
		return invalid("database.dsn", "", "required for "+s.Database.Type)
	}
	if s.Alerting.CooldownMinutes < 0 {
		return invalid("alerting.cooldown_minutes", s.Alerting.CooldownMinutes, "must not be negative")
	}
	if s.Notification.Timeout.Std() <= 0 {
		return invalid("notification.timeout", s.Notification.Timeout.String(), "must be positive")
	}
	if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
		return invalid("mqtt.qos", s.MQTT.QoS, "must be 0, 1 or 2")
	}
	return nil
}

func invalid(key string, value any, reason string) error {
	return errors.Newf("invalid setting %s: %s", key, reason).
		Component("conf").
		Category(errors.CategoryConfig).
		Context("key", key).
		Context("value", value).
		Build()
}
