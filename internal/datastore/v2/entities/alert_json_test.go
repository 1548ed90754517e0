package entities

import (
	"encoding/json"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonKeys(t *testing.T, v any) []string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

func TestAlertRuleJSONKeys(t *testing.T) {
	t.Parallel()

	rule := AlertRule{
		ID:        42,
		SensorID:  3,
		Metric:    MetricTemperature,
		Condition: ConditionAbove,
		Threshold: 30,
		Email:     "grower@example.com",
		Active:    true,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t,
		[]string{"active", "condition", "created_at", "email", "id", "metric", "sensor_id", "threshold"},
		jsonKeys(t, rule))
}

func TestAlertHistoryJSONKeys(t *testing.T) {
	t.Parallel()

	entry := AlertHistory{ID: 1, RuleID: 42, TriggeredAt: time.Now().UTC(), ValueAtTrigger: 31.5}
	assert.Equal(t,
		[]string{"created_at", "id", "rule_id", "triggered_at", "value_at_trigger"},
		jsonKeys(t, entry), "rule is omitted when not preloaded")
}

func TestWateringAndChannelJSONKeys(t *testing.T) {
	t.Parallel()

	before, after := 700.0, 500.0
	event := WateringEvent{ID: 1, PlantID: 2, DetectedAt: time.Now().UTC(), MoistureBefore: &before, MoistureAfter: &after, Source: WateringSourceAuto}
	assert.Contains(t, jsonKeys(t, event), "moisture_before")
	assert.Contains(t, jsonKeys(t, event), "detected_at")

	channel := NotificationChannel{ID: 1, ChannelType: "discord", Config: map[string]any{"webhook_url": "https://example.com"}, Enabled: true}
	assert.Equal(t, []string{"channel_type", "config", "created_at", "enabled", "id"}, jsonKeys(t, channel))
}

func TestMetricCatalog(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidMetric(MetricSoilMoisture))
	assert.False(t, IsValidMetric("ph"))
	assert.True(t, IsValidCondition(ConditionBelow))
	assert.False(t, IsValidCondition("equals"))
	assert.Len(t, Metrics(), 5)
}
