package alerting

import (
	"fmt"
	"math"
	"strconv"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
)

// Breached reports whether value crosses the rule's threshold. Both
// comparisons are strict, so a value equal to the threshold never fires.
func Breached(rule *entities.AlertRule, value float64) bool {
	switch rule.Condition {
	case entities.ConditionAbove:
		return value > rule.Threshold
	case entities.ConditionBelow:
		return value < rule.Threshold
	default:
		return false
	}
}

func direction(rule *entities.AlertRule) string {
	if rule.Condition == entities.ConditionAbove {
		return directionAbove
	}
	return directionBelow
}

// FormatMessage renders the notification subject and body for an event.
// Soil moisture is shown as a calibrated percentage, other metrics as
// reported.
func FormatMessage(rule *entities.AlertRule, event *AlertEvent) (subject, body string) {
	dir := direction(rule)
	threshold := formatNumber(rule.Threshold)

	subject = fmt.Sprintf("Smart Garden Alert: %s %s %s", rule.Metric, dir, threshold)
	if event.Test {
		subject = "[Test] " + subject
	}

	display := formatNumber(event.Value)
	if rule.Metric == entities.MetricSoilMoisture {
		display = fmt.Sprintf("%.1f%%", event.CompareValue)
	}
	body = fmt.Sprintf("Sensor %d reported %s = %s, which is %s your threshold of %s.",
		event.SensorID, rule.Metric, display, dir, threshold)
	return subject, body
}

// formatNumber keeps one decimal for whole numbers so thresholds read as
// "30.0" rather than "30".
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
