package alerting

import "time"

// Measurement is one metric value from a telemetry batch, as reported.
type Measurement struct {
	Metric string
	Value  float64
}

// AlertEvent describes a rule breach being notified.
type AlertEvent struct {
	SensorID uint
	Metric   string
	// Value is the raw reported value; it is what history records.
	Value float64
	// CompareValue is the value compared with the threshold. It differs from
	// Value only for soil moisture, where it is a calibrated percentage.
	CompareValue float64
	TriggeredAt  time.Time
	// Test marks events produced by the rule test endpoint.
	Test bool
}
