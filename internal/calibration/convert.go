package calibration

import "github.com/smartgarden/gardend/internal/datastore/v2/entities"

// Percent converts a raw reading to 0..100 percent moisture. Raw values past
// either reference point clamp to the bound. A degenerate pair yields 0.
func Percent(raw float64, rawDry, rawWet int) float64 {
	if rawDry == rawWet {
		return 0
	}
	pct := (float64(rawDry) - raw) / float64(rawDry-rawWet) * 100
	return min(max(pct, 0), 100)
}

// Percent converts raw using this calibration.
func (c Calibration) Percent(raw float64) float64 {
	return Percent(raw, c.RawDry, c.RawWet)
}

// Convert returns the user facing value of a metric. Only soil moisture is
// converted; every other metric is already in its display unit.
func Convert(metric string, raw float64, cal Calibration) float64 {
	if metric != entities.MetricSoilMoisture {
		return raw
	}
	return cal.Percent(raw)
}
