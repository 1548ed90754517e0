// Package watering detects watering from soil-moisture drops and maintains
// per-plant watering schedules.
package watering

import (
	"github.com/smartgarden/gardend/internal/calibration"
)

// dropFraction is the share of the ADC span a reading must fall by between
// consecutive samples to count as watering.
const dropFraction = 0.2

// ADC spans used by the heuristic. They match the default dry/wet spread of
// each resolution.
const (
	adcRange10Bit = 400
	adcRange12Bit = 2600
)

// ADCRange returns the raw span used by the watering heuristic.
func ADCRange(adcBits int) float64 {
	if calibration.Is12Bit(adcBits) {
		return adcRange12Bit
	}
	return adcRange10Bit
}

// IsWatering reports whether a drop from prevRaw to currRaw is large enough to
// be a watering. It assumes the probe reads lower when wetter, the same
// polarity as the default calibrations.
func IsWatering(prevRaw, currRaw float64, adcBits int) bool {
	return prevRaw-currRaw > ADCRange(adcBits)*dropFraction
}
