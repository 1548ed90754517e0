// Package calibration maps raw soil-moisture ADC counts to a percentage.
//
// Each sensor's dry and wet reference points come from a chain of sources.
// The first source that knows the pair wins. A Resolver always returns a
// usable pair, falling back to defaults for the sensor's ADC resolution.
package calibration

// Supported ADC resolutions.
const (
	ADCBits10 = 10
	ADCBits12 = 12
)

// Factory reference points for capacitive probes.
const (
	Default10BitDry = 800
	Default10BitWet = 400
	Default12BitDry = 3200
	Default12BitWet = 600
)

// Calibration is a dry/wet pair of raw ADC readings. Capacitive probes read
// lower when wetter, so RawDry is normally greater than RawWet.
type Calibration struct {
	RawDry int `json:"raw_dry"`
	RawWet int `json:"raw_wet"`
}

// IsZero reports whether neither reference point is set.
func (c Calibration) IsZero() bool {
	return c.RawDry == 0 && c.RawWet == 0
}

// Is12Bit reports whether adcBits selects the 12-bit resolution class. Any
// other value, including zero for unknown, is treated as 10-bit.
func Is12Bit(adcBits int) bool {
	return adcBits == ADCBits12
}

// IsSupportedADCBits reports whether bits is a resolution a node may declare.
func IsSupportedADCBits(bits int) bool {
	return bits == ADCBits10 || bits == ADCBits12
}

// DefaultFor returns the factory pair for a resolution.
func DefaultFor(adcBits int) Calibration {
	if Is12Bit(adcBits) {
		return Calibration{RawDry: Default12BitDry, RawWet: Default12BitWet}
	}
	return Calibration{RawDry: Default10BitDry, RawWet: Default10BitWet}
}
