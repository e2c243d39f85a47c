// Package units provides shared constants, validation and conversions for
// speed and lane distance units.
package units

import (
	"slices"
	"strings"
)

// Display units for ball speed. Results are always stored in mph.
const (
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
	MPS  = "mps"
	FPS  = "fps"
)

// ValidUnits lists every accepted --units value.
var ValidUnits = []string{MPH, KMPH, KPH, MPS, FPS}

// IsValid reports whether unit is one of ValidUnits.
func IsValid(unit string) bool {
	return slices.Contains(ValidUnits, unit)
}

// GetValidUnitsString returns ValidUnits joined for error and help text.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed in mph to targetUnits. Unknown units leave
// the value in mph.
func ConvertSpeed(speedMPH float64, targetUnits string) float64 {
	switch targetUnits {
	case KMPH, KPH:
		return speedMPH * 1.609344
	case MPS:
		return speedMPH * 0.44704
	case FPS:
		return speedMPH / FeetPerSecondToMPH
	default:
		return speedMPH
	}
}
