package units

// Lane distances are measured in inches internally and entered in feet.
const (
	InchesPerFoot = 12.0

	// FeetPerSecondToMPH approximates 3600/5280.
	FeetPerSecondToMPH = 0.681818
)

// FeetToInches converts feet to inches.
func FeetToInches(ft float64) float64 {
	return ft * InchesPerFoot
}

// InchesToFeet converts inches to feet.
func InchesToFeet(in float64) float64 {
	return in / InchesPerFoot
}

// InchesPerSecondToMPH converts a down-lane speed in in/s to mph.
func InchesPerSecondToMPH(inPerSec float64) float64 {
	return inPerSec / InchesPerFoot * FeetPerSecondToMPH
}
