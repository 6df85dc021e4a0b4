// Package dali implements the DALI bus scan/discovery collector,
// device-info read with degraded-identity fallback, arc-power/brightness
// conversion, and fade-time register encoding.
package dali

import (
	"math"

	"vdchost/x/mathx"
)

// BrightnessToArcpower converts a 0..255 brightness value to a DALI
// arc-power level (0..254) using the bus's logarithmic dimming curve
//.
func BrightnessToArcpower(brightness float64) float64 {
	intensity := mathx.Clamp(brightness/255, 0, 1)
	return math.Log10(9*intensity+1) * 254
}

// ArcpowerToBrightness is the inverse of BrightnessToArcpower.
func ArcpowerToBrightness(arc float64) float64 {
	intensity := (math.Pow(10, arc/254) - 1) / 9
	return intensity * 255
}

// FadeTimeRegister encodes a transition time as the DALI fade-time
// register value: x = round(log2((t/0.5s)^2)), clamped to >= 1; 0 means
// no fade at all (reserved for the zero-duration case).
func FadeTimeRegister(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	ratio := seconds / 0.5
	x := int(math.Round(math.Log2(ratio * ratio)))
	return mathx.Max(x, 1)
}
