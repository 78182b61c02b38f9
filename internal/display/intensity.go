// Package display converts color temperatures into linear channel gains and
// ships them to whatever owns the actual gamma ramp.
package display

import "math"

// Intensity holds linear per-channel gains in [0, 1]
type Intensity struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

// IntensityFromTemperature converts a color temperature in Kelvin into
// channel gains using the standard blackbody approximation, normalized so
// the strongest channel is 1.0. Pure conversion; input is expected to be in
// the 1000-10000 K range the curve produces.
func IntensityFromTemperature(kelvin uint16) Intensity {
	t := float64(kelvin) / 100.0

	var r, g, b float64

	if t <= 66 {
		r = 255
	} else {
		r = 329.698727446 * math.Pow(t-60, -0.1332047592)
	}

	if t <= 66 {
		g = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		g = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}

	switch {
	case t >= 66:
		b = 255
	case t <= 19:
		b = 0
	default:
		b = 138.5177312231*math.Log(t-10) - 305.0447927307
	}

	return Intensity{
		Red:   clamp01(r / 255),
		Green: clamp01(g / 255),
		Blue:  clamp01(b / 255),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
