// Package units provides shared constants and conversions for the raw
// device units reported by the Micron scanning sonar.
package units

import "math"

// Conversion multipliers for raw Micron Sonar header and intensity values.
// The angular fields are reported in 1/16 gradian steps and the intensity
// samples on the device's 0-255 A/D scale, which maps onto 0-80 dB.
const (
	GradToDeg  = 360.0 / 6400.0 // [1/16 gradian] -> [deg]
	DmToM      = 1.0 / 10.0     // [dm] -> [m]
	CountsToDb = 80.0 / 255.0   // [0,255] counts -> [0,80] dB
	DegToRad   = math.Pi / 180.0
	RadToDeg   = 180.0 / math.Pi
)

// GradiansToDegrees converts a raw angular field (1/16 gradian units) to degrees.
func GradiansToDegrees(v float64) float64 {
	return v * GradToDeg
}

// DecimetersToMeters converts a raw range-scale field to meters.
func DecimetersToMeters(v float64) float64 {
	return v * DmToM
}

// CountsToDecibels converts a raw A/D count (0-255) to decibels (0-80).
func CountsToDecibels(v float64) float64 {
	return v * CountsToDb
}

// DegreesToRadians converts degrees to radians.
func DegreesToRadians(v float64) float64 {
	return v * DegToRad
}

// RadiansToDegrees converts radians to degrees.
func RadiansToDegrees(v float64) float64 {
	return v * RadToDeg
}
