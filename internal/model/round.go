package model

import "math"

// RoundTo rounds value half away from zero to the given number of decimals.
func RoundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
