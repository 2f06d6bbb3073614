package utils

import (
	"fmt"
	"math"
)

const bytesPerGB = 1024 * 1024 * 1024

// Round rounds a float64 value to 2 decimal places
func Round(val float64) float64 {
	// Use proper rounding that works for both positive and negative numbers
	return math.Round(val*100) / 100
}

// BytesToGB converts a byte count to gibibytes rounded to 2 decimal places
func BytesToGB(b uint64) float64 {
	return Round(float64(b) / bytesPerGB)
}

// FormatGB renders a byte count the way the inventory API expects capacities,
// e.g. "15.54 GB"
func FormatGB(b uint64) string {
	return fmt.Sprintf("%.2f GB", BytesToGB(b))
}
