// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/mediaplan/pkg/constants"
)

// Round rounds a value to two decimals, the precision every cost, rating and
// percentage is reported at.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// RoundPtr rounds a nullable value, keeping nil as nil.
func RoundPtr(val *float64) *float64 {
	if val == nil {
		return nil
	}
	r := Round(*val)
	return &r
}

// IsZero checks if a value is effectively zero (within tolerance)
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// IsPositive checks if a value is positive (greater than tolerance)
func IsPositive(val float64) bool {
	return val > constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// CalculatePercentage calculates what percentage value is of total.
// A zero total yields 0 rather than a division error.
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * 100
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}

// Ratio returns value/total, or nil when total is zero.
func Ratio(value, total float64) *float64 {
	if total == 0 {
		return nil
	}
	r := value / total
	return &r
}
