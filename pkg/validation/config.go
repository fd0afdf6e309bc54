package validation

import (
	"fmt"

	"github.com/iwvelando/mediaplan/pkg/constants"
	"github.com/iwvelando/mediaplan/pkg/mathutil"
)

// ValidateSpotBounds checks the per-row spot range.
func ValidateSpotBounds(minSpots, maxSpots int) []string {
	var warnings []string
	if minSpots < 0 {
		warnings = append(warnings, fmt.Sprintf("Minimum spots %d is negative", minSpots))
	}
	if maxSpots < minSpots {
		warnings = append(warnings, fmt.Sprintf("Maximum spots %d is below minimum spots %d", maxSpots, minSpots))
	}
	return warnings
}

// ValidateSlotSplit checks that a prime/non-prime pair adds up to 100. Pairs
// that do not are skipped in favour of the next fallback at plan time.
func ValidateSlotSplit(name string, primePct, nonPrimePct float64) []string {
	var warnings []string
	if primePct < 0 || nonPrimePct < 0 {
		warnings = append(warnings, fmt.Sprintf("%s: prime/non-prime split %.2f/%.2f has a negative share", name, primePct, nonPrimePct))
	}
	if !mathutil.WithinTolerance(primePct+nonPrimePct, constants.PercentageMultiplier, constants.SplitSumTolerance) {
		warnings = append(warnings, fmt.Sprintf("%s: prime/non-prime split %.2f/%.2f does not sum to 100 and will be ignored", name, primePct, nonPrimePct))
	}
	return warnings
}

// ValidatePercentage checks that a percentage lies in [0, 100].
func ValidatePercentage(name string, pct float64) []string {
	if pct < 0 || pct > constants.PercentageMultiplier {
		return []string{fmt.Sprintf("%s: %.2f is outside 0-100", name, pct)}
	}
	return nil
}
