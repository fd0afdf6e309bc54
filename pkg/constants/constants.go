// Package constants provides shared constants for the mediaplan application.
package constants

import "time"

// Rounding constants
const (
	// DecimalPrecision is the precision for currency and rating rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Rate card constants
const (
	// ReferenceDuration is the commercial length in seconds that rate card
	// costs and ratings are quoted for.
	ReferenceDuration = 30.0

	// DefaultDiscountPct is the channel discount applied when none is negotiated.
	DefaultDiscountPct = 30.0

	// SlotPrime is the prime-time slot class. Sub-slots such as "A1" share the prefix.
	SlotPrime = "A"

	// SlotNonPrime is the non-prime slot class.
	SlotNonPrime = "B"
)

// Optimization defaults
const (
	// ShareTolerance is the ±band, as a fraction, around every share target.
	ShareTolerance = 0.05

	// SplitSumTolerance is how far a prime/non-prime pair may drift from 100%
	// before it is ignored in favour of the next fallback.
	SplitSumTolerance = 0.01

	// DefaultPrimePct is the global prime share of a channel budget.
	DefaultPrimePct = 80.0

	// DefaultNonPrimePct is the global non-prime share of a channel budget.
	DefaultNonPrimePct = 20.0

	// DefaultMinSpots is the lower bound on spots per row.
	DefaultMinSpots = 0

	// DefaultMaxSpots is the upper bound on spots per row.
	DefaultMaxSpots = 20

	// DefaultBonusAllowPct is the ± band around a channel bonus budget.
	DefaultBonusAllowPct = 0.10

	// DefaultBonusMaxSpots is the upper bound on spots per bonus row.
	DefaultBonusMaxSpots = 20
)

// Solver constants
const (
	// DefaultTimeLimit is the wall-clock budget given to the solver.
	DefaultTimeLimit = 120 * time.Second

	// TimeLimitThreshold is the fraction of the time limit after which a
	// solve is treated as having run out of time.
	TimeLimitThreshold = 0.95

	// TimeLimitSlack is the absolute slack below the limit that also counts
	// as having run out of time.
	TimeLimitSlack = time.Second

	// DefaultSolverBinary is the CBC executable looked up on PATH.
	DefaultSolverBinary = "cbc"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (8 MB)
	DefaultMaxUploadSizeBytes int64 = 8 * 1024 * 1024

	// DefaultCacheTTL is how long rate card lookups are cached
	DefaultCacheTTL = 5 * time.Minute
)
