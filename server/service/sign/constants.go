package sign

import "time"

const (
	// DefaultConcurrency bounds AnalyzeBatch when the config leaves it unset.
	DefaultConcurrency = 4

	// DefaultCacheTTL is how long an extraction stays cached.
	DefaultCacheTTL = time.Hour

	// MaxTextLength rejects inputs that cannot be a sign.
	MaxTextLength = 16 * 1024

	// NoLead makes the timer warning fire at expiry.
	NoLead time.Duration = -1
)

// Operation names used in logs and metrics.
const (
	OpAnalyze  = "analyze"
	OpBatch    = "analyze_batch"
	OpReadSign = "read_sign"
	OpExtract  = "extract"
)
