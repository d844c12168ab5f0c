// Package retention tracks kept frames for duplicate queries.
package retention

// Retention store constants
const (
	// Hamming distance on the 64-bit perception hash above which a
	// record is skipped without running the full scorers. Conservative:
	// only clearly unrelated frames are filtered.
	DefaultMaxHashDistance = 40
)
