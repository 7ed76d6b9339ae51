// Package quorum computes whether a fraction-of-roster vote threshold has
// been met.
package quorum

// Met reports whether votes out of roster satisfies the given fractional
// threshold. The comparison is against the raw real-valued product; no
// rounding or ceiling is applied.
//
// An empty roster trivially satisfies any threshold (0 >= 0). Callers gate
// on vote events actually arriving, so a zero-player session can never
// reach quorum in practice.
//
// Precondition: fraction is in (0, 1].
func Met(votes, roster int, fraction float64) bool {
	return float64(votes) >= fraction*float64(roster)
}
