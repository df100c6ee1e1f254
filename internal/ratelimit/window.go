// Package ratelimit implements the sliding-window counter used to cap
// per-session chat requests over a trailing duration.
package ratelimit

import "time"

// Prune returns the timestamps (unix milliseconds) still inside the trailing
// window ending at now. Entries exactly one window old fall out; order is
// preserved.
func Prune(stamps []int64, now time.Time, window time.Duration) []int64 {
	cutoff := now.Add(-window).UnixMilli()
	kept := make([]int64, 0, len(stamps))
	for _, t := range stamps {
		if t > cutoff {
			kept = append(kept, t)
		}
	}
	return kept
}

// Allowed reports whether a request on top of the given (already pruned)
// window stays under the limit.
func Allowed(stamps []int64, limit int) bool {
	return len(stamps) < limit
}
