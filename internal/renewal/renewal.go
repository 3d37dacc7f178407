// Package renewal holds the expiry arithmetic for subscription purchases.
package renewal

import "time"

// ComputeNewExpiry returns the expiry after buying duration d at now.
// A still-active subscription is extended (the new period is appended after
// the current expiry); an absent or lapsed one starts from now. An expiry
// exactly equal to now counts as expired: the comparison is strict.
func ComputeNewExpiry(existing *time.Time, now time.Time, d time.Duration) time.Time {
	base := now
	if existing != nil && existing.After(now) {
		base = *existing
	}
	return base.Add(d)
}
