package subscriptions

import "time"

// Subscription is the ledger row for one guild member: at most one per member.
// Created on first successful payment, extended on renewals, deleted by the
// reconciler once expiry has been observed and role revocation completed.
type Subscription struct {
	MemberID  string    `gorm:"primaryKey;column:member_id"`
	Tier      string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

// Active reports whether the subscription still entitles its tier at now.
// An expiry exactly equal to now counts as expired.
func (s Subscription) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
