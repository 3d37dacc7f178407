package billing

import "time"

// Payment is the immutable history row for one completed checkout session.
// The ledger row is deleted after expiry; this table is what keeps the
// purchase auditable.
type Payment struct {
	ID              uint   `gorm:"primaryKey"`
	MemberID        string `gorm:"index;not null"`
	Tier            string
	StripeSessionID string `gorm:"uniqueIndex;not null"`
	StripeEventID   string
	AmountTotal     int64
	Currency        string
	Status          string
	CreatedAt       time.Time
}
