package billing

import "time"

// ProcessedEvent records a Stripe event ID the webhook has already acted on.
// Written on first sight, never updated, consulted only as an existence check
// so provider-side retries cannot double-apply a payment.
type ProcessedEvent struct {
	EventID    string `gorm:"primaryKey;column:event_id"`
	ReceivedAt time.Time
}
