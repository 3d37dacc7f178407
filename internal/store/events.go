package store

import (
	"context"
	"time"

	"membership-bot/internal/domain/billing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventStore owns the processed_events dedup table.
type EventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// MarkProcessed records the event ID and reports whether this was its first
// sighting. Insert-first with ON CONFLICT DO NOTHING, so two concurrent
// deliveries of the same event race on the primary key and exactly one wins.
func (s *EventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&billing.ProcessedEvent{EventID: eventID, ReceivedAt: time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Forget releases an event ID so a provider retry can reprocess it. Used only
// to compensate when the ledger write that followed MarkProcessed failed.
func (s *EventStore) Forget(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&billing.ProcessedEvent{}).Error
}
