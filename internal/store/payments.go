package store

import (
	"context"

	"membership-bot/internal/domain/billing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentStore owns the append-only payment history table.
type PaymentStore struct {
	db *gorm.DB
}

func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// Record inserts the payment row, updating only the status when the session
// was already recorded (Stripe may deliver the same session twice).
func (s *PaymentStore) Record(ctx context.Context, p *billing.Payment) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(p).Error
}

// List returns payment history, newest first.
func (s *PaymentStore) List(ctx context.Context, limit int) ([]billing.Payment, error) {
	var out []billing.Payment
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
