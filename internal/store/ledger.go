package store

import (
	"context"
	"errors"
	"time"

	"membership-bot/internal/domain/subscriptions"
	"membership-bot/internal/domain/tiers"
	"membership-bot/internal/renewal"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore owns the subscriptions table: one row per member.
type LedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// UpsertAndExtend applies a purchase of (tier, duration) to the member's row
// and returns the new expiry. The read-modify-write runs in one transaction
// with a row lock, so concurrent webhook retries for the same member cannot
// interleave. Tier is overwritten unconditionally; remaining active time is
// credited on top of the new purchase.
func (s *LedgerStore) UpsertAndExtend(ctx context.Context, memberID string, tier tiers.Tier, duration time.Duration) (time.Time, error) {
	var newExpiry time.Time

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var existing subscriptions.Subscription
		var existingExpiry *time.Time
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("member_id = ?", memberID).
			First(&existing).Error
		switch {
		case err == nil:
			e := existing.ExpiresAt
			existingExpiry = &e
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first purchase
		default:
			return err
		}

		newExpiry = renewal.ComputeNewExpiry(existingExpiry, now, duration)

		rec := subscriptions.Subscription{
			MemberID:  memberID,
			Tier:      string(tier),
			ExpiresAt: newExpiry,
			UpdatedAt: now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier", "expires_at", "updated_at"}),
		}).Create(&rec).Error
	})

	return newExpiry, err
}

// Get returns the member's row, or nil when none exists.
func (s *LedgerStore) Get(ctx context.Context, memberID string) (*subscriptions.Subscription, error) {
	var rec subscriptions.Subscription
	err := s.db.WithContext(ctx).Where("member_id = ?", memberID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// All returns every ledger row. The dataset is community-sized; no pagination.
func (s *LedgerStore) All(ctx context.Context) ([]subscriptions.Subscription, error) {
	var recs []subscriptions.Subscription
	if err := s.db.WithContext(ctx).Order("member_id").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Expire sets the member's expiry to now, making the row inactive without
// losing it. Used for admin revocation; the reconciler then runs its normal
// expiry path.
func (s *LedgerStore) Expire(ctx context.Context, memberID string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&subscriptions.Subscription{}).
		Where("member_id = ?", memberID).
		Updates(map[string]interface{}{"expires_at": now, "updated_at": now}).Error
}

// Delete removes the member's row after expiry revocation has completed.
func (s *LedgerStore) Delete(ctx context.Context, memberID string) error {
	return s.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Delete(&subscriptions.Subscription{}).Error
}
