package store

import (
	"context"
	"errors"
	"time"

	"membership-bot/internal/domain/training"

	"gorm.io/gorm"
)

// TrainingStore owns video submissions and DONE completions.
type TrainingStore struct {
	db *gorm.DB
}

func NewTrainingStore(db *gorm.DB) *TrainingStore {
	return &TrainingStore{db: db}
}

func (s *TrainingStore) AddSubmission(ctx context.Context, memberID, messageURL string) (uint, error) {
	sub := training.Submission{
		MemberID:   memberID,
		MessageURL: messageURL,
		Status:     training.StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return 0, err
	}
	return sub.ID, nil
}

// SetSubmissionStatus updates a submission after coach review and returns the
// updated row, or nil when the ID does not exist.
func (s *TrainingStore) SetSubmissionStatus(ctx context.Context, id uint, status string, note *string) (*training.Submission, error) {
	var sub training.Submission
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": status, "coach_note": note}
	if err := s.db.WithContext(ctx).Model(&sub).Updates(updates).Error; err != nil {
		return nil, err
	}
	sub.Status = status
	sub.CoachNote = note
	return &sub, nil
}

func (s *TrainingStore) AddCompletion(ctx context.Context, memberID, source string) error {
	return s.db.WithContext(ctx).Create(&training.Completion{
		MemberID: memberID,
		Source:   source,
		DoneAt:   time.Now().UTC(),
	}).Error
}

func (s *TrainingStore) CompletionsSince(ctx context.Context, memberID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&training.Completion{}).
		Where("member_id = ? AND done_at >= ?", memberID, since).
		Count(&n).Error
	return n, err
}

func (s *TrainingStore) CompletionsTotal(ctx context.Context, memberID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&training.Completion{}).
		Where("member_id = ?", memberID).
		Count(&n).Error
	return n, err
}

// LeaderboardRow is one member's DONE count in the window.
type LeaderboardRow struct {
	MemberID string
	Count    int64
}

func (s *TrainingStore) Leaderboard(ctx context.Context, since time.Time, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := s.db.WithContext(ctx).Model(&training.Completion{}).
		Select("member_id, COUNT(*) AS count").
		Where("done_at >= ?", since).
		Group("member_id").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
