package training

import "time"

// Submission statuses set by coach review.
const (
	StatusPending   = "pending"
	StatusApproved  = "approve"
	StatusNeedsWork = "needs_work"
	StatusRejected  = "reject"
)

// Submission is a member-posted training video awaiting coach review.
type Submission struct {
	ID         uint   `gorm:"primaryKey"`
	MemberID   string `gorm:"index;not null"`
	MessageURL string `gorm:"not null"`
	Status     string `gorm:"not null;default:pending"`
	CoachNote  *string
	CreatedAt  time.Time
}

// Completion is one logged DONE reply after a training session.
type Completion struct {
	ID       uint   `gorm:"primaryKey"`
	MemberID string `gorm:"index;not null"`
	Source   string `gorm:"not null;default:done"`
	DoneAt   time.Time
}
