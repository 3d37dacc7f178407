package renewal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeNewExpiry(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	month := 30 * 24 * time.Hour

	future := now.Add(10 * 24 * time.Hour)
	past := now.Add(-5 * 24 * time.Hour)

	tests := []struct {
		name     string
		existing *time.Time
		duration time.Duration
		want     time.Time
	}{
		{
			name:     "first purchase starts from now",
			existing: nil,
			duration: month,
			want:     now.Add(month),
		},
		{
			name:     "active subscription extends from current expiry",
			existing: &future,
			duration: month,
			want:     future.Add(month),
		},
		{
			name:     "lapsed subscription restarts from now",
			existing: &past,
			duration: month,
			want:     now.Add(month),
		},
		{
			name:     "expiry exactly now counts as lapsed",
			existing: &now,
			duration: month,
			want:     now.Add(month),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNewExpiry(tt.existing, now, tt.duration)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeNewExpiryStacksRenewals(t *testing.T) {
	// Day 0: buy 30 days. Day 10: buy another 30. Expiry lands on day 60.
	day0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	month := 30 * 24 * time.Hour

	first := ComputeNewExpiry(nil, day0, month)
	assert.Equal(t, day0.Add(month), first)

	day10 := day0.Add(10 * 24 * time.Hour)
	second := ComputeNewExpiry(&first, day10, month)
	assert.Equal(t, day0.Add(60*24*time.Hour), second)
}
