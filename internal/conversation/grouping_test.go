package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnishu22/chatapp/internal/domain"
)

func TestGroupByDayLabels(t *testing.T) {
	now := time.Date(2025, time.March, 10, 15, 0, 0, 0, time.Local)

	msgs := []domain.Message{
		{ID: "m1", CreatedAt: now.AddDate(0, 0, -5)},
		{ID: "m2", CreatedAt: now.AddDate(0, 0, -5).Add(time.Hour)},
		{ID: "m3", CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "m4", CreatedAt: now.Add(-time.Hour)},
		{ID: "m5", CreatedAt: now},
	}

	groups := GroupByDay(msgs, now)

	require.Len(t, groups, 3)
	assert.Equal(t, "05-Mar-2025", groups[0].Label)
	assert.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "Yesterday", groups[1].Label)
	assert.Equal(t, "Today", groups[2].Label)
	assert.Len(t, groups[2].Messages, 2)
}

func TestGroupByDayEmptyLog(t *testing.T) {
	assert.Empty(t, GroupByDay(nil, time.Now()))
}

func TestGroupByDayBoundaryJustBeforeMidnight(t *testing.T) {
	now := time.Date(2025, time.March, 10, 0, 5, 0, 0, time.Local)

	msgs := []domain.Message{
		{ID: "m1", CreatedAt: now.Add(-10 * time.Minute)}, // 23:55 the day before
		{ID: "m2", CreatedAt: now},
	}

	groups := GroupByDay(msgs, now)

	require.Len(t, groups, 2)
	assert.Equal(t, "Yesterday", groups[0].Label)
	assert.Equal(t, "Today", groups[1].Label)
}
