package conversation

import (
	"time"

	"github.com/iamnishu22/chatapp/internal/domain"
)

// DayGroup is one display bucket of messages sharing a calendar date
type DayGroup struct {
	Label    string
	Messages []domain.Message
}

// GroupByDay buckets messages by the creation timestamp's calendar date in
// local time. "Today" and "Yesterday" take precedence over the literal date
// string. Bucket boundaries come from creation date only, never from
// receipt order.
func GroupByDay(messages []domain.Message, now time.Time) []DayGroup {
	var groups []DayGroup
	var currentDay time.Time

	for _, msg := range messages {
		day := truncateToDay(msg.CreatedAt.Local())
		if len(groups) == 0 || !day.Equal(currentDay) {
			currentDay = day
			groups = append(groups, DayGroup{Label: dayLabel(day, now)})
		}
		last := len(groups) - 1
		groups[last].Messages = append(groups[last].Messages, msg)
	}
	return groups
}

func dayLabel(day, now time.Time) string {
	today := truncateToDay(now.Local())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("02-Jan-2006")
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
