package calendar

import (
	"time"

	"github.com/hitoshi/dashhub/internal/model"
)

const fallbackLink = "https://calendar.google.com"

// FallbackEvents はカレンダーに接続できないときに表示する固定の予定を返す。
// 時刻はnowと同じ日・同じタイムゾーンで組み立てる。
func FallbackEvents(now time.Time) []model.CalendarEvent {
	at := func(hour, minute int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	}
	return []model.CalendarEvent{
		{
			Summary:  "Daily Standup",
			Start:    at(10, 0),
			End:      at(10, 30),
			Location: "Google Meet",
			Link:     fallbackLink,
		},
		{
			Summary:  "Team Lunch",
			Start:    at(13, 0),
			End:      at(14, 0),
			Location: "Office Kitchen",
			Link:     fallbackLink,
		},
		{
			Summary:  "Project Review",
			Start:    at(15, 30),
			End:      at(16, 30),
			Location: "Meeting Room A",
			Link:     fallbackLink,
		},
	}
}
