package calendar

import (
	"fmt"
	"time"

	"github.com/hitoshi/dashhub/internal/model"
	"github.com/hitoshi/dashhub/internal/security"
)

const noTitle = "No title"

// parseEventTime は時刻付き（RFC3339）または日付のみ（UTC 0時とみなす）の値を解析する。
func parseEventTime(et eventTime) (time.Time, bool, error) {
	if et.DateTime != "" {
		t, err := time.Parse(time.RFC3339, et.DateTime)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid dateTime %q: %w", et.DateTime, err)
		}
		return t, false, nil
	}
	if et.Date != "" {
		t, err := time.ParseInLocation(time.DateOnly, et.Date, time.UTC)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid date %q: %w", et.Date, err)
		}
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("event time is empty")
}

// toEvent は上流の予定を共通の予定表現に変換する。
func toEvent(e Event, sanitizer *security.TextSanitizer) (model.CalendarEvent, error) {
	start, allDay, err := parseEventTime(e.Start)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("start: %w", err)
	}
	end, _, err := parseEventTime(e.End)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("end: %w", err)
	}

	summary := sanitizer.Clean(e.Summary)
	if summary == "" {
		summary = noTitle
	}
	return model.CalendarEvent{
		Summary:  summary,
		Start:    start,
		End:      end,
		AllDay:   allDay,
		Location: sanitizer.Clean(e.Location),
		Link:     e.HTMLLink,
	}, nil
}
