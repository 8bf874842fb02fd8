package model

import "time"

// CalendarEvent はGoogleカレンダーの予定を正規化した表現。
// 終日予定（日付のみ）も時刻付き予定も同じStart/Endで表す。
type CalendarEvent struct {
	Summary  string    `json:"summary"`
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	AllDay   bool      `json:"all_day"`
	Location string    `json:"location,omitempty"`
	Link     string    `json:"html_link"`
}

// UnreadCount はGmail受信トレイの未読数。
type UnreadCount struct {
	Count int `json:"count"`
}
