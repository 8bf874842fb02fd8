package model

// Task はJiraの課題を正規化した表現。
// キーはドメイン内でのみ一意であるため、識別にはDomainとKeyの組を使う。
type Task struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Assignee string `json:"assignee"`
	URL      string `json:"url"`
	Domain   string `json:"domain"`
}

// 欠損フィールドのプレースホルダ
const (
	UnknownValue    = "Unknown"
	UnassignedValue = "Unassigned"
)
