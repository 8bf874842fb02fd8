// Package demo はデモモード用の架空のデータセットを提供する。
// スクリーンショット撮影などで個人情報を出さずに画面を埋めるために使う。
package demo

import (
	"time"

	"github.com/hitoshi/dashhub/internal/model"
)

const (
	demoAuthor    = "demo-user"
	demoAssignee  = "Demo User"
	demoJiraURL   = "https://acme-corp.atlassian.net"
	demoJiraHost  = "acme-corp.atlassian.net"
	demoEventLink = "https://calendar.google.com/calendar/event?eid="

	// UnreadCount はデモモードで返すGmail未読数。
	UnreadCount = 12
	// AuthMessage はデモモードの認可状態メッセージ。
	AuthMessage = "Demo mode - Google account simulated as authorized"
)

// Dataset は現在時刻を基準にデモデータを組み立てる。
type Dataset struct {
	now func() time.Time
}

// New はDatasetを生成する。nowがnilの場合はtime.Nowを使う。
func New(now func() time.Time) *Dataset {
	if now == nil {
		now = time.Now
	}
	return &Dataset{now: now}
}

func clean() *bool {
	v := true
	return &v
}

func pr(title, repo string, number, author string, createdAt time.Time, labels ...model.Label) model.PullRequest {
	return model.PullRequest{
		Title:          title,
		URL:            "https://github.com/" + repo + "/pull/" + number,
		Repo:           repo,
		Author:         author,
		CreatedAt:      createdAt,
		State:          "open",
		Labels:         labels,
		Mergeable:      clean(),
		MergeableState: "clean",
	}
}

// ReviewRequested はレビュー依頼中のPR 3件を返す。
func (d *Dataset) ReviewRequested() []model.PullRequest {
	now := d.now().UTC()
	return []model.PullRequest{
		pr("feat: Add OAuth2 support for third-party integrations", "acme-corp/backend-api", "1234", "sarah-dev",
			now.Add(-2*time.Hour),
			model.Label{Name: "feature", Color: "0e8a16"},
			model.Label{Name: "needs-review", Color: "fbca04"},
		),
		pr("fix: Resolve race condition in cache invalidation", "acme-corp/cache-service", "89", "mike-engineer",
			now.Add(-5*time.Hour),
			model.Label{Name: "bug", Color: "d73a4a"},
			model.Label{Name: "priority: high", Color: "b60205"},
		),
		pr("refactor: Migrate database queries to async", "acme-corp/data-layer", "456", "alex-backend",
			now.Add(-24*time.Hour),
			model.Label{Name: "refactor", Color: "5319e7"},
			model.Label{Name: "performance", Color: "0052cc"},
		),
	}
}

// Authored は自分が作成したPR 2件を返す。
func (d *Dataset) Authored() []model.PullRequest {
	now := d.now().UTC()
	return []model.PullRequest{
		pr("feat: Implement real-time notifications via WebSocket", "acme-corp/frontend-app", "567", demoAuthor,
			now.Add(-3*time.Hour),
			model.Label{Name: "feature", Color: "0e8a16"},
			model.Label{Name: "frontend", Color: "1d76db"},
		),
		pr("docs: Update README with deployment instructions", "acme-corp/infrastructure", "123", demoAuthor,
			now.Add(-48*time.Hour),
			model.Label{Name: "documentation", Color: "0075ca"},
		),
	}
}

// Tasks は担当中のJira課題 5件を返す。
func (d *Dataset) Tasks() []model.Task {
	task := func(key, summary, status, priority string) model.Task {
		return model.Task{
			Key:      key,
			Summary:  summary,
			Status:   status,
			Priority: priority,
			Assignee: demoAssignee,
			URL:      demoJiraURL + "/browse/" + key,
			Domain:   demoJiraHost,
		}
	}
	return []model.Task{
		task("PROJ-1234", "Implement user dashboard analytics", "In Progress", "High"),
		task("PROJ-1189", "Fix login redirect loop on Safari", "In Progress", "Highest"),
		task("PROJ-1156", "Add export to CSV feature for reports", "To Do", "Medium"),
		task("PROJ-1098", "Optimize image compression pipeline", "In Progress", "Medium"),
		task("PROJ-1045", "Review and update API rate limiting", "To Do", "Low"),
	}
}

// Events は今日の予定 5件をローカル時刻で返す。
func (d *Dataset) Events() []model.CalendarEvent {
	now := d.now()
	at := func(hour, minute int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	}
	return []model.CalendarEvent{
		{Summary: "Daily Standup", Start: at(9, 30), End: at(9, 45), Location: "Zoom", Link: demoEventLink + "demo1"},
		{Summary: "Sprint Planning", Start: at(10, 0), End: at(11, 30), Location: "Conference Room A", Link: demoEventLink + "demo2"},
		{Summary: "1:1 with Engineering Manager", Start: at(14, 0), End: at(14, 30), Location: "Google Meet", Link: demoEventLink + "demo3"},
		{Summary: "Code Review Session", Start: at(15, 30), End: at(16, 30), Link: demoEventLink + "demo4"},
		{Summary: "Team Retrospective", Start: at(17, 0), End: at(18, 0), Location: "Zoom", Link: demoEventLink + "demo5"},
	}
}

// AuthStatus は認可済みを模した認可状態を返す。
func (d *Dataset) AuthStatus() model.AuthStatus {
	return model.AuthStatus{
		Status:  model.AuthStateAuthorized,
		Message: AuthMessage,
	}
}
