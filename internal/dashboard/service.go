// Package dashboard は各ソースの集約処理を1つの窓口にまとめる。
// デモモードが有効な場合はどの集約処理より先に判定し、固定のデータセットを返す。
package dashboard

import (
	"context"
	"time"

	"github.com/hitoshi/dashhub/internal/demo"
	"github.com/hitoshi/dashhub/internal/model"
)

// 認可状態APIのメッセージ
const (
	MessageAuthorized    = "Google account is authorized"
	MessageExpired       = "Google token has expired. Please re-authorize."
	MessageNotConfigured = "Google account is not configured"
)

// PullRequestSource はGitHubのPR一覧を返すインターフェース。
type PullRequestSource interface {
	ReviewRequested(ctx context.Context) []model.PullRequest
	Authored(ctx context.Context) []model.PullRequest
}

// TaskSource はJiraの担当課題を返すインターフェース。
type TaskSource interface {
	AssignedTasks(ctx context.Context) []model.Task
}

// EventSource は今日の予定を返すインターフェース。
type EventSource interface {
	TodaysEvents(ctx context.Context) []model.CalendarEvent
}

// UnreadSource はGmail未読数を返すインターフェース。
type UnreadSource interface {
	UnreadCount(ctx context.Context) int
}

// Authorization はGoogle委任認可の状態取得と認可フローのインターフェース。
type Authorization interface {
	Status(ctx context.Context) model.AuthState
	BeginAuthorization(redirectURL string) (string, bool)
	CompleteAuthorization(ctx context.Context, code, state string) bool
}

// Deps はServiceが利用するソース群。
type Deps struct {
	PullRequests PullRequestSource
	Tasks        TaskSource
	Events       EventSource
	Unread       UnreadSource
	Auth         Authorization

	// Demo が非nilの場合はデモモードとして扱う。
	Demo *demo.Dataset
	// RedirectURL はOAuthコールバックの絶対URL。
	RedirectURL string
	// Timeout は1回の集約処理全体の上限。0以下の場合は呼び出し元のコンテキストに従う。
	Timeout time.Duration
}

// Service はダッシュボード全体の読み取り窓口。
// どのメソッドもエラーを返さず、取得できなかったソースは空またはフォールバック値になる。
type Service struct {
	deps Deps
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// bound は集約処理全体の期限をコンテキストに設定する。
func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deps.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.deps.Timeout)
}

// DemoMode はデモモードが有効かを返す。
func (s *Service) DemoMode() bool {
	return s.deps.Demo != nil
}

// ReviewRequests はレビュー依頼中のPRを返す。
func (s *Service) ReviewRequests(ctx context.Context) []model.PullRequest {
	if s.DemoMode() {
		return s.deps.Demo.ReviewRequested()
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.deps.PullRequests.ReviewRequested(ctx)
}

// AuthoredPullRequests は自分が作成したPRを返す。
func (s *Service) AuthoredPullRequests(ctx context.Context) []model.PullRequest {
	if s.DemoMode() {
		return s.deps.Demo.Authored()
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.deps.PullRequests.Authored(ctx)
}

// Tasks はJiraの担当課題を返す。
func (s *Service) Tasks(ctx context.Context) []model.Task {
	if s.DemoMode() {
		return s.deps.Demo.Tasks()
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.deps.Tasks.AssignedTasks(ctx)
}

// Events は今日の予定を返す。
func (s *Service) Events(ctx context.Context) []model.CalendarEvent {
	if s.DemoMode() {
		return s.deps.Demo.Events()
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.deps.Events.TodaysEvents(ctx)
}

// UnreadCount はGmail受信トレイの未読数を返す。
func (s *Service) UnreadCount(ctx context.Context) model.UnreadCount {
	if s.DemoMode() {
		return model.UnreadCount{Count: demo.UnreadCount}
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return model.UnreadCount{Count: s.deps.Unread.UnreadCount(ctx)}
}

// AuthStatus はGoogle認可状態を返す。
// 認可済みでない場合は、クライアント設定があれば同意画面のURLを添える。
func (s *Service) AuthStatus(ctx context.Context) model.AuthStatus {
	if s.DemoMode() {
		return s.deps.Demo.AuthStatus()
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	state := s.deps.Auth.Status(ctx)
	switch state {
	case model.AuthStateAuthorized:
		return model.AuthStatus{Status: state, Message: MessageAuthorized}
	case model.AuthStateExpired:
		return model.AuthStatus{Status: state, Message: MessageExpired, AuthURL: s.authURL()}
	default:
		return model.AuthStatus{Status: model.AuthStateNotConfigured, Message: MessageNotConfigured, AuthURL: s.authURL()}
	}
}

func (s *Service) authURL() string {
	url, ok := s.deps.Auth.BeginAuthorization(s.deps.RedirectURL)
	if !ok {
		return ""
	}
	return url
}

// CompleteAuthorization はOAuthコールバックの認可コードを交換し、認可情報を保存する。
func (s *Service) CompleteAuthorization(ctx context.Context, code, state string) bool {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.deps.Auth.CompleteAuthorization(ctx, code, state)
}
