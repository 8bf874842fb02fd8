// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/dashhub/internal/model"
)

// DashboardService はダッシュボードハンドラーが必要とするサービスインターフェース。
// どのメソッドもエラーを返さない（取得できなかったソースは空またはフォールバック値）。
type DashboardService interface {
	ReviewRequests(ctx context.Context) []model.PullRequest
	AuthoredPullRequests(ctx context.Context) []model.PullRequest
	Tasks(ctx context.Context) []model.Task
	Events(ctx context.Context) []model.CalendarEvent
	UnreadCount(ctx context.Context) model.UnreadCount
	AuthStatus(ctx context.Context) model.AuthStatus
	CompleteAuthorization(ctx context.Context, code, state string) bool
}

// DashboardHandler は各ソースの集約結果を返すHTTPハンドラー。
type DashboardHandler struct {
	service DashboardService
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// ReviewRequests はレビュー依頼中のPR一覧を返す。
// GET /api/v1/github/prs
func (h *DashboardHandler) ReviewRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ReviewRequests(r.Context()))
}

// AuthoredPullRequests は自分が作成したPR一覧を返す。
// GET /api/v1/github/my-prs
func (h *DashboardHandler) AuthoredPullRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.AuthoredPullRequests(r.Context()))
}

// Tasks はJiraの担当課題一覧を返す。
// GET /api/v1/jira/tasks
func (h *DashboardHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Tasks(r.Context()))
}

// Events は今日の予定一覧を返す。
// GET /api/v1/calendar/events
func (h *DashboardHandler) Events(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Events(r.Context()))
}

// UnreadCount はGmail未読数を返す。
// GET /api/v1/gmail/unread
func (h *DashboardHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.UnreadCount(r.Context()))
}

// AuthStatus はGoogle認可状態を返す。
// GET /api/v1/google/auth-status
func (h *DashboardHandler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.AuthStatus(r.Context()))
}

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
