package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/dashhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Dashboard DashboardService

	// HealthChecker はDB利用時のみ設定する。
	HealthChecker HealthChecker
	// MetricsHandler は/metricsで公開するPrometheusハンドラー。nilの場合は公開しない。
	MetricsHandler http.Handler

	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS → RateLimit（/api/v1のみ）
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(middleware.WriteNotFound)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	h := NewDashboardHandler(deps.Dashboard)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Get("/github/prs", h.ReviewRequests)
		r.Get("/github/my-prs", h.AuthoredPullRequests)
		r.Get("/jira/tasks", h.Tasks)
		r.Get("/calendar/events", h.Events)
		r.Get("/gmail/unread", h.UnreadCount)
		r.Get("/google/auth-status", h.AuthStatus)
		r.Get("/google/callback", h.GoogleCallback)
	})

	return r
}
