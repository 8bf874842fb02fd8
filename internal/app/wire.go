package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/dashhub/internal/calendar"
	"github.com/hitoshi/dashhub/internal/config"
	"github.com/hitoshi/dashhub/internal/dashboard"
	"github.com/hitoshi/dashhub/internal/database"
	"github.com/hitoshi/dashhub/internal/demo"
	"github.com/hitoshi/dashhub/internal/github"
	"github.com/hitoshi/dashhub/internal/gmail"
	"github.com/hitoshi/dashhub/internal/googleauth"
	"github.com/hitoshi/dashhub/internal/handler"
	"github.com/hitoshi/dashhub/internal/jira"
	"github.com/hitoshi/dashhub/internal/metrics"
	"github.com/hitoshi/dashhub/internal/middleware"
	"github.com/hitoshi/dashhub/internal/repository"
	"github.com/hitoshi/dashhub/internal/security"
)

// Server はワイヤリング済みのHTTPハンドラーと後始末処理を保持する。
type Server struct {
	Handler http.Handler

	db          *sql.DB
	rateLimiter *middleware.RateLimiter
}

// Close はDB接続とバックグラウンド処理を停止する。
func (s *Server) Close() error {
	s.rateLimiter.Stop()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Build は設定から全依存関係をワイヤリングする。
// DATABASE_URLが設定されている場合はDBに接続し、マイグレーションを適用してから認可情報の保存先に使う。
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*Server, error) {
	// 1. メトリクス
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.NewCollector(reg)

	// 2. 認可情報の保存先
	srv := &Server{}
	var credRepo repository.CredentialRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		version, err := database.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("database connection established", slog.Uint64("schema_version", uint64(version)))
		srv.db = db
		credRepo = repository.NewPostgresCredentialRepo(db)
	} else {
		logger.Info("using file token store", slog.String("path", cfg.GoogleTokenPath))
		credRepo = repository.NewFileCredentialRepo(cfg.GoogleTokenPath)
	}

	// 3. セキュリティ
	guard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 4. ソースごとのクライアントとサービス
	ghClient := github.NewClient(github.ClientConfig{
		BaseURL:          cfg.GitHubAPIURL,
		Token:            cfg.GitHubToken,
		Timeout:          cfg.UpstreamTimeout,
		SearchRatePerMin: cfg.GitHubSearchRatePerMin,
		Logger:           logger,
		Metrics:          mc,
	})
	ghService := github.NewService(ghClient, github.NewTeamResolver(ghClient, logger, mc), logger)

	jiraConfig := jira.Config{
		Domains:     validJiraDomains(guard, jira.SplitList(cfg.JiraDomains), logger),
		Email:       cfg.JiraEmail,
		APIToken:    cfg.JiraAPIToken,
		Statuses:    jira.SplitList(cfg.JiraStatuses),
		ProjectKeys: jira.SplitList(cfg.JiraProjectKeys),
	}
	jiraClient := jira.NewClient(jira.ClientConfig{
		Email:      cfg.JiraEmail,
		APIToken:   cfg.JiraAPIToken,
		HTTPClient: guard.NewSafeClient(cfg.UpstreamTimeout),
		Timeout:    cfg.UpstreamTimeout,
		Logger:     logger,
		Metrics:    mc,
	})
	jiraService := jira.NewService(jiraClient, jiraConfig, sanitizer, logger)

	authManager := googleauth.NewManager(credRepo, googleauth.Config{
		ClientSecretPath: cfg.GoogleCredentialsPath,
		Logger:           logger,
		Metrics:          mc,
	})

	calendarService := calendar.NewService(
		calendar.NewClient(calendar.ClientConfig{Timeout: cfg.UpstreamTimeout, Logger: logger, Metrics: mc}),
		authManager, sanitizer, logger,
	)
	gmailService := gmail.NewService(
		gmail.NewClient(gmail.ClientConfig{Timeout: cfg.UpstreamTimeout, Logger: logger, Metrics: mc}),
		authManager, logger,
	)

	// 5. 窓口
	deps := dashboard.Deps{
		PullRequests: ghService,
		Tasks:        jiraService,
		Events:       calendarService,
		Unread:       gmailService,
		Auth:         authManager,
		RedirectURL:  cfg.GoogleRedirectURL(),
		Timeout:      cfg.AggregationTimeout,
	}
	if cfg.DemoMode {
		logger.Info("demo mode enabled")
		deps.Demo = demo.New(nil)
	}
	dash := dashboard.NewService(deps)

	// 6. ルーター
	srv.rateLimiter = middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral), logger)
	routerDeps := &handler.RouterDeps{
		Dashboard:         dash,
		MetricsHandler:    metrics.Handler(reg),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       srv.rateLimiter,
		Logger:            logger,
	}
	if srv.db != nil {
		routerDeps.HealthChecker = srv.db
	}
	srv.Handler = handler.NewRouter(routerDeps)

	return srv, nil
}

// validJiraDomains はSSRF検証に通ったドメインのみを設定順に返す。
func validJiraDomains(guard security.HostGuard, domains []string, logger *slog.Logger) []string {
	valid := make([]string, 0, len(domains))
	for _, d := range domains {
		if _, err := guard.ValidateDomain(d); err != nil {
			logger.Warn("Jiraドメインの設定が不正なため無視します",
				slog.String("domain", d),
				slog.String("error", err.Error()),
			)
			continue
		}
		valid = append(valid, d)
	}
	return valid
}
