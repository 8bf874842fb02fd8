package jira

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/dashhub/internal/model"
	"github.com/hitoshi/dashhub/internal/security"
)

// Searcher はJQL検索のインターフェース。
// テスト時にモックに差し替え可能。
type Searcher interface {
	Search(ctx context.Context, baseURL, jql string) ([]Issue, error)
}

// Service は設定された全ドメインから自分に割り当てられた課題を集約する。
type Service struct {
	searcher  Searcher
	config    Config
	sanitizer *security.TextSanitizer
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(searcher Searcher, config Config, sanitizer *security.TextSanitizer, logger *slog.Logger) *Service {
	return &Service{
		searcher:  searcher,
		config:    config,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// AssignedTasks は各ドメインを並行に検索し、設定順に連結した課題一覧を返す。
// 失敗したドメインはログに記録して結果に含めない。設定が不足している場合は空の一覧を返す。
func (s *Service) AssignedTasks(ctx context.Context) []model.Task {
	if !s.config.Configured() {
		return []model.Task{}
	}

	jql := BuildJQL(s.config.statuses(), s.config.ProjectKeys)
	results := make([][]model.Task, len(s.config.Domains))

	var wg sync.WaitGroup
	for i, domain := range s.config.Domains {
		wg.Add(1)
		go func(i int, domain string) {
			defer wg.Done()
			results[i] = s.fetchDomain(ctx, domain, jql)
		}(i, domain)
	}
	wg.Wait()

	tasks := []model.Task{}
	for _, r := range results {
		tasks = append(tasks, r...)
	}
	return tasks
}

func (s *Service) fetchDomain(ctx context.Context, domain, jql string) []model.Task {
	issues, err := s.searcher.Search(ctx, baseURL(domain), jql)
	if err != nil {
		s.logger.Error("Jiraドメインからの課題取得に失敗しました",
			slog.String("domain", domain),
			slog.String("error", err.Error()),
		)
		return nil
	}

	tasks := make([]model.Task, 0, len(issues))
	for _, issue := range issues {
		if issue.Key == "" {
			continue
		}
		tasks = append(tasks, toTask(issue, domain, s.sanitizer))
	}

	s.logger.Debug("Jiraドメインから課題を取得しました",
		slog.String("domain", domain),
		slog.Int("issue_count", len(tasks)),
	)
	return tasks
}
