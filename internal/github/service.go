package github

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hitoshi/dashhub/internal/model"
)

// Searcher はGitHub検索・PR詳細取得のインターフェース。
// テスト時にモックに差し替え可能。
type Searcher interface {
	HasToken() bool
	SearchIssues(ctx context.Context, query string, opts SearchOptions) ([]SearchItem, error)
	GetPullRequest(ctx context.Context, apiURL string) (*PullRequestDetail, error)
}

// TeamProvider は所属チームIDの取得インターフェース。
type TeamProvider interface {
	Teams(ctx context.Context) []string
}

// Service はGitHubのレビュー依頼と自分のPRを集約する。
// 上流のエラーは内部で吸収し、呼び出し元には常に（空の可能性がある）一覧を返す。
type Service struct {
	searcher Searcher
	teams    TeamProvider
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(searcher Searcher, teams TeamProvider, logger *slog.Logger) *Service {
	return &Service{
		searcher: searcher,
		teams:    teams,
		logger:   logger,
	}
}

// ReviewRequested は自分またはチームにレビュー依頼されている未クローズのPRを返す。
// URLで重複排除し（先に見つかったものを保持）、作成日時の降順に並べる。
func (s *Service) ReviewRequested(ctx context.Context) []model.PullRequest {
	if !s.searcher.HasToken() {
		return []model.PullRequest{}
	}

	merged := newPRSet()

	items, err := s.searcher.SearchIssues(ctx, queryReviewRequested, SearchOptions{})
	if err != nil {
		s.logSearchFailure("個人宛てレビュー依頼の検索に失敗しました", queryReviewRequested, err)
	}
	merged.addAll(items)

	for _, chunk := range chunkTeams(s.teams.Teams(ctx), teamChunkSize) {
		query := teamReviewQuery(chunk)
		items, err := s.searcher.SearchIssues(ctx, query, SearchOptions{})
		if err != nil {
			s.logSearchFailure("チーム宛てレビュー依頼の検索に失敗しました", query, err)
		}
		merged.addAll(items)
	}

	result := merged.list()
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Authored は自分が作成した未クローズのPRを作成日時の降順で返す。
// 各PRについて詳細APIでマージ可否を取得する。いずれかの呼び出しが失敗した場合は空の一覧を返す。
func (s *Service) Authored(ctx context.Context) []model.PullRequest {
	if !s.searcher.HasToken() {
		return []model.PullRequest{}
	}

	items, err := s.searcher.SearchIssues(ctx, queryAuthored, SearchOptions{Sort: "created", Order: "desc"})
	if err != nil {
		s.logSearchFailure("自分のPRの検索に失敗しました", queryAuthored, err)
		return []model.PullRequest{}
	}

	result := make([]model.PullRequest, 0, len(items))
	for _, item := range items {
		pr := toPullRequest(item)
		if item.PullRequest != nil && item.PullRequest.URL != "" {
			detail, err := s.searcher.GetPullRequest(ctx, item.PullRequest.URL)
			if err != nil {
				s.logger.Error("PR詳細の取得に失敗しました",
					slog.String("url", item.HTMLURL),
					slog.String("error", err.Error()),
				)
				return []model.PullRequest{}
			}
			pr.Mergeable = detail.Mergeable
			pr.MergeableState = detail.MergeableState
		}
		result = append(result, pr)
	}
	return result
}

// logSearchFailure はレート制限なら警告、それ以外はエラーとして記録する。
func (s *Service) logSearchFailure(msg, query string, err error) {
	level := slog.LevelError
	if model.IsRateLimited(err) {
		level = slog.LevelWarn
		msg += "（レート制限のためスキップ）"
	}
	s.logger.Log(context.Background(), level, msg,
		slog.String("query", query),
		slog.String("error", err.Error()),
	)
}

// prSet はURLをキーに挿入順を保つPRの集合。最初に追加されたものを保持する。
type prSet struct {
	seen  map[string]struct{}
	items []model.PullRequest
}

func newPRSet() *prSet {
	return &prSet{seen: make(map[string]struct{})}
}

func (s *prSet) addAll(items []SearchItem) {
	for _, item := range items {
		if item.HTMLURL == "" {
			continue
		}
		if _, ok := s.seen[item.HTMLURL]; ok {
			continue
		}
		s.seen[item.HTMLURL] = struct{}{}
		s.items = append(s.items, toPullRequest(item))
	}
}

func (s *prSet) list() []model.PullRequest {
	if s.items == nil {
		return []model.PullRequest{}
	}
	return s.items
}
