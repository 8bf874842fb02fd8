package github

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/hitoshi/dashhub/internal/metrics"
)

// TeamLister はユーザーの所属チーム一覧取得のインターフェース。
// テスト時にモックに差し替え可能。
type TeamLister interface {
	ListUserTeams(ctx context.Context) ([]Team, error)
}

// TeamResolver は認証ユーザーの所属チームを解決し、プロセス存続中キャッシュする。
// 最初の成功結果（空集合を含む）のみをキャッシュし、失敗はキャッシュしない。
type TeamResolver struct {
	lister  TeamLister
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu       sync.Mutex
	resolved bool
	teams    []string
}

// NewTeamResolver はTeamResolverの新しいインスタンスを生成する。
func NewTeamResolver(lister TeamLister, logger *slog.Logger, mc metrics.MetricsCollector) *TeamResolver {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &TeamResolver{
		lister:  lister,
		logger:  logger,
		metrics: mc,
	}
}

// Teams は "{org}/{team-slug}" 形式のチームIDをソート済みで返す。
// 取得に失敗した場合はログに記録し、現在のキャッシュ（未解決なら空）を返す。
func (r *TeamResolver) Teams(ctx context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return slices.Clone(r.teams)
	}

	teams, err := r.lister.ListUserTeams(ctx)
	if err != nil {
		r.metrics.RecordTeamResolution(false)
		r.logger.Warn("GitHubチーム所属の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return slices.Clone(r.teams)
	}

	ids := make([]string, 0, len(teams))
	for _, t := range teams {
		if t.Org == "" || t.Slug == "" {
			continue
		}
		ids = append(ids, t.Org+"/"+t.Slug)
	}
	sort.Strings(ids)

	r.teams = ids
	r.resolved = true
	r.metrics.RecordTeamResolution(true)
	r.logger.Info("GitHubチーム所属を解決しました",
		slog.Int("team_count", len(ids)),
	)
	return slices.Clone(r.teams)
}
