package github

import (
	"strings"
	"time"

	"github.com/hitoshi/dashhub/internal/model"
)

// repoFromURL は repository_url の "repos/" 以降を "owner/name" として取り出す。
func repoFromURL(repositoryURL string) string {
	_, after, found := strings.Cut(repositoryURL, "repos/")
	if !found {
		return ""
	}
	return after
}

// parseTime はGitHubのRFC3339タイムスタンプを解析する。解析できない場合はゼロ値。
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// toPullRequest は検索結果の要素を共通のPR表現に変換する。
func toPullRequest(item SearchItem) model.PullRequest {
	labels := make([]model.Label, 0, len(item.Labels))
	for _, l := range item.Labels {
		labels = append(labels, model.Label{Name: l.Name, Color: l.Color})
	}
	return model.PullRequest{
		Title:     item.Title,
		URL:       item.HTMLURL,
		Repo:      repoFromURL(item.RepositoryURL),
		Author:    item.User.Login,
		CreatedAt: parseTime(item.CreatedAt),
		State:     item.State,
		Labels:    labels,
	}
}
