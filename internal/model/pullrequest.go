// Package model はドメインモデルを定義する。
package model

import "time"

// Label はプルリクエストに付与されたラベルを表す。
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// PullRequest はGitHubのプルリクエストを正規化した表現。
// レビュー依頼一覧と自分が作成したPR一覧の両方で使用する。
// 重複排除のキーはURL（html_url）。
type PullRequest struct {
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Repo           string    `json:"repo"`
	Author         string    `json:"author"`
	CreatedAt      time.Time `json:"created_at"`
	State          string    `json:"state"`
	Labels         []Label   `json:"labels"`
	Mergeable      *bool     `json:"mergeable,omitempty"`
	MergeableState string    `json:"mergeable_state,omitempty"`
}
