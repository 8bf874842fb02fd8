// Package github はGitHubのレビュー依頼・自分のPR・チーム所属の取得を提供する。
// 検索APIのページング、チーム単位のクエリ分割、URLによる重複排除を含む。
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/dashhub/internal/metrics"
	"github.com/hitoshi/dashhub/internal/model"
	"github.com/hitoshi/dashhub/internal/upstream"
)

const (
	// DefaultBaseURL はGitHub REST APIのベースURL。
	DefaultBaseURL = "https://api.github.com"
	// searchPerPage は検索APIの1ページあたりの件数。
	searchPerPage = 100
	// maxSearchPages は1クエリあたりに辿る最大ページ数。
	maxSearchPages = 3
	// teamsPerPage はチーム一覧の1ページあたりの件数。
	teamsPerPage = 100
	// maxTeamPages はチーム一覧で辿る最大ページ数。
	maxTeamPages = 10

	sourceName = "github"
)

// ClientConfig はClientの設定。
type ClientConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	// SearchRatePerMin は検索APIの呼び出しペース（回/分）。0以下で制限なし。
	SearchRatePerMin int
	Logger           *slog.Logger
	Metrics          metrics.MetricsCollector
}

// Client はGitHub REST APIのクライアント。
type Client struct {
	requester     *upstream.Requester
	baseURL       string
	token         string
	searchLimiter *rate.Limiter
}

// NewClient はClientを生成する。
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var limiter *rate.Limiter
	if cfg.SearchRatePerMin > 0 {
		burst := cfg.SearchRatePerMin / 3
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.SearchRatePerMin)/60.0), burst)
	}

	return &Client{
		requester: upstream.NewRequester(upstream.Config{
			Source:     sourceName,
			HTTPClient: cfg.HTTPClient,
			Timeout:    cfg.Timeout,
			Logger:     cfg.Logger,
			Metrics:    cfg.Metrics,
		}),
		baseURL:       baseURL,
		token:         cfg.Token,
		searchLimiter: limiter,
	}
}

// HasToken はアクセストークンが設定されているかを返す。
func (c *Client) HasToken() bool {
	return c.token != ""
}

// SearchItem は検索APIのレスポンス要素。
type SearchItem struct {
	Title         string          `json:"title"`
	HTMLURL       string          `json:"html_url"`
	RepositoryURL string          `json:"repository_url"`
	User          searchUser      `json:"user"`
	CreatedAt     string          `json:"created_at"`
	State         string          `json:"state"`
	Labels        []searchLabel   `json:"labels"`
	PullRequest   *pullRequestRef `json:"pull_request,omitempty"`
}

type searchUser struct {
	Login string `json:"login"`
}

type searchLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type pullRequestRef struct {
	URL string `json:"url"`
}

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []SearchItem `json:"items"`
}

// SearchOptions は検索APIの並び順指定。
type SearchOptions struct {
	Sort  string
	Order string
}

// PullRequestDetail はPR詳細APIのレスポンスのうちマージ可否に関するフィールド。
type PullRequestDetail struct {
	Mergeable      *bool  `json:"mergeable"`
	MergeableState string `json:"mergeable_state"`
}

// Team はユーザーが所属するチーム。
type Team struct {
	Org  string
	Slug string
}

type teamResponse struct {
	Slug         string `json:"slug"`
	Organization struct {
		Login string `json:"login"`
	} `json:"organization"`
}

// SearchIssues は検索APIでクエリに一致するIssue/PRを取得する。
// ページが埋まっていてtotal_countに達していない間は次ページを辿る（最大maxSearchPages）。
// 途中のページで失敗した場合は、それまでに取得できた結果とエラーを両方返す。
func (c *Client) SearchIssues(ctx context.Context, query string, opts SearchOptions) ([]SearchItem, error) {
	if !c.HasToken() {
		return nil, &model.UpstreamError{Source: sourceName, Kind: model.ErrUnauthenticated}
	}

	var items []SearchItem
	for page := 1; page <= maxSearchPages; page++ {
		if err := c.waitSearchSlot(ctx); err != nil {
			return items, err
		}

		params := url.Values{
			"q":        {query},
			"per_page": {strconv.Itoa(searchPerPage)},
			"page":     {strconv.Itoa(page)},
		}
		if opts.Sort != "" {
			params.Set("sort", opts.Sort)
		}
		if opts.Order != "" {
			params.Set("order", opts.Order)
		}

		var resp searchResponse
		if _, err := c.get(ctx, c.baseURL+"/search/issues?"+params.Encode(), &resp); err != nil {
			return items, err
		}
		items = append(items, resp.Items...)

		if len(resp.Items) < searchPerPage || len(items) >= resp.TotalCount {
			break
		}
	}
	return items, nil
}

// GetPullRequest はPR詳細APIからマージ可否を取得する。
// apiURLには検索結果の pull_request.url を渡す。
func (c *Client) GetPullRequest(ctx context.Context, apiURL string) (*PullRequestDetail, error) {
	if !c.HasToken() {
		return nil, &model.UpstreamError{Source: sourceName, Kind: model.ErrUnauthenticated}
	}
	var detail PullRequestDetail
	if _, err := c.get(ctx, apiURL, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListUserTeams は認証ユーザーが所属する全組織のチームを取得する。
func (c *Client) ListUserTeams(ctx context.Context) ([]Team, error) {
	if !c.HasToken() {
		return nil, &model.UpstreamError{Source: sourceName, Kind: model.ErrUnauthenticated}
	}

	var teams []Team
	for page := 1; page <= maxTeamPages; page++ {
		params := url.Values{
			"per_page": {strconv.Itoa(teamsPerPage)},
			"page":     {strconv.Itoa(page)},
		}
		var resp []teamResponse
		if _, err := c.get(ctx, c.baseURL+"/user/teams?"+params.Encode(), &resp); err != nil {
			return nil, err
		}
		for _, t := range resp {
			teams = append(teams, Team{Org: t.Organization.Login, Slug: t.Slug})
		}
		if len(resp) < teamsPerPage {
			break
		}
	}
	return teams, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) (http.Header, error) {
	header := http.Header{
		"Accept":               {"application/vnd.github+json"},
		"X-Github-Api-Version": {"2022-11-28"},
	}
	return c.requester.GetJSON(ctx, rawURL, upstream.BearerAuth(c.token), header, out)
}

// waitSearchSlot は検索APIの呼び出しペースを守るために待機する。
func (c *Client) waitSearchSlot(ctx context.Context) error {
	if c.searchLimiter == nil {
		return nil
	}
	if err := c.searchLimiter.Wait(ctx); err != nil {
		return &model.UpstreamError{
			Source: sourceName,
			Kind:   model.ErrUpstreamUnavailable,
			Err:    fmt.Errorf("search rate wait aborted: %w", err),
		}
	}
	return nil
}
