package jira

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/dashhub/internal/metrics"
	"github.com/hitoshi/dashhub/internal/upstream"
)

const (
	searchPath       = "/rest/api/3/search/jql"
	searchFields     = "summary,status,priority,assignee"
	searchMaxResults = 100

	sourceName = "jira"
)

// ClientConfig はClientの設定。
type ClientConfig struct {
	Email      string
	APIToken   string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
	Metrics    metrics.MetricsCollector
}

// Client はJira Cloud REST API v3のクライアント。
// ドメインは呼び出しごとに指定する。
type Client struct {
	requester *upstream.Requester
	email     string
	apiToken  string
}

// NewClient はClientを生成する。
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		requester: upstream.NewRequester(upstream.Config{
			Source:     sourceName,
			HTTPClient: cfg.HTTPClient,
			Timeout:    cfg.Timeout,
			Logger:     cfg.Logger,
			Metrics:    cfg.Metrics,
		}),
		email:    cfg.Email,
		apiToken: cfg.APIToken,
	}
}

// Issue は検索APIのレスポンス要素。
type Issue struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary  string     `json:"summary"`
	Status   *namedItem `json:"status"`
	Priority *namedItem `json:"priority"`
	Assignee *user      `json:"assignee"`
}

type namedItem struct {
	Name string `json:"name"`
}

type user struct {
	DisplayName string `json:"displayName"`
}

type searchResponse struct {
	Issues []Issue `json:"issues"`
}

// Search はbaseURLのJiraに対してJQL検索を1回行う。
func (c *Client) Search(ctx context.Context, baseURL, jql string) ([]Issue, error) {
	params := url.Values{
		"jql":        {jql},
		"fields":     {searchFields},
		"maxResults": {strconv.Itoa(searchMaxResults)},
	}

	var resp searchResponse
	if _, err := c.requester.GetJSON(ctx, baseURL+searchPath+"?"+params.Encode(), upstream.BasicAuth(c.email, c.apiToken), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Issues, nil
}
