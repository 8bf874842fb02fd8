// Package calendar はGoogleカレンダーから今日の予定を取得する。
// 認可情報が得られない場合や取得に失敗した場合は固定の予定一覧を返す。
package calendar

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/dashhub/internal/metrics"
	"github.com/hitoshi/dashhub/internal/upstream"
)

const (
	// DefaultBaseURL はCalendar API v3のベースURL。
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

	primaryCalendar = "primary"
	maxResults      = 20
	sourceName      = "calendar"
)

// ClientConfig はClientの設定。
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
	Metrics    metrics.MetricsCollector
}

// Client はGoogle Calendar APIのクライアント。
type Client struct {
	requester *upstream.Requester
	baseURL   string
}

// NewClient はClientを生成する。
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		requester: upstream.NewRequester(upstream.Config{
			Source:     sourceName,
			HTTPClient: cfg.HTTPClient,
			Timeout:    cfg.Timeout,
			Logger:     cfg.Logger,
			Metrics:    cfg.Metrics,
		}),
		baseURL: baseURL,
	}
}

// Event はevents.listのレスポンス要素。
type Event struct {
	Summary  string    `json:"summary"`
	Location string    `json:"location"`
	HTMLLink string    `json:"htmlLink"`
	Status   string    `json:"status"`
	Start    eventTime `json:"start"`
	End      eventTime `json:"end"`
}

// eventTime は時刻付き予定ならDateTime、終日予定ならDateが設定される。
type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type eventsResponse struct {
	Items []Event `json:"items"`
}

// ListEvents はプライマリカレンダーの[timeMin, timeMax)の予定を開始時刻順に取得する。
// 繰り返し予定は個別の予定に展開される。
func (c *Client) ListEvents(ctx context.Context, accessToken string, timeMin, timeMax time.Time) ([]Event, error) {
	params := url.Values{
		"timeMin":      {timeMin.UTC().Format(time.RFC3339)},
		"timeMax":      {timeMax.UTC().Format(time.RFC3339)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
		"maxResults":   {strconv.Itoa(maxResults)},
	}
	endpoint := c.baseURL + "/calendars/" + url.PathEscape(primaryCalendar) + "/events?" + params.Encode()

	var resp eventsResponse
	if _, err := c.requester.GetJSON(ctx, endpoint, upstream.BearerAuth(accessToken), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
