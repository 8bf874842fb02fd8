// Package gmail はGmail受信トレイの未読数を取得する。
package gmail

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/dashhub/internal/metrics"
	"github.com/hitoshi/dashhub/internal/model"
	"github.com/hitoshi/dashhub/internal/upstream"
)

const (
	// DefaultBaseURL はGmail API v1のベースURL。
	DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

	inboxLabel = "INBOX"
	sourceName = "gmail"
)

// ClientConfig はClientの設定。
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
	Metrics    metrics.MetricsCollector
}

// Client はGmail APIのクライアント。
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

// Label はlabels.getのレスポンスのうち件数に関するフィールド。
type Label struct {
	ID             string `json:"id"`
	MessagesTotal  int    `json:"messagesTotal"`
	MessagesUnread int    `json:"messagesUnread"`
}

// GetLabel はラベルのメタデータを取得する。
func (c *Client) GetLabel(ctx context.Context, accessToken, labelID string) (*Label, error) {
	endpoint := c.baseURL + "/users/me/labels/" + url.PathEscape(labelID)

	var label Label
	if _, err := c.requester.GetJSON(ctx, endpoint, upstream.BearerAuth(accessToken), nil, &label); err != nil {
		return nil, err
	}
	return &label, nil
}

// LabelGetter はラベルのメタデータ取得のインターフェース。
type LabelGetter interface {
	GetLabel(ctx context.Context, accessToken, labelID string) (*Label, error)
}

// CredentialProvider は有効なGoogle認可情報を返すインターフェース。
type CredentialProvider interface {
	ValidCredential(ctx context.Context) *model.Credential
}

// Service は受信トレイの未読数を返す。
type Service struct {
	labels LabelGetter
	creds  CredentialProvider
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(labels LabelGetter, creds CredentialProvider, logger *slog.Logger) *Service {
	return &Service{labels: labels, creds: creds, logger: logger}
}

// UnreadCount はINBOXラベルのmessagesUnreadを返す。
// メッセージを列挙して数えるのではなく、Gmailが保持する件数をそのまま使う。
// 認可情報がない場合や取得に失敗した場合は0を返す。
func (s *Service) UnreadCount(ctx context.Context) int {
	cred := s.creds.ValidCredential(ctx)
	if cred == nil {
		return 0
	}

	label, err := s.labels.GetLabel(ctx, cred.AccessToken, inboxLabel)
	if err != nil {
		s.logger.Error("Gmailの未読数取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0
	}
	return label.MessagesUnread
}
