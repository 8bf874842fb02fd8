// Package upstream は外部APIへの読み取り専用HTTP呼び出しの共通処理を提供する。
// 呼び出しごとのタイムアウト、レスポンスサイズ上限、エラー分類、メトリクス記録を担う。
// 自動リトライは行わない（失敗は「今回はこのソースから何も取れなかった」として扱う）。
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/dashhub/internal/metrics"
	"github.com/hitoshi/dashhub/internal/model"
)

const (
	// DefaultTimeout は1回の上流API呼び出しのタイムアウト。
	DefaultTimeout = 5 * time.Second
	// maxBodySize はレスポンスボディの読み取り上限（5MiB）。
	maxBodySize = 5 << 20
	// errorBodyPreview はエラーログに含めるレスポンスボディの最大長。
	errorBodyPreview = 200

	userAgent = "dashhub/1.0"
)

// Authorizer はリクエストに認証ヘッダーを付与する関数。
type Authorizer func(req *http.Request)

// BearerAuth はBearerトークン認証のAuthorizerを返す。
func BearerAuth(token string) Authorizer {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// BasicAuth はBasic認証のAuthorizerを返す。
func BasicAuth(username, password string) Authorizer {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

// Config はRequesterの設定。
type Config struct {
	Source     string // メトリクス・ログ・エラーに付与するソース名
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
	Metrics    metrics.MetricsCollector
}

// Requester は1つの上流ソースに対するHTTPリクエスト層。
type Requester struct {
	source     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewRequester はRequesterを生成する。未指定の項目はデフォルト値で補完する。
func NewRequester(cfg Config) *Requester {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	return &Requester{
		source:     cfg.Source,
		httpClient: cfg.HTTPClient,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Source はソース名を返す。
func (r *Requester) Source() string {
	return r.source
}

// GetJSON はGETリクエストを送信し、2xxレスポンスのJSONをoutにデコードする。
// 失敗時は *model.UpstreamError を返す。レスポンスヘッダーは成功時のみ返す。
func (r *Requester) GetJSON(ctx context.Context, rawURL string, auth Authorizer, header http.Header, out any) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, r.fail(0, model.ErrUpstreamUnavailable, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if auth != nil {
		auth(req)
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	r.metrics.RecordUpstreamLatency(r.source, time.Since(start))
	if err != nil {
		r.logger.Error("上流APIの呼び出しに失敗しました",
			slog.String("source", r.source),
			slog.String("url", req.URL.Redacted()),
			slog.String("error", err.Error()),
		)
		return nil, r.fail(0, model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if kind := model.ClassifyStatus(resp.StatusCode); kind != nil {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreview))
		level := slog.LevelError
		if errors.Is(kind, model.ErrRateLimited) {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "上流APIがエラーステータスを返しました",
			slog.String("source", r.source),
			slog.String("url", req.URL.Redacted()),
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(preview)),
		)
		return nil, r.fail(resp.StatusCode, kind, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		r.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("source", r.source),
			slog.String("error", err.Error()),
		)
		return nil, r.fail(resp.StatusCode, model.ErrUpstreamUnavailable, fmt.Errorf("failed to read response body: %w", err))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			r.logger.Error("上流APIのレスポンスのパースに失敗しました",
				slog.String("source", r.source),
				slog.String("error", err.Error()),
			)
			return nil, r.fail(resp.StatusCode, model.ErrUpstreamUnavailable, fmt.Errorf("failed to parse response JSON: %w", err))
		}
	}

	r.metrics.RecordUpstreamRequest(r.source, metrics.OutcomeSuccess)
	return resp.Header, nil
}

// fail はメトリクスを記録し、UpstreamErrorを生成する。
func (r *Requester) fail(statusCode int, kind error, cause error) error {
	r.metrics.RecordUpstreamRequest(r.source, outcomeFor(kind))
	return &model.UpstreamError{
		Source:     r.source,
		StatusCode: statusCode,
		Kind:       kind,
		Err:        cause,
	}
}

func outcomeFor(kind error) string {
	switch {
	case errors.Is(kind, model.ErrRateLimited):
		return metrics.OutcomeRateLimited
	case errors.Is(kind, model.ErrUnauthenticated):
		return metrics.OutcomeUnauth
	default:
		return metrics.OutcomeUnavailable
	}
}
