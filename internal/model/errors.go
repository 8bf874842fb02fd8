package model

import (
	"errors"
	"fmt"
	"net/http"
)

// 上流API呼び出しのエラー分類。
// 集約処理はこれらを内部で吸収し、呼び出し元には空の結果またはフォールバック値を返す。
var (
	// ErrUnauthenticated はトークン未設定または認証拒否を表す。
	ErrUnauthenticated = errors.New("upstream: unauthenticated")
	// ErrRateLimited は上流APIのレート制限（403/429）を表す。
	ErrRateLimited = errors.New("upstream: rate limited")
	// ErrUpstreamUnavailable はネットワークエラー、5xx、パース失敗などを表す。
	ErrUpstreamUnavailable = errors.New("upstream: unavailable")
	// ErrNotConfigured はクライアント設定やアプリ設定の欠落を表す。
	ErrNotConfigured = errors.New("upstream: not configured")
)

// UpstreamError は上流API呼び出し失敗の詳細を保持する。
// errors.Is でKindのセンチネルと照合できる。
type UpstreamError struct {
	Source     string // "github", "jira", "calendar", "gmail"
	StatusCode int    // HTTPレスポンスを受け取れなかった場合は0
	Kind       error
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Source, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap はKindと原因エラーの両方を返す。
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ClassifyStatus はHTTPステータスコードをエラー分類に変換する。
// 2xxの場合はnilを返す。
func ClassifyStatus(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized:
		return ErrUnauthenticated
	case statusCode == http.StatusForbidden, statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUpstreamUnavailable
	}
}

// IsRateLimited はエラーがレート制限によるものかを返す。
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeInvalidCallback = "INVALID_CALLBACK"
)

// NewNotFoundError は存在しないエンドポイントへのアクセスエラーを生成する。
func NewNotFoundError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定されたエンドポイントは存在しません: %s", path),
		Category: "validation",
		Action:   "URLを確認してください。",
	}
}

// NewRateLimitedError はAPIのレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
