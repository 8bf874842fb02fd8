package googleauth

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// 認可を要求するスコープ。読み取り専用の2つに固定する。
const (
	ScopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"
	ScopeGmailReadonly    = "https://www.googleapis.com/auth/gmail.readonly"
)

// Scopes は認可を要求するスコープ一覧を返す。
func Scopes() []string {
	return []string{ScopeCalendarReadonly, ScopeGmailReadonly}
}

// loadClientConfig はGoogle Cloud Consoleから取得したクライアントシークレットファイル
// （"web" または "installed" 形式）を読み込み、OAuth2設定を生成する。
func loadClientConfig(path, redirectURL string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}

	conf, err := google.ConfigFromJSON(data, Scopes()...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}
	if redirectURL != "" {
		conf.RedirectURL = redirectURL
	}
	return conf, nil
}
