// Package jira は複数のJira Cloudドメインから自分に割り当てられた課題を集約する。
package jira

import "strings"

// DefaultStatus はステータス絞り込み未設定時に使用するステータス名。
const DefaultStatus = "In Progress"

// Config はJira集約の設定。
type Config struct {
	// Domains は問い合わせ先のドメイン（例: acme.atlassian.net）。設定順に結果を連結する。
	Domains     []string
	Email       string
	APIToken    string
	Statuses    []string
	ProjectKeys []string
}

// Configured はドメイン・メールアドレス・APIトークンが揃っているかを返す。
func (c Config) Configured() bool {
	return len(c.Domains) > 0 && c.Email != "" && c.APIToken != ""
}

// statuses は空の場合にDefaultStatusを補ったステータス一覧を返す。
func (c Config) statuses() []string {
	if len(c.Statuses) == 0 {
		return []string{DefaultStatus}
	}
	return c.Statuses
}

// SplitList はカンマ区切りの設定値を分割し、各要素の空白と引用符を除去する。空要素は捨てる。
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// baseURL はドメインからAPIのベースURLを組み立てる。スキーム付きの値はそのまま使う。
func baseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}
