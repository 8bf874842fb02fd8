package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は上流から届く自由記述テキスト（Jiraの要約、予定の件名・場所）を
// プレーンテキストに変換する。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグを一切許可しないポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去し、エスケープされた文字を戻し、前後の空白を取り除く。
// nilレシーバーの場合は空白の除去のみ行う。
func (s *TextSanitizer) Clean(text string) string {
	if text == "" {
		return ""
	}
	if s == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
