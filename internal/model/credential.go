package model

import "time"

// DefaultCredentialID はシングルユーザー運用での認可情報レコードの固定ID。
const DefaultCredentialID = "default"

// Credential はGoogleの委任認可で得たトークン一式を表す。
// リフレッシュ時はレコードを上書き更新する。
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scopes       []string

	// クライアント識別情報（交換レスポンスではなくローカル設定から補完する）
	ClientID     string
	ClientSecret string
	TokenURI     string
}

// ValidAt は指定時刻においてアクセストークンが有効かを返す。
// 有効期限がゼロ値の場合は期限なしとして扱う。
func (c *Credential) ValidAt(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.Expiry.IsZero() || now.Before(c.Expiry)
}

// Refreshable はリフレッシュトークンを保持しているかを返す。
func (c *Credential) Refreshable() bool {
	return c != nil && c.RefreshToken != ""
}

// AuthState はGoogle認可の状態。保存はせず、都度Credentialから導出する。
type AuthState string

const (
	// AuthStateAuthorized は有効な認可情報がある状態。
	AuthStateAuthorized AuthState = "authorized"
	// AuthStateExpired は認可情報はあるが有効期限切れでリフレッシュもできない状態。
	AuthStateExpired AuthState = "expired"
	// AuthStateNotConfigured は認可情報が存在しない状態。
	AuthStateNotConfigured AuthState = "not_configured"
)

// AuthStatus は認可状態APIのレスポンス。
type AuthStatus struct {
	Status  AuthState `json:"status"`
	Message string    `json:"message"`
	AuthURL string    `json:"auth_url,omitempty"`
}
