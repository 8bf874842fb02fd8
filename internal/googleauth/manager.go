// Package googleauth はGoogleの委任認可（OAuth 2.0）の認可フローと
// トークンの保存・リフレッシュを管理する。
// 公開メソッドはエラーを返さず、状態または真偽値で結果を表す。
package googleauth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/dashhub/internal/metrics"
	"github.com/hitoshi/dashhub/internal/model"
	"github.com/hitoshi/dashhub/internal/repository"
)

// Config はManagerの設定。
type Config struct {
	// ClientSecretPath はクライアントシークレットファイル（credentials.json）のパス。
	ClientSecretPath string
	// HTTPClient はトークンエンドポイント呼び出しに使うクライアント。nilの場合は既定のクライアント。
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    metrics.MetricsCollector
	// Now は現在時刻を返す。テスト用に差し替え可能。
	Now func() time.Time
}

// flowContext は認可フロー完了までに保持する情報。
type flowContext struct {
	redirectURL string
	state       string
	verifier    string
	config      *oauth2.Config
}

// Manager はGoogle認可情報の状態判定・リフレッシュ・認可フローを扱う。
// 同時に進行できる認可フローは1つで、後から開始したフローが前のものを上書きする。
type Manager struct {
	repo             repository.CredentialRepository
	clientSecretPath string
	httpClient       *http.Client
	logger           *slog.Logger
	metrics          metrics.MetricsCollector
	now              func() time.Time

	// mu は認可情報の読み込み・判定・リフレッシュ・書き込みを直列化する。
	mu sync.Mutex

	flowMu sync.Mutex
	flow   *flowContext
}

// NewManager はManagerの新しいインスタンスを生成する。
func NewManager(repo repository.CredentialRepository, cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		repo:             repo,
		clientSecretPath: cfg.ClientSecretPath,
		httpClient:       cfg.HTTPClient,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		now:              cfg.Now,
	}
}

// Status は現在の認可状態を返す。
// 期限切れでリフレッシュトークンがある場合はリフレッシュを試み、成功すれば保存してAuthorizedを返す。
func (m *Manager) Status(ctx context.Context) model.AuthState {
	_, state := m.resolve(ctx)
	return state
}

// ValidCredential は有効な認可情報を返す。必要ならリフレッシュする。取得できない場合はnil。
func (m *Manager) ValidCredential(ctx context.Context) *model.Credential {
	cred, state := m.resolve(ctx)
	if state != model.AuthStateAuthorized {
		return nil
	}
	return cred
}

// resolve は保存済みの認可情報を読み込み、状態を判定する。
func (m *Manager) resolve(ctx context.Context) (*model.Credential, model.AuthState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.repo.Load(ctx)
	if err != nil {
		m.logger.Warn("Google認可情報の読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.AuthStateNotConfigured
	}
	if cred == nil {
		return nil, model.AuthStateNotConfigured
	}
	if cred.ValidAt(m.now()) {
		return cred, model.AuthStateAuthorized
	}
	if !cred.Refreshable() {
		return nil, model.AuthStateExpired
	}

	refreshed, err := m.refresh(ctx, cred)
	if err != nil {
		m.metrics.RecordCredentialRefresh(false)
		m.logger.Warn("Googleトークンのリフレッシュに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.AuthStateExpired
	}
	m.metrics.RecordCredentialRefresh(true)

	if err := m.repo.Save(ctx, refreshed); err != nil {
		m.logger.Warn("リフレッシュ後のGoogle認可情報の保存に失敗しました",
			slog.String("error", err.Error()),
		)
	} else {
		m.logger.Info("Googleトークンをリフレッシュしました",
			slog.Time("expiry", refreshed.Expiry),
		)
	}
	return refreshed, model.AuthStateAuthorized
}

// refresh はリフレッシュトークンで新しいアクセストークンを取得する。
// クライアントIDなどが保存されていない場合はクライアントシークレットファイルで補う。
func (m *Manager) refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	conf := m.refreshConfig(cred)

	// アクセストークンを渡さないため、x/oauth2は時刻に関係なくトークンエンドポイントを呼ぶ
	current := &oauth2.Token{RefreshToken: cred.RefreshToken}
	tok, err := conf.TokenSource(m.oauthContext(ctx), current).Token()
	if err != nil {
		return nil, err
	}

	refreshed := *cred
	refreshed.AccessToken = tok.AccessToken
	refreshed.TokenType = tok.TokenType
	refreshed.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	refreshed.ClientID = conf.ClientID
	refreshed.ClientSecret = conf.ClientSecret
	refreshed.TokenURI = conf.Endpoint.TokenURL
	if scopes := grantedScopes(tok); len(scopes) > 0 {
		refreshed.Scopes = scopes
	}
	return &refreshed, nil
}

func (m *Manager) refreshConfig(cred *model.Credential) *oauth2.Config {
	conf := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   google.Endpoint.AuthURL,
			TokenURL:  cred.TokenURI,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: cred.Scopes,
	}

	if conf.ClientID == "" || conf.ClientSecret == "" || conf.Endpoint.TokenURL == "" {
		if local, err := loadClientConfig(m.clientSecretPath, ""); err == nil {
			if conf.ClientID == "" {
				conf.ClientID = local.ClientID
			}
			if conf.ClientSecret == "" {
				conf.ClientSecret = local.ClientSecret
			}
			if conf.Endpoint.TokenURL == "" {
				conf.Endpoint.TokenURL = local.Endpoint.TokenURL
			}
		}
	}
	if conf.Endpoint.TokenURL == "" {
		conf.Endpoint.TokenURL = google.Endpoint.TokenURL
	}
	return conf
}

// BeginAuthorization はredirectURLをコールバック先とする同意画面のURLを生成する。
// クライアントシークレットファイルが読めない場合は ("", false) を返す。
func (m *Manager) BeginAuthorization(redirectURL string) (string, bool) {
	conf, err := loadClientConfig(m.clientSecretPath, redirectURL)
	if err != nil {
		m.logger.Warn("Google OAuthクライアント設定を読み込めません",
			slog.String("path", m.clientSecretPath),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	flow := &flowContext{
		redirectURL: redirectURL,
		state:       uuid.NewString(),
		verifier:    oauth2.GenerateVerifier(),
		config:      conf,
	}
	authURL := conf.AuthCodeURL(flow.state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(flow.verifier),
	)

	m.flowMu.Lock()
	if m.flow != nil {
		m.logger.Info("進行中のGoogle認可フローを新しいフローで置き換えます")
	}
	m.flow = flow
	m.flowMu.Unlock()

	return authURL, true
}

// CompleteAuthorization は認可コードをトークンに交換して保存する。
// stateが空でない場合は開始時のstateと一致する必要がある。
func (m *Manager) CompleteAuthorization(ctx context.Context, code, state string) bool {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()

	flow := m.flow
	if flow == nil {
		m.logger.Warn("進行中のGoogle認可フローがありません")
		return false
	}
	if state != "" && state != flow.state {
		m.logger.Warn("Google認可コールバックのstateが一致しません")
		return false
	}

	tok, err := flow.config.Exchange(m.oauthContext(ctx), code, oauth2.VerifierOption(flow.verifier))
	if err != nil {
		m.logger.Error("Google認可コードの交換に失敗しました",
			slog.String("error", err.Error()),
		)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		if prev, err := m.repo.Load(ctx); err == nil && prev != nil {
			refreshToken = prev.RefreshToken
		}
	}
	scopes := grantedScopes(tok)
	if len(scopes) == 0 {
		scopes = flow.config.Scopes
	}

	cred := &model.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       scopes,
		ClientID:     flow.config.ClientID,
		ClientSecret: flow.config.ClientSecret,
		TokenURI:     flow.config.Endpoint.TokenURL,
	}
	if err := m.repo.Save(ctx, cred); err != nil {
		m.logger.Error("Google認可情報の保存に失敗しました",
			slog.String("error", err.Error()),
		)
		return false
	}

	m.flow = nil
	m.logger.Info("Googleアカウントの認可が完了しました",
		slog.Bool("has_refresh_token", refreshToken != ""),
	)
	return true
}

// oauthContext はトークンエンドポイント呼び出しに使うHTTPクライアントをコンテキストに設定する。
func (m *Manager) oauthContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// grantedScopes はトークンレスポンスのscopeフィールドを分割する。
func grantedScopes(tok *oauth2.Token) []string {
	raw, _ := tok.Extra("scope").(string)
	return strings.Fields(raw)
}
