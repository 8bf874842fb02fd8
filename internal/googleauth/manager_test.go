package googleauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/dashhub/internal/metrics"
	"github.com/hitoshi/dashhub/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// mockCredentialRepo はCredentialRepositoryのモック。
type mockCredentialRepo struct {
	mu     sync.Mutex
	cred   *model.Credential
	loadFn func() (*model.Credential, error)
	saveFn func(cred *model.Credential) error
	saved  []*model.Credential
}

func (m *mockCredentialRepo) Load(ctx context.Context) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadFn != nil {
		return m.loadFn()
	}
	if m.cred == nil {
		return nil, nil
	}
	c := *m.cred
	return &c, nil
}

func (m *mockCredentialRepo) Save(ctx context.Context, cred *model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveFn != nil {
		if err := m.saveFn(cred); err != nil {
			return err
		}
	}
	c := *cred
	m.cred = &c
	m.saved = append(m.saved, &c)
	return nil
}

// recordingMetrics はリフレッシュ結果を記録するMetricsCollectorのモック。
type recordingMetrics struct {
	metrics.Nop
	mu        sync.Mutex
	refreshes []bool
}

func (r *recordingMetrics) RecordCredentialRefresh(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes = append(r.refreshes, success)
}

// fixedNow はトークンエンドポイントが返すexpires_inと比較するため実時刻を基準にする。
var fixedNow = time.Now().UTC().Truncate(time.Second)

// newTokenServer はトークンエンドポイントを模したテストサーバーを起動する。
func newTokenServer(t *testing.T, handler func(form url.Values) (int, map[string]any)) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("フォームのパースに失敗: %v", err)
		}
		status, body := handler(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// writeClientSecret はテスト用のcredentials.jsonを書き出す。
func writeClientSecret(t *testing.T, kind, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	content := fmt.Sprintf(`{%q:{
		"client_id":"local-client.apps.googleusercontent.com",
		"client_secret":"local-secret",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":%q,
		"redirect_uris":["http://localhost"]
	}}`, kind, tokenURL)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile に失敗: %v", err)
	}
	return path
}

func newTestManager(repo *mockCredentialRepo, secretPath string, client *http.Client, buf *bytes.Buffer, mc metrics.MetricsCollector) *Manager {
	return NewManager(repo, Config{
		ClientSecretPath: secretPath,
		HTTPClient:       client,
		Logger:           newTestLogger(buf),
		Metrics:          mc,
		Now:              func() time.Time { return fixedNow },
	})
}

func TestManager_Status_NotConfigured(t *testing.T) {
	var buf bytes.Buffer
	m := newTestManager(&mockCredentialRepo{}, "", nil, &buf, nil)

	if got := m.Status(context.Background()); got != model.AuthStateNotConfigured {
		t.Errorf("Status() = %q, want not_configured", got)
	}
	if cred := m.ValidCredential(context.Background()); cred != nil {
		t.Errorf("ValidCredential() = %+v, want nil", cred)
	}
}

func TestManager_Status_UnreadableRecord(t *testing.T) {
	repo := &mockCredentialRepo{loadFn: func() (*model.Credential, error) {
		return nil, errors.New("permission denied")
	}}
	var buf bytes.Buffer
	m := newTestManager(repo, "", nil, &buf, nil)

	if got := m.Status(context.Background()); got != model.AuthStateNotConfigured {
		t.Errorf("Status() = %q, want not_configured", got)
	}
}

func TestManager_Status_Authorized(t *testing.T) {
	repo := &mockCredentialRepo{cred: &model.Credential{
		AccessToken: "valid",
		Expiry:      fixedNow.Add(time.Hour),
	}}
	var buf bytes.Buffer
	m := newTestManager(repo, "", nil, &buf, nil)

	if got := m.Status(context.Background()); got != model.AuthStateAuthorized {
		t.Errorf("Status() = %q, want authorized", got)
	}
	cred := m.ValidCredential(context.Background())
	if cred == nil || cred.AccessToken != "valid" {
		t.Errorf("ValidCredential() = %+v", cred)
	}
	if len(repo.saved) != 0 {
		t.Errorf("有効なトークンは保存し直さないべき: %d", len(repo.saved))
	}
}

func TestManager_Status_RefreshesAndPersists(t *testing.T) {
	tokenServer, calls := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh-1" {
			t.Errorf("リフレッシュのリクエストが不正: %v", form)
		}
		if form.Get("client_id") != "stored-client" {
			t.Errorf("client_id = %q, want stored-client", form.Get("client_id"))
		}
		return http.StatusOK, map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})

	repo := &mockCredentialRepo{cred: &model.Credential{
		AccessToken:  "old-access",
		RefreshToken: "refresh-1",
		Expiry:       fixedNow.Add(-time.Minute),
		ClientID:     "stored-client",
		ClientSecret: "stored-secret",
		TokenURI:     tokenServer.URL,
		Scopes:       Scopes(),
	}}
	rec := &recordingMetrics{}
	var buf bytes.Buffer
	m := newTestManager(repo, "", tokenServer.Client(), &buf, rec)

	if got := m.Status(context.Background()); got != model.AuthStateAuthorized {
		t.Fatalf("Status() = %q, want authorized", got)
	}
	if *calls != 1 {
		t.Errorf("トークンエンドポイント呼び出し回数 = %d, want 1", *calls)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("保存回数 = %d, want 1", len(repo.saved))
	}
	saved := repo.saved[0]
	if saved.AccessToken != "new-access" {
		t.Errorf("保存されたアクセストークン = %q, want new-access", saved.AccessToken)
	}
	if saved.RefreshToken != "refresh-1" {
		t.Errorf("リフレッシュトークンは保持されるべき: %q", saved.RefreshToken)
	}
	if saved.ClientID != "stored-client" || saved.TokenURI != tokenServer.URL {
		t.Errorf("クライアント情報が失われている: %+v", saved)
	}
	if len(rec.refreshes) != 1 || !rec.refreshes[0] {
		t.Errorf("リフレッシュ結果のメトリクス = %v, want [true]", rec.refreshes)
	}
}

// 注入した時刻が実時刻より進んでいても、期限切れと判定したトークンは必ずリフレッシュする。
func TestManager_Status_RefreshesWhenClockAheadOfWallTime(t *testing.T) {
	tokenServer, calls := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})

	wall := time.Now().UTC()
	repo := &mockCredentialRepo{cred: &model.Credential{
		AccessToken:  "old-access",
		RefreshToken: "refresh-1",
		Expiry:       wall.Add(time.Hour),
		ClientID:     "stored-client",
		ClientSecret: "stored-secret",
		TokenURI:     tokenServer.URL,
	}}
	var buf bytes.Buffer
	m := NewManager(repo, Config{
		HTTPClient: tokenServer.Client(),
		Logger:     newTestLogger(&buf),
		Now:        func() time.Time { return wall.Add(2 * time.Hour) },
	})

	if got := m.Status(context.Background()); got != model.AuthStateAuthorized {
		t.Fatalf("Status() = %q, want authorized", got)
	}
	if *calls != 1 {
		t.Errorf("トークンエンドポイント呼び出し回数 = %d, want 1", *calls)
	}
	if len(repo.saved) != 1 || repo.saved[0].AccessToken != "new-access" {
		t.Errorf("新しいアクセストークンが保存されるべき: %+v", repo.saved)
	}
}

func TestManager_Status_ExpiredWithoutRefreshToken(t *testing.T) {
	repo := &mockCredentialRepo{cred: &model.Credential{
		AccessToken: "old-access",
		Expiry:      fixedNow.Add(-time.Minute),
	}}
	var buf bytes.Buffer
	m := newTestManager(repo, "", nil, &buf, nil)

	if got := m.Status(context.Background()); got != model.AuthStateExpired {
		t.Errorf("Status() = %q, want expired", got)
	}
	if len(repo.saved) != 0 {
		t.Errorf("何も保存されないべき: %d", len(repo.saved))
	}
}

func TestManager_Status_RefreshFailure(t *testing.T) {
	tokenServer, _ := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{"error": "invalid_grant"}
	})
	repo := &mockCredentialRepo{cred: &model.Credential{
		AccessToken:  "old-access",
		RefreshToken: "revoked",
		Expiry:       fixedNow.Add(-time.Minute),
		ClientID:     "c",
		ClientSecret: "s",
		TokenURI:     tokenServer.URL,
	}}
	rec := &recordingMetrics{}
	var buf bytes.Buffer
	m := newTestManager(repo, "", tokenServer.Client(), &buf, rec)

	if got := m.Status(context.Background()); got != model.AuthStateExpired {
		t.Errorf("Status() = %q, want expired", got)
	}
	if m.ValidCredential(context.Background()) != nil {
		t.Error("リフレッシュ失敗時は ValidCredential は nil であるべき")
	}
	if len(repo.saved) != 0 {
		t.Errorf("何も保存されないべき: %d", len(repo.saved))
	}
	if len(rec.refreshes) == 0 || rec.refreshes[0] {
		t.Errorf("リフレッシュ失敗がメトリクスに記録されるべき: %v", rec.refreshes)
	}
}

func TestManager_Status_SaveFailureStillAuthorized(t *testing.T) {
	tokenServer, _ := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		return http.StatusOK, map[string]any{"access_token": "new", "token_type": "Bearer", "expires_in": 3600}
	})
	repo := &mockCredentialRepo{
		cred: &model.Credential{
			AccessToken: "old", RefreshToken: "r", Expiry: fixedNow.Add(-time.Minute),
			ClientID: "c", ClientSecret: "s", TokenURI: tokenServer.URL,
		},
		saveFn: func(*model.Credential) error { return errors.New("disk full") },
	}
	var buf bytes.Buffer
	m := newTestManager(repo, "", tokenServer.Client(), &buf, nil)

	cred := m.ValidCredential(context.Background())
	if cred == nil || cred.AccessToken != "new" {
		t.Errorf("保存に失敗してもリフレッシュ済みの認可情報を返すべき: %+v", cred)
	}
	if !bytes.Contains(buf.Bytes(), []byte("disk full")) {
		t.Error("保存失敗はログに記録されるべき")
	}
}

func TestManager_Refresh_FallsBackToLocalClientConfig(t *testing.T) {
	tokenServer, _ := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		if form.Get("client_id") != "local-client.apps.googleusercontent.com" {
			t.Errorf("client_id = %q, want local client", form.Get("client_id"))
		}
		return http.StatusOK, map[string]any{"access_token": "new", "token_type": "Bearer", "expires_in": 3600}
	})
	secretPath := writeClientSecret(t, "installed", tokenServer.URL)
	repo := &mockCredentialRepo{cred: &model.Credential{
		AccessToken: "old", RefreshToken: "r", Expiry: fixedNow.Add(-time.Minute),
	}}
	var buf bytes.Buffer
	m := newTestManager(repo, secretPath, tokenServer.Client(), &buf, nil)

	if got := m.Status(context.Background()); got != model.AuthStateAuthorized {
		t.Fatalf("Status() = %q, want authorized", got)
	}
	if repo.cred.ClientSecret != "local-secret" {
		t.Errorf("ローカル設定のクライアント情報で補完されるべき: %+v", repo.cred)
	}
}

func TestManager_BeginAuthorization(t *testing.T) {
	secretPath := writeClientSecret(t, "web", "https://oauth2.googleapis.com/token")
	var buf bytes.Buffer
	m := newTestManager(&mockCredentialRepo{}, secretPath, nil, &buf, nil)

	authURL, ok := m.BeginAuthorization("http://localhost:8001/api/v1/google/callback")
	if !ok {
		t.Fatal("BeginAuthorization は成功するべき")
	}

	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("URLのパースに失敗: %v", err)
	}
	q := u.Query()
	checks := map[string]string{
		"client_id":             "local-client.apps.googleusercontent.com",
		"redirect_uri":          "http://localhost:8001/api/v1/google/callback",
		"response_type":         "code",
		"access_type":           "offline",
		"prompt":                "consent",
		"code_challenge_method": "S256",
		"scope":                 ScopeCalendarReadonly + " " + ScopeGmailReadonly,
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if q.Get("state") == "" || q.Get("code_challenge") == "" {
		t.Error("state と code_challenge が含まれるべき")
	}
	if m.flow == nil || m.flow.state != q.Get("state") {
		t.Error("フロー情報が保持されるべき")
	}
}

func TestManager_BeginAuthorization_NoClientConfig(t *testing.T) {
	var buf bytes.Buffer
	m := newTestManager(&mockCredentialRepo{}, filepath.Join(t.TempDir(), "missing.json"), nil, &buf, nil)

	authURL, ok := m.BeginAuthorization("http://localhost/callback")
	if ok || authURL != "" {
		t.Errorf("BeginAuthorization() = (%q, %v), want (\"\", false)", authURL, ok)
	}
}

func TestManager_BeginAuthorization_SecondCallOverwrites(t *testing.T) {
	secretPath := writeClientSecret(t, "web", "https://oauth2.googleapis.com/token")
	var buf bytes.Buffer
	m := newTestManager(&mockCredentialRepo{}, secretPath, nil, &buf, nil)

	m.BeginAuthorization("http://localhost/first")
	first := m.flow.state
	m.BeginAuthorization("http://localhost/second")

	if m.flow.state == first {
		t.Error("2回目の開始でフロー情報が置き換わるべき")
	}
	if m.flow.redirectURL != "http://localhost/second" {
		t.Errorf("redirectURL = %q", m.flow.redirectURL)
	}
}

func TestManager_CompleteAuthorization(t *testing.T) {
	var gotVerifier string
	tokenServer, _ := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		if form.Get("grant_type") != "authorization_code" || form.Get("code") != "auth-code" {
			t.Errorf("交換リクエストが不正: %v", form)
		}
		gotVerifier = form.Get("code_verifier")
		return http.StatusOK, map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        ScopeCalendarReadonly + " " + ScopeGmailReadonly,
		}
	})
	secretPath := writeClientSecret(t, "web", tokenServer.URL)
	repo := &mockCredentialRepo{cred: &model.Credential{AccessToken: "previous", RefreshToken: "kept-refresh"}}
	var buf bytes.Buffer
	m := newTestManager(repo, secretPath, tokenServer.Client(), &buf, nil)

	if _, ok := m.BeginAuthorization("http://localhost/callback"); !ok {
		t.Fatal("BeginAuthorization に失敗")
	}
	state := m.flow.state
	verifier := m.flow.verifier

	if !m.CompleteAuthorization(context.Background(), "auth-code", state) {
		t.Fatal("CompleteAuthorization は成功するべき")
	}
	if gotVerifier != verifier {
		t.Errorf("code_verifier = %q, want %q", gotVerifier, verifier)
	}

	saved := repo.cred
	if saved.AccessToken != "access-1" {
		t.Errorf("AccessToken = %q, want access-1", saved.AccessToken)
	}
	if saved.RefreshToken != "kept-refresh" {
		t.Errorf("交換で返らないリフレッシュトークンは既存の値を引き継ぐべき: %q", saved.RefreshToken)
	}
	if saved.ClientID != "local-client.apps.googleusercontent.com" || saved.ClientSecret != "local-secret" || saved.TokenURI != tokenServer.URL {
		t.Errorf("クライアント情報はローカル設定から補完されるべき: %+v", saved)
	}
	if len(saved.Scopes) != 2 {
		t.Errorf("Scopes = %v", saved.Scopes)
	}
	if m.flow != nil {
		t.Error("成功後はフロー情報がクリアされるべき")
	}
}

func TestManager_CompleteAuthorization_Failures(t *testing.T) {
	tokenServer, _ := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		if form.Get("code") == "bad" {
			return http.StatusBadRequest, map[string]any{"error": "invalid_grant"}
		}
		return http.StatusOK, map[string]any{"access_token": "a", "token_type": "Bearer", "refresh_token": "r"}
	})
	secretPath := writeClientSecret(t, "web", tokenServer.URL)

	t.Run("フローなし", func(t *testing.T) {
		var buf bytes.Buffer
		m := newTestManager(&mockCredentialRepo{}, secretPath, tokenServer.Client(), &buf, nil)
		if m.CompleteAuthorization(context.Background(), "code", "") {
			t.Error("フローがない場合は false であるべき")
		}
	})

	t.Run("state不一致", func(t *testing.T) {
		var buf bytes.Buffer
		m := newTestManager(&mockCredentialRepo{}, secretPath, tokenServer.Client(), &buf, nil)
		m.BeginAuthorization("http://localhost/callback")
		if m.CompleteAuthorization(context.Background(), "code", "forged") {
			t.Error("state 不一致は false であるべき")
		}
		if m.flow == nil {
			t.Error("失敗時はフロー情報を保持するべき")
		}
	})

	t.Run("交換失敗", func(t *testing.T) {
		var buf bytes.Buffer
		repo := &mockCredentialRepo{}
		m := newTestManager(repo, secretPath, tokenServer.Client(), &buf, nil)
		m.BeginAuthorization("http://localhost/callback")
		if m.CompleteAuthorization(context.Background(), "bad", "") {
			t.Error("交換失敗は false であるべき")
		}
		if len(repo.saved) != 0 {
			t.Error("交換失敗時は保存しないべき")
		}
	})

	t.Run("保存失敗", func(t *testing.T) {
		var buf bytes.Buffer
		repo := &mockCredentialRepo{saveFn: func(*model.Credential) error { return errors.New("read-only") }}
		m := newTestManager(repo, secretPath, tokenServer.Client(), &buf, nil)
		m.BeginAuthorization("http://localhost/callback")
		if m.CompleteAuthorization(context.Background(), "code", "") {
			t.Error("保存失敗は false であるべき")
		}
	})
}

func TestManager_ConcurrentRefreshIsSerialized(t *testing.T) {
	tokenServer, calls := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		return http.StatusOK, map[string]any{"access_token": "new", "token_type": "Bearer", "expires_in": 3600}
	})
	repo := &mockCredentialRepo{cred: &model.Credential{
		AccessToken: "old", RefreshToken: "r", Expiry: fixedNow.Add(-time.Minute),
		ClientID: "c", ClientSecret: "s", TokenURI: tokenServer.URL,
	}}
	var buf bytes.Buffer
	m := newTestManager(repo, "", tokenServer.Client(), &buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Status(context.Background())
		}()
	}
	wg.Wait()

	if *calls != 1 {
		t.Errorf("同時アクセスでもリフレッシュは1回であるべき: %d", *calls)
	}
}
