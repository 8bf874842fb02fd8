package repository

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/dashhub/internal/model"
)

func TestFileCredentialRepo_LoadMissingFile(t *testing.T) {
	repo := NewFileCredentialRepo(filepath.Join(t.TempDir(), "token.json"))

	cred, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if cred != nil {
		t.Errorf("ファイルがない場合は nil であるべき: %+v", cred)
	}
}

func TestFileCredentialRepo_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	repo := NewFileCredentialRepo(path)

	want := &model.Credential{
		AccessToken:  "ya29.new",
		RefreshToken: "1//refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC),
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.readonly"},
		ClientID:     "client.apps.googleusercontent.com",
		ClientSecret: "secret",
		TokenURI:     "https://oauth2.googleapis.com/token",
	}
	if err := repo.Save(context.Background(), want); err != nil {
		t.Fatalf("Save がエラーを返した: %v", err)
	}

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat に失敗: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("パーミッション = %o, want 600", mode)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("一時ファイルが残っている: %d entries", len(entries))
	}
}

func TestFileCredentialRepo_LoadAuthorizedUserFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	content := `{
  "token": "ya29.a0",
  "refresh_token": "1//0g",
  "token_uri": "https://oauth2.googleapis.com/token",
  "client_id": "abc.apps.googleusercontent.com",
  "client_secret": "shh",
  "scopes": ["https://www.googleapis.com/auth/calendar.readonly", "https://www.googleapis.com/auth/gmail.readonly"],
  "universe_domain": "googleapis.com",
  "account": "",
  "expiry": "2026-10-14T08:15:30.123456Z"
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile に失敗: %v", err)
	}

	cred, err := NewFileCredentialRepo(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if cred.AccessToken != "ya29.a0" || cred.RefreshToken != "1//0g" {
		t.Errorf("トークン = %q / %q", cred.AccessToken, cred.RefreshToken)
	}
	if len(cred.Scopes) != 2 {
		t.Errorf("スコープ数 = %d, want 2", len(cred.Scopes))
	}
	wantExpiry := time.Date(2026, 10, 14, 8, 15, 30, 123456000, time.UTC)
	if !cred.Expiry.Equal(wantExpiry) {
		t.Errorf("Expiry = %v, want %v", cred.Expiry, wantExpiry)
	}
}

func TestFileCredentialRepo_LoadNaiveExpiryIsUTC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(`{"token":"t","expiry":"2026-10-14T08:15:30"}`), 0o600); err != nil {
		t.Fatalf("WriteFile に失敗: %v", err)
	}

	cred, err := NewFileCredentialRepo(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if !cred.Expiry.Equal(time.Date(2026, 10, 14, 8, 15, 30, 0, time.UTC)) {
		t.Errorf("Expiry = %v", cred.Expiry)
	}
}

func TestFileCredentialRepo_LoadInvalid(t *testing.T) {
	tests := map[string]string{
		"不正なJSON":   `{not json`,
		"不正なexpiry": `{"token":"t","expiry":"yesterday"}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token.json")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatalf("WriteFile に失敗: %v", err)
			}
			if _, err := NewFileCredentialRepo(path).Load(context.Background()); err == nil {
				t.Error("読み取れないファイルはエラーを返すべき")
			}
		})
	}
}

func TestFileCredentialRepo_SaveNil(t *testing.T) {
	repo := NewFileCredentialRepo(filepath.Join(t.TempDir(), "token.json"))
	if err := repo.Save(context.Background(), nil); err == nil {
		t.Error("nil の保存はエラーを返すべき")
	}
}

func TestFileCredentialRepo_SaveToMissingDir(t *testing.T) {
	repo := NewFileCredentialRepo(filepath.Join(t.TempDir(), "missing", "token.json"))
	if err := repo.Save(context.Background(), &model.Credential{AccessToken: "t"}); err == nil {
		t.Error("存在しないディレクトリへの保存はエラーを返すべき")
	}
}
