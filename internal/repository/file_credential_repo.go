package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/dashhub/internal/model"
)

// tokenFileMode はトークンファイルのパーミッション。
const tokenFileMode = 0o600

// authorizedUserFile はGoogleのauthorized-user形式のトークンファイル。
// 他のGoogleクライアントライブラリが書き出したファイルもそのまま読める。
type authorizedUserFile struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	Type         string   `json:"type,omitempty"`
}

// expiryLayouts はexpiryとして受け付ける書式。タイムゾーンなしはUTCとみなす。
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// FileCredentialRepo はJSONファイルに認可情報を保存するリポジトリ。
type FileCredentialRepo struct {
	path string
}

// NewFileCredentialRepo はFileCredentialRepoを生成する。
func NewFileCredentialRepo(path string) *FileCredentialRepo {
	return &FileCredentialRepo{path: path}
}

// Load はトークンファイルを読み込む。ファイルが存在しない場合はnilを返す。
func (r *FileCredentialRepo) Load(ctx context.Context) (*model.Credential, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var f authorizedUserFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	cred := &model.Credential{
		AccessToken:  f.Token,
		RefreshToken: f.RefreshToken,
		TokenType:    f.TokenType,
		Scopes:       f.Scopes,
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		TokenURI:     f.TokenURI,
	}
	if f.Expiry != "" {
		expiry, err := parseExpiry(f.Expiry)
		if err != nil {
			return nil, err
		}
		cred.Expiry = expiry
	}
	return cred, nil
}

// Save は一時ファイルに書き出してからリネームすることで、トークンファイルを置き換える。
func (r *FileCredentialRepo) Save(ctx context.Context, cred *model.Credential) error {
	if cred == nil {
		return fmt.Errorf("credential is nil")
	}

	f := authorizedUserFile{
		Token:        cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenURI:     cred.TokenURI,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Scopes:       cred.Scopes,
		TokenType:    cred.TokenType,
		Type:         "authorized_user",
	}
	if !cred.Expiry.IsZero() {
		f.Expiry = cred.Expiry.UTC().Format(time.RFC3339Nano)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(tokenFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp token file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func parseExpiry(s string) (time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid expiry in token file: %q", s)
}

// compile-time interface check
var _ CredentialRepository = (*FileCredentialRepo)(nil)
