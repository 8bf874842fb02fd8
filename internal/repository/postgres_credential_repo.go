package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/dashhub/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用した認可情報リポジトリ。
// レコードは model.DefaultCredentialID の1行のみ。
type PostgresCredentialRepo struct {
	db *sql.DB
	id string
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db, id: model.DefaultCredentialID}
}

// Load は保存済みの認可情報を取得する。存在しない場合はnilを返す。
func (r *PostgresCredentialRepo) Load(ctx context.Context) (*model.Credential, error) {
	cred := &model.Credential{}
	var expiry sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_type, expiry, scopes,
		        client_id, client_secret, token_uri
		 FROM google_credentials
		 WHERE id = $1`,
		r.id,
	).Scan(
		&cred.AccessToken, &cred.RefreshToken, &cred.TokenType, &expiry,
		pq.Array(&cred.Scopes), &cred.ClientID, &cred.ClientSecret, &cred.TokenURI,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if expiry.Valid {
		cred.Expiry = expiry.Time.UTC()
	}
	return cred, nil
}

// Save は認可情報をUPSERTで上書き保存する。
func (r *PostgresCredentialRepo) Save(ctx context.Context, cred *model.Credential) error {
	if cred == nil {
		return fmt.Errorf("credential is nil")
	}

	var expiry sql.NullTime
	if !cred.Expiry.IsZero() {
		expiry = sql.NullTime{Time: cred.Expiry.UTC(), Valid: true}
	}
	scopes := cred.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	tokenType := cred.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO google_credentials
		   (id, access_token, refresh_token, token_type, expiry, scopes,
		    client_id, client_secret, token_uri, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		 ON CONFLICT (id) DO UPDATE SET
		   access_token  = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   token_type    = EXCLUDED.token_type,
		   expiry        = EXCLUDED.expiry,
		   scopes        = EXCLUDED.scopes,
		   client_id     = EXCLUDED.client_id,
		   client_secret = EXCLUDED.client_secret,
		   token_uri     = EXCLUDED.token_uri,
		   updated_at    = now()`,
		r.id, cred.AccessToken, cred.RefreshToken, tokenType, expiry, pq.Array(scopes),
		cred.ClientID, cred.ClientSecret, cred.TokenURI,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
