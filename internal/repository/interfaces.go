// Package repository はGoogle認可情報の永続化を提供する。
// 保存先はJSONファイル（既定）またはPostgreSQLのいずれか。
package repository

import (
	"context"

	"github.com/hitoshi/dashhub/internal/model"
)

// CredentialRepository は単一ユーザーの認可情報の永続化インターフェース。
type CredentialRepository interface {
	// Load は保存済みの認可情報を取得する。存在しない場合はnilを返す。
	Load(ctx context.Context) (*model.Credential, error)
	// Save は認可情報を上書き保存する。
	Save(ctx context.Context, cred *model.Credential) error
}
