// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/sudslexpro/portal/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は内部主キーでアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByAccountID は外部公開用識別子でアカウントを取得する。見つからない場合はnilを返す。
	FindByAccountID(ctx context.Context, accountID string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// ExistsByAccountID は外部公開用識別子の存在有無を返す。
	// アロケータの衝突チェックに使用する。
	ExistsByAccountID(ctx context.Context, accountID string) (bool, error)

	// Create は割り当て済みの識別子を持つアカウントを作成する。
	// account_idの一意制約違反はmodel.ErrDuplicateAccountID、
	// emailの一意制約違反はmodel.ErrDuplicateEmailとして返す。
	Create(ctx context.Context, account *model.Account) error

	// UpdateProfile は表示名とbioを更新する。
	UpdateProfile(ctx context.Context, id, displayName, bio string) error

	// UpdateRole はロールを更新する。
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// UpdateLastLogin は最終ログイン日時を更新する。
	UpdateLastLogin(ctx context.Context, id string) error

	// UpdateStatus はアカウント状態を更新する。物理削除は行わない。
	UpdateStatus(ctx context.Context, id string, status model.AccountStatus) error

	// List は全アカウントを作成日時の降順で返す。管理画面のディレクトリ用。
	List(ctx context.Context) ([]*model.Account, error)
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create はidentityを作成する。
	Create(ctx context.Context, identity *model.Identity) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByAccountID は指定アカウントの全セッションを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ResetTokenRepository はパスワードリセットトークンの永続化インターフェース。
type ResetTokenRepository interface {
	// Create はリセットトークンを作成する。
	Create(ctx context.Context, token *model.ResetToken) error
	// FindByToken はトークン値でレコードを取得する。見つからない場合はnilを返す。
	// 期限切れ判定は呼び出し元（リセットマネージャ）が行う。
	FindByToken(ctx context.Context, token string) (*model.ResetToken, error)
	// DeleteByToken はトークン値でレコードを削除する。
	DeleteByToken(ctx context.Context, token string) error
	// DeleteByEmail は指定メールアドレスの全トークンを削除する。
	// 再発行時の「最新のみ有効」を実現する。
	DeleteByEmail(ctx context.Context, email string) error
	// DeleteExpired は期限切れトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
