// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウントの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザー。管理系の権限を一切持たない。
	RoleUser Role = "user"
	// RoleAdmin はユーザー管理を担う管理者。
	RoleAdmin Role = "admin"
	// RoleSuperAdmin はシステム・セキュリティ管理を含む最上位管理者。
	RoleSuperAdmin Role = "super_admin"
)

// ValidRoles は有効なロールの集合。
var ValidRoles = []Role{RoleUser, RoleAdmin, RoleSuperAdmin}

// IsValidRole はロール値が有効かどうかを返す。
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// AccountStatus はアカウントのライフサイクル状態を表す。
// アカウントは物理削除せず、状態遷移のみで管理する。
type AccountStatus string

const (
	// AccountActive は利用可能なアカウント。
	AccountActive AccountStatus = "active"
	// AccountDeactivated は無効化されたアカウント。ログイン不可。
	AccountDeactivated AccountStatus = "deactivated"
)

// Account はポータル利用者のアカウントを表す。
// AccountIDは外部公開用の識別子（英大文字3文字+数字5桁）で、
// 内部主キーのIDとは別に割り当てられる。
type Account struct {
	ID           string
	AccountID    string
	Email        string
	DisplayName  string
	Bio          string
	PasswordHash string // 資格情報未設定（OAuthのみ）の場合は空
	Role         Role
	Status       AccountStatus
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// 複数のIdP（Google等）に対応可能な構造。
type Identity struct {
	ID             string
	AccountID      string // accounts.id（内部主キー）への参照
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はアカウントのログインセッションを表す。
type Session struct {
	ID        string
	AccountID string // accounts.id（内部主キー）への参照
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Principal は認証済みリクエストに付随する主体を表す。
// ゲートがセッション検証後にリクエストコンテキストへ注入する。
// 永続化はしない。
type Principal struct {
	AccountID string // 外部公開用識別子（SLP#####）
	Email     string
	Role      Role
}
