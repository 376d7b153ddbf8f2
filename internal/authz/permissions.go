// Package authz はロールベースの権限解決を提供する。
//
// ロールと権限の対応は起動後に変化しない静的テーブルで、
// 共有権限について user ⊂ admin ⊂ super_admin の包含関係を満たす。
// 判定はすべてフェイルクローズ: 不明なロールは空集合、
// 主体が存在しないリクエストに対する権限判定は常にfalseとなる。
package authz

import (
	"strings"

	"github.com/sudslexpro/portal/internal/model"
)

// Permission はシステム内の名前付き権限を表す。
type Permission string

// 権限の定義。
const (
	// PermQuotesCreate は見積もり作成。全ロール共通のポータル基本機能。
	PermQuotesCreate Permission = "quotes:create"
	// PermReportsView はレポート閲覧。全ロール共通のポータル基本機能。
	PermReportsView Permission = "reports:view"
	// PermUsersManage はユーザー管理。
	PermUsersManage Permission = "users:manage"
	// PermAnalyticsView は分析ダッシュボード閲覧。
	PermAnalyticsView Permission = "analytics:view"
	// PermSystemManage はシステム設定管理。super_admin専用。
	PermSystemManage Permission = "system:manage"
	// PermSecurityManage はセキュリティ設定管理。super_admin専用。
	PermSecurityManage Permission = "security:manage"
)

// rolePermissions は各ロールに付与される権限の対応表。
// 認可モデルの単一の真実源であり、実行時には変更しない。
// adminにあってsuper_adminにない権限を追加してはならない。
var rolePermissions = map[model.Role][]Permission{
	model.RoleUser: {
		PermQuotesCreate,
		PermReportsView,
	},
	model.RoleAdmin: {
		PermQuotesCreate,
		PermReportsView,
		PermUsersManage,
		PermAnalyticsView,
	},
	model.RoleSuperAdmin: {
		PermQuotesCreate,
		PermReportsView,
		PermUsersManage,
		PermAnalyticsView,
		PermSystemManage,
		PermSecurityManage,
	},
}

// PermissionsFor はロールに付与された全権限を返す。
// 不明なロールには空のスライスを返す（フェイルクローズ。エラーにはしない）。
// 返り値は内部テーブルのコピーであり、変更しても解決結果に影響しない。
func PermissionsFor(role model.Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return []Permission{}
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// HasPermission は主体が指定された権限を持つかどうかを返す。
// 主体が存在しない（未認証の）場合は常にfalseを返す。
func HasPermission(principal *model.Principal, perm Permission) bool {
	if principal == nil {
		return false
	}
	for _, p := range rolePermissions[principal.Role] {
		if p == perm {
			return true
		}
	}
	return false
}

// IsAdmin は主体のロールがadminかどうかを厳密な等価で返す。
// super_adminはadminとは見なさない。共有権限はテーブル側で明示的に付与する。
func IsAdmin(principal *model.Principal) bool {
	return principal != nil && principal.Role == model.RoleAdmin
}

// IsSuperAdmin は主体のロールがsuper_adminかどうかを厳密な等価で返す。
func IsSuperAdmin(principal *model.Principal) bool {
	return principal != nil && principal.Role == model.RoleSuperAdmin
}

// RouteSegment はロール値をURLセグメント形式に変換する純粋な整形関数。
// ロールの正準表現は列挙型のままとし、テキスト形式はルーティング用の派生値として扱う。
// 例: super_admin → super-admin
func RouteSegment(role model.Role) string {
	return strings.ReplaceAll(strings.ToLower(string(role)), "_", "-")
}
