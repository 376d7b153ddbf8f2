package middleware

import (
	"net/http"

	"github.com/sudslexpro/portal/internal/authz"
	"github.com/sudslexpro/portal/internal/model"
)

// NewRequirePermission は指定権限を持つ主体のみを通すミドルウェアを返す。
//
// 認可ゲート（NewAuthorizationGate）の後段に配置する第2層のロールゲート。
// 外側のゲートが「呼び出し元が誰か」に答え、この層が「このリソースに
// 到達してよいか」に答える。ロール不一致は404を返し、対象ルートの
// 存在を資格のないロールに開示しない（リダイレクトや403にはしない）。
func NewRequirePermission(perm authz.Permission) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := PrincipalFromContext(r.Context())
			if err != nil {
				// ゲート未通過。フェイルクローズで404に倒す。
				WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
				return
			}

			if !authz.HasPermission(principal, perm) {
				WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
