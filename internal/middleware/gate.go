package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sudslexpro/portal/internal/model"
)

// SessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_id"

// SignInPath は未認証リクエストのリダイレクト先。
const SignInPath = "/sign-in"

// publicExactPaths は完全一致で公開となるパス。
var publicExactPaths = []string{
	"/",
	"/favicon.ico",
}

// publicPrefixes は前方一致で公開となるパスのプレフィックス。
// マーケティング・法務ページ、サインイン/サインアップ/リセットフロー、
// ヘルスチェック、メトリクス、認証コールバック、静的アセットを含む。
var publicPrefixes = []string{
	"/sign-in",
	"/sign-up",
	"/forgot-password",
	"/reset-password",
	"/pricing",
	"/help-center",
	"/about",
	"/terms",
	"/privacy",
	"/health",
	"/metrics",
	"/auth/",
	"/static/",
	"/assets/",
}

// IsPublicPath はパスが認証不要の公開ルートかどうかを返す。
func IsPublicPath(path string) bool {
	for _, p := range publicExactPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// AccountFinder は主体の組み立てに必要なアカウント照会インターフェース。
// repository.AccountRepositoryの部分集合として定義する。
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
}

// GateMetrics は認可ゲートの判定メトリクス記録インターフェース。
type GateMetrics interface {
	RecordGateDecision(decision string)
}

// NewAuthorizationGate はリクエスト単位の認可ゲートミドルウェアを返す。
//
// 判定順序は固定: まず公開ルートの許可リストと照合し、一致すれば
// 認証状態にかかわらず無条件に通過させる。セッション照会はその後でのみ
// 行うため、公開ルートはセッションストアが不調でも到達可能なまま保たれる。
//
// 非公開ルートでは有効なセッションCookieを要求し、検証済みの主体を
// リクエストコンテキストへ注入する。欠落・無効の場合はページルートなら
// サインイン画面へリダイレクト、APIルートなら401を返す。
// ロールによるルート制限はこのゲートでは行わない（NewRequirePermission参照）。
func NewAuthorizationGate(sessions SessionFinder, accounts AccountFinder, metrics GateMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 許可リスト照合（セッション照会より先に評価する）
			if IsPublicPath(r.URL.Path) {
				recordDecision(metrics, "public")
				next.ServeHTTP(w, r)
				return
			}

			// 2. セッションCookieの検証
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				recordDecision(metrics, "denied")
				denyUnauthenticated(w, r)
				return
			}

			session, err := sessions.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				recordDecision(metrics, "denied")
				denyUnauthenticated(w, r)
				return
			}
			if session == nil {
				recordDecision(metrics, "denied")
				denyUnauthenticated(w, r)
				return
			}

			// 3. 主体の組み立て。無効化済みアカウントのセッションは通さない。
			account, err := accounts.FindByID(r.Context(), session.AccountID)
			if err != nil {
				slog.Error("failed to find account for session",
					slog.String("error", err.Error()),
				)
				recordDecision(metrics, "denied")
				denyUnauthenticated(w, r)
				return
			}
			if account == nil || account.Status != model.AccountActive {
				recordDecision(metrics, "denied")
				denyUnauthenticated(w, r)
				return
			}

			principal := &model.Principal{
				AccountID: account.AccountID,
				Email:     account.Email,
				Role:      account.Role,
			}

			recordDecision(metrics, "authenticated")
			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// denyUnauthenticated は未認証リクエストを拒否する。
// ページルートはサインイン画面へ303リダイレクト、APIルートは401を返す。
func denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}

func recordDecision(metrics GateMetrics, decision string) {
	if metrics != nil {
		metrics.RecordGateDecision(decision)
	}
}
