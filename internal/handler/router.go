package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sudslexpro/portal/internal/authz"
	"github.com/sudslexpro/portal/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	AccountFinder     middleware.AccountFinder
	GateMetrics       middleware.GateMetrics
	HTTPMetrics       middleware.HTTPMetrics
	Logger            *slog.Logger
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// パスワードリセット
	PasswordService PasswordServiceInterface

	// アカウント
	AccountService  AccountServiceInterface
	AccountResolver AccountResolver

	// 管理
	AdminService AdminServiceInterface

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成した
// chi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → AuthorizationGate
//
// 認可ゲートは全ルートに適用される。公開ルートは許可リストで素通りし、
// 非公開ルートではゲートが主体をコンテキストへ注入する。管理ルートは
// さらにNewRequirePermissionで権限を重ね掛けする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))
	r.Use(middleware.NewAuthorizationGate(deps.SessionFinder, deps.AccountFinder, deps.GateMetrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	passwordHandler := NewPasswordHandler(deps.PasswordService)
	accountHandler := NewAccountHandler(deps.AccountService, deps.AccountResolver)
	adminHandler := NewAdminHandler(deps.AdminService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 公開ルート（許可リストでゲートを素通りする） ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/sign-up", authHandler.SignUp)
		r.Post("/sign-in", authHandler.SignIn)
		r.Post("/sign-out", authHandler.SignOut)
		r.Get("/me", authHandler.Me)

		// OAuthフロー
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)

		// パスワードリセット。依頼は認証前のためIP単位のレート制限をかける
		r.With(deps.RateLimiter.PasswordResetMiddleware()).Post("/forgot-password", passwordHandler.ForgotPassword)
		r.Post("/reset-password", passwordHandler.ResetPassword)
	})

	r.Get("/health", healthHandler.Check)
	r.Head("/health", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	// --- 認証が必要なルート ---
	// ゲート通過後の主体を前提に、アカウント単位のレート制限をかける
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Patch("/api/account/profile", accountHandler.UpdateProfile)

		// 管理ルート。権限不足は404（ルートの存在を開示しない）
		r.Route("/api/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewRequirePermission(authz.PermUsersManage))
				r.Get("/users", adminHandler.ListUsers)
				r.Put("/users/{id}/role", adminHandler.ChangeRole)
				r.Delete("/users/{id}", adminHandler.DeactivateUser)
			})

			r.With(middleware.NewRequirePermission(authz.PermAnalyticsView)).
				Get("/analytics", adminHandler.Analytics)

			r.With(middleware.NewRequirePermission(authz.PermSystemManage)).
				Get("/system", adminHandler.SystemInfo)
		})
	})

	return r
}
