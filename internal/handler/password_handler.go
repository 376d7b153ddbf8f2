package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sudslexpro/portal/internal/auth"
	"github.com/sudslexpro/portal/internal/middleware"
	"github.com/sudslexpro/portal/internal/model"
)

// PasswordServiceInterface はパスワードリセットハンドラーが必要とする
// サービスインターフェース。
type PasswordServiceInterface interface {
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, tokenValue, newPassword string) (bool, error)
}

// PasswordHandler はパスワードリセット関連のHTTPハンドラー。
type PasswordHandler struct {
	service PasswordServiceInterface
}

// NewPasswordHandler はPasswordHandlerを生成する。
func NewPasswordHandler(service PasswordServiceInterface) *PasswordHandler {
	return &PasswordHandler{service: service}
}

// forgotPasswordRequest はリセット依頼のリクエストボディ。
type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// forgotPasswordResponse はリセット依頼のレスポンスボディ。
// アドレスの登録有無にかかわらず同一の内容を返す（ユーザー列挙対策）。
var forgotPasswordResponse = map[string]string{
	"message": "入力されたメールアドレスが登録されている場合、パスワードリセットの案内をお送りします。",
}

// ForgotPassword はパスワードリセットを依頼する。
// POST /auth/forgot-password
// 形式不正のメールアドレスのみ400。登録済み・未登録は同じ200を返す。
func (h *PasswordHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストの形式が正しくありません。"))
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, auth.ErrInvalidEmail) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidEmailError())
			return
		}
		// 内部エラーでも存在有無を漏らさないよう、ログのみ残して成功応答を返す
		slog.Error("password reset request failed", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(forgotPasswordResponse)
}

// resetPasswordRequest はリセット実行のリクエストボディ。
type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword はリセットトークンを消費してパスワードを更新する。
// POST /auth/reset-password
// 未存在と期限切れはいずれも同一の「無効または期限切れ」メッセージ。
func (h *PasswordHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストの形式が正しくありません。"))
		return
	}
	if req.Token == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidResetTokenError())
		return
	}

	consumed, err := h.service.CompletePasswordReset(r.Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("パスワードは8文字以上で入力してください。"))
			return
		}
		slog.Error("password reset failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if !consumed {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidResetTokenError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "パスワードを更新しました。新しいパスワードでサインインしてください。",
	})
}
