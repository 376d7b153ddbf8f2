package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sudslexpro/portal/internal/account"
	"github.com/sudslexpro/portal/internal/middleware"
	"github.com/sudslexpro/portal/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	UpdateProfile(ctx context.Context, internalID, displayName, bio string) (*model.Account, error)
}

// AccountResolver は主体から内部アカウントを引き当てるインターフェース。
type AccountResolver interface {
	FindByAccountID(ctx context.Context, accountID string) (*model.Account, error)
}

// AccountHandler はプロフィール関連のHTTPハンドラー。
type AccountHandler struct {
	service  AccountServiceInterface
	resolver AccountResolver
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, resolver AccountResolver) *AccountHandler {
	return &AccountHandler{service: service, resolver: resolver}
}

// updateProfileRequest はプロフィール更新のリクエストボディ。
type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

// UpdateProfile はサインイン中アカウントのプロフィールを更新する。
// PATCH /api/account/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストの形式が正しくありません。"))
		return
	}

	// 主体は外部公開用識別子を持つため、内部主キーへ引き直す
	acct, err := h.resolver.FindByAccountID(r.Context(), principal.AccountID)
	if err != nil {
		slog.Error("failed to resolve account", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if acct == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), acct.ID, req.DisplayName, req.Bio)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrDisplayNameRequired):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("表示名を入力してください。"))
		case errors.Is(err, account.ErrDisplayNameTooLong):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("表示名は50文字以内で入力してください。"))
		case errors.Is(err, account.ErrBioTooLong):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("自己紹介文は2000文字以内で入力してください。"))
		default:
			slog.Error("failed to update profile", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(updated))
}
