package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sudslexpro/portal/internal/account"
	"github.com/sudslexpro/portal/internal/middleware"
	"github.com/sudslexpro/portal/internal/model"
)

// AdminServiceInterface は管理ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	List(ctx context.Context) ([]*model.Account, error)
	ChangeRole(ctx context.Context, accountID string, role model.Role) (*model.Account, error)
	Deactivate(ctx context.Context, accountID string) error
}

// AdminHandler はアカウント管理・運用系のHTTPハンドラー。
// ルート登録時にNewRequirePermissionで権限ゲートを重ねること。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListUsers は全アカウントの一覧を返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		slog.Error("failed to list accounts", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	responses := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		responses = append(responses, toAccountResponse(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"users": responses,
	})
}

// changeRoleRequest はロール変更のリクエストボディ。
type changeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeRole は指定アカウントのロールを変更する。
// PUT /api/admin/users/{id}/role
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストの形式が正しくありません。"))
		return
	}

	updated, err := h.service.ChangeRole(r.Context(), accountID, model.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidRole):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("指定されたロールは存在しません。"))
		case errors.Is(err, model.ErrAccountNotFound):
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
		default:
			slog.Error("failed to change role", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(updated))
}

// DeactivateUser は指定アカウントを無効化する。物理削除は行わない。
// DELETE /api/admin/users/{id}
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	if err := h.service.Deactivate(r.Context(), accountID); err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
			return
		}
		slog.Error("failed to deactivate account", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Analytics はポータル利用状況の概況を返す。
// GET /api/admin/analytics
// 集計基盤は外部コラボレータのため、ここではアカウント構成の概況のみ返す。
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		slog.Error("failed to aggregate accounts", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	total := len(accounts)
	active := 0
	byRole := map[string]int{}
	for _, a := range accounts {
		if a.Status == model.AccountActive {
			active++
		}
		byRole[string(a.Role)]++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_accounts":  total,
		"active_accounts": active,
		"by_role":         byRole,
	})
}

// SystemInfo はシステム運用情報を返す。super_admin専用ルート。
// GET /api/admin/system
func (h *AdminHandler) SystemInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service": "portal",
		"status":  "operational",
	})
}
