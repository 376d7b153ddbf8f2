// Package account はプロフィール管理とアカウント管理機能を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/sudslexpro/portal/internal/model"
	"github.com/sudslexpro/portal/internal/repository"
	"github.com/sudslexpro/portal/internal/security"
)

const (
	maxDisplayNameLength = 50
	maxBioLength         = 2000
)

// 入力検証エラー
var (
	ErrDisplayNameRequired = errors.New("display name is required")
	ErrDisplayNameTooLong  = errors.New("display name is too long")
	ErrBioTooLong          = errors.New("bio is too long")
	ErrInvalidRole         = errors.New("invalid role")
)

// SessionRevoker は無効化時のセッション破棄インターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionRevoker interface {
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	accountRepo repository.AccountRepository
	sessions    SessionRevoker
	sanitizer   security.ProfileSanitizerService
}

// NewService はServiceを生成する。
func NewService(accountRepo repository.AccountRepository, sessions SessionRevoker, sanitizer security.ProfileSanitizerService) *Service {
	return &Service{
		accountRepo: accountRepo,
		sessions:    sessions,
		sanitizer:   sanitizer,
	}
}

// UpdateProfile は表示名と自己紹介文を更新する。
// 両フィールドとも保存前にサニタイズする。文字数制限は
// サニタイズ後の値に対して適用する。
func (s *Service) UpdateProfile(ctx context.Context, internalID, displayName, bio string) (*model.Account, error) {
	name := s.sanitizer.SanitizeDisplayName(displayName)
	cleanBio := s.sanitizer.SanitizeBio(bio)

	if name == "" {
		return nil, ErrDisplayNameRequired
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return nil, ErrDisplayNameTooLong
	}
	if utf8.RuneCountInString(cleanBio) > maxBioLength {
		return nil, ErrBioTooLong
	}

	if err := s.accountRepo.UpdateProfile(ctx, internalID, name, cleanBio); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	account, err := s.accountRepo.FindByID(ctx, internalID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload account: %w", err)
	}
	if account == nil {
		return nil, model.ErrAccountNotFound
	}

	slog.Info("profile updated",
		slog.String("account_id", account.AccountID),
	)
	return account, nil
}

// GetByAccountID は外部公開用識別子でアカウントを取得する。
// 見つからない場合はmodel.ErrAccountNotFoundを返す。
func (s *Service) GetByAccountID(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accountRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.ErrAccountNotFound
	}
	return account, nil
}

// List は全アカウントを返す。管理画面のディレクトリ用。
func (s *Service) List(ctx context.Context) ([]*model.Account, error) {
	accounts, err := s.accountRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// ChangeRole は指定アカウントのロールを変更する。
// 未知のロール値はErrInvalidRole、対象が存在しない場合は
// model.ErrAccountNotFoundを返す。
func (s *Service) ChangeRole(ctx context.Context, accountID string, role model.Role) (*model.Account, error) {
	if !model.IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	account, err := s.accountRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.ErrAccountNotFound
	}

	if err := s.accountRepo.UpdateRole(ctx, account.ID, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	account.Role = role
	slog.Info("account role changed",
		slog.String("account_id", account.AccountID),
		slog.String("role", string(role)),
	)
	return account, nil
}

// Deactivate は指定アカウントを無効化する。物理削除は行わない。
// 無効化と同時に該当アカウントの全セッションを破棄し、
// 発行済みセッションでの継続利用を止める。
func (s *Service) Deactivate(ctx context.Context, accountID string) error {
	account, err := s.accountRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return model.ErrAccountNotFound
	}

	if err := s.accountRepo.UpdateStatus(ctx, account.ID, model.AccountDeactivated); err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	if err := s.sessions.DeleteByAccountID(ctx, account.ID); err != nil {
		slog.Error("failed to revoke sessions for deactivated account",
			slog.String("account_id", account.AccountID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("account deactivated",
		slog.String("account_id", account.AccountID),
	)
	return nil
}
