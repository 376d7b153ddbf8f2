// Package auth はサインアップ、サインイン、OAuth認証フロー、
// セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudslexpro/portal/internal/identifier"
	"github.com/sudslexpro/portal/internal/model"
	"github.com/sudslexpro/portal/internal/repository"
	"github.com/sudslexpro/portal/internal/reset"
	"github.com/sudslexpro/portal/internal/security"
)

// minPasswordLength はパスワードの最低文字数。
const minPasswordLength = 8

// ErrWeakPassword はパスワードが最低文字数に満たないことを表す。
var ErrWeakPassword = errors.New("password is too short")

// ErrInvalidEmail はメールアドレスの形式不正を表す。
var ErrInvalidEmail = errors.New("invalid email format")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, SAML等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// LoginMetrics はサインイン試行のメトリクス記録インターフェース。
type LoginMetrics interface {
	RecordLogin(outcome string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider // nilの場合はOAuthサインイン無効
	accountRepo repository.AccountRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	allocator   *identifier.Allocator
	resetMgr    *reset.Manager
	sanitizer   security.ProfileSanitizerService
	metrics     LoginMetrics // nilの場合は記録しない
	config      ServiceConfig
}

// NewService はServiceを生成する。oauthとmetricsはnilでもよい。
func NewService(
	oauth OAuthProvider,
	accountRepo repository.AccountRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	allocator *identifier.Allocator,
	resetMgr *reset.Manager,
	sanitizer security.ProfileSanitizerService,
	metrics LoginMetrics,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		accountRepo: accountRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		allocator:   allocator,
		resetMgr:    resetMgr,
		sanitizer:   sanitizer,
		metrics:     metrics,
		config:      config,
	}
}

// SignUp は新規アカウントを作成し、セッションを発行する。
// アカウント識別子はアロケータが割り当てる。識別子の作成時衝突は
// アロケータの再試行予算内で再割り当てされる。
// メールアドレス重複はmodel.ErrDuplicateEmail、
// 割り当て上限超過はidentifier.ErrExhaustedを返す。
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*model.Account, *model.Session, error) {
	// 1. 入力検証
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, nil, ErrWeakPassword
	}

	// 2. パスワードハッシュの生成
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := s.sanitizer.SanitizeDisplayName(displayName)
	now := time.Now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		Status:       model.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 3. 識別子の割り当てと永続化。識別子の一意制約違反は
	// アロケータに差し戻して再生成させる。
	accountID, err := s.allocator.AllocateAndCreate(ctx, func(ctx context.Context, candidate string) error {
		account.AccountID = candidate
		return s.accountRepo.Create(ctx, account)
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicateEmail) {
			return nil, nil, model.ErrDuplicateEmail
		}
		if errors.Is(err, identifier.ErrExhausted) {
			return nil, nil, identifier.ErrExhausted
		}
		return nil, nil, fmt.Errorf("failed to create account: %w", err)
	}
	account.AccountID = accountID

	slog.Info("account created",
		slog.String("account_id", account.AccountID),
	)

	// 4. セッションを発行
	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return account, session, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
// 未登録アドレスとパスワード不一致はいずれもmodel.ErrInvalidCredentialsを
// 返し、どちらが誤っているかを開示しない。
// 無効化済みアカウントはmodel.ErrAccountDeactivatedを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Account, *model.Session, error) {
	account, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || account.PasswordHash == "" {
		// 未登録、またはOAuth専用アカウント。タイミング差を抑えるため
		// ダミーハッシュと比較してから拒否する。
		bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
		s.recordLogin("invalid_credentials")
		return nil, nil, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.recordLogin("invalid_credentials")
		return nil, nil, model.ErrInvalidCredentials
	}

	if account.Status != model.AccountActive {
		s.recordLogin("deactivated")
		return nil, nil, model.ErrAccountDeactivated
	}

	if err := s.accountRepo.UpdateLastLogin(ctx, account.ID); err != nil {
		// 最終ログイン日時の更新失敗はサインインを妨げない
		slog.Error("failed to update last login",
			slog.String("account_id", account.AccountID),
			slog.String("error", err.Error()),
		)
	}

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordLogin("success")
	slog.Info("account signed in",
		slog.String("account_id", account.AccountID),
	)
	return account, session, nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.GetLoginURL(state)
}

// HandleOAuthCallback はOAuthコールバックを処理し、セッションを発行する。
// 未連携ユーザーの場合はaccountsレコードとidentitiesレコードを自動作成する。
// 連携済みユーザーの場合はidentitiesテーブルで既存アカウントを特定しログインする。
func (s *Service) HandleOAuthCallback(ctx context.Context, code string) (*model.Session, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("oauth provider is not configured")
	}

	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存アカウントを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var internalID string

	if identity != nil {
		// 3a. 連携済み: identityから内部IDを取得
		account, err := s.accountRepo.FindByID(ctx, identity.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to find account for identity: %w", err)
		}
		if account == nil || account.Status != model.AccountActive {
			return nil, model.ErrAccountDeactivated
		}
		internalID = account.ID
		slog.Info("existing account logged in via oauth",
			slog.String("account_id", account.AccountID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		// 3b. 未連携: accountsレコードとidentitiesレコードを作成。
		// パスワードハッシュは持たない（OAuth専用アカウント）。
		account, err := s.createOAuthAccount(ctx, userInfo)
		if err != nil {
			return nil, err
		}
		internalID = account.ID
	}

	if err := s.accountRepo.UpdateLastLogin(ctx, internalID); err != nil {
		slog.Error("failed to update last login",
			slog.String("error", err.Error()),
		)
	}

	// 4. セッションを発行
	session, err := s.createSession(ctx, internalID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordLogin("success")
	return session, nil
}

// createOAuthAccount はOAuthユーザー情報から新規アカウントとidentityを作成する。
func (s *Service) createOAuthAccount(ctx context.Context, userInfo *OAuthUserInfo) (*model.Account, error) {
	now := time.Now()
	account := &model.Account{
		ID:          uuid.New().String(),
		Email:       userInfo.Email,
		DisplayName: s.sanitizer.SanitizeDisplayName(userInfo.Name),
		Role:        model.RoleUser,
		Status:      model.AccountActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	accountID, err := s.allocator.AllocateAndCreate(ctx, func(ctx context.Context, candidate string) error {
		account.AccountID = candidate
		return s.accountRepo.Create(ctx, account)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth account: %w", err)
	}
	account.AccountID = accountID

	identity := &model.Identity{
		ID:             uuid.New().String(),
		AccountID:      account.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}
	if err := s.identRepo.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	slog.Info("new account created via oauth",
		slog.String("account_id", account.AccountID),
		slog.String("provider", userInfo.Provider),
	)
	return account, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("account logged out")
	return nil
}

// GetCurrentAccount はセッションから現在のアカウントを取得する。
func (s *Service) GetCurrentAccount(ctx context.Context, sessionID string) (*model.Account, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	account, err := s.accountRepo.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account not found")
	}

	return account, nil
}

// RequestPasswordReset はリセットトークンの発行を依頼する。
// アカウントの存在有無にかかわらずエラー以外は常に成功として扱われる。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return s.resetMgr.Issue(ctx, email)
}

// CompletePasswordReset はリセットトークンを消費してパスワードを更新する。
// トークンが無効または期限切れの場合は(consumed=false, nil)を返す。
// 成功時は該当アカウントの全セッションを無効化する（紛失端末対策）。
func (s *Service) CompletePasswordReset(ctx context.Context, tokenValue, newPassword string) (bool, error) {
	if len(newPassword) < minPasswordLength {
		return false, ErrWeakPassword
	}

	result, err := s.resetMgr.ValidateAndConsume(ctx, tokenValue)
	if err != nil {
		return false, fmt.Errorf("failed to validate reset token: %w", err)
	}
	if result.Outcome != reset.OutcomeSuccess {
		return false, nil
	}

	account, err := s.accountRepo.FindByEmail(ctx, result.Email)
	if err != nil {
		return false, fmt.Errorf("failed to find account for reset: %w", err)
	}
	if account == nil {
		// トークン発行後にアカウントが消えた稀なケース
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.accountRepo.UpdatePasswordHash(ctx, account.ID, string(hash)); err != nil {
		return false, fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.sessionRepo.DeleteByAccountID(ctx, account.ID); err != nil {
		slog.Error("failed to revoke sessions after password reset",
			slog.String("account_id", account.AccountID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("password reset completed",
		slog.String("account_id", account.AccountID),
	)
	return true, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, internalID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		AccountID: internalID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// dummyPasswordHash は未登録アドレスへの応答時間を均すための比較用ハッシュ。
var dummyPasswordHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()
