package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sudslexpro/portal/internal/identifier"
	"github.com/sudslexpro/portal/internal/model"
	"github.com/sudslexpro/portal/internal/reset"
)

// --- モック定義 ---

type mockAccountRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.Account, error)
	findByAccountIDFn    func(ctx context.Context, accountID string) (*model.Account, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.Account, error)
	existsByAccountIDFn  func(ctx context.Context, accountID string) (bool, error)
	createFn             func(ctx context.Context, account *model.Account) error
	updateProfileFn      func(ctx context.Context, id, displayName, bio string) error
	updateRoleFn         func(ctx context.Context, id string, role model.Role) error
	updatePasswordHashFn func(ctx context.Context, id, passwordHash string) error
	updateLastLoginFn    func(ctx context.Context, id string) error
	updateStatusFn       func(ctx context.Context, id string, status model.AccountStatus) error
	listFn               func(ctx context.Context) ([]*model.Account, error)
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByAccountID(ctx context.Context, accountID string) (*model.Account, error) {
	if m.findByAccountIDFn != nil {
		return m.findByAccountIDFn(ctx, accountID)
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockAccountRepo) ExistsByAccountID(ctx context.Context, accountID string) (bool, error) {
	if m.existsByAccountIDFn != nil {
		return m.existsByAccountIDFn(ctx, accountID)
	}
	return false, nil
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}

func (m *mockAccountRepo) UpdateProfile(ctx context.Context, id, displayName, bio string) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, displayName, bio)
	}
	return nil
}

func (m *mockAccountRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, id, role)
	}
	return nil
}

func (m *mockAccountRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if m.updatePasswordHashFn != nil {
		return m.updatePasswordHashFn(ctx, id, passwordHash)
	}
	return nil
}

func (m *mockAccountRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

func (m *mockAccountRepo) UpdateStatus(ctx context.Context, id string, status model.AccountStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockAccountRepo) List(ctx context.Context) ([]*model.Account, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockIdentityRepo struct {
	findFn   func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	createFn func(ctx context.Context, identity *model.Identity) error
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findFn != nil {
		return m.findFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

func (m *mockIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	if m.createFn != nil {
		return m.createFn(ctx, identity)
	}
	return nil
}

type mockSessionRepo struct {
	createFn            func(ctx context.Context, session *model.Session) error
	findByIDFn          func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn        func(ctx context.Context, id string) error
	deleteByAccountIDFn func(ctx context.Context, accountID string) error
	created             []*model.Session
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	m.created = append(m.created, session)
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	if m.deleteByAccountIDFn != nil {
		return m.deleteByAccountIDFn(ctx, accountID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

type mockTokenStore struct {
	tokens map[string]*model.ResetToken
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{tokens: make(map[string]*model.ResetToken)}
}

func (m *mockTokenStore) Create(ctx context.Context, token *model.ResetToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockTokenStore) FindByToken(ctx context.Context, token string) (*model.ResetToken, error) {
	return m.tokens[token], nil
}

func (m *mockTokenStore) DeleteByToken(ctx context.Context, token string) error {
	delete(m.tokens, token)
	return nil
}

func (m *mockTokenStore) DeleteByEmail(ctx context.Context, email string) error {
	for k, v := range m.tokens {
		if v.Email == email {
			delete(m.tokens, k)
		}
	}
	return nil
}

type mockMailer struct {
	sendFn func(ctx context.Context, email, resetURL string) error
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	if m.sendFn != nil {
		return m.sendFn(ctx, email, resetURL)
	}
	return nil
}

type mockSanitizer struct{}

func (m *mockSanitizer) SanitizeDisplayName(raw string) string { return raw }
func (m *mockSanitizer) SanitizeBio(raw string) string         { return raw }

type mockLoginMetrics struct {
	outcomes []string
}

func (m *mockLoginMetrics) RecordLogin(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

// --- テストヘルパー ---

func newTestService(accountRepo *mockAccountRepo, sessionRepo *mockSessionRepo, metrics *mockLoginMetrics) (*Service, *mockTokenStore) {
	tokenStore := newMockTokenStore()
	resetMgr := reset.NewManager(accountRepo, tokenStore, &mockMailer{}, nil, reset.ManagerConfig{
		BaseURL:  "https://portal.example.com",
		TokenTTL: 1 * time.Hour,
	})
	allocator := identifier.NewAllocator(accountRepo, nil)

	var loginMetrics LoginMetrics
	if metrics != nil {
		loginMetrics = metrics
	}

	svc := NewService(
		nil,
		accountRepo,
		&mockIdentityRepo{},
		sessionRepo,
		allocator,
		resetMgr,
		&mockSanitizer{},
		loginMetrics,
		ServiceConfig{SessionMaxAge: 86400},
	)
	return svc, tokenStore
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(h)
}

// --- SignUp のテスト ---

func TestSignUp_CreatesAccountWithAllocatedID(t *testing.T) {
	var created *model.Account
	accountRepo := &mockAccountRepo{
		createFn: func(ctx context.Context, account *model.Account) error {
			created = account
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{}
	svc, _ := newTestService(accountRepo, sessionRepo, nil)

	account, session, err := svc.SignUp(context.Background(), "hanako@example.com", "correct-horse", "Hanako")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created == nil {
		t.Fatal("expected account to be persisted")
	}
	if !identifier.IsValidAccountID(account.AccountID) {
		t.Errorf("account ID %q does not match expected format", account.AccountID)
	}
	if account.Role != model.RoleUser {
		t.Errorf("role = %q, want %q", account.Role, model.RoleUser)
	}
	if account.Status != model.AccountActive {
		t.Errorf("status = %q, want %q", account.Status, model.AccountActive)
	}
	if account.PasswordHash == "" || account.PasswordHash == "correct-horse" {
		t.Error("password should be stored as a hash")
	}
	if session == nil || session.AccountID != account.ID {
		t.Error("expected session bound to the new account")
	}
	if len(sessionRepo.created) != 1 {
		t.Errorf("session create count = %d, want 1", len(sessionRepo.created))
	}
}

func TestSignUp_InvalidEmail_ReturnsError(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	_, _, err := svc.SignUp(context.Background(), "not-an-email", "correct-horse", "Hanako")
	if !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("err = %v, want ErrInvalidEmail", err)
	}
}

func TestSignUp_ShortPassword_ReturnsError(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	_, _, err := svc.SignUp(context.Background(), "hanako@example.com", "short", "Hanako")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("err = %v, want ErrWeakPassword", err)
	}
}

func TestSignUp_DuplicateEmail_ReturnsError(t *testing.T) {
	accountRepo := &mockAccountRepo{
		createFn: func(ctx context.Context, account *model.Account) error {
			return model.ErrDuplicateEmail
		},
	}
	svc, _ := newTestService(accountRepo, &mockSessionRepo{}, nil)

	_, _, err := svc.SignUp(context.Background(), "taken@example.com", "correct-horse", "Hanako")
	if !errors.Is(err, model.ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestSignUp_AccountIDConflict_RetriesWithNewID(t *testing.T) {
	attempts := 0
	accountRepo := &mockAccountRepo{
		createFn: func(ctx context.Context, account *model.Account) error {
			attempts++
			if attempts == 1 {
				return model.ErrDuplicateAccountID
			}
			return nil
		},
	}
	svc, _ := newTestService(accountRepo, &mockSessionRepo{}, nil)

	account, _, err := svc.SignUp(context.Background(), "hanako@example.com", "correct-horse", "Hanako")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("create attempts = %d, want 2", attempts)
	}
	if !identifier.IsValidAccountID(account.AccountID) {
		t.Errorf("account ID %q does not match expected format", account.AccountID)
	}
}

func TestSignUp_PersistentConflict_ReturnsExhausted(t *testing.T) {
	accountRepo := &mockAccountRepo{
		createFn: func(ctx context.Context, account *model.Account) error {
			return model.ErrDuplicateAccountID
		},
	}
	svc, _ := newTestService(accountRepo, &mockSessionRepo{}, nil)

	_, _, err := svc.SignUp(context.Background(), "hanako@example.com", "correct-horse", "Hanako")
	if !errors.Is(err, identifier.ErrExhausted) {
		t.Errorf("err = %v, want identifier.ErrExhausted", err)
	}
}

// --- SignIn のテスト ---

func activeAccountWithPassword(t *testing.T, password string) *model.Account {
	t.Helper()
	return &model.Account{
		ID:           "acc-1",
		AccountID:    "SLP00001",
		Email:        "hanako@example.com",
		PasswordHash: hashPassword(t, password),
		Role:         model.RoleUser,
		Status:       model.AccountActive,
	}
}

func TestSignIn_ValidCredentials_CreatesSession(t *testing.T) {
	account := activeAccountWithPassword(t, "correct-horse")
	lastLoginUpdated := false
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			if email == account.Email {
				return account, nil
			}
			return nil, nil
		},
		updateLastLoginFn: func(ctx context.Context, id string) error {
			lastLoginUpdated = true
			return nil
		},
	}
	metrics := &mockLoginMetrics{}
	svc, _ := newTestService(accountRepo, &mockSessionRepo{}, metrics)

	got, session, err := svc.SignIn(context.Background(), "hanako@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccountID != "SLP00001" {
		t.Errorf("AccountID = %q, want %q", got.AccountID, "SLP00001")
	}
	if session == nil || session.AccountID != account.ID {
		t.Error("expected session bound to the account")
	}
	if !lastLoginUpdated {
		t.Error("expected last login to be updated")
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "success" {
		t.Errorf("login outcomes = %v, want [success]", metrics.outcomes)
	}
}

func TestSignIn_WrongPassword_ReturnsInvalidCredentials(t *testing.T) {
	account := activeAccountWithPassword(t, "correct-horse")
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return account, nil
		},
	}
	metrics := &mockLoginMetrics{}
	svc, _ := newTestService(accountRepo, &mockSessionRepo{}, metrics)

	_, _, err := svc.SignIn(context.Background(), "hanako@example.com", "wrong-password")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "invalid_credentials" {
		t.Errorf("login outcomes = %v, want [invalid_credentials]", metrics.outcomes)
	}
}

func TestSignIn_UnknownEmail_ReturnsInvalidCredentials(t *testing.T) {
	// 未登録アドレスとパスワード不一致は同じエラー。
	// どちらが誤っているかを呼び出し元に開示しない。
	svc, _ := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	_, _, err := svc.SignIn(context.Background(), "nobody@example.com", "whatever-password")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignIn_DeactivatedAccount_ReturnsDeactivated(t *testing.T) {
	account := activeAccountWithPassword(t, "correct-horse")
	account.Status = model.AccountDeactivated
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return account, nil
		},
	}
	metrics := &mockLoginMetrics{}
	svc, _ := newTestService(accountRepo, &mockSessionRepo{}, metrics)

	_, _, err := svc.SignIn(context.Background(), "hanako@example.com", "correct-horse")
	if !errors.Is(err, model.ErrAccountDeactivated) {
		t.Errorf("err = %v, want ErrAccountDeactivated", err)
	}
	if len(metrics.outcomes) != 1 || metrics.outcomes[0] != "deactivated" {
		t.Errorf("login outcomes = %v, want [deactivated]", metrics.outcomes)
	}
}

func TestSignIn_OAuthOnlyAccount_ReturnsInvalidCredentials(t *testing.T) {
	account := activeAccountWithPassword(t, "correct-horse")
	account.PasswordHash = "" // OAuth専用アカウント
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return account, nil
		},
	}
	svc, _ := newTestService(accountRepo, &mockSessionRepo{}, nil)

	_, _, err := svc.SignIn(context.Background(), "hanako@example.com", "correct-horse")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

// --- Logout / GetCurrentAccount のテスト ---

func TestLogout_DeletesSession(t *testing.T) {
	var deletedID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	svc, _ := newTestService(&mockAccountRepo{}, sessionRepo, nil)

	if err := svc.Logout(context.Background(), "session-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deletedID != "session-123" {
		t.Errorf("deleted session = %q, want %q", deletedID, "session-123")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestGetCurrentAccount_ValidSession_ReturnsAccount(t *testing.T) {
	account := activeAccountWithPassword(t, "correct-horse")
	accountRepo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			if id == account.ID {
				return account, nil
			}
			return nil, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "session-123" {
				return &model.Session{ID: id, AccountID: account.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, nil
		},
	}
	svc, _ := newTestService(accountRepo, sessionRepo, nil)

	got, err := svc.GetCurrentAccount(context.Background(), "session-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccountID != "SLP00001" {
		t.Errorf("AccountID = %q, want %q", got.AccountID, "SLP00001")
	}
}

func TestGetCurrentAccount_ExpiredSession_ReturnsError(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	if _, err := svc.GetCurrentAccount(context.Background(), "gone-session"); err == nil {
		t.Error("expected error for missing session")
	}
}

// --- パスワードリセット完了のテスト ---

func TestCompletePasswordReset_ValidToken_UpdatesPasswordAndRevokesSessions(t *testing.T) {
	account := activeAccountWithPassword(t, "old-password")
	var newHash string
	var revokedAccountID string
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			if email == account.Email {
				return account, nil
			}
			return nil, nil
		},
		updatePasswordHashFn: func(ctx context.Context, id, passwordHash string) error {
			newHash = passwordHash
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		deleteByAccountIDFn: func(ctx context.Context, accountID string) error {
			revokedAccountID = accountID
			return nil
		},
	}
	svc, tokenStore := newTestService(accountRepo, sessionRepo, nil)

	// トークンを発行しておく
	if err := svc.RequestPasswordReset(context.Background(), account.Email); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var tokenValue string
	for k := range tokenStore.tokens {
		tokenValue = k
	}
	if tokenValue == "" {
		t.Fatal("expected a token to be issued")
	}

	consumed, err := svc.CompletePasswordReset(context.Background(), tokenValue, "new-password-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !consumed {
		t.Fatal("expected token to be consumed")
	}
	if newHash == "" {
		t.Fatal("expected password hash to be updated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(newHash), []byte("new-password-1")); err != nil {
		t.Error("new hash should match the new password")
	}
	if revokedAccountID != account.ID {
		t.Errorf("revoked account = %q, want %q", revokedAccountID, account.ID)
	}

	// 同一トークンの2回目の提示は消費されない
	consumed, err = svc.CompletePasswordReset(context.Background(), tokenValue, "another-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed {
		t.Error("second redemption should not succeed")
	}
}

func TestCompletePasswordReset_UnknownToken_NotConsumed(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	consumed, err := svc.CompletePasswordReset(context.Background(), "no-such-token", "new-password-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed {
		t.Error("unknown token should not be consumed")
	}
}

func TestCompletePasswordReset_ShortPassword_ReturnsError(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	_, err := svc.CompletePasswordReset(context.Background(), "some-token", "short")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("err = %v, want ErrWeakPassword", err)
	}
}

func TestRequestPasswordReset_InvalidEmail_ReturnsError(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	if err := svc.RequestPasswordReset(context.Background(), "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("err = %v, want ErrInvalidEmail", err)
	}
}

func TestRequestPasswordReset_UnknownEmail_Succeeds(t *testing.T) {
	// ユーザー列挙対策: 未登録アドレスでもエラーにしない
	svc, tokenStore := newTestService(&mockAccountRepo{}, &mockSessionRepo{}, nil)

	if err := svc.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokenStore.tokens) != 0 {
		t.Error("no token should be issued for unknown email")
	}
}

// 登録済みアドレスへの依頼が配信完了を待たずに返ることを検証する。
// 配信を待つと、未登録アドレスとの応答時間差でアカウントの存在を
// 推測できてしまう。
func TestRequestPasswordReset_KnownEmail_DoesNotWaitForDelivery(t *testing.T) {
	account := &model.Account{
		ID:        "acc-1",
		AccountID: "SLP00042",
		Email:     "user@example.com",
		Role:      model.RoleUser,
		Status:    model.AccountActive,
	}
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			if email == account.Email {
				return account, nil
			}
			return nil, nil
		},
	}

	release := make(chan struct{})
	blockingMailer := &mockMailer{
		sendFn: func(ctx context.Context, email, resetURL string) error {
			<-release
			return nil
		},
	}
	defer close(release)

	tokenStore := newMockTokenStore()
	resetMgr := reset.NewManager(accountRepo, tokenStore, blockingMailer, nil, reset.ManagerConfig{
		BaseURL:  "https://portal.example.com",
		TokenTTL: 1 * time.Hour,
	})
	svc := NewService(
		nil,
		accountRepo,
		&mockIdentityRepo{},
		&mockSessionRepo{},
		identifier.NewAllocator(accountRepo, nil),
		resetMgr,
		&mockSanitizer{},
		nil,
		ServiceConfig{SessionMaxAge: 86400},
	)

	done := make(chan error, 1)
	go func() {
		done <- svc.RequestPasswordReset(context.Background(), account.Email)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RequestPasswordReset should return without waiting for mail delivery")
	}

	if len(tokenStore.tokens) != 1 {
		t.Errorf("persisted tokens = %d, want 1 before delivery completes", len(tokenStore.tokens))
	}
}
