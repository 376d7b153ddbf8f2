// Package reset はパスワードリセットトークンのライフサイクル管理を提供する。
//
// 発行はアカウントの存在有無にかかわらず呼び出し元には常に成功として扱われる
// （ユーザー列挙対策）。検証はトークン値の照合で行い、
// 成功時にはレコードを削除して単回利用を保証する。
package reset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/sudslexpro/portal/internal/model"
)

// tokenBytes はトークンのエントロピー（32バイト = 256bit）。
const tokenBytes = 32

// deliverTimeout はバックグラウンド配信の打ち切り時間。
const deliverTimeout = 15 * time.Second

// Outcome はトークン検証の結果種別を表す。
type Outcome int

const (
	// OutcomeSuccess はトークンが有効で、消費されたことを示す。
	OutcomeSuccess Outcome = iota
	// OutcomeExpired はトークンは存在したが期限切れだったことを示す。
	OutcomeExpired
	// OutcomeNotFound はトークンが存在しなかったことを示す。
	OutcomeNotFound
)

// Result はValidateAndConsumeの結果を表す。
// OutcomeがOutcomeSuccessの場合のみEmailが設定される。
// ExpiredとNotFoundの区別は内部用であり、ユーザー向けには
// 同一の「無効または期限切れ」メッセージに写像すること。
type Result struct {
	Outcome Outcome
	Email   string
}

// AccountFinder はトークン発行時のアカウント照会インターフェース。
// repository.AccountRepositoryの部分集合として定義する。
type AccountFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
}

// TokenStore はリセットトークンの永続化インターフェース。
// repository.ResetTokenRepositoryの部分集合として定義する。
type TokenStore interface {
	Create(ctx context.Context, token *model.ResetToken) error
	FindByToken(ctx context.Context, token string) (*model.ResetToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByEmail(ctx context.Context, email string) error
}

// Mailer はリセットメール配信のインターフェース。
// 実際の配信はmailerパッケージ（外部コラボレータ境界）が担う。
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetURL string) error
}

// MetricsRecorder はリセットトークンのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordResetIssued()
	RecordResetRedeemed()
	RecordResetRejected(reason string)
}

// ManagerConfig はリセットマネージャの設定。
type ManagerConfig struct {
	BaseURL  string        // リセットリンクの組み立てに使用する
	TokenTTL time.Duration // トークン有効期間
}

// Manager はリセットトークンの発行・検証・消費を管理する。
type Manager struct {
	accounts AccountFinder
	tokens   TokenStore
	mailer   Mailer
	metrics  MetricsRecorder // nilの場合は記録しない
	config   ManagerConfig
	now      func() time.Time
}

// NewManager はManagerを生成する。metricsはnilでもよい。
func NewManager(accounts AccountFinder, tokens TokenStore, mailer Mailer, metrics MetricsRecorder, config ManagerConfig) *Manager {
	return &Manager{
		accounts: accounts,
		tokens:   tokens,
		mailer:   mailer,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

// Issue は指定メールアドレス宛のリセットトークンを発行する。
// アカウントが存在しない場合はトークンを作成せず、エラーも返さない
// （応答の形状とタイミングでアカウントの存在を漏らさないため）。
// 存在する場合は旧トークンを破棄して新トークンを永続化し、
// 配信コラボレータへ非同期に引き渡す（応答は配信を待たない）。
func (m *Manager) Issue(ctx context.Context, email string) error {
	account, err := m.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up account for reset: %w", err)
	}
	if account == nil {
		// 未登録アドレス。発行せず成功として扱う。
		slog.Info("password reset requested for unknown email")
		return nil
	}

	tokenValue, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	now := m.now()
	token := &model.ResetToken{
		Token:     tokenValue,
		Email:     account.Email,
		ExpiresAt: now.Add(m.config.TokenTTL),
		CreatedAt: now,
	}

	// 「最新のみ有効」: 同一アドレスの旧トークンを破棄してから発行する。
	// 検証はトークン値で照合するため、並行して消費中の旧トークンが
	// 誤って有効化されることはない。
	if err := m.tokens.DeleteByEmail(ctx, account.Email); err != nil {
		return fmt.Errorf("failed to invalidate previous reset tokens: %w", err)
	}
	if err := m.tokens.Create(ctx, token); err != nil {
		return fmt.Errorf("failed to persist reset token: %w", err)
	}

	// 配信はバックグラウンドで行う。既知アドレスだけが配信コストを
	// 支払うと応答時間がアカウントの存在を漏らすため、応答は永続化の
	// 完了時点で返す。配信失敗はログに残すが、応答は変わらない。
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", m.config.BaseURL, tokenValue)
	go func(email, resetURL string) {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
		defer cancel()
		if err := m.mailer.SendPasswordReset(sendCtx, email, resetURL); err != nil {
			slog.Error("failed to deliver password reset mail",
				slog.String("error", err.Error()),
			)
		}
	}(account.Email, resetURL)

	if m.metrics != nil {
		m.metrics.RecordResetIssued()
	}
	slog.Info("password reset token issued",
		slog.String("account_id", account.AccountID),
	)
	return nil
}

// ValidateAndConsume はトークンを検証し、有効であれば消費して
// 対応するメールアドレスを返す。
// レコードの削除に成功して初めてOutcomeSuccessとなるため、
// 同一トークンの2回目の提示は必ずOutcomeNotFoundになる。
// 期限判定は now < expires_at を有効とする（ちょうど期限時刻は期限切れ）。
func (m *Manager) ValidateAndConsume(ctx context.Context, tokenValue string) (*Result, error) {
	token, err := m.tokens.FindByToken(ctx, tokenValue)
	if err != nil {
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}
	if token == nil {
		if m.metrics != nil {
			m.metrics.RecordResetRejected("not_found")
		}
		return &Result{Outcome: OutcomeNotFound}, nil
	}

	if token.IsExpired(m.now()) {
		// 期限切れレコードは再提示されても二度と検証を通さない
		if err := m.tokens.DeleteByToken(ctx, tokenValue); err != nil {
			slog.Error("failed to delete expired reset token",
				slog.String("error", err.Error()),
			)
		}
		if m.metrics != nil {
			m.metrics.RecordResetRejected("expired")
		}
		return &Result{Outcome: OutcomeExpired}, nil
	}

	// 消費: 削除の成功をもって単回利用を確定させる
	if err := m.tokens.DeleteByToken(ctx, tokenValue); err != nil {
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}

	if m.metrics != nil {
		m.metrics.RecordResetRedeemed()
	}
	return &Result{Outcome: OutcomeSuccess, Email: token.Email}, nil
}

// generateToken は暗号的に安全な不透明トークン値を生成する。
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
