package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sudslexpro/portal/internal/model"
)

// PostgresResetTokenRepo はPostgreSQLを使用したリセットトークンリポジトリ。
type PostgresResetTokenRepo struct {
	db *sql.DB
}

// NewPostgresResetTokenRepo はPostgresResetTokenRepoを生成する。
func NewPostgresResetTokenRepo(db *sql.DB) *PostgresResetTokenRepo {
	return &PostgresResetTokenRepo{db: db}
}

// Create はリセットトークンを作成する。
func (r *PostgresResetTokenRepo) Create(ctx context.Context, token *model.ResetToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reset_tokens (token, email, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.Token, token.Email, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

// FindByToken はトークン値でレコードを取得する。見つからない場合はnilを返す。
// 期限切れの行もそのまま返す。期限判定はリセットマネージャが行い、
// NotFoundとExpiredの結果を使い分ける。
func (r *PostgresResetTokenRepo) FindByToken(ctx context.Context, tokenValue string) (*model.ResetToken, error) {
	token := &model.ResetToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT token, email, expires_at, created_at
		 FROM reset_tokens
		 WHERE token = $1`,
		tokenValue,
	).Scan(&token.Token, &token.Email, &token.ExpiresAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reset token: %w", err)
	}

	return token, nil
}

// DeleteByToken はトークン値でレコードを削除する。
func (r *PostgresResetTokenRepo) DeleteByToken(ctx context.Context, tokenValue string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE token = $1`,
		tokenValue,
	)
	if err != nil {
		return fmt.Errorf("failed to delete reset token: %w", err)
	}
	return nil
}

// DeleteByEmail は指定メールアドレスの全トークンを削除する。
func (r *PostgresResetTokenRepo) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("failed to delete reset tokens by email: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れトークンを削除し、削除件数を返す。
func (r *PostgresResetTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ResetTokenRepository = (*PostgresResetTokenRepo)(nil)
