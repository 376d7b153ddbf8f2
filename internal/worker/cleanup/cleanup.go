// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 有効期限を過ぎたセッションと、期限切れのまま残留した
// パスワードリセットトークンを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionStore は期限切れセッションの削除インターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenStore は期限切れリセットトークンの削除インターフェース。
// repository.ResetTokenRepositoryの部分集合として定義する。
type TokenStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は期限切れセッション・トークンの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// 期限切れ行は照会時点で無効として扱われるため、このジョブの遅延や失敗が
// セキュリティ境界を緩めることはない。
type CleanupJob struct {
	sessions SessionStore
	tokens   TokenStore
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionStore, tokens TokenStore, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
}

// Run は期限切れセッションとリセットトークンを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
// セッション削除が失敗してもトークン削除は試行し、エラーはまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	var firstErr error

	deletedSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("failed to delete expired sessions",
			slog.String("error", err.Error()),
		)
		firstErr = fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deletedTokens, err := j.tokens.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("failed to delete expired reset tokens",
			slog.String("error", err.Error()),
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to delete expired reset tokens: %w", err)
		}
	}

	if firstErr != nil {
		return firstErr
	}

	duration := time.Since(start)
	j.logger.Info("cleanup job completed",
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int64("deleted_reset_tokens", deletedTokens),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
