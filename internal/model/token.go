package model

import "time"

// ResetToken はパスワードリセット用のワンタイムトークンを表す。
// トークン値は256bit以上のエントロピーを持つ不透明な乱数で、
// 照合はメールアドレスではなくトークン値で行う。
// 消費（利用）時にはレコードごと削除することで単回利用を保証する。
type ResetToken struct {
	Token     string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired は基準時刻においてトークンが期限切れかどうかを返す。
// ちょうど期限時刻に達した時点で期限切れとして扱う（有効条件は now < ExpiresAt）。
func (t *ResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
