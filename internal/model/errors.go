package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, account, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeAllocationExhausted = "ALLOCATION_EXHAUSTED"
	ErrCodeInvalidResetToken   = "INVALID_OR_EXPIRED_TOKEN"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
)

// センチネルエラー。サービス層とリポジトリ層の境界で使用する。
var (
	// ErrDuplicateAccountID はアカウント識別子の一意制約違反を表す。
	// アロケータはこれを再試行可能な衝突として扱う。
	ErrDuplicateAccountID = errors.New("account ID already exists")

	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrAccountNotFound はアカウントが存在しないことを表す。
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidCredentials はメールアドレスまたはパスワードの不一致を表す。
	// どちらが誤っているかは呼び出し元に開示しない。
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountDeactivated は無効化済みアカウントでのログイン試行を表す。
	ErrAccountDeactivated = errors.New("account is deactivated")
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewAllocationExhaustedError は識別子割り当ての失敗エラーを生成する。
// 再試行上限まで衝突が続いた場合にのみ発生する。
func NewAllocationExhaustedError() *APIError {
	return &APIError{
		Code:     ErrCodeAllocationExhausted,
		Message:  "アカウント識別子の割り当てに失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidResetTokenError は無効または期限切れのリセットトークンエラーを生成する。
// 未存在と期限切れを呼び出し元に区別させないため、メッセージは共通にする。
func NewInvalidResetTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResetToken,
		Message:  "リンクが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "パスワードリセットを再度依頼してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
// ロール不一致の場合もこのエラーを返し、ルートの存在を開示しない。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "ページが見つかりません。",
		Category: "system",
		Action:   "URLを確認してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "サインインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは開示しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}
