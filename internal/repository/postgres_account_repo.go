package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sudslexpro/portal/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

const accountColumns = `id, account_id, email, display_name, bio, password_hash, role, status, last_login_at, created_at, updated_at`

// scanAccount は1行分のアカウントレコードをスキャンする。
func scanAccount(row *sql.Row) (*model.Account, error) {
	account := &model.Account{}
	var passwordHash sql.NullString
	var lastLoginAt sql.NullTime
	err := row.Scan(
		&account.ID, &account.AccountID, &account.Email,
		&account.DisplayName, &account.Bio, &passwordHash,
		&account.Role, &account.Status, &lastLoginAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = passwordHash.String
	if lastLoginAt.Valid {
		account.LastLoginAt = &lastLoginAt.Time
	}
	return account, nil
}

// FindByID は内部主キーでアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindByAccountID は外部公開用識別子でアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByAccountID(ctx context.Context, accountID string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, accountID)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by account ID: %w", err)
	}
	return account, nil
}

// FindByEmail はメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

// ExistsByAccountID は外部公開用識別子の存在有無を返す。
func (r *PostgresAccountRepo) ExistsByAccountID(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE account_id = $1)`, accountID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account ID existence: %w", err)
	}
	return exists, nil
}

// Create は割り当て済みの識別子を持つアカウントを作成する。
// account_idの一意制約違反はmodel.ErrDuplicateAccountID、
// emailの一意制約違反はmodel.ErrDuplicateEmailとして返す。
// チェックと作成の間の競合はこの制約マッピングで最終的に検出される。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	var passwordHash sql.NullString
	if account.PasswordHash != "" {
		passwordHash = sql.NullString{String: account.PasswordHash, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, account_id, email, display_name, bio, password_hash, role, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.ID, account.AccountID, account.Email,
		account.DisplayName, account.Bio, passwordHash,
		account.Role, account.Status, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			switch pqErr.Constraint {
			case "accounts_account_id_key":
				return model.ErrDuplicateAccountID
			case "accounts_email_key":
				return model.ErrDuplicateEmail
			}
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// UpdateProfile は表示名とbioを更新する。
func (r *PostgresAccountRepo) UpdateProfile(ctx context.Context, id, displayName, bio string) error {
	return r.exec(ctx,
		`UPDATE accounts SET display_name = $2, bio = $3, updated_at = now() WHERE id = $1`,
		"failed to update profile", id, displayName, bio)
}

// UpdateRole はロールを更新する。
func (r *PostgresAccountRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	return r.exec(ctx,
		`UPDATE accounts SET role = $2, updated_at = now() WHERE id = $1`,
		"failed to update role", id, role)
}

// UpdatePasswordHash はパスワードハッシュを更新する。
func (r *PostgresAccountRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`,
		"failed to update password hash", id, passwordHash)
}

// UpdateLastLogin は最終ログイン日時を現在時刻に更新する。
func (r *PostgresAccountRepo) UpdateLastLogin(ctx context.Context, id string) error {
	return r.exec(ctx,
		`UPDATE accounts SET last_login_at = now(), updated_at = now() WHERE id = $1`,
		"failed to update last login", id)
}

// UpdateStatus はアカウント状態を更新する。物理削除は行わない。
func (r *PostgresAccountRepo) UpdateStatus(ctx context.Context, id string, status model.AccountStatus) error {
	return r.exec(ctx,
		`UPDATE accounts SET status = $2, updated_at = now() WHERE id = $1`,
		"failed to update status", id, status)
}

// List は全アカウントを作成日時の降順で返す。
func (r *PostgresAccountRepo) List(ctx context.Context) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account := &model.Account{}
		var passwordHash sql.NullString
		var lastLoginAt sql.NullTime
		if err := rows.Scan(
			&account.ID, &account.AccountID, &account.Email,
			&account.DisplayName, &account.Bio, &passwordHash,
			&account.Role, &account.Status, &lastLoginAt,
			&account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.PasswordHash = passwordHash.String
		if lastLoginAt.Valid {
			account.LastLoginAt = &lastLoginAt.Time
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// exec は行存在チェック付きのUPDATEを実行する。
func (r *PostgresAccountRepo) exec(ctx context.Context, query, failMsg string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", failMsg, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
