// Package identifier は外部公開用アカウント識別子の割り当てを提供する。
//
// 識別子は英大文字3文字のプレフィックス + 数字5桁の固定幅フォーマット。
// 乱数空間は十分に広いが衝突確率はゼロではないため、
// 存在チェックと再試行で一意性を担保する。
// さらにストレージ層のUNIQUE制約違反（作成時衝突）も再試行対象として扱い、
// チェックと作成の間の競合ウィンドウを最終的に閉じる。
package identifier

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/sudslexpro/portal/internal/model"
)

const (
	// Prefix は識別子のプレフィックス。
	Prefix = "SLP"

	// suffixSpace は数字サフィックスの空間サイズ（5桁: 00000-99999）。
	suffixSpace = 100000

	// maxAttempts は衝突時の再試行上限。
	// 超過した場合はErrExhaustedとなり、重複識別子を割り当てることはない。
	maxAttempts = 10
)

// ErrExhausted は再試行上限まで衝突が続き、割り当てに失敗したことを表す。
var ErrExhausted = errors.New("account ID allocation exhausted after retries")

// accountIDPattern は識別子の固定幅フォーマット（英大文字3文字+数字5桁）。
var accountIDPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{5}$`)

// IsValidAccountID は識別子がフォーマット契約を満たすかどうかを返す。
// 割り当てとは独立に、入力検証にも使用できる。
func IsValidAccountID(s string) bool {
	return accountIDPattern.MatchString(s)
}

// Store はアロケータが必要とする存在チェックのインターフェース。
// repository.AccountRepositoryの部分集合として定義する。
type Store interface {
	ExistsByAccountID(ctx context.Context, accountID string) (bool, error)
}

// MetricsRecorder はアロケータのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordAllocationRetry()
	RecordAllocationExhausted()
}

// Allocator はアカウント識別子を割り当てる。
type Allocator struct {
	store   Store
	metrics MetricsRecorder // nilの場合は記録しない
	randInt func(max int64) (int64, error)
	now     func() time.Time
}

// NewAllocator はAllocatorを生成する。metricsはnilでもよい。
func NewAllocator(store Store, metrics MetricsRecorder) *Allocator {
	return &Allocator{
		store:   store,
		metrics: metrics,
		randInt: secureRandInt,
		now:     time.Now,
	}
}

// Allocate は未使用の識別子を割り当てて返す。
// 候補生成 → 存在チェック → 衝突時は再生成、をmaxAttempts回まで繰り返す。
// 上限超過時はErrExhaustedを返す。予約レコードは書き込まないため、
// チェックと作成の間の競合は作成側のUNIQUE制約で検出する（AllocateAndCreate参照）。
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate, err := a.newCandidate()
		if err != nil {
			return "", fmt.Errorf("failed to generate candidate: %w", err)
		}

		exists, err := a.store.ExistsByAccountID(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check account ID existence: %w", err)
		}
		if !exists {
			return candidate, nil
		}

		a.recordRetry()
	}

	a.recordExhausted()
	return "", ErrExhausted
}

// AllocateAndCreate は識別子を割り当て、createで永続化まで行う。
// createはmodel.ErrDuplicateAccountIDを返すことで作成時衝突を通知でき、
// その場合は存在チェックの衝突と同じ再試行予算を消費して再生成する。
// 永続化に成功した識別子を返す。
func (a *Allocator) AllocateAndCreate(ctx context.Context, create func(ctx context.Context, accountID string) error) (string, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate, err := a.newCandidate()
		if err != nil {
			return "", fmt.Errorf("failed to generate candidate: %w", err)
		}

		exists, err := a.store.ExistsByAccountID(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check account ID existence: %w", err)
		}
		if exists {
			a.recordRetry()
			continue
		}

		err = create(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, model.ErrDuplicateAccountID) {
			// チェック後・作成前に他リクエストが同じ識別子を取得した
			a.recordRetry()
			continue
		}
		return "", err
	}

	a.recordExhausted()
	return "", ErrExhausted
}

// newCandidate はプレフィックス+5桁乱数の候補識別子を生成する。
func (a *Allocator) newCandidate() (string, error) {
	n, err := a.randInt(suffixSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", Prefix, n), nil
}

// newTimestampedCandidate はタイムスタンプ末尾3桁+乱数2桁の候補識別子を生成する。
// 時刻成分により同時割り当て間の衝突可能性を下げた決定論寄りの変種。
// フォーマット契約はnewCandidateと同一。
func (a *Allocator) newTimestampedCandidate() (string, error) {
	tail := a.now().UnixMilli() % 1000
	n, err := a.randInt(100)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d%02d", Prefix, tail, n), nil
}

func (a *Allocator) recordRetry() {
	if a.metrics != nil {
		a.metrics.RecordAllocationRetry()
	}
}

func (a *Allocator) recordExhausted() {
	if a.metrics != nil {
		a.metrics.RecordAllocationExhausted()
	}
}

// secureRandInt は[0, max)の暗号的に安全な乱数を返す。
func secureRandInt(max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}
