package identifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sudslexpro/portal/internal/model"
)

// --- モック定義 ---

type mockStore struct {
	existsFn func(ctx context.Context, accountID string) (bool, error)
	calls    int
}

func (m *mockStore) ExistsByAccountID(ctx context.Context, accountID string) (bool, error) {
	m.calls++
	if m.existsFn != nil {
		return m.existsFn(ctx, accountID)
	}
	return false, nil
}

type mockMetrics struct {
	retries   int
	exhausted int
}

func (m *mockMetrics) RecordAllocationRetry()     { m.retries++ }
func (m *mockMetrics) RecordAllocationExhausted() { m.exhausted++ }

var _ Store = (*mockStore)(nil)
var _ MetricsRecorder = (*mockMetrics)(nil)

// --- テスト ---

func TestIsValidAccountID_ValidFormats(t *testing.T) {
	valid := []string{"SLP00000", "SLP12345", "ABC99999"}
	for _, id := range valid {
		if !IsValidAccountID(id) {
			t.Errorf("IsValidAccountID(%q) = false, want true", id)
		}
	}
}

func TestIsValidAccountID_InvalidFormats(t *testing.T) {
	invalid := []string{
		"",
		"SLP1234",    // 数字4桁
		"SLP123456",  // 数字6桁
		"SL12345",    // プレフィックス2文字
		"slp12345",   // 小文字
		"SLP1234a",   // 数字部に英字
		"SLP 1234",   // 空白
		" SLP12345",  // 前置空白
		"SLP12345 ",  // 後置空白
	}
	for _, id := range invalid {
		if IsValidAccountID(id) {
			t.Errorf("IsValidAccountID(%q) = true, want false", id)
		}
	}
}

func TestAllocate_EmptyStore_ReturnsValidID(t *testing.T) {
	store := &mockStore{}
	alloc := NewAllocator(store, nil)

	id, err := alloc.Allocate(context.Background())
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if !IsValidAccountID(id) {
		t.Errorf("Allocate() = %q, want valid account ID format", id)
	}
	if store.calls != 1 {
		t.Errorf("existence checks = %d, want 1", store.calls)
	}
}

func TestAllocate_GeneratedIDsAlwaysValid(t *testing.T) {
	store := &mockStore{}
	alloc := NewAllocator(store, nil)

	for i := 0; i < 100; i++ {
		id, err := alloc.Allocate(context.Background())
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if !IsValidAccountID(id) {
			t.Fatalf("Allocate() = %q, want valid account ID format", id)
		}
	}
}

func TestAllocate_CollisionRetriesUntilFree(t *testing.T) {
	collisions := 3
	store := &mockStore{}
	store.existsFn = func(ctx context.Context, accountID string) (bool, error) {
		return store.calls <= collisions, nil
	}
	metrics := &mockMetrics{}
	alloc := NewAllocator(store, metrics)

	id, err := alloc.Allocate(context.Background())
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if !IsValidAccountID(id) {
		t.Errorf("Allocate() = %q, want valid account ID format", id)
	}
	if store.calls != collisions+1 {
		t.Errorf("existence checks = %d, want %d", store.calls, collisions+1)
	}
	if metrics.retries != collisions {
		t.Errorf("recorded retries = %d, want %d", metrics.retries, collisions)
	}
}

func TestAllocate_AllCollisions_ReturnsErrExhausted(t *testing.T) {
	store := &mockStore{
		existsFn: func(ctx context.Context, accountID string) (bool, error) {
			return true, nil
		},
	}
	metrics := &mockMetrics{}
	alloc := NewAllocator(store, metrics)

	_, err := alloc.Allocate(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Allocate() error = %v, want ErrExhausted", err)
	}
	if store.calls != maxAttempts {
		t.Errorf("existence checks = %d, want %d", store.calls, maxAttempts)
	}
	if metrics.exhausted != 1 {
		t.Errorf("recorded exhaustions = %d, want 1", metrics.exhausted)
	}
}

func TestAllocate_StoreError_Propagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &mockStore{
		existsFn: func(ctx context.Context, accountID string) (bool, error) {
			return false, storeErr
		},
	}
	alloc := NewAllocator(store, nil)

	_, err := alloc.Allocate(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("Allocate() error = %v, want wrapped store error", err)
	}
}

func TestAllocateAndCreate_CreateConflict_RetriesWithNewCandidate(t *testing.T) {
	store := &mockStore{}
	metrics := &mockMetrics{}
	alloc := NewAllocator(store, metrics)

	// 最初の作成はチェック後に他リクエストへ先を越されたケースを再現する
	createCalls := 0
	create := func(ctx context.Context, accountID string) error {
		createCalls++
		if createCalls == 1 {
			return model.ErrDuplicateAccountID
		}
		return nil
	}

	id, err := alloc.AllocateAndCreate(context.Background(), create)
	if err != nil {
		t.Fatalf("AllocateAndCreate() error = %v", err)
	}
	if createCalls != 2 {
		t.Errorf("create calls = %d, want 2", createCalls)
	}
	if !IsValidAccountID(id) {
		t.Errorf("AllocateAndCreate() = %q, want valid account ID format", id)
	}
	if metrics.retries != 1 {
		t.Errorf("recorded retries = %d, want 1", metrics.retries)
	}
}

func TestAllocateAndCreate_PersistentConflict_ReturnsErrExhausted(t *testing.T) {
	store := &mockStore{}
	alloc := NewAllocator(store, nil)

	create := func(ctx context.Context, accountID string) error {
		return model.ErrDuplicateAccountID
	}

	_, err := alloc.AllocateAndCreate(context.Background(), create)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("AllocateAndCreate() error = %v, want ErrExhausted", err)
	}
}

func TestAllocateAndCreate_NonConflictCreateError_Propagates(t *testing.T) {
	store := &mockStore{}
	alloc := NewAllocator(store, nil)

	createErr := errors.New("insert failed")
	create := func(ctx context.Context, accountID string) error {
		return createErr
	}

	_, err := alloc.AllocateAndCreate(context.Background(), create)
	if !errors.Is(err, createErr) {
		t.Fatalf("AllocateAndCreate() error = %v, want create error", err)
	}
}

// 空ストアに対するN回の割り当てで識別子が互いに重複しないことを検証する。
// 実ストアのUNIQUE制約の代わりに、作成済み集合を共有するスタブで確認する。
func TestAllocateAndCreate_ConcurrentStyleAllocations_AllDistinct(t *testing.T) {
	const n = 50
	created := make(map[string]bool)

	store := &mockStore{
		existsFn: func(ctx context.Context, accountID string) (bool, error) {
			return created[accountID], nil
		},
	}
	alloc := NewAllocator(store, nil)

	create := func(ctx context.Context, accountID string) error {
		if created[accountID] {
			return model.ErrDuplicateAccountID
		}
		created[accountID] = true
		return nil
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		id, err := alloc.AllocateAndCreate(context.Background(), create)
		if err != nil {
			t.Fatalf("AllocateAndCreate() #%d error = %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate account ID allocated: %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("distinct IDs = %d, want %d", len(seen), n)
	}
}

func TestNewTimestampedCandidate_MatchesFormatContract(t *testing.T) {
	store := &mockStore{}
	alloc := NewAllocator(store, nil)

	for i := 0; i < 20; i++ {
		id, err := alloc.newTimestampedCandidate()
		if err != nil {
			t.Fatalf("newTimestampedCandidate() error = %v", err)
		}
		if !IsValidAccountID(id) {
			t.Fatalf("newTimestampedCandidate() = %q, want valid account ID format", id)
		}
	}
}

func TestNewCandidate_FixedWidthZeroPadding(t *testing.T) {
	store := &mockStore{}
	alloc := NewAllocator(store, nil)
	alloc.randInt = func(max int64) (int64, error) { return 7, nil }

	id, err := alloc.newCandidate()
	if err != nil {
		t.Fatalf("newCandidate() error = %v", err)
	}
	want := fmt.Sprintf("%s00007", Prefix)
	if id != want {
		t.Errorf("newCandidate() = %q, want %q", id, want)
	}
}
