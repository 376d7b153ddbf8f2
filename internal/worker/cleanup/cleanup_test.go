package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type mockExpiredStore struct {
	deleted int64
	err     error
	calls   int
}

func (m *mockExpiredStore) DeleteExpired(ctx context.Context) (int64, error) {
	m.calls++
	return m.deleted, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCleanupJob_DeletesExpiredSessionsAndTokens(t *testing.T) {
	sessions := &mockExpiredStore{deleted: 3}
	tokens := &mockExpiredStore{deleted: 2}

	job := NewCleanupJob(sessions, tokens, discardLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessions.calls != 1 {
		t.Errorf("session delete calls = %d, want 1", sessions.calls)
	}
	if tokens.calls != 1 {
		t.Errorf("token delete calls = %d, want 1", tokens.calls)
	}
}

func TestCleanupJob_NothingToDelete_Succeeds(t *testing.T) {
	job := NewCleanupJob(&mockExpiredStore{}, &mockExpiredStore{}, discardLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCleanupJob_SessionDeleteFails_StillDeletesTokens(t *testing.T) {
	sessions := &mockExpiredStore{err: errors.New("connection refused")}
	tokens := &mockExpiredStore{deleted: 1}

	job := NewCleanupJob(sessions, tokens, discardLogger())

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when session delete fails")
	}
	if tokens.calls != 1 {
		t.Errorf("token delete calls = %d, want 1 even after session failure", tokens.calls)
	}
}

func TestCleanupJob_TokenDeleteFails_ReturnsError(t *testing.T) {
	tokens := &mockExpiredStore{err: errors.New("connection refused")}

	job := NewCleanupJob(&mockExpiredStore{}, tokens, discardLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when token delete fails")
	}
}
