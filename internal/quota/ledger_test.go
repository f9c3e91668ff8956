package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/querychat/querychat/internal/chat"
)

type fakeQuotaStore struct {
	quota  chat.UserQuota
	resets int
	err    error
}

func (f *fakeQuotaStore) GetQuota(_ context.Context, _ string) (chat.UserQuota, error) {
	return f.quota, f.err
}

func (f *fakeQuotaStore) ResetQuotaCycle(_ context.Context, _ string, resetsAt time.Time) error {
	f.resets++
	f.quota.QueriesUsed = 0
	f.quota.CycleResetsAt = resetsAt
	return nil
}

func newLedgerAt(store *fakeQuotaStore, now time.Time) *Ledger {
	l := NewLedger(store)
	l.now = func() time.Time { return now }
	return l
}

func TestCheckAllowsUnderQuota(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeQuotaStore{quota: chat.UserQuota{
		UserID: "u1", QueriesUsed: 3, QueriesAllowed: 10,
		CycleResetsAt: now.AddDate(0, 0, 20),
	}}
	q, err := newLedgerAt(store, now).Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if q.QueriesUsed != 3 || store.resets != 0 {
		t.Fatalf("unexpected state: used=%d resets=%d", q.QueriesUsed, store.resets)
	}
}

func TestCheckRejectsAtLimitWithoutMutation(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeQuotaStore{quota: chat.UserQuota{
		UserID: "u1", QueriesUsed: 10, QueriesAllowed: 10,
		CycleResetsAt: now.AddDate(0, 0, 20),
	}}
	_, err := newLedgerAt(store, now).Check(context.Background(), "u1")
	if !errors.Is(err, chat.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if store.resets != 0 || store.quota.QueriesUsed != 10 {
		t.Fatal("rejection must not mutate the record")
	}
}

func TestCheckRollsOverDueCycle(t *testing.T) {
	reset := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := reset.Add(48 * time.Hour)
	store := &fakeQuotaStore{quota: chat.UserQuota{
		UserID: "u1", QueriesUsed: 10, QueriesAllowed: 10, CycleResetsAt: reset,
	}}
	q, err := newLedgerAt(store, now).Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if q.QueriesUsed != 0 {
		t.Fatalf("used = %d after rollover", q.QueriesUsed)
	}
	want := reset.AddDate(0, 1, 0)
	if !q.CycleResetsAt.Equal(want) {
		t.Fatalf("CycleResetsAt = %v, want %v", q.CycleResetsAt, want)
	}
}

func TestCheckRolloverIdempotentAtSameInstant(t *testing.T) {
	reset := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := reset.Add(time.Hour)
	store := &fakeQuotaStore{quota: chat.UserQuota{
		UserID: "u1", QueriesUsed: 5, QueriesAllowed: 10, CycleResetsAt: reset,
	}}
	ledger := newLedgerAt(store, now)

	if _, err := ledger.Check(context.Background(), "u1"); err != nil {
		t.Fatalf("first Check() error = %v", err)
	}
	if _, err := ledger.Check(context.Background(), "u1"); err != nil {
		t.Fatalf("second Check() error = %v", err)
	}
	if store.resets != 1 {
		t.Fatalf("resets = %d, want exactly 1", store.resets)
	}
}

func TestCheckSkipsMultipleMissedCycles(t *testing.T) {
	reset := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	store := &fakeQuotaStore{quota: chat.UserQuota{
		UserID: "u1", QueriesUsed: 2, QueriesAllowed: 10, CycleResetsAt: reset,
	}}
	q, err := newLedgerAt(store, now).Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !q.CycleResetsAt.Equal(want) {
		t.Fatalf("CycleResetsAt = %v, want %v", q.CycleResetsAt, want)
	}
}

func TestCheckPropagatesStoreError(t *testing.T) {
	store := &fakeQuotaStore{err: errors.New("db down")}
	if _, err := NewLedger(store).Check(context.Background(), "u1"); err == nil {
		t.Fatal("want error")
	}
}
