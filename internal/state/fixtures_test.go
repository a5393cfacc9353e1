package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"relaycode/internal/domain"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)

func TestLoadFixturesSeedsDemoData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transactions.yaml")
	txs, err := LoadFixtures(path, fixedNow)
	if err != nil {
		t.Fatalf("LoadFixtures() error = %v", err)
	}
	if len(txs) == 0 {
		t.Fatal("expected demo transactions")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("demo fixtures not written: %v", err)
	}

	again, err := LoadFixtures(path, fixedNow)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if len(again) != len(txs) || again[0].ID != txs[0].ID {
		t.Fatalf("reload = %d txs starting %q, want %d starting %q", len(again), again[0].ID, len(txs), txs[0].ID)
	}
	added, removed := again[0].LineStats()
	if added == 0 || removed == 0 {
		t.Fatalf("line stats not derived from diffs: +%d -%d", added, removed)
	}
}

func TestNormalizeTransactions(t *testing.T) {
	t.Parallel()

	txs, err := NormalizeTransactions([]domain.Transaction{
		{ID: "old", Timestamp: fixedNow.Add(-time.Hour), Files: []domain.FileItem{{Path: "a.go"}, {Path: "b.go"}}},
		{Message: "no id"},
	}, fixedNow)
	if err != nil {
		t.Fatalf("NormalizeTransactions() error = %v", err)
	}
	if txs[0].ID == "" || len(txs[0].ID) != 8 {
		t.Fatalf("generated id = %q, want 8 chars", txs[0].ID)
	}
	if txs[0].Status != domain.TransactionPending {
		t.Fatalf("default status = %q", txs[0].Status)
	}
	old := txs[1]
	if old.Files[0].ID != "f1" || old.Files[1].ID != "f2" || old.Files[0].Type != domain.FileModified {
		t.Fatalf("files = %+v", old.Files)
	}
}

func TestNormalizeTransactionsRejectsDuplicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		txs  []domain.Transaction
		want string
	}{
		{name: "transactions", txs: []domain.Transaction{{ID: "a"}, {ID: "a"}}, want: "duplicate transaction id"},
		{name: "files", txs: []domain.Transaction{{ID: "a", Files: []domain.FileItem{{ID: "x"}, {ID: "x"}}}}, want: "duplicate file id"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NormalizeTransactions(tt.txs, fixedNow)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("NormalizeTransactions() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestUpdateStatuses(t *testing.T) {
	t.Parallel()

	paths := NewPaths(t.TempDir())
	path := paths.FixturesPath()
	if _, err := LoadFixtures(path, fixedNow); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := UpdateStatuses(paths, path, map[string]domain.TransactionStatus{"e4a7c112": domain.TransactionApplied}); err != nil {
		t.Fatalf("UpdateStatuses() error = %v", err)
	}
	txs, err := LoadFixtures(path, fixedNow)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	for _, tx := range txs {
		if tx.ID == "e4a7c112" && tx.Status != domain.TransactionApplied {
			t.Fatalf("status = %q, want APPLIED", tx.Status)
		}
	}
	if _, err := os.Stat(paths.LockPath()); !os.IsNotExist(err) {
		t.Fatalf("lock not released: %v", err)
	}
}

func TestUpdateStatusesWhileSessionHoldsLock(t *testing.T) {
	t.Parallel()

	paths := NewPaths(t.TempDir())
	path := paths.FixturesPath()
	if _, err := LoadFixtures(path, fixedNow); err != nil {
		t.Fatalf("seed: %v", err)
	}
	lock, err := AcquireLock(paths, "relay dashboard")
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer func() { _ = lock.Release() }()

	statuses := map[string]domain.TransactionStatus{"e4a7c112": domain.TransactionReverted}
	if err := UpdateStatuses(paths, path, statuses); !errors.Is(err, ErrLocked) {
		t.Fatalf("UpdateStatuses() error = %v, want ErrLocked", err)
	}
	if err := lock.UpdateStatuses(path, statuses); err != nil {
		t.Fatalf("lock.UpdateStatuses() error = %v", err)
	}
	txs, err := LoadFixtures(path, fixedNow)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	for _, tx := range txs {
		if tx.ID == "e4a7c112" && tx.Status != domain.TransactionReverted {
			t.Fatalf("status = %q, want REVERTED", tx.Status)
		}
	}
	if _, err := os.Stat(paths.LockPath()); err != nil {
		t.Fatalf("session lock should still exist: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := lock.UpdateStatuses(path, statuses); !errors.Is(err, ErrLockReleased) {
		t.Fatalf("UpdateStatuses() after release error = %v, want ErrLockReleased", err)
	}
}

func TestWatchFixturesReportsWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "transactions.yaml")
	if err := SaveFixtures(path, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := WatchFixtures(ctx, path, nil)
	if err != nil {
		t.Fatalf("WatchFixtures() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := SaveFixtures(path, DemoTransactions(fixedNow)); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported for fixtures write")
	}

	cancel()
	for range w.Changes() {
	}
}
