package state

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"relaycode/internal/domain"
	"relaycode/internal/patchengine"
)

// NewTransactionID returns a short random id for transactions loaded
// without one.
func NewTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// LoadFixtures reads transactions from path. A missing file seeds the demo
// set. Transactions come back newest first.
func LoadFixtures(path string, now time.Time) ([]domain.Transaction, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		txs, err := NormalizeTransactions(DemoTransactions(now), now)
		if err != nil {
			return nil, err
		}
		if err := SaveFixtures(path, txs); err != nil {
			return nil, err
		}
		return txs, nil
	}
	var file domain.FixturesFile
	if err := LoadYAML(path, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	txs, err := NormalizeTransactions(file.Transactions, now)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return txs, nil
}

func SaveFixtures(path string, txs []domain.Transaction) error {
	return SaveYAML(path, domain.FixturesFile{Version: domain.Version, Transactions: txs})
}

// NormalizeTransactions fills defaults, derives line stats from diffs and
// rejects duplicate ids.
func NormalizeTransactions(txs []domain.Transaction, now time.Time) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(txs))
	seen := map[string]bool{}
	for _, tx := range txs {
		if strings.TrimSpace(tx.ID) == "" {
			tx.ID = NewTransactionID()
		}
		if seen[tx.ID] {
			return nil, fmt.Errorf("duplicate transaction id %q", tx.ID)
		}
		seen[tx.ID] = true
		if tx.Status == "" {
			tx.Status = domain.TransactionPending
		}
		if tx.Timestamp.IsZero() {
			tx.Timestamp = now
		}
		files := make([]domain.FileItem, len(tx.Files))
		fileIDs := map[string]bool{}
		for i, f := range tx.Files {
			if f.ID == "" {
				f.ID = "f" + strconv.Itoa(i+1)
			}
			if fileIDs[f.ID] {
				return nil, fmt.Errorf("transaction %s: duplicate file id %q", tx.ID, f.ID)
			}
			fileIDs[f.ID] = true
			if f.Type == "" {
				f.Type = domain.FileModified
			}
			if f.LinesAdded == 0 && f.LinesRemoved == 0 && f.Diff != "" {
				if stats, err := patchengine.ParseStats(f.Diff); err == nil {
					f.LinesAdded = stats.Added
					f.LinesRemoved = stats.Removed
				}
			}
			files[i] = f
		}
		tx.Files = files
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// UpdateStatuses writes new transaction statuses back to the fixtures file
// under the process lock. A process that already holds the lock uses
// Lock.UpdateStatuses instead.
func UpdateStatuses(paths Paths, path string, statuses map[string]domain.TransactionStatus) error {
	lock, err := AcquireLock(paths, "update-statuses")
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return writeStatuses(path, statuses)
}

// UpdateStatuses writes statuses back while l is held.
func (l *Lock) UpdateStatuses(path string, statuses map[string]domain.TransactionStatus) error {
	if !l.Held() {
		return ErrLockReleased
	}
	return writeStatuses(path, statuses)
}

func writeStatuses(path string, statuses map[string]domain.TransactionStatus) error {
	var file domain.FixturesFile
	if err := LoadYAML(path, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range file.Transactions {
		if st, ok := statuses[file.Transactions[i].ID]; ok {
			file.Transactions[i].Status = st
		}
	}
	file.Version = domain.Version
	return SaveYAML(path, file)
}

// DemoTransactions is the seed data shown on first run.
func DemoTransactions(now time.Time) []domain.Transaction {
	at := func(minutes int) time.Time { return now.Add(-time.Duration(minutes) * time.Minute).UTC() }
	return []domain.Transaction{
		{
			ID:        "e4a7c112",
			Timestamp: at(2),
			Status:    domain.TransactionPending,
			Message:   "fix: revert hardcoded timeout in API client",
			Prompt:    "The retry logic still uses a hardcoded 30s timeout. Read it from config instead.",
			Reasoning: "The client constructs its http.Client before config is loaded.\nMoving construction behind the config load fixes the ordering.",
			Files: []domain.FileItem{
				{ID: "f1", Path: "src/core/clipboard.ts", Type: domain.FileModified, Diff: demoDiff("src/core/clipboard.ts", "const timeout = 30000;", "const timeout = config.timeoutMs;")},
				{ID: "f2", Path: "src/utils/shell.ts", Type: domain.FileModified, Diff: demoDiff("src/utils/shell.ts", "exec(cmd);", "exec(cmd, { timeout });")},
				{ID: "f3", Path: "src/commands/apply.ts", Type: domain.FileModified, Diff: demoDiff("src/commands/apply.ts", "await run();", "await run({ retries: 3 });")},
			},
		},
		{
			ID:        "1a2b3c4d",
			Timestamp: at(15),
			Status:    domain.TransactionPending,
			Message:   "feat: add multi-select to copy overlay",
			Prompt:    "Let me copy several fields at once.",
			Files: []domain.FileItem{
				{ID: "f1", Path: "src/ui/copy.ts", Type: domain.FileAdded, Diff: demoDiff("src/ui/copy.ts", "", "export const selected = new Set<string>();")},
			},
		},
		{
			ID:        "9e8d7c6b",
			Timestamp: at(60),
			Status:    domain.TransactionApplied,
			Message:   "refactor: extract viewport math",
			Reasoning: "Three screens duplicated the same offset calculation.",
			Files: []domain.FileItem{
				{ID: "f1", Path: "src/hooks/viewport.ts", Type: domain.FileAdded, Diff: demoDiff("src/hooks/viewport.ts", "", "export function offset() {}")},
				{ID: "f2", Path: "src/screens/dashboard.ts", Type: domain.FileModified, Diff: demoDiff("src/screens/dashboard.ts", "let offset = 0;", "const offset = useViewport();")},
			},
		},
		{
			ID:        "5f4e3d2c",
			Timestamp: at(240),
			Status:    domain.TransactionCommitted,
			Hash:      "5f4e3d2",
			Message:   "chore: bump dependencies",
			Files: []domain.FileItem{
				{ID: "f1", Path: "package.json", Type: domain.FileModified, Diff: demoDiff("package.json", `"ink": "4.3.0"`, `"ink": "4.4.1"`)},
			},
		},
		{
			ID:        "0c1d2e3f",
			Timestamp: at(1440),
			Status:    domain.TransactionReverted,
			Message:   "feat: experimental auto-commit",
			Files: []domain.FileItem{
				{ID: "f1", Path: "src/core/git.ts", Type: domain.FileDeleted, Diff: demoDiff("src/core/git.ts", "autoCommit();", "")},
			},
		},
	}
}

func demoDiff(path, before, after string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	switch {
	case before == "":
		fmt.Fprintf(&b, "@@ -1,1 +1,2 @@\n // %s\n+%s\n", path, after)
	case after == "":
		fmt.Fprintf(&b, "@@ -1,2 +1,1 @@\n // %s\n-%s\n", path, before)
	default:
		fmt.Fprintf(&b, "@@ -1,2 +1,2 @@\n // %s\n-%s\n+%s\n", path, before, after)
	}
	return b.String()
}
