// Package patchengine is the simulated patch collaborator. It validates
// each file's unified diff and resolves apply and reapply attempts from a
// configurable scenario.
package patchengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	godiff "github.com/sourcegraph/go-diff/diff"
	"golang.org/x/sync/errgroup"

	"relaycode/internal/domain"
	"relaycode/internal/logx"
)

var ErrEmptyPath = errors.New("file has no path")

// ReapplyFunc decides the outcome of retrying one file. attempt counts
// from 1 per file.
type ReapplyFunc func(file domain.FileItem, attempt int) domain.FileOutcome

type Engine struct {
	Scenario domain.ApplyScenario
	// Outcomes pins the first apply of specific file ids, overriding the
	// scenario.
	Outcomes map[string]domain.FileOutcome
	// Reapplied pins reapply results per file id. Files not listed fall
	// back to ReapplyPolicy, then to success.
	Reapplied     map[string]domain.FileOutcome
	ReapplyPolicy ReapplyFunc
	// ReapplyErr fails the whole reapply call.
	ReapplyErr  error
	SnapshotErr error
	Latency     time.Duration
	Parallelism int
	Log         *logx.Logger

	mu       sync.Mutex
	order    map[string][]string
	attempts map[string]int
}

func New(scenario domain.ApplyScenario, log *logx.Logger) *Engine {
	return &Engine{Scenario: scenario, Log: log}
}

// Snapshot records the transaction's file order and checks every file can
// be addressed.
func (e *Engine) Snapshot(ctx context.Context, tx domain.Transaction) error {
	if err := e.wait(ctx); err != nil {
		return err
	}
	if e.SnapshotErr != nil {
		return e.SnapshotErr
	}
	ids := make([]string, 0, len(tx.Files))
	for _, f := range tx.Files {
		if f.Path == "" {
			return fmt.Errorf("snapshot %s/%s: %w", tx.ID, f.ID, ErrEmptyPath)
		}
		ids = append(ids, f.ID)
	}
	e.mu.Lock()
	if e.order == nil {
		e.order = map[string][]string{}
	}
	e.order[tx.ID] = ids
	e.mu.Unlock()
	e.Log.Debugf("patchengine: snapshot %s with %d files", tx.ID, len(ids))
	return nil
}

// ApplyFile resolves the first apply attempt of one file.
func (e *Engine) ApplyFile(ctx context.Context, txID string, file domain.FileItem) domain.FileOutcome {
	if err := e.wait(ctx); err != nil {
		return domain.FileOutcome{Status: domain.ReviewFailed, Error: err.Error()}
	}
	if out, ok := e.Outcomes[file.ID]; ok {
		return out
	}
	stats, err := ParseStats(file.Diff)
	if err != nil {
		return domain.FileOutcome{Status: domain.ReviewFailed, Error: err.Error()}
	}
	if e.Scenario != domain.ScenarioFailure {
		return domain.FileOutcome{Status: domain.ReviewApproved, Details: stats.String()}
	}
	idx := e.position(txID, file.ID)
	if idx == 0 {
		return domain.FileOutcome{Status: domain.ReviewApproved, Details: stats.String()}
	}
	return domain.FileOutcome{Status: domain.ReviewFailed, Error: failureMessage(idx, file, stats)}
}

// Reapply retries a batch of files concurrently and reports one outcome per
// file.
func (e *Engine) Reapply(ctx context.Context, txID string, files []domain.FileItem) (map[string]domain.FileOutcome, error) {
	if e.ReapplyErr != nil {
		return nil, e.ReapplyErr
	}
	results := make([]domain.FileOutcome, len(files))
	g, ctx := errgroup.WithContext(ctx)
	limit := e.Parallelism
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			if err := e.wait(ctx); err != nil {
				return err
			}
			results[i] = e.reapplyOne(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reapply %s: %w", txID, err)
	}
	out := make(map[string]domain.FileOutcome, len(files))
	for i, f := range files {
		out[f.ID] = results[i]
	}
	e.Log.Infof("patchengine: reapplied %d files for %s", len(files), txID)
	return out, nil
}

func (e *Engine) reapplyOne(f domain.FileItem) domain.FileOutcome {
	e.mu.Lock()
	if e.attempts == nil {
		e.attempts = map[string]int{}
	}
	e.attempts[f.ID]++
	attempt := e.attempts[f.ID]
	e.mu.Unlock()

	if out, ok := e.Reapplied[f.ID]; ok {
		return out
	}
	if e.ReapplyPolicy != nil {
		return e.ReapplyPolicy(f, attempt)
	}
	if _, err := ParseStats(f.Diff); err != nil {
		return domain.FileOutcome{Status: domain.ReviewFailed, Error: err.Error()}
	}
	return domain.FileOutcome{Status: domain.ReviewApproved, Details: fmt.Sprintf("reapplied on attempt %d", attempt)}
}

// Attempts reports how often a file has been reapplied.
func (e *Engine) Attempts(fileID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[fileID]
}

func (e *Engine) position(txID, fileID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, id := range e.order[txID] {
		if id == fileID {
			return i
		}
	}
	return -1
}

func (e *Engine) wait(ctx context.Context) error {
	if e.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func failureMessage(idx int, f domain.FileItem, stats Stats) string {
	line := stats.FirstLine
	if line == 0 {
		line = 10 * idx
	}
	switch idx % 3 {
	case 1:
		return fmt.Sprintf("Hunk #1 failed to apply: context mismatch at %s:%d", f.Path, line)
	case 2:
		return fmt.Sprintf("Patch target %s changed since snapshot", f.Path)
	default:
		return fmt.Sprintf("Conflicting edits in %s near line %d", f.Path, line)
	}
}

// Stats summarizes a unified diff.
type Stats struct {
	Files     int
	Hunks     int
	Added     int
	Removed   int
	FirstLine int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d hunks, +%d -%d", s.Hunks, s.Added, s.Removed)
}

// ParseStats parses diff with go-diff. An empty diff is valid and empty.
func ParseStats(diff string) (Stats, error) {
	var s Stats
	if diff == "" {
		return s, nil
	}
	fds, err := godiff.ParseMultiFileDiff([]byte(diff))
	if err != nil {
		return s, fmt.Errorf("parse diff: %w", err)
	}
	if len(fds) == 0 {
		return s, errors.New("parse diff: no file sections")
	}
	s.Files = len(fds)
	for _, fd := range fds {
		for _, h := range fd.Hunks {
			if s.FirstLine == 0 {
				s.FirstLine = int(h.OrigStartLine)
			}
			s.Hunks++
			stat := h.Stat()
			s.Added += int(stat.Added + stat.Changed)
			s.Removed += int(stat.Deleted + stat.Changed)
		}
	}
	return s, nil
}
