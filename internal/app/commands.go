package app

import (
	"context"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"relaycode/internal/clipboard"
	"relaycode/internal/domain"
	"relaycode/internal/logx"
	"relaycode/internal/pipeline"
	"relaycode/internal/review"
	"relaycode/internal/state"
)

type pipelineEventMsg struct {
	TxID  string
	Gen   uint64
	Event pipeline.Event
	run   *pipeline.Run
}

type pipelineDoneMsg struct {
	TxID   string
	Gen    uint64
	Result pipeline.Result
}

type reapplyDoneMsg struct {
	TxID    string
	Batch   *review.Batch
	Results map[string]domain.FileOutcome
	Err     error
}

type clipboardMsg struct {
	Label string
	Err   error
}

type instructCopiedMsg struct {
	TxID  string
	Batch *review.Batch
	Err   error
}

type handoffCopiedMsg struct {
	TxID string
	Err  error
}

type commitDoneMsg struct {
	TxIDs []string
	SHA   string
	Err   error
}

type persistedMsg struct {
	Err error
}

type exportedMsg struct {
	Path string
	Err  error
}

type fixturesChangedMsg struct{}

type fixturesLoadedMsg struct {
	Transactions []domain.Transaction
	Err          error
}

// waitForPipeline pumps one event off run. A closed channel yields the
// settled result.
func waitForPipeline(run *pipeline.Run) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-run.Events()
		if !ok {
			return pipelineDoneMsg{TxID: run.TxID, Gen: run.Gen, Result: run.Result()}
		}
		return pipelineEventMsg{TxID: run.TxID, Gen: run.Gen, Event: ev, run: run}
	}
}

func reapplyCmd(ctx context.Context, r review.Reapplier, b *review.Batch) tea.Cmd {
	return func() tea.Msg {
		results, err := r.Reapply(ctx, b.TxID, b.Files)
		return reapplyDoneMsg{TxID: b.TxID, Batch: b, Results: results, Err: err}
	}
}

func copyCmd(w clipboard.Writer, label, text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{Label: label, Err: w.Write(text)}
	}
}

func instructCopyCmd(w clipboard.Writer, b *review.Batch, text string) tea.Cmd {
	return func() tea.Msg {
		return instructCopiedMsg{TxID: b.TxID, Batch: b, Err: w.Write(text)}
	}
}

func handoffCopyCmd(w clipboard.Writer, txID, text string) tea.Cmd {
	return func() tea.Msg {
		return handoffCopiedMsg{TxID: txID, Err: w.Write(text)}
	}
}

func commitCmd(ctx context.Context, git Committer, message string, ids []string) tea.Cmd {
	return func() tea.Msg {
		sha, err := git.Commit(ctx, message)
		return commitDoneMsg{TxIDs: ids, SHA: sha, Err: err}
	}
}

func persistCmd(paths state.Paths, lock *state.Lock, path string, statuses map[string]domain.TransactionStatus) tea.Cmd {
	return func() tea.Msg {
		if lock != nil {
			return persistedMsg{Err: lock.UpdateStatuses(path, statuses)}
		}
		return persistedMsg{Err: state.UpdateStatuses(paths, path, statuses)}
	}
}

func exportLogCmd(log *logx.Logger, path string) tea.Cmd {
	return func() tea.Msg {
		if err := state.EnsureDir(filepath.Dir(path)); err != nil {
			return exportedMsg{Path: path, Err: err}
		}
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{Path: path, Err: err}
		}
		if err := log.WriteJSON(f); err != nil {
			_ = f.Close()
			return exportedMsg{Path: path, Err: err}
		}
		return exportedMsg{Path: path, Err: f.Close()}
	}
}

func waitForFixtures(w *state.FixtureWatcher) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-w.Changes(); !ok {
			return nil
		}
		return fixturesChangedMsg{}
	}
}

func loadFixturesCmd(path string, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		txs, err := state.LoadFixtures(path, now())
		return fixturesLoadedMsg{Transactions: txs, Err: err}
	}
}
