package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"relaycode/internal/domain"
	"relaycode/internal/gitx"
	"relaycode/internal/navtree"
)

func (a *App) syncDashboard() {
	a.Dashboard.List.SetCount(len(a.txs))
	a.Dashboard.List.Resize(a.listHeight(domain.ScreenDashboard))
}

// SelectedTransaction is the dashboard row under the cursor.
func (a *App) SelectedTransaction() (domain.Transaction, bool) {
	i := a.Dashboard.List.Selected
	if i < 0 || i >= len(a.txs) {
		return domain.Transaction{}, false
	}
	return a.txs[i], true
}

// SelectTransaction moves the dashboard cursor to id.
func (a *App) SelectTransaction(id string) bool {
	for i, tx := range a.txs {
		if tx.ID == id {
			a.Dashboard.List.Select(i)
			return true
		}
	}
	a.Log.Warnf("app: select of unknown transaction %q ignored", id)
	return false
}

// DashboardOpen opens the selected transaction: pending ones go to review,
// everything else to the detail screen.
func (a *App) DashboardOpen() tea.Cmd {
	tx, ok := a.SelectedTransaction()
	if !ok {
		return nil
	}
	switch tx.Status {
	case domain.TransactionPending, domain.TransactionInProgress:
		return a.OpenReview(tx.ID)
	default:
		return a.OpenDetail(tx.ID)
	}
}

// DashboardApply starts a fresh apply of the selected pending transaction.
func (a *App) DashboardApply() tea.Cmd {
	tx, ok := a.SelectedTransaction()
	if !ok {
		return nil
	}
	if tx.Status != domain.TransactionPending && tx.Status != domain.TransactionInProgress {
		return a.SetFlash(fmt.Sprintf("%s is %s; only pending transactions can be applied", tx.ID, tx.Status))
	}
	return a.StartApply(tx.ID, a.scenario)
}

// TogglePause stops or resumes applying fixture reloads.
func (a *App) TogglePause() tea.Cmd {
	a.Dashboard.Paused = !a.Dashboard.Paused
	if a.Dashboard.Paused {
		return a.SetFlash("Watching paused")
	}
	if pending := a.Dashboard.pendingReload; pending != nil {
		a.Dashboard.pendingReload = nil
		a.replaceTransactions(pending)
		return a.SetFlash("Watching resumed; reloaded transactions")
	}
	return a.SetFlash("Watching resumed")
}

// HandleFixturesLoaded swaps in reloaded transactions, or parks them while
// paused.
func (a *App) HandleFixturesLoaded(msg fixturesLoadedMsg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case msg.Err != nil:
		a.Log.Warnf("app: reload fixtures: %v", msg.Err)
	case a.Dashboard.Paused:
		a.Dashboard.pendingReload = msg.Transactions
		a.Log.Debugf("app: reload held while paused")
	default:
		a.replaceTransactions(msg.Transactions)
		cmd = a.SetFlash(fmt.Sprintf("Reloaded %d transactions", len(msg.Transactions)))
	}
	if a.watcher != nil {
		return tea.Batch(cmd, waitForFixtures(a.watcher))
	}
	return cmd
}

// replaceTransactions keeps in-memory statuses for transactions that are
// mid-review so a reload cannot yank them out from under the user.
func (a *App) replaceTransactions(txs []domain.Transaction) {
	selected, _ := a.SelectedTransaction()
	live := map[string]domain.TransactionStatus{}
	for _, tx := range a.txs {
		if tx.Status == domain.TransactionInProgress {
			live[tx.ID] = tx.Status
		}
	}
	a.txs = append([]domain.Transaction(nil), txs...)
	for i := range a.txs {
		if st, ok := live[a.txs[i].ID]; ok {
			a.txs[i].Status = st
		}
	}
	a.syncDashboard()
	if selected.ID != "" {
		for i, tx := range a.txs {
			if tx.ID == selected.ID {
				a.Dashboard.List.Select(i)
			}
		}
	}
	if a.History.Nav != nil {
		a.History.Nav.Rebuild(navtree.BuildHistory(a.txs))
	}
	if a.Detail.Nav != nil {
		if tx, ok := a.Transaction(a.Detail.TxID); ok {
			a.Detail.Nav.Rebuild(navtree.BuildDetail(tx, detailSections...))
		}
	}
}

// persist writes the given transactions' statuses back to the fixtures
// file.
func (a *App) persist(ids ...string) tea.Cmd {
	if a.fixtures == "" || len(ids) == 0 {
		return nil
	}
	statuses := make(map[string]domain.TransactionStatus, len(ids))
	for _, id := range ids {
		if tx, ok := a.Transaction(id); ok {
			statuses[id] = tx.Status
		}
	}
	return persistCmd(a.Paths, a.lock, a.fixtures, statuses)
}

func (a *App) HandlePersisted(msg persistedMsg) tea.Cmd {
	if msg.Err != nil {
		return a.Notify("Could not save statuses", msg.Err.Error(), badgeToneWarning)
	}
	return nil
}

var detailSections = []navtree.Section{
	navtree.SectionMessage,
	navtree.SectionPrompt,
	navtree.SectionReasoning,
	navtree.SectionFiles,
}

// OpenDetail shows one transaction's sections and files.
func (a *App) OpenDetail(id string) tea.Cmd {
	tx, ok := a.Transaction(id)
	if !ok {
		a.Log.Warnf("app: detail of unknown transaction %q ignored", id)
		return nil
	}
	nav := navtree.NewNavigator(navtree.BuildDetail(tx, detailSections...), a.treeHeight(domain.ScreenTransactionDetail), a.Log)
	a.Detail = DetailState{TxID: id, Browser: Browser{Nav: nav}}
	return a.Navigate(domain.ScreenTransactionDetail)
}

// OpenHistory browses every transaction.
func (a *App) OpenHistory() tea.Cmd {
	return a.Navigate(domain.ScreenTransactionHistory)
}

func (a *App) syncHistory() {
	tree := navtree.BuildHistory(a.txs)
	if a.History.Nav == nil {
		a.History.Browser = Browser{Nav: navtree.NewNavigator(tree, a.treeHeight(domain.ScreenTransactionHistory), a.Log)}
		return
	}
	a.History.Nav.Rebuild(tree)
}

// OpenCommit prepares a commit of every APPLIED transaction.
func (a *App) OpenCommit() tea.Cmd {
	var applied []domain.Transaction
	for _, tx := range a.txs {
		if tx.Status == domain.TransactionApplied {
			applied = append(applied, tx)
		}
	}
	if len(applied) == 0 {
		return a.Notify("Nothing to commit", "No applied transactions are waiting for a commit.", badgeToneInfo)
	}
	input := textinput.New()
	input.Prompt = "› "
	input.CharLimit = 200
	subject, body, _ := strings.Cut(gitx.CommitMessage(applied), "\n")
	input.SetValue(subject)
	input.Focus()
	ids := make([]string, len(applied))
	for i, tx := range applied {
		ids[i] = tx.ID
	}
	a.Commit = CommitState{Input: input, TxIDs: ids, Body: strings.TrimSpace(body)}
	return tea.Batch(a.Navigate(domain.ScreenGitCommit), textinput.Blink)
}

// CommitSubmit marks the transactions COMMITTED and runs the commit. A
// failure rolls the statuses back.
func (a *App) CommitSubmit() tea.Cmd {
	if a.Commit.InFlight {
		return nil
	}
	message := strings.TrimSpace(a.Commit.Input.Value())
	if message == "" {
		a.Commit.Err = "commit message is empty"
		return nil
	}
	if a.Commit.Body != "" {
		message += "\n\n" + a.Commit.Body
	}
	a.Commit.Err = ""
	a.Commit.prev = map[string]domain.TransactionStatus{}
	for _, id := range a.Commit.TxIDs {
		if prev, ok := a.setStatus(id, domain.TransactionCommitted); ok {
			a.Commit.prev[id] = prev
		}
	}
	a.Commit.InFlight = true
	a.Log.Infof("app: committing %d transaction(s)", len(a.Commit.TxIDs))
	return commitCmd(a.ctx, a.git, message, append([]string(nil), a.Commit.TxIDs...))
}

func (a *App) HandleCommitDone(msg commitDoneMsg) tea.Cmd {
	a.Commit.InFlight = false
	if msg.Err != nil {
		for id, prev := range a.Commit.prev {
			a.setStatus(id, prev)
		}
		a.Commit.prev = nil
		a.Commit.Err = msg.Err.Error()
		return a.Notify("Commit failed", msg.Err.Error(), badgeToneDanger)
	}
	for i := range a.txs {
		for _, id := range msg.TxIDs {
			if a.txs[i].ID == id {
				a.txs[i].Hash = msg.SHA
			}
		}
	}
	a.Commit.prev = nil
	short := msg.SHA
	if len(short) > 7 {
		short = short[:7]
	}
	return tea.Batch(
		a.persist(msg.TxIDs...),
		a.Navigate(domain.ScreenDashboard),
		a.Notify("Committed", fmt.Sprintf("%d transaction(s) committed as %s", len(msg.TxIDs), short), badgeToneSuccess),
	)
}
