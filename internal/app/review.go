package app

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"relaycode/internal/domain"
	"relaycode/internal/navtree"
	"relaycode/internal/pipeline"
	"relaycode/internal/prompt"
	"relaycode/internal/review"
)

// OpenReview resumes an existing review of id, or starts an apply when
// there is none.
func (a *App) OpenReview(id string) tea.Cmd {
	if s := a.Review.Session; s != nil && s.TxID() == id && !s.Approved() && !s.HandedOff() {
		a.setStatus(id, domain.TransactionInProgress)
		return a.Navigate(domain.ScreenReview)
	}
	return a.StartApply(id, a.scenario)
}

// StartApply runs the apply pipeline for id under scenario and shows its
// progress. Any earlier run for the same transaction is superseded.
func (a *App) StartApply(id string, scenario domain.ApplyScenario) tea.Cmd {
	return a.startApply(id, scenario, applyOptions{})
}

type applyOptions struct {
	// instant drops the configured step delay.
	instant bool
	// bulkRepair opens the bulk repair menu once the review starts.
	bulkRepair bool
}

func (a *App) startApply(id string, scenario domain.ApplyScenario, opts applyOptions) tea.Cmd {
	tx, ok := a.Transaction(id)
	if !ok {
		a.Log.Warnf("app: apply of unknown transaction %q ignored", id)
		return nil
	}
	engine := a.newEngine(scenario)
	runner := *a.supervisor.Runner()
	runner.Engine = engine
	if opts.instant {
		runner.Delay = 0
	}
	run := a.supervisor.StartWith(a.ctx, &runner, tx)

	prevStatus := tx.Status
	if a.Processing.TxID == id && a.Processing.prevStatus != "" {
		prevStatus = a.Processing.prevStatus
	}
	if a.Review.Session != nil && a.Review.Session.TxID() == id {
		prevStatus = a.Review.prevStatus
		a.Review = ReviewState{}
	}
	a.setStatus(id, domain.TransactionInProgress)

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	spin.Style = warnStyle
	a.Processing = ProcessingState{
		TxID:       id,
		Gen:        run.Gen,
		Scenario:   scenario,
		Progress:   pipeline.NewProgress(a.Log),
		Spinner:    spin,
		Started:    a.Now(),
		prevStatus: prevStatus,
		engine:     engine,
		run:        run,
		openBulk:   opts.bulkRepair,
	}
	a.Log.Infof("app: applying %s (%s scenario, run %d)", id, scenario, run.Gen)

	nav := a.Navigate(domain.ScreenReviewProcessing)
	if nav == nil {
		nav = a.Processing.Spinner.Tick
	}
	return tea.Batch(nav, waitForPipeline(run))
}

// CancelApply asks the live run to stop. It reports false when nothing is
// running.
func (a *App) CancelApply() bool {
	if !a.Processing.Live() || a.Processing.Cancelling {
		return false
	}
	if !a.supervisor.Cancel(a.Processing.TxID) {
		return false
	}
	a.Processing.Cancelling = true
	return true
}

func (a *App) current(txID string, gen uint64) bool {
	return a.Processing.TxID == txID && a.Processing.Gen == gen
}

// HandlePipelineEvent applies one progress event and pumps the next.
// Events from superseded runs are dropped and their stream abandoned.
func (a *App) HandlePipelineEvent(msg pipelineEventMsg) tea.Cmd {
	if !a.supervisor.Accept(msg.TxID, msg.Gen) || !a.current(msg.TxID, msg.Gen) {
		a.Log.Debugf("app: stale event from %s#%d dropped", msg.TxID, msg.Gen)
		return nil
	}
	a.Processing.Progress.Apply(msg.Event)
	return waitForPipeline(msg.run)
}

// HandlePipelineDone settles the run and moves to review when the
// processing screen is still showing it.
func (a *App) HandlePipelineDone(msg pipelineDoneMsg) tea.Cmd {
	if !a.supervisor.Accept(msg.TxID, msg.Gen) || !a.current(msg.TxID, msg.Gen) {
		a.Log.Debugf("app: stale result from %s#%d dropped", msg.TxID, msg.Gen)
		return nil
	}
	a.supervisor.Finish(msg.TxID, msg.Gen)
	res := msg.Result
	a.Processing.Result = &res
	a.Processing.Cancelling = false
	if res.Cancelled {
		// closing events are dropped when this loop fell behind
		a.Processing.Progress.Finalize("cancelled")
	}
	a.Log.Infof("app: apply of %s finished: %s in %s", res.TxID, res.PatchStatus, res.Elapsed)

	if a.router.Screen() != domain.ScreenReviewProcessing {
		a.setStatus(res.TxID, a.Processing.prevStatus)
		return nil
	}
	// A cancelled run stays on screen with its settled steps until back.
	if res.Cancelled {
		a.setStatus(res.TxID, a.Processing.prevStatus)
		return a.SetFlash("Apply of " + res.TxID + " cancelled")
	}
	tx, ok := a.Transaction(res.TxID)
	if !ok {
		return a.Navigate(domain.ScreenDashboard)
	}
	openBulk := a.Processing.openBulk
	cmd := a.OpenReviewResult(tx, res)
	if openBulk && !a.Review.Session.OpenBulkRepair() {
		a.Log.Infof("app: nothing failed in %s; bulk repair not opened", tx.ID)
	}
	return cmd
}

// OpenReviewResult starts a review session seeded from a pipeline result.
func (a *App) OpenReviewResult(tx domain.Transaction, res pipeline.Result) tea.Cmd {
	session := review.NewSession(tx, res.Outcomes, a.Log)
	tree := navtree.BuildDetail(tx, navtree.SectionPrompt, navtree.SectionReasoning, navtree.SectionFiles)
	nav := navtree.NewNavigator(tree, a.treeHeight(domain.ScreenReview), a.Log)
	nav.Expand(string(navtree.SectionFiles))
	if len(tx.Files) > 0 {
		nav.Focus(string(navtree.SectionFiles) + "/" + tx.Files[0].ID)
	}

	prevStatus := tx.Status
	var reapplier review.Reapplier = a.newEngine(a.scenario)
	scenario := a.scenario
	if a.Processing.TxID == tx.ID {
		prevStatus = a.Processing.prevStatus
		scenario = a.Processing.Scenario
		if a.Processing.engine != nil {
			reapplier = a.Processing.engine
		}
	}
	if tx.Status != domain.TransactionInProgress {
		a.setStatus(tx.ID, domain.TransactionInProgress)
	}
	a.Review = ReviewState{
		Browser:     Browser{Nav: nav},
		Session:     session,
		PatchStatus: res.PatchStatus,
		Steps:       res.Steps,
		Elapsed:     res.Elapsed,
		Scenario:    scenario,
		prevStatus:  prevStatus,
		reapplier:   reapplier,
	}
	return a.Navigate(domain.ScreenReview)
}

// leaveReview puts an unfinished review's transaction back to its prior
// status. The session is kept so reopening resumes it.
func (a *App) leaveReview() {
	s := a.Review.Session
	if s == nil || s.Approved() || s.HandedOff() {
		return
	}
	if tx, ok := a.Transaction(s.TxID()); ok && tx.Status == domain.TransactionInProgress && a.Review.prevStatus != "" {
		a.setStatus(s.TxID(), a.Review.prevStatus)
	}
}

// ReviewRerun re-runs the pipeline for the transaction under review.
func (a *App) ReviewRerun() tea.Cmd {
	s := a.Review.Session
	if s == nil {
		return nil
	}
	return a.StartApply(s.TxID(), a.Review.Scenario)
}

// FocusedFileID is the file under the review cursor, if any.
func (a *App) FocusedFileID() (string, bool) {
	if a.Review.Nav == nil {
		return "", false
	}
	node, ok := a.Review.Nav.FocusedNode()
	if !ok || node.Kind != navtree.KindFile {
		return "", false
	}
	return node.FileID, true
}

// ReviewToggle flips the focused file between approved and rejected.
func (a *App) ReviewToggle() tea.Cmd {
	s := a.Review.Session
	id, ok := a.FocusedFileID()
	if s == nil || !ok {
		return nil
	}
	status, err := s.Toggle(id)
	if errors.Is(err, review.ErrTransitionBlocked) {
		return a.SetFlash(fmt.Sprintf("%s is %s; repair it first", a.filePath(id), s.Status(id)))
	}
	if err != nil {
		a.Log.Warnf("app: toggle %s: %v", id, err)
		return nil
	}
	a.Log.Debugf("app: %s -> %s", id, status)
	return nil
}

// ReviewRepair retries the focused FAILED file.
func (a *App) ReviewRepair() tea.Cmd {
	s := a.Review.Session
	id, ok := a.FocusedFileID()
	if s == nil || !ok {
		return nil
	}
	b, err := s.StartRepair(id)
	if err != nil {
		return a.SetFlash(fmt.Sprintf("Only failed files can be repaired (%s)", s.Status(id)))
	}
	return a.reapply(b)
}

// ReviewInstruct copies an instruction prompt for the focused REJECTED file
// and retries it once the prompt is on the clipboard.
func (a *App) ReviewInstruct() tea.Cmd {
	s := a.Review.Session
	id, ok := a.FocusedFileID()
	if s == nil || !ok {
		return nil
	}
	if s.Status(id) != domain.ReviewRejected {
		return a.SetFlash(fmt.Sprintf("Only rejected files can be re-instructed (%s)", s.Status(id)))
	}
	files := a.promptFiles(s, []string{id})
	b, err := s.StartInstruct(id)
	if err != nil {
		a.Log.Warnf("app: instruct %s: %v", id, err)
		return nil
	}
	text, err := prompt.Instruct(s.Transaction(), files)
	if err != nil {
		s.Rollback(b)
		return a.Notify("Prompt failed", err.Error(), badgeToneDanger)
	}
	return instructCopyCmd(a.clipboard, b, text)
}

func (a *App) HandleInstructCopied(msg instructCopiedMsg) tea.Cmd {
	s := a.Review.Session
	if s == nil || s.TxID() != msg.TxID {
		return nil
	}
	if msg.Err != nil {
		s.Rollback(msg.Batch)
		return a.Notify("Clipboard unavailable", msg.Err.Error(), badgeToneDanger)
	}
	return tea.Batch(a.SetFlash("Instructions copied"), a.reapply(msg.Batch))
}

func (a *App) reapply(b *review.Batch) tea.Cmd {
	if b.Empty() {
		return nil
	}
	a.Review.InFlight++
	a.Log.Infof("app: re-applying %d file(s) of %s", len(b.FileIDs), b.TxID)
	return reapplyCmd(a.ctx, a.Review.reapplier, b)
}

func (a *App) HandleReapplyDone(msg reapplyDoneMsg) tea.Cmd {
	s := a.Review.Session
	if s == nil || s.TxID() != msg.TxID {
		a.Log.Debugf("app: reapply result for %s dropped", msg.TxID)
		return nil
	}
	a.Review.InFlight = max(0, a.Review.InFlight-1)
	if msg.Err != nil {
		s.Rollback(msg.Batch)
		return a.Notify("Re-apply failed", msg.Err.Error(), badgeToneDanger)
	}
	s.ApplyResults(msg.Batch, msg.Results)
	ok := 0
	for _, id := range msg.Batch.FileIDs {
		if s.Status(id) == domain.ReviewApproved {
			ok++
		}
	}
	return a.SetFlash(fmt.Sprintf("Re-applied %d of %d file(s)", ok, len(msg.Batch.FileIDs)))
}

func (a *App) ReviewOpenBulkRepair() tea.Cmd {
	if s := a.Review.Session; s != nil && !s.OpenBulkRepair() {
		return a.SetFlash("No failed files")
	}
	return nil
}

func (a *App) ReviewOpenBulkInstruct() tea.Cmd {
	if s := a.Review.Session; s != nil && !s.OpenBulkInstruct() {
		return a.SetFlash("No rejected files")
	}
	return nil
}

func (a *App) BulkRepairExecute(opt review.RepairOption) tea.Cmd {
	s := a.Review.Session
	if s == nil {
		return nil
	}
	act, err := s.BulkRepair(opt)
	if err != nil {
		a.Log.Warnf("app: bulk repair: %v", err)
		return nil
	}
	return a.runAction(act)
}

func (a *App) BulkInstructExecute(opt review.InstructOption) tea.Cmd {
	s := a.Review.Session
	if s == nil {
		return nil
	}
	act, err := s.BulkInstruct(opt)
	if err != nil {
		a.Log.Warnf("app: bulk instruct: %v", err)
		return nil
	}
	return a.runAction(act)
}

func (a *App) runAction(act review.Action) tea.Cmd {
	s := a.Review.Session
	switch act.Kind {
	case review.ActionCopyPrompt:
		ids := make([]string, len(act.Targets))
		for i, f := range act.Targets {
			ids[i] = f.ID
		}
		kind, label := prompt.KindRepair, "Repair prompt"
		if act.Status == domain.ReviewRejected {
			kind, label = prompt.KindInstruct, "Instructions"
		}
		text, err := prompt.Build(kind, s.Transaction(), a.promptFiles(s, ids))
		if err != nil {
			return a.Notify("Prompt failed", err.Error(), badgeToneDanger)
		}
		return copyCmd(a.clipboard, fmt.Sprintf("%s for %d file(s)", label, len(ids)), text)
	case review.ActionReapply:
		return a.reapply(act.Batch)
	case review.ActionStatusChanged:
		return a.SetFlash(fmt.Sprintf("%d %s file(s) updated", len(act.Targets), act.Status))
	case review.ActionNone:
		return a.SetFlash("Nothing left to do")
	}
	return nil
}

// ReviewConfirmHandoff copies the hand-off prompt, then ends the review.
func (a *App) ReviewConfirmHandoff() tea.Cmd {
	s := a.Review.Session
	if s == nil || s.SubView() != review.SubHandoffConfirm {
		return nil
	}
	files := s.HandoffFiles()
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	text, err := prompt.Handoff(s.Transaction(), a.promptFiles(s, ids))
	if err != nil {
		return a.Notify("Prompt failed", err.Error(), badgeToneDanger)
	}
	return handoffCopyCmd(a.clipboard, s.TxID(), text)
}

func (a *App) HandleHandoffCopied(msg handoffCopiedMsg) tea.Cmd {
	s := a.Review.Session
	if s == nil || s.TxID() != msg.TxID {
		return nil
	}
	if msg.Err != nil {
		return a.Notify("Clipboard unavailable", msg.Err.Error(), badgeToneDanger)
	}
	if err := s.ConfirmHandoff(); err != nil {
		a.Log.Warnf("app: hand-off: %v", err)
		return nil
	}
	a.setStatus(s.TxID(), domain.TransactionHandoff)
	return tea.Batch(
		a.persist(s.TxID()),
		a.Navigate(domain.ScreenDashboard),
		a.Notify("Handed off", fmt.Sprintf("Hand-off prompt for %s copied to the clipboard", s.TxID()), badgeToneInfo),
	)
}

func (a *App) ReviewCancelHandoff() {
	if s := a.Review.Session; s != nil {
		s.CancelHandoff()
	}
}

// ReviewCloseSubView closes a bulk menu. It reports whether one was open.
func (a *App) ReviewCloseSubView() bool {
	s := a.Review.Session
	if s == nil {
		return false
	}
	switch s.SubView() {
	case review.SubNone:
		return false
	case review.SubHandoffConfirm:
		s.CancelHandoff()
	default:
		s.CloseSubView()
	}
	return true
}

// ReviewApprove finalizes the review: the transaction becomes APPLIED.
func (a *App) ReviewApprove() tea.Cmd {
	s := a.Review.Session
	if s == nil {
		return nil
	}
	if a.Review.InFlight > 0 {
		return a.SetFlash("Wait for re-apply to finish")
	}
	if err := s.Approve(); err != nil {
		return a.SetFlash("Approve at least one file first")
	}
	a.setStatus(s.TxID(), domain.TransactionApplied)
	approved := s.Counts()[domain.ReviewApproved]
	return tea.Batch(
		a.persist(s.TxID()),
		a.Navigate(domain.ScreenDashboard),
		a.SetFlash(fmt.Sprintf("Applied %s: %d file(s) approved", s.TxID(), approved)),
	)
}

func (a *App) promptFiles(s *review.Session, ids []string) []prompt.File {
	tx := s.Transaction()
	errs := map[string]string{}
	items := make([]domain.FileItem, 0, len(ids))
	for _, id := range ids {
		f, ok := tx.FileByID(id)
		if !ok {
			continue
		}
		items = append(items, f)
		if st, ok := s.File(id); ok && st.Error != "" {
			errs[id] = st.Error
		}
	}
	return prompt.FromItems(items, errs)
}

func (a *App) filePath(id string) string {
	if s := a.Review.Session; s != nil {
		if f, ok := s.Transaction().FileByID(id); ok {
			return f.Path
		}
	}
	return id
}
