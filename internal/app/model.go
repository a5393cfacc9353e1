package app

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"relaycode/internal/domain"
	"relaycode/internal/navtree"
	"relaycode/internal/review"
	"relaycode/internal/timers"
)

// Model adapts App to bubbletea: keys are mapped through the keymap of
// whichever surface owns the keyboard, async results are routed back to
// App handlers.
type Model struct {
	app  *App
	keys keyMap
	help help.Model

	helpKey  string
	helpText string
}

func NewModel(a *App) *Model {
	return &Model{app: a, keys: defaultKeyMap(), help: help.New()}
}

func (m *Model) App() *App { return m.app }

func (m *Model) Init() tea.Cmd {
	return m.app.Init()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.syncBody()
	return m, cmd
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	a := m.app
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.Resize(msg.Width, msg.Height)
		m.help.Width = msg.Width
		return nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case pipelineEventMsg:
		return a.HandlePipelineEvent(msg)
	case pipelineDoneMsg:
		return a.HandlePipelineDone(msg)
	case reapplyDoneMsg:
		return a.HandleReapplyDone(msg)
	case clipboardMsg:
		return a.HandleClipboard(msg)
	case instructCopiedMsg:
		return a.HandleInstructCopied(msg)
	case handoffCopiedMsg:
		return a.HandleHandoffCopied(msg)
	case commitDoneMsg:
		return a.HandleCommitDone(msg)
	case persistedMsg:
		return a.HandlePersisted(msg)
	case exportedMsg:
		return a.HandleExported(msg)
	case fixturesChangedMsg:
		return loadFixturesCmd(a.fixtures, a.Now)
	case fixturesLoadedMsg:
		return a.HandleFixturesLoaded(msg)
	case timers.FiredMsg:
		return a.HandleTimer(msg)
	case spinner.TickMsg:
		if a.Screen() != domain.ScreenReviewProcessing || !a.Processing.Live() {
			return nil
		}
		var cmd tea.Cmd
		a.Processing.Spinner, cmd = a.Processing.Spinner.Update(msg)
		return cmd
	}
	if a.Screen() == domain.ScreenGitCommit {
		var cmd tea.Cmd
		a.Commit.Input, cmd = a.Commit.Input.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	a := m.app
	k := m.keys
	if key.Matches(msg, k.ForceQuit) {
		if a.Screen() == domain.ScreenReviewProcessing && a.CancelApply() {
			return nil
		}
		return a.Quit()
	}

	owner := a.router.KeyOwner()
	if owner.IsOverlay() {
		return m.overlayKey(owner.Overlay, msg)
	}

	switch {
	case key.Matches(msg, k.Log):
		a.ToggleOverlay(domain.OverlayLog)
		return nil
	case key.Matches(msg, k.Debug):
		if a.Screen() == domain.ScreenDashboard {
			return a.Navigate(domain.ScreenDebugMenu)
		}
		a.ToggleOverlay(domain.OverlayDebug)
		return nil
	case key.Matches(msg, k.Help) && a.Screen() != domain.ScreenGitCommit:
		a.ToggleOverlay(domain.OverlayHelp)
		return nil
	}

	switch owner.Screen {
	case domain.ScreenSplash:
		if key.Matches(msg, k.Back) {
			return a.Back()
		}
		return a.Navigate(domain.ScreenDashboard)
	case domain.ScreenDashboard:
		return m.dashboardKey(msg)
	case domain.ScreenReviewProcessing:
		return m.processingKey(msg)
	case domain.ScreenReview:
		return m.reviewKey(msg)
	case domain.ScreenTransactionDetail:
		return m.browserKey(msg, &a.Detail.Browser)
	case domain.ScreenTransactionHistory:
		return m.browserKey(msg, &a.History.Browser)
	case domain.ScreenGitCommit:
		return m.commitKey(msg)
	case domain.ScreenDebugMenu:
		return m.debugMenuKey(msg)
	case domain.ScreenDebugLog:
		return m.debugLogKey(msg)
	}
	return nil
}

func (m *Model) overlayKey(o domain.Overlay, msg tea.KeyMsg) tea.Cmd {
	a := m.app
	k := m.keys
	switch o {
	case domain.OverlayCopy:
		switch {
		case key.Matches(msg, k.Up):
			a.CopyMove(-1)
		case key.Matches(msg, k.Down):
			a.CopyMove(1)
		case key.Matches(msg, k.Toggle):
			a.CopyToggle()
		case key.Matches(msg, k.Enter):
			return a.CopySubmit()
		case key.Matches(msg, k.Back):
			a.CloseOverlay()
		}
		return nil
	case domain.OverlayDebug:
		switch {
		case key.Matches(msg, k.Up):
			a.DebugMenuMove(-1)
		case key.Matches(msg, k.Down):
			a.DebugMenuMove(1)
		case key.Matches(msg, k.Enter):
			return a.DebugMenuRun()
		case key.Matches(msg, k.Back), key.Matches(msg, k.Debug):
			a.CloseOverlay()
		}
		return nil
	case domain.OverlayHelp:
		if key.Matches(msg, k.Back) || key.Matches(msg, k.Help) {
			a.CloseOverlay()
		}
		return nil
	case domain.OverlayLog:
		if key.Matches(msg, k.Back) || key.Matches(msg, k.Log) {
			a.CloseOverlay()
		}
		return nil
	}
	// Any key dismisses a notification.
	a.CloseOverlay()
	return nil
}

func (m *Model) dashboardKey(msg tea.KeyMsg) tea.Cmd {
	a := m.app
	k := m.keys
	list := &a.Dashboard.List
	switch {
	case key.Matches(msg, k.Up):
		list.Up()
	case key.Matches(msg, k.Down):
		list.Down()
	case key.Matches(msg, k.PageUp):
		list.PageUp()
	case key.Matches(msg, k.PageDown):
		list.PageDown()
	case key.Matches(msg, k.Home):
		list.Home()
	case key.Matches(msg, k.End):
		list.End()
	case key.Matches(msg, k.Enter):
		return a.DashboardOpen()
	case key.Matches(msg, k.Apply):
		return a.DashboardApply()
	case key.Matches(msg, k.History):
		return a.OpenHistory()
	case key.Matches(msg, k.Commit):
		return a.OpenCommit()
	case key.Matches(msg, k.Pause):
		return a.TogglePause()
	case key.Matches(msg, k.Back):
		return a.Back()
	}
	return nil
}

func (m *Model) processingKey(msg tea.KeyMsg) tea.Cmd {
	a := m.app
	if key.Matches(msg, m.keys.Cancel) || key.Matches(msg, m.keys.Back) {
		if a.CancelApply() {
			return nil
		}
		if !a.Processing.Live() {
			return a.Back()
		}
	}
	return nil
}

func (m *Model) reviewKey(msg tea.KeyMsg) tea.Cmd {
	a := m.app
	k := m.keys
	s := a.Review.Session
	if s == nil {
		if key.Matches(msg, k.Back) {
			return a.Back()
		}
		return nil
	}

	switch s.SubView() {
	case review.SubBulkRepair:
		switch {
		case key.Matches(msg, k.Option1):
			return a.BulkRepairExecute(review.RepairCopyPrompt)
		case key.Matches(msg, k.Option2):
			return a.BulkRepairExecute(review.RepairReapply)
		case key.Matches(msg, k.Option3):
			return a.BulkRepairExecute(review.RepairHandoff)
		case key.Matches(msg, k.Option4):
			return a.BulkRepairExecute(review.RepairReject)
		case key.Matches(msg, k.Back):
			a.ReviewCloseSubView()
		}
		return nil
	case review.SubBulkInstruct:
		switch {
		case key.Matches(msg, k.Option1):
			return a.BulkInstructExecute(review.InstructCopyPrompt)
		case key.Matches(msg, k.Option2):
			return a.BulkInstructExecute(review.InstructHandoff)
		case key.Matches(msg, k.Option3):
			return a.BulkInstructExecute(review.InstructApproveOriginal)
		case key.Matches(msg, k.Back):
			a.ReviewCloseSubView()
		}
		return nil
	case review.SubHandoffConfirm:
		switch {
		case key.Matches(msg, k.Confirm):
			return a.ReviewConfirmHandoff()
		case key.Matches(msg, k.Deny):
			a.ReviewCancelHandoff()
		}
		return nil
	}

	switch {
	case key.Matches(msg, k.Toggle):
		return a.ReviewToggle()
	case key.Matches(msg, k.Repair):
		return a.ReviewRepair()
	case key.Matches(msg, k.Instruct):
		return a.ReviewInstruct()
	case key.Matches(msg, k.BulkRepair):
		return a.ReviewOpenBulkRepair()
	case key.Matches(msg, k.BulkInstruct):
		return a.ReviewOpenBulkInstruct()
	case key.Matches(msg, k.Approve):
		return a.ReviewApprove()
	case key.Matches(msg, k.Copy):
		a.OpenCopyForScreen()
		return nil
	case key.Matches(msg, k.Rerun):
		return a.ReviewRerun()
	}
	return m.browserKey(msg, &a.Review.Browser)
}

// browserKey is the shared tree navigation of review, detail and history.
func (m *Model) browserKey(msg tea.KeyMsg, b *Browser) tea.Cmd {
	a := m.app
	k := m.keys
	if b.Nav == nil {
		if key.Matches(msg, k.Back) {
			return a.Back()
		}
		return nil
	}
	nav := b.Nav
	switch {
	case key.Matches(msg, k.Up):
		nav.Up()
	case key.Matches(msg, k.Down):
		nav.Down()
	case key.Matches(msg, k.PageUp):
		nav.PageUp()
	case key.Matches(msg, k.PageDown):
		nav.PageDown()
	case key.Matches(msg, k.Home):
		nav.Home()
	case key.Matches(msg, k.End):
		nav.End()
	case key.Matches(msg, k.Right), key.Matches(msg, k.Enter):
		nav.ExpandOrDrillDown()
	case key.Matches(msg, k.Left):
		nav.CollapseOrBubbleUp()
	case key.Matches(msg, k.ExpandAll):
		nav.ExpandAll()
	case key.Matches(msg, k.CollapseAll):
		nav.CollapseAll()
	case key.Matches(msg, k.BodyUp):
		b.Body.ScrollUp(3)
	case key.Matches(msg, k.BodyDown):
		b.Body.ScrollDown(3)
	case key.Matches(msg, k.Copy):
		a.OpenCopyForScreen()
	case key.Matches(msg, k.Back):
		if nav.Body() != navtree.BodyNone {
			nav.CloseBody()
			return nil
		}
		return a.Back()
	}
	return nil
}

func (m *Model) commitKey(msg tea.KeyMsg) tea.Cmd {
	a := m.app
	switch {
	case key.Matches(msg, m.keys.Submit):
		return a.CommitSubmit()
	case msg.Type == tea.KeyEsc:
		if a.Commit.InFlight {
			return nil
		}
		return a.Back()
	}
	var cmd tea.Cmd
	a.Commit.Input, cmd = a.Commit.Input.Update(msg)
	return cmd
}

func (m *Model) debugMenuKey(msg tea.KeyMsg) tea.Cmd {
	a := m.app
	k := m.keys
	switch {
	case key.Matches(msg, k.Up):
		a.DebugMenuMove(-1)
	case key.Matches(msg, k.Down):
		a.DebugMenuMove(1)
	case key.Matches(msg, k.Enter):
		return a.DebugMenuRun()
	case key.Matches(msg, k.Back):
		return a.Back()
	}
	return nil
}

func (m *Model) debugLogKey(msg tea.KeyMsg) tea.Cmd {
	a := m.app
	k := m.keys
	switch {
	case key.Matches(msg, k.Up):
		a.DebugLogMove(-1)
	case key.Matches(msg, k.Down):
		a.DebugLogMove(1)
	case key.Matches(msg, k.PageUp):
		a.DebugLogMove(-a.DebugLog.List.Height)
	case key.Matches(msg, k.PageDown):
		a.DebugLogMove(a.DebugLog.List.Height)
	case key.Matches(msg, k.Home):
		a.syncDebugLog()
		a.DebugLog.List.Home()
	case key.Matches(msg, k.End):
		a.syncDebugLog()
		a.DebugLog.List.End()
	case key.Matches(msg, k.Simulate):
		return a.ToggleLogSimulator()
	case key.Matches(msg, k.Clear):
		a.ClearLog()
	case key.Matches(msg, k.Export):
		return a.ExportLog()
	case key.Matches(msg, k.Back):
		return a.Back()
	}
	return nil
}

// Run drives the TUI until the user quits or ctx is cancelled. The logger's
// mirror is muted while the alternate screen owns the terminal.
func Run(ctx context.Context, a *App) error {
	muted := a.Log.SetMirror(nil)
	defer a.Log.SetMirror(muted)
	defer a.Shutdown()

	program := tea.NewProgram(NewModel(a), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
