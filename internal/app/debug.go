package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"relaycode/internal/domain"
	"relaycode/internal/timers"
)

type debugItem struct {
	Label string
	Run   func(a *App) tea.Cmd
}

// debugItems jump straight into screen and state combinations. They are
// filled in init because the actions reach back into the menu itself.
var debugItems []debugItem

func init() {
	debugItems = []debugItem{
		{"Splash screen", func(a *App) tea.Cmd { return a.Navigate(domain.ScreenSplash) }},
		{"Dashboard", func(a *App) tea.Cmd { return a.Navigate(domain.ScreenDashboard) }},
		{"Apply (success scenario)", func(a *App) tea.Cmd { return a.debugApply(domain.ScenarioSuccess) }},
		{"Apply (failure scenario)", func(a *App) tea.Cmd { return a.debugApply(domain.ScenarioFailure) }},
		{"Review with failures", func(a *App) tea.Cmd { return a.debugReview(domain.ScenarioFailure, false) }},
		{"Review with bulk repair open", func(a *App) tea.Cmd { return a.debugReview(domain.ScenarioFailure, true) }},
		{"Review all approved", func(a *App) tea.Cmd { return a.debugReview(domain.ScenarioSuccess, false) }},
		{"Transaction detail", func(a *App) tea.Cmd {
			if tx, ok := a.debugTransaction(); ok {
				return a.OpenDetail(tx.ID)
			}
			return nil
		}},
		{"Transaction history", func(a *App) tea.Cmd { return a.OpenHistory() }},
		{"Git commit", func(a *App) tea.Cmd { return a.OpenCommit() }},
		{"Debug log", func(a *App) tea.Cmd { return a.Navigate(domain.ScreenDebugLog) }},
		{"Help overlay", func(a *App) tea.Cmd { return a.OpenOverlay(domain.OverlayHelp) }},
		{"Log overlay", func(a *App) tea.Cmd { return a.OpenOverlay(domain.OverlayLog) }},
		{"Copy overlay", func(a *App) tea.Cmd {
			if tx, ok := a.debugTransaction(); ok {
				a.OpenCopy(tx, "")
			}
			return nil
		}},
		{"Notification", func(a *App) tea.Cmd {
			return a.Notify("Test notification", "This is what a notification looks like.", badgeToneInfo)
		}},
		{"Clipboard failure", func(a *App) tea.Cmd {
			return a.Notify("Clipboard unavailable", "clipboard: no copy mechanism found", badgeToneDanger)
		}},
	}
}

// debugTransaction picks the selected dashboard row, else the newest one.
func (a *App) debugTransaction() (domain.Transaction, bool) {
	if tx, ok := a.SelectedTransaction(); ok {
		return tx, true
	}
	if len(a.txs) == 0 {
		a.Log.Warnf("app: debug action needs at least one transaction")
		return domain.Transaction{}, false
	}
	return a.txs[0], true
}

func (a *App) debugApply(sc domain.ApplyScenario) tea.Cmd {
	tx, ok := a.debugTransaction()
	if !ok {
		return nil
	}
	a.SetScenario(sc)
	return a.StartApply(tx.ID, sc)
}

// debugReview runs the pipeline with no step delay and lands on the review
// screen when it finishes. Hooks still run and esc still cancels.
func (a *App) debugReview(sc domain.ApplyScenario, bulk bool) tea.Cmd {
	tx, ok := a.debugTransaction()
	if !ok {
		return nil
	}
	return a.startApply(tx.ID, sc, applyOptions{instant: true, bulkRepair: bulk})
}

// DebugMenuMove serves both the debug screen and the debug overlay; they
// share one list.
func (a *App) DebugMenuMove(delta int) { a.DebugMenu.List.MoveBy(delta) }

// DebugMenuRun executes the selected debug item.
func (a *App) DebugMenuRun() tea.Cmd {
	i := a.DebugMenu.List.Selected
	if i < 0 || i >= len(debugItems) {
		return nil
	}
	item := debugItems[i]
	a.Log.Infof("debug: %s", item.Label)
	if a.router.Overlay() == domain.OverlayDebug {
		a.router.Close()
	}
	return item.Run(a)
}

// DebugRun runs the debug item with the given label. It reports false for
// unknown labels.
func (a *App) DebugRun(label string) (tea.Cmd, bool) {
	for i, item := range debugItems {
		if item.Label == label {
			a.DebugMenu.List.SetCount(len(debugItems))
			a.DebugMenu.List.Select(i)
			return a.DebugMenuRun(), true
		}
	}
	a.Log.Warnf("debug: unknown item %q", label)
	return nil, false
}

func (a *App) syncDebugLog() {
	n := len(a.Log.Entries())
	follow := a.DebugLog.List.Count == 0 || a.DebugLog.List.Selected >= a.DebugLog.List.Count-1
	a.DebugLog.List.SetCount(n)
	a.DebugLog.List.Resize(a.listHeight(domain.ScreenDebugLog))
	if follow {
		a.DebugLog.List.End()
	}
}

func (a *App) DebugLogMove(delta int) {
	a.syncDebugLog()
	a.DebugLog.List.MoveBy(delta)
}

// ToggleLogSimulator starts or stops the synthetic log feed.
func (a *App) ToggleLogSimulator() tea.Cmd {
	a.DebugLog.Simulate = !a.DebugLog.Simulate
	if !a.DebugLog.Simulate {
		a.screen.Disarm(timerLogSim)
		return nil
	}
	return a.screen.Arm(timerLogSim, logSimInterval)
}

func (a *App) ClearLog() {
	a.Log.Clear()
	a.DebugLog.List.SetCount(0)
}

func (a *App) ExportLog() tea.Cmd {
	return exportLogCmd(a.Log, a.Paths.LogExportPath())
}

func (a *App) HandleExported(msg exportedMsg) tea.Cmd {
	if msg.Err != nil {
		return a.Notify("Export failed", msg.Err.Error(), badgeToneDanger)
	}
	return a.SetFlash("Log written to " + msg.Path)
}

var simulatedLines = []struct {
	level string
	text  string
}{
	{"debug", "clipboard: polling for new content"},
	{"info", "watcher: fixtures unchanged"},
	{"debug", "pipeline: supervisor idle"},
	{"warn", "clipboard: content is not a patch, ignored"},
	{"info", "review: session state saved"},
}

func (a *App) simulateLog() tea.Cmd {
	if a.router.Screen() != domain.ScreenDebugLog || !a.DebugLog.Simulate {
		return nil
	}
	line := simulatedLines[a.DebugLog.simulated%len(simulatedLines)]
	a.DebugLog.simulated++
	text := fmt.Sprintf("sim #%d %s", a.DebugLog.simulated, line.text)
	switch line.level {
	case "debug":
		a.Log.Debugf("%s", text)
	case "warn":
		a.Log.Warnf("%s", text)
	default:
		a.Log.Infof("%s", text)
	}
	a.syncDebugLog()
	return a.screen.Arm(timerLogSim, logSimInterval)
}

// TimerArmed reports whether id is armed in the app-wide or screen scope.
func (a *App) TimerArmed(id timers.ID) bool {
	return a.global.Armed(id) || a.screen.Armed(id)
}

// debugSnapshot summarizes state for the debug overlay footer.
func (a *App) debugSnapshot() string {
	s := fmt.Sprintf("screen=%s overlay=%s txs=%d scenario=%s", a.router.Screen(), a.router.Overlay(), len(a.txs), a.scenario)
	if a.Processing.TxID != "" {
		s += fmt.Sprintf(" run=%s#%d", a.Processing.TxID, a.Processing.Gen)
	}
	if sess := a.Review.Session; sess != nil {
		c := sess.Counts()
		s += fmt.Sprintf(" review=%s a%d r%d f%d sub=%s", sess.TxID(), c[domain.ReviewApproved], c[domain.ReviewRejected], c[domain.ReviewFailed], sess.SubView())
	}
	return s
}
