package app

import (
	"context"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"relaycode/internal/clipboard"
	"relaycode/internal/domain"
	"relaycode/internal/gitx"
	"relaycode/internal/logx"
	"relaycode/internal/patchengine"
	"relaycode/internal/pipeline"
	"relaycode/internal/router"
	"relaycode/internal/state"
	"relaycode/internal/timers"
	"relaycode/internal/viewport"
)

const NowEnvVar = "RELAY_NOW"

const defaultRows = 24

// Committer is the git collaborator used by the commit screen.
type Committer interface {
	Commit(ctx context.Context, message string) (string, error)
}

type Options struct {
	Paths        state.Paths
	Config       domain.ConfigFile
	Transactions []domain.Transaction
	// FixturesPath is where status changes are written back. Empty keeps
	// everything in memory.
	FixturesPath string
	// Lock is the session lock held by the caller. Status writes go through
	// it instead of taking the lock again.
	Lock     *state.Lock
	Scenario domain.ApplyScenario
	Start    domain.Screen
	// Review starts an apply of this transaction as soon as the program
	// runs.
	Review    string
	Log       *logx.Logger
	Hooks     pipeline.Hooks
	Clipboard clipboard.Writer
	Git       Committer
	Now       func() time.Time
	// NewEngine builds the patch engine for one apply run.
	NewEngine func(scenario domain.ApplyScenario) *patchengine.Engine
}

// App owns every piece of screen state. All transitions are methods so the
// key handler, the debug menu and tests drive the same code. Methods that
// start asynchronous work return the tea.Cmd that performs it.
type App struct {
	Paths  state.Paths
	Config domain.ConfigFile
	Log    *logx.Logger
	Now    func() time.Time

	ctx        context.Context
	cancel     context.CancelFunc
	supervisor *pipeline.Supervisor
	newEngine  func(domain.ApplyScenario) *patchengine.Engine
	scenario   domain.ApplyScenario
	clipboard  clipboard.Writer
	git        Committer
	fixtures   string
	lock       *state.Lock
	watcher    *state.FixtureWatcher
	openReview string

	txs    []domain.Transaction
	router *router.Router
	width  int
	height int

	global *timers.Scope
	screen *timers.Scope

	Dashboard  DashboardState
	Processing ProcessingState
	Review     ReviewState
	Detail     DetailState
	History    HistoryState
	Commit     CommitState
	DebugMenu  DebugMenuState
	DebugLog   DebugLogState
	Copy       CopyState
	Notice     NotificationState

	flash    string
	quitting bool
}

// DefaultNow honours RELAY_NOW (RFC 3339) so demo timestamps are stable.
func DefaultNow() time.Time {
	if v := strings.TrimSpace(os.Getenv(NowEnvVar)); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

func New(opts Options) *App {
	log := opts.Log
	if log == nil {
		log = logx.Discard()
	}
	now := opts.Now
	if now == nil {
		now = DefaultNow
	}
	cfg := opts.Config
	if cfg.Version == 0 {
		cfg = state.DefaultConfig()
	}
	scenario := opts.Scenario
	if scenario == "" {
		scenario = domain.ScenarioSuccess
		if sc, err := domain.ParseApplyScenario(cfg.Pipeline.Scenario); err == nil {
			scenario = sc
		}
	}
	newEngine := opts.NewEngine
	if newEngine == nil {
		newEngine = func(sc domain.ApplyScenario) *patchengine.Engine {
			return patchengine.New(sc, log)
		}
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.System{}
	}
	var git Committer = gitx.Service{Dir: "."}
	if opts.Git != nil {
		git = opts.Git
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = pipeline.ShellHooks{PostCommandLine: cfg.Pipeline.PostCommand, LinterLine: cfg.Pipeline.Linter}
	}
	start := opts.Start
	if start == "" {
		start = domain.ScreenSplash
	}

	runner := &pipeline.Runner{
		Engine: newEngine(scenario),
		Hooks:  hooks,
		Delay:  time.Duration(cfg.Pipeline.StepDelayMillis) * time.Millisecond,
		Now:    now,
		Log:    log,
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Paths:      opts.Paths,
		Config:     cfg,
		Log:        log,
		Now:        now,
		ctx:        ctx,
		cancel:     cancel,
		supervisor: pipeline.NewSupervisor(runner),
		newEngine:  newEngine,
		scenario:   scenario,
		clipboard:  clip,
		git:        git,
		fixtures:   opts.FixturesPath,
		lock:       opts.Lock,
		openReview: opts.Review,
		txs:        append([]domain.Transaction(nil), opts.Transactions...),
		router:     router.New(start, log),
		height:     defaultRows,
		global:     timers.NewScope("app"),
		screen:     timers.NewScope("screen"),
	}
	a.DebugLog.Simulate = true
	a.syncDashboard()
	return a
}

// Init runs the enter hook of the start screen and starts the fixture
// watcher when configured.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.enter(a.router.Screen())}
	if a.fixtures != "" && a.Config.Fixtures.Watch {
		w, err := state.WatchFixtures(a.ctx, a.fixtures, a.Log)
		if err != nil {
			a.Log.Warnf("app: watching %s: %v", a.fixtures, err)
		} else {
			a.watcher = w
			cmds = append(cmds, waitForFixtures(w))
		}
	}
	if a.openReview != "" {
		a.SelectTransaction(a.openReview)
		cmds = append(cmds, a.StartApply(a.openReview, a.scenario))
	}
	return tea.Batch(cmds...)
}

// Shutdown stops live runs, timers and the watcher.
func (a *App) Shutdown() {
	a.supervisor.CancelAll()
	a.global.Close()
	a.screen.Close()
	if a.watcher != nil {
		_ = a.watcher.Close()
		a.watcher = nil
	}
	a.cancel()
}

// Quit tears everything down and ends the program.
func (a *App) Quit() tea.Cmd {
	a.quitting = true
	a.Shutdown()
	return tea.Quit
}

func (a *App) Quitting() bool { return a.quitting }

func (a *App) Screen() domain.Screen   { return a.router.Screen() }
func (a *App) Overlay() domain.Overlay { return a.router.Overlay() }
func (a *App) Router() *router.Router  { return a.router }
func (a *App) Flash() string           { return a.flash }

func (a *App) Supervisor() *pipeline.Supervisor { return a.supervisor }

func (a *App) Scenario() domain.ApplyScenario { return a.scenario }

func (a *App) SetScenario(sc domain.ApplyScenario) { a.scenario = sc }

func (a *App) Resize(width, height int) {
	a.width = width
	if height > 0 {
		a.height = height
	}
	a.Dashboard.List.Resize(a.listHeight(domain.ScreenDashboard))
	a.DebugMenu.List.Resize(a.listHeight(domain.ScreenDebugMenu))
	a.DebugLog.List.Resize(a.listHeight(domain.ScreenDebugLog))
	a.Copy.List.Resize(a.listHeight(domain.ScreenDebugMenu))
	if a.Review.Nav != nil {
		a.Review.Nav.SetHeight(a.treeHeight(domain.ScreenReview))
	}
	if a.Detail.Nav != nil {
		a.Detail.Nav.SetHeight(a.treeHeight(domain.ScreenTransactionDetail))
	}
	if a.History.Nav != nil {
		a.History.Nav.SetHeight(a.treeHeight(domain.ScreenTransactionHistory))
	}
}

func (a *App) listHeight(screen domain.Screen) int {
	r := viewport.FromDomain(state.ReservationFor(a.Config, screen))
	return viewport.AvailableHeight(a.height, r)
}

// treeHeight leaves room for a body pane under browsable trees.
func (a *App) treeHeight(screen domain.Screen) int {
	return max(1, a.listHeight(screen)/2)
}

// Transactions returns a copy of the loaded transactions, newest first.
func (a *App) Transactions() []domain.Transaction {
	return append([]domain.Transaction(nil), a.txs...)
}

func (a *App) Transaction(id string) (domain.Transaction, bool) {
	for _, tx := range a.txs {
		if tx.ID == id {
			return tx, true
		}
	}
	return domain.Transaction{}, false
}

func (a *App) setStatus(id string, status domain.TransactionStatus) (domain.TransactionStatus, bool) {
	for i := range a.txs {
		if a.txs[i].ID == id {
			prev := a.txs[i].Status
			a.txs[i].Status = status
			a.Log.Debugf("app: %s %s -> %s", id, prev, status)
			return prev, true
		}
	}
	a.Log.Warnf("app: status change for unknown transaction %q ignored", id)
	return "", false
}

// Navigate switches screens, running the leave hook of the old screen and
// the enter hook of the new one.
func (a *App) Navigate(to domain.Screen) tea.Cmd {
	from := a.router.Screen()
	a.router.Navigate(to)
	to = a.router.Screen()
	if from == to {
		return nil
	}
	a.leave(from)
	return a.enter(to)
}

// Back applies the global back table. It returns tea.Quit on exit.
func (a *App) Back() tea.Cmd {
	from := a.router.Screen()
	switch a.router.Back() {
	case router.BackExit:
		return a.Quit()
	case router.BackToDashboard:
		a.leave(from)
		return a.enter(domain.ScreenDashboard)
	default:
		return nil
	}
}

func (a *App) leave(screen domain.Screen) {
	a.screen.Close()
	switch screen {
	case domain.ScreenReviewProcessing:
		if a.supervisor.Cancel(a.Processing.TxID) {
			a.Log.Infof("app: apply of %s cancelled on leave", a.Processing.TxID)
		}
	case domain.ScreenReview:
		a.leaveReview()
	case domain.ScreenGitCommit:
		a.Commit.Input.Blur()
	}
}

func (a *App) enter(screen domain.Screen) tea.Cmd {
	a.screen.Open()
	a.Log.Debugf("app: enter %s", screen)
	switch screen {
	case domain.ScreenSplash:
		return a.screen.Arm(timerSplash, splashDuration)
	case domain.ScreenDashboard:
		a.syncDashboard()
	case domain.ScreenReviewProcessing:
		return a.Processing.Spinner.Tick
	case domain.ScreenTransactionHistory:
		a.syncHistory()
	case domain.ScreenDebugMenu:
		a.DebugMenu.List.SetCount(len(debugItems))
		a.DebugMenu.List.Resize(a.listHeight(domain.ScreenDebugMenu))
	case domain.ScreenDebugLog:
		a.syncDebugLog()
		if a.DebugLog.Simulate {
			return a.screen.Arm(timerLogSim, logSimInterval)
		}
	}
	return nil
}

// OpenOverlay opens o over the current screen.
func (a *App) OpenOverlay(o domain.Overlay) tea.Cmd {
	a.router.Open(o)
	if a.router.Overlay() == domain.OverlayDebug {
		a.DebugMenu.List.SetCount(len(debugItems))
	}
	return nil
}

func (a *App) ToggleOverlay(o domain.Overlay) {
	a.router.Toggle(o)
	if a.router.Overlay() == domain.OverlayDebug {
		a.DebugMenu.List.SetCount(len(debugItems))
	}
}

func (a *App) CloseOverlay() bool {
	if a.router.Overlay() == domain.OverlayNotification {
		a.global.Disarm(timerNotify)
	}
	return a.router.Close()
}

// SetFlash shows text in the status line until the flash timer fires.
func (a *App) SetFlash(text string) tea.Cmd {
	a.flash = text
	return a.global.Arm(timerFlash, time.Duration(a.Config.UI.FlashMillis)*time.Millisecond)
}

// Notify opens the notification overlay with an auto-dismiss countdown.
func (a *App) Notify(title, message string, tone badgeTone) tea.Cmd {
	a.Notice = NotificationState{
		Title:     title,
		Message:   message,
		Tone:      tone,
		Remaining: max(1, a.Config.UI.NotificationSeconds),
	}
	switch tone {
	case badgeToneDanger:
		a.Log.Errorf("notify: %s: %s", title, message)
	case badgeToneWarning:
		a.Log.Warnf("notify: %s: %s", title, message)
	default:
		a.Log.Infof("notify: %s: %s", title, message)
	}
	a.router.Open(domain.OverlayNotification)
	return a.global.Arm(timerNotify, time.Second)
}

// HandleTimer routes a fired timer to its owner. Stale fires are dropped.
func (a *App) HandleTimer(msg timers.FiredMsg) tea.Cmd {
	switch {
	case a.global.Accept(msg):
		switch msg.ID {
		case timerFlash:
			a.flash = ""
		case timerNotify:
			return a.tickNotification()
		}
	case a.screen.Accept(msg):
		switch msg.ID {
		case timerSplash:
			if a.router.Screen() == domain.ScreenSplash {
				return a.Navigate(domain.ScreenDashboard)
			}
		case timerLogSim:
			return a.simulateLog()
		}
	default:
		a.Log.Debugf("app: stale timer %s/%s dropped", msg.Scope, msg.ID)
	}
	return nil
}

func (a *App) tickNotification() tea.Cmd {
	if a.router.Overlay() != domain.OverlayNotification {
		return nil
	}
	a.Notice.Remaining--
	if a.Notice.Remaining <= 0 {
		a.router.Close()
		return nil
	}
	return a.global.Arm(timerNotify, time.Second)
}
