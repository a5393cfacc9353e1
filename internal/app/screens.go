package app

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	bv "github.com/charmbracelet/bubbles/viewport"

	"relaycode/internal/domain"
	"relaycode/internal/navtree"
	"relaycode/internal/patchengine"
	"relaycode/internal/pipeline"
	"relaycode/internal/review"
	"relaycode/internal/timers"
	"relaycode/internal/viewport"
)

const (
	timerFlash  timers.ID = "flash"
	timerNotify timers.ID = "notify"
	timerSplash timers.ID = "splash"
	timerLogSim timers.ID = "log-sim"

	splashDuration = 1500 * time.Millisecond
	logSimInterval = 800 * time.Millisecond
)

type DashboardState struct {
	List viewport.State
	// Paused holds fixture reloads until resumed.
	Paused        bool
	pendingReload []domain.Transaction
}

type ProcessingState struct {
	TxID       string
	Gen        uint64
	Scenario   domain.ApplyScenario
	Progress   *pipeline.Progress
	Spinner    spinner.Model
	Started    time.Time
	Cancelling bool
	Result     *pipeline.Result

	prevStatus domain.TransactionStatus
	engine     *patchengine.Engine
	run        *pipeline.Run
	openBulk   bool
}

// Live reports whether a run is still producing events.
func (p ProcessingState) Live() bool {
	return p.run != nil && p.Result == nil
}

// Browser is a navigable tree with a body pane for the focused leaf.
type Browser struct {
	Nav   *navtree.Navigator
	Body  bv.Model
	shown string
}

type ReviewState struct {
	Browser
	Session     *review.Session
	PatchStatus domain.PatchStatus
	Steps       []pipeline.Step
	Elapsed     time.Duration
	Scenario    domain.ApplyScenario
	InFlight    int

	prevStatus domain.TransactionStatus
	reapplier  review.Reapplier
}

type DetailState struct {
	Browser
	TxID string
}

type HistoryState struct {
	Browser
}

type CommitState struct {
	Input    textinput.Model
	// Body lists the transactions under the subject line.
	Body     string
	TxIDs    []string
	InFlight bool
	Err      string

	prev map[string]domain.TransactionStatus
}

type DebugMenuState struct {
	List viewport.State
}

type DebugLogState struct {
	List      viewport.State
	Simulate  bool
	simulated int
}

type CopyField struct {
	Label string
	Value string
}

type CopyState struct {
	Title    string
	Fields   []CopyField
	List     viewport.State
	Selected map[int]bool
}

type NotificationState struct {
	Title     string
	Message   string
	Tone      badgeTone
	Remaining int
}
