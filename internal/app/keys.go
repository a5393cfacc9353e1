package app

import (
	"github.com/charmbracelet/bubbles/key"

	"relaycode/internal/domain"
	"relaycode/internal/review"
	"relaycode/internal/router"
)

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Home      key.Binding
	End       key.Binding
	Left      key.Binding
	Right     key.Binding
	Enter     key.Binding
	Back      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	Log       key.Binding
	Debug     key.Binding

	Apply   key.Binding
	History key.Binding
	Commit  key.Binding
	Pause   key.Binding

	Toggle       key.Binding
	Repair       key.Binding
	Instruct     key.Binding
	BulkRepair   key.Binding
	BulkInstruct key.Binding
	Approve      key.Binding
	Copy         key.Binding
	Rerun        key.Binding
	BodyUp       key.Binding
	BodyDown     key.Binding
	ExpandAll    key.Binding
	CollapseAll  key.Binding
	Option1      key.Binding
	Option2      key.Binding
	Option3      key.Binding
	Option4      key.Binding
	Confirm      key.Binding
	Deny         key.Binding

	Cancel   key.Binding
	Submit   key.Binding
	Simulate key.Binding
	Clear    key.Binding
	Export   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
		Home:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		End:       key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Left:      key.NewBinding(key.WithKeys("left", "h", "backspace"), key.WithHelp("←/h", "collapse")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "expand")),
		Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:      key.NewBinding(key.WithKeys("esc", "q"), key.WithHelp("esc/q", "back")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Log:       key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "log")),
		Debug:     key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "debug")),

		Apply:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apply")),
		History: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "history")),
		Commit:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "commit")),
		Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause watching")),

		Toggle:       key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "approve/reject")),
		Repair:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "repair")),
		Instruct:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "instruct")),
		BulkRepair:   key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "bulk repair")),
		BulkInstruct: key.NewBinding(key.WithKeys("I"), key.WithHelp("I", "bulk instruct")),
		Approve:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "approve")),
		Copy:         key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy")),
		Rerun:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "re-run")),
		BodyUp:       key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "scroll body up")),
		BodyDown:     key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "scroll body down")),
		ExpandAll:    key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
		CollapseAll:  key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),
		Option1:      key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "option 1")),
		Option2:      key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "option 2")),
		Option3:      key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "option 3")),
		Option4:      key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "option 4")),
		Confirm:      key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
		Deny:         key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),

		Cancel:   key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "commit")),
		Simulate: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle simulator")),
		Clear:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear")),
		Export:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export json")),
	}
}

// screenHelp is the help.KeyMap for whichever surface owns the keyboard.
type screenHelp struct {
	short []key.Binding
	full  [][]key.Binding
}

func (h screenHelp) ShortHelp() []key.Binding  { return h.short }
func (h screenHelp) FullHelp() [][]key.Binding { return h.full }

func (k keyMap) helpFor(owner router.Owner, sub review.SubView) screenHelp {
	if owner.IsOverlay() {
		switch owner.Overlay {
		case domain.OverlayCopy:
			return screenHelp{
				short: []key.Binding{k.Up, k.Toggle, k.Enter, k.Back},
				full:  [][]key.Binding{{k.Up, k.Down}, {k.Toggle, k.Enter, k.Back}},
			}
		case domain.OverlayDebug:
			return screenHelp{
				short: []key.Binding{k.Up, k.Enter, k.Back},
				full:  [][]key.Binding{{k.Up, k.Down}, {k.Enter, k.Back}},
			}
		default:
			return screenHelp{short: []key.Binding{k.Back}, full: [][]key.Binding{{k.Back}}}
		}
	}
	switch owner.Screen {
	case domain.ScreenDashboard:
		return screenHelp{
			short: []key.Binding{k.Up, k.Enter, k.Apply, k.History, k.Commit, k.Help, k.Back},
			full: [][]key.Binding{
				{k.Up, k.Down, k.PageUp, k.PageDown, k.Home, k.End},
				{k.Enter, k.Apply, k.History, k.Commit, k.Pause},
				{k.Help, k.Log, k.Debug, k.Back},
			},
		}
	case domain.ScreenReviewProcessing:
		return screenHelp{short: []key.Binding{k.Cancel, k.Log}, full: [][]key.Binding{{k.Cancel, k.Log}}}
	case domain.ScreenReview:
		switch sub {
		case review.SubBulkRepair:
			return screenHelp{
				short: []key.Binding{k.Option1, k.Option2, k.Option3, k.Option4, k.Back},
				full:  [][]key.Binding{{k.Option1, k.Option2, k.Option3, k.Option4}, {k.Back}},
			}
		case review.SubBulkInstruct:
			return screenHelp{
				short: []key.Binding{k.Option1, k.Option2, k.Option3, k.Back},
				full:  [][]key.Binding{{k.Option1, k.Option2, k.Option3}, {k.Back}},
			}
		case review.SubHandoffConfirm:
			return screenHelp{short: []key.Binding{k.Confirm, k.Deny}, full: [][]key.Binding{{k.Confirm, k.Deny}}}
		}
		return screenHelp{
			short: []key.Binding{k.Up, k.Right, k.Toggle, k.Repair, k.BulkRepair, k.Approve, k.Help},
			full: [][]key.Binding{
				{k.Up, k.Down, k.Left, k.Right, k.BodyUp, k.BodyDown},
				{k.Toggle, k.Repair, k.Instruct, k.BulkRepair, k.BulkInstruct},
				{k.Approve, k.Copy, k.Rerun, k.Help, k.Log, k.Back},
			},
		}
	case domain.ScreenTransactionDetail, domain.ScreenTransactionHistory:
		return screenHelp{
			short: []key.Binding{k.Up, k.Right, k.Left, k.Copy, k.Help, k.Back},
			full: [][]key.Binding{
				{k.Up, k.Down, k.Left, k.Right, k.BodyUp, k.BodyDown},
				{k.ExpandAll, k.CollapseAll, k.Copy, k.Help, k.Back},
			},
		}
	case domain.ScreenGitCommit:
		return screenHelp{short: []key.Binding{k.Submit, k.Cancel}, full: [][]key.Binding{{k.Submit, k.Cancel}}}
	case domain.ScreenDebugMenu:
		return screenHelp{
			short: []key.Binding{k.Up, k.Enter, k.Back},
			full:  [][]key.Binding{{k.Up, k.Down, k.Enter, k.Back}},
		}
	case domain.ScreenDebugLog:
		return screenHelp{
			short: []key.Binding{k.Up, k.Simulate, k.Clear, k.Export, k.Back},
			full:  [][]key.Binding{{k.Up, k.Down, k.Home, k.End}, {k.Simulate, k.Clear, k.Export, k.Back}},
		}
	default:
		return screenHelp{short: []key.Binding{k.Enter, k.Back}, full: [][]key.Binding{{k.Enter, k.Back}}}
	}
}
