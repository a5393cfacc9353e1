package app

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"relaycode/internal/domain"
	"relaycode/internal/navtree"
)

// OpenCopy offers the copyable fields of tx. fileID, when set, adds that
// file's path and diff at the top.
func (a *App) OpenCopy(tx domain.Transaction, fileID string) {
	var fields []CopyField
	if f, ok := tx.FileByID(fileID); ok {
		fields = append(fields,
			CopyField{Label: "File path", Value: f.Path},
			CopyField{Label: "File diff", Value: f.Diff},
		)
	}
	fields = append(fields,
		CopyField{Label: "Transaction ID", Value: tx.ID},
		CopyField{Label: "Message", Value: tx.Message},
		CopyField{Label: "Prompt", Value: tx.Prompt},
		CopyField{Label: "Reasoning", Value: tx.Reasoning},
		CopyField{Label: "All diffs", Value: allDiffs(tx)},
	)
	if s := a.Review.Session; s != nil && s.TxID() == tx.ID {
		var errs []string
		for _, id := range s.Targets(domain.ReviewFailed) {
			st, _ := s.File(id)
			errs = append(errs, fmt.Sprintf("%s: %s", a.filePath(id), st.Error))
		}
		if len(errs) > 0 {
			fields = append(fields, CopyField{Label: "Failure messages", Value: strings.Join(errs, "\n")})
		}
	}
	a.Copy = CopyState{Title: tx.ID, Fields: fields, Selected: map[int]bool{}}
	a.Copy.List.SetCount(len(fields))
	a.Copy.List.Resize(a.listHeight(domain.ScreenDebugMenu))
	a.router.Open(domain.OverlayCopy)
}

// OpenCopyForScreen opens the copy overlay for whatever the current screen
// is showing.
func (a *App) OpenCopyForScreen() {
	switch a.router.Screen() {
	case domain.ScreenDashboard:
		if tx, ok := a.SelectedTransaction(); ok {
			a.OpenCopy(tx, "")
		}
	case domain.ScreenReview:
		if s := a.Review.Session; s != nil {
			id, _ := a.FocusedFileID()
			a.OpenCopy(s.Transaction(), id)
		}
	case domain.ScreenTransactionDetail:
		if tx, ok := a.Transaction(a.Detail.TxID); ok {
			a.OpenCopy(tx, focusedFile(a.Detail.Nav))
		}
	case domain.ScreenTransactionHistory:
		if a.History.Nav == nil {
			return
		}
		node, ok := a.History.Nav.FocusedNode()
		if !ok {
			return
		}
		if tx, ok := a.Transaction(node.TxID); ok {
			a.OpenCopy(tx, node.FileID)
		}
	}
}

func focusedFile(nav *navtree.Navigator) string {
	if nav == nil {
		return ""
	}
	node, ok := nav.FocusedNode()
	if !ok || node.Kind != navtree.KindFile {
		return ""
	}
	return node.FileID
}

func allDiffs(tx domain.Transaction) string {
	parts := make([]string, 0, len(tx.Files))
	for _, f := range tx.Files {
		if f.Diff != "" {
			parts = append(parts, strings.TrimRight(f.Diff, "\n"))
		}
	}
	return strings.Join(parts, "\n")
}

func (a *App) CopyMove(delta int) { a.Copy.List.MoveBy(delta) }

// CopyToggle marks the focused field for a multi-field copy.
func (a *App) CopyToggle() {
	i := a.Copy.List.Selected
	if i < 0 || i >= len(a.Copy.Fields) {
		return
	}
	if a.Copy.Selected[i] {
		delete(a.Copy.Selected, i)
		return
	}
	a.Copy.Selected[i] = true
}

// CopySubmit writes the selected fields, or the focused one when nothing is
// selected, and closes the overlay.
func (a *App) CopySubmit() tea.Cmd {
	if len(a.Copy.Fields) == 0 {
		a.router.Close()
		return nil
	}
	idx := make([]int, 0, len(a.Copy.Selected))
	for i := range a.Copy.Selected {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	if len(idx) == 0 {
		idx = []int{a.Copy.List.Selected}
	}
	var parts, labels []string
	for _, i := range idx {
		f := a.Copy.Fields[i]
		labels = append(labels, f.Label)
		if len(idx) > 1 {
			parts = append(parts, fmt.Sprintf("--- %s ---\n%s", f.Label, f.Value))
			continue
		}
		parts = append(parts, f.Value)
	}
	a.router.Close()
	return copyCmd(a.clipboard, strings.Join(labels, ", "), strings.Join(parts, "\n\n"))
}

func (a *App) HandleClipboard(msg clipboardMsg) tea.Cmd {
	if msg.Err != nil {
		return a.Notify("Clipboard unavailable", msg.Err.Error(), badgeToneDanger)
	}
	return a.SetFlash("Copied " + msg.Label)
}
