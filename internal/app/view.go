package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"relaycode/internal/domain"
	"relaycode/internal/logx"
	"relaycode/internal/navtree"
	"relaycode/internal/review"
	"relaycode/internal/router"
)

const (
	defaultContentWidth = 76
	idColumnWidth       = 10
)

var screenTitles = map[domain.Screen]string{
	domain.ScreenSplash:             "",
	domain.ScreenDashboard:          "dashboard",
	domain.ScreenReviewProcessing:   "applying patch",
	domain.ScreenReview:             "review",
	domain.ScreenTransactionDetail:  "transaction",
	domain.ScreenTransactionHistory: "history",
	domain.ScreenGitCommit:          "git commit",
	domain.ScreenDebugMenu:          "debug menu",
	domain.ScreenDebugLog:           "debug log",
}

func (m *Model) View() string {
	a := m.app
	if a.quitting {
		return ""
	}
	var b strings.Builder

	title := lipgloss.JoinHorizontal(lipgloss.Center,
		titleBadgeStyle.Render("relay"),
		" "+headerStyle.Render(screenTitles[a.Screen()]),
	)
	b.WriteString(title)
	b.WriteString("\n")
	if sub := m.subtitle(); sub != "" {
		b.WriteString(hintStyle.Render(sub))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	owner := a.router.KeyOwner()
	var content string
	style := panelStyle
	if owner.IsOverlay() {
		content = m.viewOverlay(owner.Overlay)
		style = overlayStyle
	} else {
		content = m.viewScreen(owner.Screen)
	}
	if w := m.viewContentWidth(); w > 0 {
		style = style.Width(w)
	}
	b.WriteString(style.Render(content))
	b.WriteString("\n")

	if a.flash != "" {
		b.WriteString(successStyle.Render(a.flash))
		b.WriteString("\n")
	}
	if a.Screen() == domain.ScreenGitCommit && a.Commit.Err != "" {
		b.WriteString(alertStyle.Render(errorStyle.Render(a.Commit.Err)))
		b.WriteString("\n")
	}

	m.help.ShowAll = false
	helpView := m.help.View(m.keys.helpFor(owner, m.subView()))
	helpPanel := helpPanelStyle
	if w := m.viewContentWidth(); w > 0 {
		helpPanel = helpPanel.Width(w)
	}
	helpBlock := helpPanel.Render(helpView)

	body := b.String()
	spacer := ""
	if a.height > 0 {
		const pageVerticalPadding = 2
		const separatorLines = 2
		total := lipgloss.Height(body) + separatorLines + lipgloss.Height(helpBlock) + pageVerticalPadding
		if gap := a.height - total; gap > 0 {
			spacer = strings.Repeat("\n", gap)
		}
	}
	doc := body + "\n\n" + spacer + helpBlock
	return pageStyle.Render(doc) + "\n"
}

func (m *Model) viewContentWidth() int {
	if m.app.width <= 0 {
		return 0
	}
	w := m.app.width - 8
	if w < 40 {
		return 0
	}
	return w
}

// innerWidth is the usable text width inside a panel.
func (m *Model) innerWidth() int {
	if w := m.viewContentWidth(); w > 0 {
		return max(20, w-6)
	}
	return defaultContentWidth
}

func (m *Model) subView() review.SubView {
	if s := m.app.Review.Session; s != nil && m.app.Screen() == domain.ScreenReview {
		return s.SubView()
	}
	return review.SubNone
}

func (m *Model) subtitle() string {
	a := m.app
	switch a.Screen() {
	case domain.ScreenDashboard:
		s := fmt.Sprintf("%d transactions", len(a.txs))
		if a.Dashboard.Paused {
			s += " · watching paused"
		}
		return s
	case domain.ScreenReviewProcessing:
		return fmt.Sprintf("%s · scenario %s", a.Processing.TxID, a.Processing.Scenario)
	case domain.ScreenReview:
		if s := a.Review.Session; s != nil {
			return s.TxID() + " · " + firstLine(s.Transaction().Message)
		}
	case domain.ScreenTransactionDetail:
		if tx, ok := a.Transaction(a.Detail.TxID); ok {
			return tx.ID + " · " + firstLine(tx.Message)
		}
	}
	return ""
}

func (m *Model) viewScreen(s domain.Screen) string {
	switch s {
	case domain.ScreenSplash:
		return m.viewSplash()
	case domain.ScreenDashboard:
		return m.viewDashboard()
	case domain.ScreenReviewProcessing:
		return m.viewProcessing()
	case domain.ScreenReview:
		return m.viewReview()
	case domain.ScreenTransactionDetail:
		return m.viewBrowser(&m.app.Detail.Browser, nil)
	case domain.ScreenTransactionHistory:
		return m.viewBrowser(&m.app.History.Browser, nil)
	case domain.ScreenGitCommit:
		return m.viewCommit()
	case domain.ScreenDebugMenu:
		return m.viewDebugList()
	case domain.ScreenDebugLog:
		return m.viewDebugLog()
	}
	return ""
}

func (m *Model) viewSplash() string {
	lines := []string{
		headerStyle.Render("relaycode"),
		"",
		"Patches from your clipboard, reviewed file by file.",
		"",
		hintStyle.Render("Press any key to continue."),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewDashboard() string {
	a := m.app
	if len(a.txs) == 0 {
		return hintStyle.Render("No transactions yet. Copy a patch to get started.")
	}
	width := m.innerWidth()
	start, end := a.Dashboard.List.Range()
	var b strings.Builder
	for i := start; i < end && i < len(a.txs); i++ {
		tx := a.txs[i]
		added, removed := tx.LineStats()
		badge := renderBadge(string(tx.Status), transactionTone(tx.Status))
		stats := fmt.Sprintf("+%d/-%d", added, removed)
		prefix := runewidth.FillRight(runewidth.Truncate(tx.ID, idColumnWidth, "…"), idColumnWidth) + " " + badge + " "
		room := width - lipgloss.Width(prefix) - lipgloss.Width(stats) - 1
		msg := ansi.Truncate(firstLine(tx.Message), max(0, room), "…")
		msg = runewidth.FillRight(msg, max(0, room))
		b.WriteString(m.focusRow(prefix+msg+" "+hintStyle.Render(stats), i == a.Dashboard.List.Selected))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRow(line string, selected bool) string {
	if selected {
		return rowSelectedStyle.Render("› " + line)
	}
	return rowStyle.Render("  " + line)
}

// focusRow tints the cursor row while a flash message is showing.
func (m *Model) focusRow(line string, selected bool) string {
	if selected && m.app.flash != "" {
		return rowFlashStyle.Render("› " + line)
	}
	return renderRow(line, selected)
}

func (m *Model) viewProcessing() string {
	a := m.app
	p := a.Processing
	if p.Progress == nil {
		return hintStyle.Render("Nothing is running.")
	}
	var b strings.Builder
	switch {
	case p.Result != nil:
		b.WriteString(hintStyle.Render("Finished in " + p.Result.Elapsed.Round(time.Millisecond).String()))
	case p.Cancelling:
		b.WriteString(warnStyle.Render("Cancelling…"))
	default:
		b.WriteString(p.Spinner.View() + " Applying " + p.TxID)
		if !p.Started.IsZero() {
			b.WriteString(hintStyle.Render(fmt.Sprintf(" (%s)", a.Now().Sub(p.Started).Round(100*time.Millisecond))))
		}
	}
	b.WriteString("\n\n")
	for _, step := range p.Progress.Steps() {
		line := stepMarker(step.Status) + " " + step.Title
		if step.Duration > 0 {
			line += hintStyle.Render(" " + step.Duration.Round(time.Millisecond).String())
		}
		if step.Details != "" {
			line += hintStyle.Render(" · " + step.Details)
		}
		b.WriteString(line)
		b.WriteString("\n")
		for _, sub := range step.Substeps {
			subLine := "    " + stepMarker(sub.Status) + " " + sub.Title
			if sub.Error != "" {
				subLine += " " + errorStyle.Render(sub.Error)
			}
			b.WriteString(ansi.Truncate(subLine, m.innerWidth(), "…"))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) viewReview() string {
	a := m.app
	s := a.Review.Session
	if s == nil {
		return hintStyle.Render("No review in progress.")
	}
	var b strings.Builder
	c := s.Counts()
	b.WriteString(renderBadge(string(a.Review.PatchStatus), patchTone(a.Review.PatchStatus)))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%d approved · %d rejected · %d failed", c[domain.ReviewApproved], c[domain.ReviewRejected], c[domain.ReviewFailed]))
	if a.Review.InFlight > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf(" · %d re-applying", c[domain.ReviewReApplying])))
	}
	if a.Review.Elapsed > 0 {
		b.WriteString(hintStyle.Render(" · " + a.Review.Elapsed.Round(time.Millisecond).String()))
	}
	b.WriteString("\n\n")

	switch s.SubView() {
	case review.SubBulkRepair:
		b.WriteString(m.viewBulkRepair(s))
		return b.String()
	case review.SubBulkInstruct:
		b.WriteString(m.viewBulkInstruct(s))
		return b.String()
	case review.SubHandoffConfirm:
		b.WriteString(m.viewHandoffConfirm(s))
		return b.String()
	}
	b.WriteString(m.viewBrowser(&a.Review.Browser, s))
	return b.String()
}

func (m *Model) viewBulkRepair(s *review.Session) string {
	n := len(s.Targets(domain.ReviewFailed))
	lines := []string{
		labelStyle.Render(fmt.Sprintf("Bulk repair · %d failed files", n)),
		"",
		"(1) Copy one repair prompt for all failed files",
		"(2) Re-apply the failed files",
		"(3) Hand off the transaction to an external agent",
		"(4) Reject all failed files",
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewBulkInstruct(s *review.Session) string {
	n := len(s.Targets(domain.ReviewRejected))
	lines := []string{
		labelStyle.Render(fmt.Sprintf("Bulk instruct · %d rejected files", n)),
		"",
		"(1) Copy one instruction prompt for all rejected files",
		"(2) Hand off the transaction to an external agent",
		"(3) Approve the original changes for all rejected files",
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewHandoffConfirm(s *review.Session) string {
	var b strings.Builder
	b.WriteString(warnStyle.Render("Hand off this transaction?"))
	b.WriteString("\n\n")
	for _, f := range s.HandoffFiles() {
		st := s.Status(f.ID)
		b.WriteString(renderBadge(string(st), reviewTone(st)) + " " + f.Path + "\n")
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("The hand-off prompt is copied to the clipboard and the transaction is marked HANDOFF."))
	return b.String()
}

// viewBrowser renders a navtree and, when one is open, the body of the
// focused leaf. s adds review statuses to file rows.
func (m *Model) viewBrowser(br *Browser, s *review.Session) string {
	nav := br.Nav
	if nav == nil {
		return hintStyle.Render("Nothing to show.")
	}
	width := m.innerWidth()
	nodes := nav.VisibleNodes()
	vp := nav.Viewport()
	start, end := vp.Range()
	var b strings.Builder
	for i := start; i < end && i < len(nodes); i++ {
		node := nodes[i]
		line := strings.Repeat("  ", node.Depth) + m.nodeMarker(nav, node) + " " + m.nodeLabel(node, s)
		b.WriteString(m.focusRow(ansi.Truncate(line, width, "…"), node.Path == nav.Focused()))
		b.WriteString("\n")
	}
	if nav.Body() != navtree.BodyNone {
		b.WriteString(hintStyle.Render(strings.Repeat("─", width)))
		b.WriteString("\n")
		b.WriteString(br.Body.View())
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) nodeMarker(nav *navtree.Navigator, node navtree.Node) string {
	if node.IsLeaf() {
		return " "
	}
	if nav.IsExpanded(node.Path) {
		return "▾"
	}
	return "▸"
}

func (m *Model) nodeLabel(node navtree.Node, s *review.Session) string {
	switch node.Kind {
	case navtree.KindTransaction:
		tx, ok := m.app.Transaction(node.TxID)
		if !ok {
			return node.Label
		}
		return renderBadge(string(tx.Status), transactionTone(tx.Status)) + " " + node.Label
	case navtree.KindFile:
		tx, ok := m.app.Transaction(node.TxID)
		if s != nil {
			tx, ok = s.Transaction(), true
		}
		label := node.Label
		if ok {
			if f, found := tx.FileByID(node.FileID); found {
				label = fmt.Sprintf("%s %s %s", string(f.Type), f.Path, hintStyle.Render(fmt.Sprintf("+%d/-%d", f.LinesAdded, f.LinesRemoved)))
			}
		}
		if s == nil {
			return label
		}
		st := s.Status(node.FileID)
		return st.Icon() + " " + label + " " + renderBadge(string(st), reviewTone(st))
	}
	return node.Label
}

// syncBody loads the current screen's open leaf into its body viewport.
// It runs after every update so View only reads.
func (m *Model) syncBody() {
	a := m.app
	switch a.Screen() {
	case domain.ScreenReview:
		m.syncBrowserBody(&a.Review.Browser, a.Review.Session)
	case domain.ScreenTransactionDetail:
		m.syncBrowserBody(&a.Detail.Browser, nil)
	case domain.ScreenTransactionHistory:
		m.syncBrowserBody(&a.History.Browser, nil)
	}
}

// syncBrowserBody refreshes br's body viewport when the open leaf changes.
func (m *Model) syncBrowserBody(br *Browser, s *review.Session) {
	nav := br.Nav
	if nav == nil {
		return
	}
	a := m.app
	width := m.innerWidth()
	height := max(3, a.listHeight(a.Screen())-a.treeHeight(a.Screen())-1)
	if br.Body.Width != width || br.Body.Height != height {
		br.Body.Width = width
		br.Body.Height = height
		br.shown = ""
	}
	path := nav.BodyPath()
	if nav.Body() == navtree.BodyNone || path == br.shown {
		return
	}
	br.shown = path
	br.Body.SetContent(m.bodyContent(nav, s))
	br.Body.GotoTop()
}

func (m *Model) bodyContent(nav *navtree.Navigator, s *review.Session) string {
	id, ok := nav.Tree().Lookup(nav.BodyPath())
	if !ok {
		return ""
	}
	node, ok := nav.Tree().Node(id)
	if !ok {
		return ""
	}
	tx, ok := m.app.Transaction(node.TxID)
	if s != nil {
		tx, ok = s.Transaction(), true
	}
	if !ok {
		return ""
	}
	switch node.Kind {
	case navtree.KindFile:
		f, found := tx.FileByID(node.FileID)
		if !found {
			return ""
		}
		out := colorizeDiff(f.Diff)
		if s != nil {
			if st, ok := s.File(node.FileID); ok && st.Error != "" {
				out = errorStyle.Render(st.Error) + "\n\n" + out
			}
		}
		return out
	case navtree.KindSection:
		return wrapText(sectionText(tx, node.Section), m.innerWidth())
	}
	return ""
}

func sectionText(tx domain.Transaction, s navtree.Section) string {
	switch s {
	case navtree.SectionMessage:
		return tx.Message
	case navtree.SectionPrompt:
		return tx.Prompt
	case navtree.SectionReasoning:
		return tx.Reasoning
	}
	return ""
}

func colorizeDiff(diff string) string {
	if strings.TrimSpace(diff) == "" {
		return hintStyle.Render("(no diff)")
	}
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = labelStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = diffHunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = diffAddStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = diffDelStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func wrapText(s string, width int) string {
	if strings.TrimSpace(s) == "" {
		return hintStyle.Render("(empty)")
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (m *Model) viewCommit() string {
	a := m.app
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("Committing %d applied transactions", len(a.Commit.TxIDs))))
	b.WriteString("\n\n")
	input := inputStyle
	if a.Commit.Input.Focused() {
		input = inputFocusStyle
	}
	b.WriteString(input.Width(m.innerWidth() - 4).Render(a.Commit.Input.View()))
	b.WriteString("\n")
	if a.Commit.Body != "" {
		b.WriteString(hintStyle.Render(a.Commit.Body))
		b.WriteString("\n")
	}
	if a.Commit.InFlight {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("Running git commit…"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) viewDebugList() string {
	a := m.app
	list := a.DebugMenu.List
	if list.Count != len(debugItems) {
		list.SetCount(len(debugItems))
		list.Resize(a.listHeight(domain.ScreenDebugMenu))
	}
	start, end := list.Range()
	var b strings.Builder
	for i := start; i < end && i < len(debugItems); i++ {
		b.WriteString(renderRow(debugItems[i].Label, i == list.Selected))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) viewDebugLog() string {
	a := m.app
	entries := a.Log.Entries()
	if len(entries) == 0 {
		return hintStyle.Render("Log is empty.")
	}
	list := a.DebugLog.List
	if list.Count != len(entries) {
		list.SetCount(len(entries))
		list.Resize(a.listHeight(domain.ScreenDebugLog))
		list.End()
	}
	start, end := list.Range()
	var b strings.Builder
	status := "simulator off"
	if a.DebugLog.Simulate {
		status = "simulator on"
	}
	b.WriteString(hintStyle.Render(fmt.Sprintf("%d entries · %s", len(entries), status)))
	b.WriteString("\n\n")
	for i := start; i < end && i < len(entries); i++ {
		line := ansi.Truncate(formatEntry(entries[i]), m.innerWidth()-2, "…")
		b.WriteString(renderRow(line, i == list.Selected))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEntry(e logx.Entry) string {
	level := runewidth.FillRight(strings.ToUpper(e.Name), 5)
	switch e.Level {
	case logx.LevelError:
		level = errorStyle.Render(level)
	case logx.LevelWarn:
		level = warnStyle.Render(level)
	case logx.LevelDebug:
		level = hintStyle.Render(level)
	}
	return e.Time.Format("15:04:05") + " " + level + " " + e.Message
}

func (m *Model) viewOverlay(o domain.Overlay) string {
	switch o {
	case domain.OverlayHelp:
		return m.viewHelp()
	case domain.OverlayCopy:
		return m.viewCopy()
	case domain.OverlayLog:
		return m.viewLogOverlay()
	case domain.OverlayDebug:
		return labelStyle.Render("Debug") + "\n\n" + m.viewDebugList() + "\n\n" + hintStyle.Render(m.app.debugSnapshot())
	case domain.OverlayNotification:
		return m.viewNotification()
	}
	return ""
}

func (m *Model) viewHelp() string {
	a := m.app
	owner := router.Owner{Screen: a.Screen(), Overlay: domain.OverlayNone}
	groups := m.keys.helpFor(owner, m.subView()).FullHelp()
	width := m.innerWidth()
	cacheKey := fmt.Sprintf("%s/%s/%d", owner.Screen, m.subView(), width)
	if m.helpKey == cacheKey {
		return m.helpText
	}
	md := helpMarkdown(screenTitles[owner.Screen], groups)
	out := md
	if r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width)); err == nil {
		if rendered, err := r.Render(md); err == nil {
			out = strings.Trim(rendered, "\n")
		} else {
			a.Log.Debugf("app: render help: %v", err)
		}
	}
	m.helpKey, m.helpText = cacheKey, out
	return out
}

func helpMarkdown(title string, groups [][]key.Binding) string {
	var b strings.Builder
	if title == "" {
		title = "relay"
	}
	b.WriteString("# Keys: " + title + "\n\n")
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, group := range groups {
		for _, binding := range group {
			h := binding.Help()
			if h.Key == "" {
				continue
			}
			b.WriteString("| `" + h.Key + "` | " + h.Desc + " |\n")
		}
	}
	b.WriteString("\n`?` or `esc` closes this help. `ctrl+l` shows the log, `ctrl+d` the debug menu.\n")
	return b.String()
}

func (m *Model) viewCopy() string {
	a := m.app
	c := a.Copy
	var b strings.Builder
	b.WriteString(labelStyle.Render("Copy from " + c.Title))
	b.WriteString("\n\n")
	start, end := c.List.Range()
	width := m.innerWidth()
	for i := start; i < end && i < len(c.Fields); i++ {
		f := c.Fields[i]
		box := "[ ]"
		if c.Selected[i] {
			box = "[x]"
		}
		label := runewidth.FillRight(f.Label, 18)
		preview := hintStyle.Render(firstLine(f.Value))
		line := ansi.Truncate(box+" "+label+" "+preview, width-2, "…")
		b.WriteString(renderRow(line, i == c.List.Selected))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(fmt.Sprintf("%d selected · enter copies the selection or the focused field", len(c.Selected))))
	return b.String()
}

func (m *Model) viewLogOverlay() string {
	a := m.app
	entries := a.Log.Entries()
	n := max(1, a.listHeight(domain.ScreenDebugLog))
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render("Recent log"))
	b.WriteString("\n\n")
	if len(entries) == 0 {
		b.WriteString(hintStyle.Render("Log is empty."))
		return b.String()
	}
	for _, e := range entries {
		b.WriteString(ansi.Truncate(formatEntry(e), m.innerWidth(), "…"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) viewNotification() string {
	n := m.app.Notice
	var b strings.Builder
	b.WriteString(renderBadge(n.Title, n.Tone))
	b.WriteString("\n\n")
	b.WriteString(wrapText(n.Message, m.innerWidth()))
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render(fmt.Sprintf("Closing in %ds · any key dismisses", n.Remaining)))
	return b.String()
}
