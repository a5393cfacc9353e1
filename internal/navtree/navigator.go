package navtree

import (
	"relaycode/internal/logx"
	"relaycode/internal/viewport"
)

type BodyView int

const (
	BodyNone BodyView = iota
	BodySection
	BodyDiff
)

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeExpanded
	OutcomeCollapsed
	OutcomeFocusChild
	OutcomeFocusParent
	OutcomeBodyOpened
	OutcomeBodyClosed
	OutcomeMoved
)

// Navigator is the per-screen browsing state over a Tree: which branches are
// open, which row is focused, and whether a detail body is showing.
type Navigator struct {
	tree     *Tree
	expanded ExpandedSet
	focused  string
	lastIdx  int
	body     BodyView
	bodyPath string
	vp       viewport.State
	log      *logx.Logger
}

func NewNavigator(tree *Tree, height int, log *logx.Logger) *Navigator {
	n := &Navigator{
		tree:     tree,
		expanded: ExpandedSet{},
		vp:       viewport.State{Height: height},
		log:      log,
	}
	n.ensureFocus()
	return n
}

func (n *Navigator) Tree() *Tree { return n.tree }

// Visible returns the flattened path list for the current expanded set.
func (n *Navigator) Visible() []string {
	return FlattenPaths(n.tree, n.expanded)
}

func (n *Navigator) VisibleNodes() []Node {
	ids := Flatten(n.tree, n.expanded)
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = n.tree.nodes[id]
	}
	return out
}

func (n *Navigator) Expanded() ExpandedSet { return n.expanded.Clone() }

func (n *Navigator) IsExpanded(path string) bool { return n.expanded.Has(path) }

func (n *Navigator) Focused() string { return n.focused }

func (n *Navigator) FocusedNode() (Node, bool) {
	id, ok := n.tree.Lookup(n.focused)
	if !ok {
		return Node{}, false
	}
	return n.tree.Node(id)
}

func (n *Navigator) Body() BodyView   { return n.body }
func (n *Navigator) BodyPath() string { return n.bodyPath }

// Viewport recomputes the scroll window from the current visible list.
func (n *Navigator) Viewport() viewport.State {
	n.syncViewport(n.Visible())
	return n.vp
}

func (n *Navigator) SetHeight(h int) {
	n.vp.Resize(h)
	n.syncViewport(n.Visible())
}

func (n *Navigator) Up() Outcome   { return n.moveBy(-1) }
func (n *Navigator) Down() Outcome { return n.moveBy(1) }

func (n *Navigator) PageUp() Outcome   { return n.moveBy(-n.page()) }
func (n *Navigator) PageDown() Outcome { return n.moveBy(n.page()) }

func (n *Navigator) Home() Outcome {
	visible := n.Visible()
	if len(visible) == 0 {
		return OutcomeNone
	}
	return n.moveTo(visible, 0)
}

func (n *Navigator) End() Outcome {
	visible := n.Visible()
	if len(visible) == 0 {
		return OutcomeNone
	}
	return n.moveTo(visible, len(visible)-1)
}

func (n *Navigator) page() int {
	if n.vp.Height > 1 {
		return n.vp.Height - 1
	}
	return 1
}

func (n *Navigator) moveBy(delta int) Outcome {
	visible := n.Visible()
	if len(visible) == 0 {
		return OutcomeNone
	}
	return n.moveTo(visible, indexOf(visible, n.focused)+delta)
}

func (n *Navigator) moveTo(visible []string, idx int) Outcome {
	if idx < 0 {
		idx = 0
	}
	if idx > len(visible)-1 {
		idx = len(visible) - 1
	}
	if visible[idx] == n.focused {
		return OutcomeNone
	}
	n.setFocus(visible, idx)
	n.followBody()
	return OutcomeMoved
}

// followBody keeps an open body in step with focus: it tracks leaves and
// closes when focus lands on a branch.
func (n *Navigator) followBody() {
	if n.body == BodyNone {
		return
	}
	node, ok := n.FocusedNode()
	if !ok || !node.IsLeaf() {
		n.closeBody()
		return
	}
	n.body = bodyFor(node)
	n.bodyPath = node.Path
}

// ExpandOrDrillDown is the "right"/"enter" action.
func (n *Navigator) ExpandOrDrillDown() Outcome {
	node, ok := n.FocusedNode()
	if !ok {
		return OutcomeNone
	}
	if node.IsLeaf() {
		if n.body != BodyNone && n.bodyPath == node.Path {
			return OutcomeNone
		}
		n.body = bodyFor(node)
		n.bodyPath = node.Path
		return OutcomeBodyOpened
	}
	if !n.expanded.Has(node.Path) {
		n.expanded.Add(node.Path)
		n.ensureFocus()
		return OutcomeExpanded
	}
	if node.Drill {
		visible := n.Visible()
		n.setFocus(visible, indexOf(visible, n.tree.nodes[node.Children[0]].Path))
		return OutcomeFocusChild
	}
	return OutcomeNone
}

// CollapseOrBubbleUp is the "left"/"backspace" action.
func (n *Navigator) CollapseOrBubbleUp() Outcome {
	if n.body != BodyNone {
		n.closeBody()
		return OutcomeBodyClosed
	}
	id, ok := n.tree.Lookup(n.focused)
	if !ok {
		return OutcomeNone
	}
	node := n.tree.nodes[id]
	if !node.IsLeaf() && n.expanded.Has(node.Path) {
		n.collapse(id)
		n.ensureFocus()
		return OutcomeCollapsed
	}
	if node.Parent != NoNode {
		visible := n.Visible()
		n.setFocus(visible, indexOf(visible, n.tree.nodes[node.Parent].Path))
		return OutcomeFocusParent
	}
	return OutcomeNone
}

// Expand opens a branch by path. Unknown paths are logged and ignored.
func (n *Navigator) Expand(path string) bool {
	id, ok := n.tree.Lookup(path)
	if !ok {
		n.log.Warnf("navtree: expand of unknown path %q ignored", path)
		return false
	}
	if n.tree.nodes[id].IsLeaf() {
		return false
	}
	n.expanded.Add(path)
	n.ensureFocus()
	return true
}

// Collapse closes a branch and every expanded descendant.
func (n *Navigator) Collapse(path string) bool {
	id, ok := n.tree.Lookup(path)
	if !ok {
		n.log.Warnf("navtree: collapse of unknown path %q ignored", path)
		return false
	}
	if !n.expanded.Has(path) {
		return false
	}
	n.collapse(id)
	n.ensureFocus()
	return true
}

func (n *Navigator) collapse(id NodeID) {
	n.expanded.Remove(n.tree.nodes[id].Path)
	for _, d := range n.tree.Descendants(id) {
		n.expanded.Remove(n.tree.nodes[d].Path)
	}
	if n.body != BodyNone {
		if bodyID, ok := n.tree.Lookup(n.bodyPath); ok && n.tree.IsAncestor(id, bodyID) {
			n.closeBody()
		}
	}
}

// ExpandAll opens every branch.
func (n *Navigator) ExpandAll() {
	for _, node := range n.tree.nodes {
		if !node.IsLeaf() {
			n.expanded.Add(node.Path)
		}
	}
	n.ensureFocus()
}

// CollapseAll closes every branch; focus moves to the owning root.
func (n *Navigator) CollapseAll() {
	n.expanded = ExpandedSet{}
	n.closeBody()
	n.ensureFocus()
}

// Focus jumps to a path, opening its ancestors. Unknown paths are logged and
// leave focus unchanged.
func (n *Navigator) Focus(path string) bool {
	id, ok := n.tree.Lookup(path)
	if !ok {
		n.log.Warnf("navtree: focus on unknown path %q ignored", path)
		return false
	}
	for _, a := range n.tree.Ancestors(id) {
		n.expanded.Add(n.tree.nodes[a].Path)
	}
	visible := n.Visible()
	n.setFocus(visible, indexOf(visible, path))
	n.followBody()
	return true
}

func (n *Navigator) OpenBody() bool {
	node, ok := n.FocusedNode()
	if !ok || !node.IsLeaf() {
		return false
	}
	n.body = bodyFor(node)
	n.bodyPath = node.Path
	return true
}

func (n *Navigator) CloseBody() bool {
	if n.body == BodyNone {
		return false
	}
	n.closeBody()
	return true
}

func (n *Navigator) closeBody() {
	n.body = BodyNone
	n.bodyPath = ""
}

// Rebuild swaps in a tree derived from fresh data. Expanded paths that no
// longer exist are dropped and focus is re-clamped.
func (n *Navigator) Rebuild(tree *Tree) {
	n.tree = tree
	for p := range n.expanded {
		id, ok := tree.Lookup(p)
		if !ok || tree.nodes[id].IsLeaf() {
			n.expanded.Remove(p)
		}
	}
	if n.body != BodyNone {
		if id, ok := tree.Lookup(n.bodyPath); !ok || !tree.nodes[id].IsLeaf() {
			n.closeBody()
		}
	}
	n.ensureFocus()
}

// ensureFocus restores the invariant that focus is a visible row. A hidden
// focus climbs to its nearest visible ancestor; a vanished one falls back to
// the row at its previous index.
func (n *Navigator) ensureFocus() {
	visible := n.Visible()
	if len(visible) == 0 {
		n.focused = ""
		n.lastIdx = 0
		n.closeBody()
		n.syncViewport(visible)
		return
	}
	if idx := indexOf(visible, n.focused); idx >= 0 {
		n.setFocus(visible, idx)
		return
	}
	if id, ok := n.tree.Lookup(n.focused); ok {
		for _, a := range n.tree.Ancestors(id) {
			if idx := indexOf(visible, n.tree.nodes[a].Path); idx >= 0 {
				n.setFocus(visible, idx)
				return
			}
		}
	}
	n.setFocus(visible, n.lastIdx)
}

func (n *Navigator) setFocus(visible []string, idx int) {
	if len(visible) == 0 {
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(visible) {
		idx = len(visible) - 1
	}
	n.focused = visible[idx]
	n.lastIdx = idx
	n.syncViewport(visible)
}

func (n *Navigator) syncViewport(visible []string) {
	n.vp.SetCount(len(visible))
	if idx := indexOf(visible, n.focused); idx >= 0 {
		n.vp.Select(idx)
	}
}

func bodyFor(node Node) BodyView {
	if node.Kind == KindFile {
		return BodyDiff
	}
	return BodySection
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
