package navtree

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"relaycode/internal/domain"
)

func sampleTransactions() []domain.Transaction {
	return []domain.Transaction{
		{
			ID:      "tx1",
			Message: "feat: add retry\n\nlong body",
			Files: []domain.FileItem{
				{ID: "f1", Path: "src/retry.go"},
				{ID: "f2", Path: "src/client.go"},
			},
		},
		{ID: "tx2", Message: "docs: readme"},
		{
			ID:      "tx3",
			Message: "fix: parser",
			Files:   []domain.FileItem{{ID: "f3", Path: "parser.go"}},
		},
	}
}

func TestBuildHistoryPaths(t *testing.T) {
	t.Parallel()

	tree := BuildHistory(sampleTransactions())
	got := FlattenPaths(tree, NewExpandedSet("tx1", "tx3"))
	want := []string{"tx1", "tx1/f1", "tx1/f2", "tx2", "tx3", "tx3/f3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FlattenPaths() mismatch (-want +got):\n%s", diff)
	}

	id, ok := tree.Lookup("tx1/f2")
	if !ok {
		t.Fatal("Lookup(tx1/f2) missing")
	}
	node, _ := tree.Node(id)
	if node.Kind != KindFile || node.FileID != "f2" || node.Depth != 1 {
		t.Fatalf("node = %+v", node)
	}
	root, _ := tree.Lookup("tx1")
	if !tree.IsAncestor(root, id) || tree.IsAncestor(id, root) {
		t.Fatal("IsAncestor() disagrees with structure")
	}
	if rootNode, _ := tree.Node(root); rootNode.Label != "feat: add retry" {
		t.Fatalf("label = %q, want first message line", rootNode.Label)
	}
}

func TestBuildDetailSections(t *testing.T) {
	t.Parallel()

	tree := BuildDetail(sampleTransactions()[0])
	got := FlattenPaths(tree, NewExpandedSet("files"))
	want := []string{"prompt", "reasoning", "files", "files/f1", "files/f2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FlattenPaths() mismatch (-want +got):\n%s", diff)
	}
	id, _ := tree.Lookup("files")
	if n, _ := tree.Node(id); !n.Drill || n.Label != "Files (2)" {
		t.Fatalf("files node = %+v", n)
	}
}

func TestDuplicateKeysStayAddressable(t *testing.T) {
	t.Parallel()

	tree := BuildHistory([]domain.Transaction{{ID: "dup"}, {ID: "dup"}})
	paths := FlattenPaths(tree, nil)
	if len(paths) != 2 || paths[0] == paths[1] {
		t.Fatalf("paths = %v, want two distinct entries", paths)
	}
}

func TestExpandOrDrillDownSequence(t *testing.T) {
	t.Parallel()

	nav := NewNavigator(BuildDetail(sampleTransactions()[0]), 10, nil)
	nav.Down()
	nav.Down()
	if nav.Focused() != "files" {
		t.Fatalf("focused = %q, want files", nav.Focused())
	}
	if got := nav.ExpandOrDrillDown(); got != OutcomeExpanded {
		t.Fatalf("first right = %v, want expanded", got)
	}
	if nav.Focused() != "files" {
		t.Fatalf("expand moved focus to %q", nav.Focused())
	}
	if got := nav.ExpandOrDrillDown(); got != OutcomeFocusChild {
		t.Fatalf("second right = %v, want focus child", got)
	}
	if nav.Focused() != "files/f1" {
		t.Fatalf("focused = %q, want files/f1", nav.Focused())
	}
	if got := nav.ExpandOrDrillDown(); got != OutcomeBodyOpened || nav.Body() != BodyDiff {
		t.Fatalf("third right = %v body=%v, want diff body", got, nav.Body())
	}

	nav.Down()
	if nav.BodyPath() != "files/f2" {
		t.Fatalf("body should follow focus, got %q", nav.BodyPath())
	}

	if got := nav.CollapseOrBubbleUp(); got != OutcomeBodyClosed {
		t.Fatalf("left with body = %v, want body closed", got)
	}
	if got := nav.CollapseOrBubbleUp(); got != OutcomeFocusParent || nav.Focused() != "files" {
		t.Fatalf("left on leaf = %v focus=%q, want parent", got, nav.Focused())
	}
	if got := nav.CollapseOrBubbleUp(); got != OutcomeCollapsed {
		t.Fatalf("left on expanded = %v, want collapsed", got)
	}
	if got := nav.CollapseOrBubbleUp(); got != OutcomeNone {
		t.Fatalf("left on collapsed root = %v, want none", got)
	}
}

func TestSectionLeafOpensSectionBody(t *testing.T) {
	t.Parallel()

	nav := NewNavigator(BuildDetail(sampleTransactions()[0]), 10, nil)
	if got := nav.ExpandOrDrillDown(); got != OutcomeBodyOpened || nav.Body() != BodySection {
		t.Fatalf("right on prompt = %v body=%v", got, nav.Body())
	}
	nav.Down()
	nav.Down()
	if nav.Body() != BodyNone {
		t.Fatal("moving onto a branch should close the body")
	}
}

func TestExpandedNonDrillBranchIsNoop(t *testing.T) {
	t.Parallel()

	tree := BuildDetail(sampleTransactions()[0])
	id, _ := tree.Lookup("files")
	tree.nodes[id].Drill = false
	nav := NewNavigator(tree, 10, nil)
	nav.Focus("files")
	nav.ExpandOrDrillDown()
	if got := nav.ExpandOrDrillDown(); got != OutcomeNone || nav.Focused() != "files" {
		t.Fatalf("right on expanded non-drill = %v focus=%q", got, nav.Focused())
	}
}

func TestCollapseMovesFocusToCollapsedAncestor(t *testing.T) {
	t.Parallel()

	nav := NewNavigator(BuildHistory(sampleTransactions()), 10, nil)
	if !nav.Focus("tx1/f2") {
		t.Fatal("Focus(tx1/f2) failed")
	}
	nav.OpenBody()
	if !nav.Collapse("tx1") {
		t.Fatal("Collapse(tx1) failed")
	}
	if nav.Focused() != "tx1" {
		t.Fatalf("focused = %q, want tx1", nav.Focused())
	}
	if nav.Body() != BodyNone {
		t.Fatal("collapsing the body's ancestor should close the body")
	}
}

func TestCascadeCollapseDoesNotRestoreDescendants(t *testing.T) {
	t.Parallel()

	tx := domain.Transaction{ID: "tx", Files: []domain.FileItem{{ID: "a"}}}
	tree := newTree()
	root := tree.add(NoNode, Node{Kind: KindTransaction, Key: tx.ID, Drill: true})
	mid := tree.add(root, Node{Kind: KindSection, Key: "files", Drill: true})
	inner := tree.add(mid, Node{Kind: KindSection, Key: "group"})
	tree.add(inner, fileNode(tx.ID, tx.Files[0]))

	nav := NewNavigator(tree, 10, nil)
	nav.Expand("tx")
	nav.Expand("tx/files")
	nav.Expand("tx/files/group")
	nav.Collapse("tx")

	if got := nav.Expanded().Paths(); len(got) != 0 {
		t.Fatalf("expanded after cascade = %v, want empty", got)
	}
	nav.Expand("tx")
	if diff := cmp.Diff([]string{"tx"}, nav.Expanded().Paths()); diff != "" {
		t.Fatalf("re-expand mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tx", "tx/files"}, nav.Visible()); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}
}

func TestNavigationOnEmptyTreeIsNoop(t *testing.T) {
	t.Parallel()

	nav := NewNavigator(BuildHistory(nil), 5, nil)
	for _, op := range []func() Outcome{nav.Up, nav.Down, nav.PageDown, nav.Home, nav.End, nav.ExpandOrDrillDown, nav.CollapseOrBubbleUp} {
		if got := op(); got != OutcomeNone {
			t.Fatalf("op on empty tree = %v, want none", got)
		}
	}
	if nav.Focused() != "" {
		t.Fatalf("focused = %q on empty tree", nav.Focused())
	}
}

func TestUnknownPathsAreLoggedNoops(t *testing.T) {
	t.Parallel()

	nav := NewNavigator(BuildHistory(sampleTransactions()), 5, nil)
	before := nav.Focused()
	if nav.Focus("tx9/f1") || nav.Expand("missing") || nav.Collapse("missing") {
		t.Fatal("unknown paths must be rejected")
	}
	if nav.Focused() != before {
		t.Fatalf("focus moved to %q", nav.Focused())
	}
}

func TestRebuildDropsVanishedPathsAndReclampsFocus(t *testing.T) {
	t.Parallel()

	txs := sampleTransactions()
	nav := NewNavigator(BuildHistory(txs), 5, nil)
	nav.Focus("tx3/f3")

	nav.Rebuild(BuildHistory(txs[:2]))
	if nav.IsExpanded("tx3") {
		t.Fatal("vanished tx3 should be dropped from the expanded set")
	}
	if nav.Focused() != "tx2" {
		t.Fatalf("focused = %q, want tx2 (row at the old index clamped)", nav.Focused())
	}
}

func TestViewportFollowsFocus(t *testing.T) {
	t.Parallel()

	txs := make([]domain.Transaction, 42)
	for i := range txs {
		txs[i] = domain.Transaction{ID: fmt.Sprintf("tx%02d", i)}
	}
	nav := NewNavigator(BuildHistory(txs), 10, nil)
	for i := 0; i < 15; i++ {
		nav.Down()
	}
	vp := nav.Viewport()
	if vp.Selected != 15 || vp.Offset != 6 {
		t.Fatalf("viewport = %+v, want selected 15 offset 6", vp)
	}
}

func randomTree(t *rapid.T) *Tree {
	txCount := rapid.IntRange(0, 6).Draw(t, "txCount")
	txs := make([]domain.Transaction, txCount)
	for i := range txs {
		fileCount := rapid.IntRange(0, 4).Draw(t, "fileCount")
		files := make([]domain.FileItem, fileCount)
		for j := range files {
			files[j] = domain.FileItem{ID: fmt.Sprintf("f%d", j), Path: fmt.Sprintf("p%d.go", j)}
		}
		txs[i] = domain.Transaction{ID: fmt.Sprintf("tx%d", i), Files: files}
	}
	return BuildHistory(txs)
}

func TestFlattenVisibilityInvariant(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		tree := randomTree(t)
		expanded := ExpandedSet{}
		for _, node := range tree.nodes {
			if rapid.Bool().Draw(t, "expand") {
				expanded.Add(node.Path)
			}
		}
		paths := FlattenPaths(tree, expanded)
		seen := map[string]int{}
		for i, p := range paths {
			seen[p] = i
		}
		for i, p := range paths {
			parts := strings.Split(p, "/")
			for k := 1; k < len(parts); k++ {
				prefix := strings.Join(parts[:k], "/")
				at, ok := seen[prefix]
				if !ok {
					t.Fatalf("%q visible without ancestor %q", p, prefix)
				}
				if at >= i {
					t.Fatalf("ancestor %q at %d not before %q at %d", prefix, at, p, i)
				}
				if !expanded.Has(prefix) {
					t.Fatalf("%q visible under collapsed %q", p, prefix)
				}
			}
		}
	})
}

func TestNavigatorFocusInvariant(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		nav := NewNavigator(randomTree(t), rapid.IntRange(1, 8).Draw(t, "height"), nil)
		ops := rapid.SliceOf(rapid.IntRange(0, 7)).Draw(t, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				nav.Up()
			case 1:
				nav.Down()
			case 2:
				nav.ExpandOrDrillDown()
			case 3:
				nav.CollapseOrBubbleUp()
			case 4:
				nav.PageDown()
			case 5:
				nav.ExpandAll()
			case 6:
				nav.CollapseAll()
			case 7:
				nav.Rebuild(randomTree(t))
			}
			visible := nav.Visible()
			if len(visible) == 0 {
				if nav.Focused() != "" {
					t.Fatalf("focus %q on empty list", nav.Focused())
				}
				continue
			}
			idx := indexOf(visible, nav.Focused())
			if idx < 0 {
				t.Fatalf("focus %q not in visible %v", nav.Focused(), visible)
			}
			vp := nav.Viewport()
			if vp.Selected != idx || vp.Offset > idx || idx >= vp.Offset+vp.Height {
				t.Fatalf("viewport %+v does not contain focus index %d", vp, idx)
			}
		}
	})
}

func TestCascadeCollapseProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		tree := randomTree(t)
		if tree.Len() == 0 {
			return
		}
		nav := NewNavigator(tree, 5, nil)
		nav.ExpandAll()
		target := tree.nodes[rapid.IntRange(0, tree.Len()-1).Draw(t, "target")]
		if target.IsLeaf() {
			return
		}
		nav.Collapse(target.Path)
		for p := range nav.Expanded() {
			if p == target.Path || strings.HasPrefix(p, target.Path+"/") {
				t.Fatalf("%q still expanded after collapsing %q", p, target.Path)
			}
		}
	})
}
