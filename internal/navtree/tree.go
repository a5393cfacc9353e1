// Package navtree is the expand/collapse browser over transactions and their
// files. The tree lives in an arena with stable integer ids; path strings are
// assembled once at build time and used only as durable addresses for the
// expanded set and the focused row.
package navtree

import (
	"strconv"
	"strings"

	"relaycode/internal/domain"
)

type NodeID int

const NoNode NodeID = -1

type Kind int

const (
	KindTransaction Kind = iota
	KindSection
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindTransaction:
		return "transaction"
	case KindSection:
		return "section"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

type Section string

const (
	SectionMessage   Section = "message"
	SectionPrompt    Section = "prompt"
	SectionReasoning Section = "reasoning"
	SectionFiles     Section = "files"
)

type Node struct {
	ID       NodeID
	Kind     Kind
	Key      string
	Label    string
	Path     string
	Parent   NodeID
	Depth    int
	Children []NodeID
	// Drill marks branches whose expanded state lets "right" step into the
	// first child instead of stopping.
	Drill   bool
	TxID    string
	FileID  string
	Section Section
}

func (n Node) IsLeaf() bool { return len(n.Children) == 0 }

type Tree struct {
	nodes  []Node
	roots  []NodeID
	byPath map[string]NodeID
}

func newTree() *Tree {
	return &Tree{byPath: map[string]NodeID{}}
}

func (t *Tree) add(parent NodeID, n Node) NodeID {
	n.ID = NodeID(len(t.nodes))
	n.Parent = parent
	if parent == NoNode {
		n.Depth = 0
		n.Path = n.Key
		t.roots = append(t.roots, n.ID)
	} else {
		p := &t.nodes[parent]
		n.Depth = p.Depth + 1
		n.Path = p.Path + "/" + n.Key
		p.Children = append(p.Children, n.ID)
	}
	if _, dup := t.byPath[n.Path]; dup {
		// Keys must be unique among siblings; a duplicate is suffixed so every
		// path stays addressable.
		n.Key = n.Key + "~" + strconv.Itoa(int(n.ID))
		n.Path = n.Path + "~" + strconv.Itoa(int(n.ID))
	}
	t.nodes = append(t.nodes, n)
	t.byPath[n.Path] = n.ID
	return n.ID
}

func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

func (t *Tree) Node(id NodeID) (Node, bool) {
	if t == nil || id < 0 || int(id) >= len(t.nodes) {
		return Node{}, false
	}
	return t.nodes[id], true
}

func (t *Tree) Lookup(path string) (NodeID, bool) {
	if t == nil {
		return NoNode, false
	}
	id, ok := t.byPath[path]
	return id, ok
}

func (t *Tree) Path(id NodeID) string {
	n, ok := t.Node(id)
	if !ok {
		return ""
	}
	return n.Path
}

// IsAncestor reports whether a is a strict ancestor of b by walking b's
// parent chain.
func (t *Tree) IsAncestor(a, b NodeID) bool {
	n, ok := t.Node(b)
	if !ok {
		return false
	}
	for n.Parent != NoNode {
		if n.Parent == a {
			return true
		}
		n = t.nodes[n.Parent]
	}
	return false
}

func (t *Tree) Ancestors(id NodeID) []NodeID {
	n, ok := t.Node(id)
	if !ok {
		return nil
	}
	var out []NodeID
	for n.Parent != NoNode {
		out = append(out, n.Parent)
		n = t.nodes[n.Parent]
	}
	return out
}

func (t *Tree) Descendants(id NodeID) []NodeID {
	n, ok := t.Node(id)
	if !ok {
		return nil
	}
	var out []NodeID
	stack := append([]NodeID(nil), n.Children...)
	for len(stack) > 0 {
		last := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, last)
		stack = append(stack, t.nodes[last].Children...)
	}
	return out
}

// BuildHistory lays out every transaction as a root with its files as
// direct children, giving paths like "tx42/file7".
func BuildHistory(txs []domain.Transaction) *Tree {
	t := newTree()
	for _, tx := range txs {
		txNode := t.add(NoNode, Node{
			Kind:  KindTransaction,
			Key:   tx.ID,
			Label: firstLine(tx.Message),
			Drill: true,
			TxID:  tx.ID,
		})
		for _, f := range tx.Files {
			t.add(txNode, fileNode(tx.ID, f))
		}
	}
	return t
}

// BuildDetail lays out one transaction's sections at the root. The files
// section is the drill branch.
func BuildDetail(tx domain.Transaction, sections ...Section) *Tree {
	if len(sections) == 0 {
		sections = []Section{SectionPrompt, SectionReasoning, SectionFiles}
	}
	t := newTree()
	for _, s := range sections {
		n := Node{
			Kind:    KindSection,
			Key:     string(s),
			Label:   sectionLabel(s, tx),
			TxID:    tx.ID,
			Section: s,
		}
		if s != SectionFiles {
			t.add(NoNode, n)
			continue
		}
		n.Drill = true
		filesNode := t.add(NoNode, n)
		for _, f := range tx.Files {
			t.add(filesNode, fileNode(tx.ID, f))
		}
	}
	return t
}

func fileNode(txID string, f domain.FileItem) Node {
	return Node{
		Kind:   KindFile,
		Key:    f.ID,
		Label:  f.Path,
		TxID:   txID,
		FileID: f.ID,
	}
}

func sectionLabel(s Section, tx domain.Transaction) string {
	switch s {
	case SectionMessage:
		return "Message"
	case SectionPrompt:
		return "Prompt"
	case SectionReasoning:
		return "Reasoning"
	case SectionFiles:
		return "Files (" + strconv.Itoa(len(tx.Files)) + ")"
	default:
		return string(s)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
