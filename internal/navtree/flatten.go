package navtree

import "sort"

// ExpandedSet holds the paths of open branches.
type ExpandedSet map[string]struct{}

func NewExpandedSet(paths ...string) ExpandedSet {
	s := ExpandedSet{}
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

func (s ExpandedSet) Has(path string) bool {
	_, ok := s[path]
	return ok
}

func (s ExpandedSet) Add(path string)    { s[path] = struct{}{} }
func (s ExpandedSet) Remove(path string) { delete(s, path) }

func (s ExpandedSet) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s ExpandedSet) Clone() ExpandedSet {
	out := make(ExpandedSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Flatten walks the tree depth-first, emitting a node before its children
// and descending only into expanded nodes.
func Flatten(t *Tree, expanded ExpandedSet) []NodeID {
	if t == nil {
		return nil
	}
	out := make([]NodeID, 0, len(t.roots))
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := t.nodes[id]
		out = append(out, id)
		if !expanded.Has(n.Path) {
			return
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, root := range t.roots {
		walk(root)
	}
	return out
}

// FlattenPaths is Flatten rendered as path strings.
func FlattenPaths(t *Tree, expanded ExpandedSet) []string {
	ids := Flatten(t, expanded)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.nodes[id].Path
	}
	return out
}
