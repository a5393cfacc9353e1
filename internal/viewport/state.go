package viewport

// State is the per-list scroll state a screen keeps between events.
type State struct {
	Selected int
	Count    int
	Height   int
	Offset   int
}

func New(count, height int) State {
	s := State{Count: count, Height: height}
	s.sync()
	return s
}

func (s *State) sync() {
	if s.Height < 1 {
		s.Height = 1
	}
	if s.Count <= 0 {
		s.Count = 0
		s.Selected = 0
		s.Offset = 0
		return
	}
	s.Selected = clamp(s.Selected, 0, s.Count-1)
	s.Offset = ComputeOffset(s.Selected, s.Count, s.Height, s.Offset)
}

// MoveBy walks the selection without wrapping. It reports whether the
// selection changed.
func (s *State) MoveBy(delta int) bool {
	if s.Count == 0 {
		return false
	}
	before := s.Selected
	s.Selected += delta
	s.sync()
	return s.Selected != before
}

func (s *State) Up() bool   { return s.MoveBy(-1) }
func (s *State) Down() bool { return s.MoveBy(1) }

func (s *State) PageDown() bool { return s.MoveBy(s.page()) }
func (s *State) PageUp() bool   { return s.MoveBy(-s.page()) }

func (s *State) Home() bool { return s.Select(0) }
func (s *State) End() bool  { return s.Select(s.Count - 1) }

func (s *State) Select(i int) bool {
	if s.Count == 0 {
		return false
	}
	before := s.Selected
	s.Selected = i
	s.sync()
	return s.Selected != before
}

func (s *State) SetCount(n int) {
	s.Count = n
	s.sync()
}

func (s *State) Resize(height int) {
	s.Height = height
	s.sync()
}

func (s State) Range() (start, end int) {
	return VisibleRange(s.Offset, s.Count, s.Height)
}

func (s State) page() int {
	if s.Height > 1 {
		return s.Height - 1
	}
	return 1
}
