package viewport

import (
	"testing"

	"pgregory.net/rapid"
)

func TestStateFifteenDownsOnFortyTwoRows(t *testing.T) {
	t.Parallel()

	s := New(42, 10)
	for i := 0; i < 15; i++ {
		s.Down()
	}
	if s.Selected != 15 {
		t.Fatalf("Selected = %d, want 15", s.Selected)
	}
	if s.Offset != 6 {
		t.Fatalf("Offset = %d, want 6", s.Offset)
	}
}

func TestStateClampsWithoutWrap(t *testing.T) {
	t.Parallel()

	s := New(3, 10)
	if s.Up() {
		t.Fatal("Up at top should not move")
	}
	s.End()
	if s.Down() {
		t.Fatal("Down at bottom should not move")
	}
	if s.Selected != 2 {
		t.Fatalf("Selected = %d, want 2", s.Selected)
	}
}

func TestStateEmptyListIsNoop(t *testing.T) {
	t.Parallel()

	s := New(0, 5)
	if s.Down() || s.Up() || s.PageDown() || s.Select(3) {
		t.Fatal("navigation on empty list must be a no-op")
	}
	if s.Offset != 0 || s.Selected != 0 {
		t.Fatalf("empty state = %+v", s)
	}
	if start, end := s.Range(); start != 0 || end != 0 {
		t.Fatalf("empty range = [%d,%d)", start, end)
	}
}

func TestStateShrinkKeepsSelectionVisible(t *testing.T) {
	t.Parallel()

	s := New(100, 20)
	s.Select(90)
	s.SetCount(10)
	if s.Selected != 9 {
		t.Fatalf("Selected = %d, want 9", s.Selected)
	}
	if s.Offset != 0 {
		t.Fatalf("Offset = %d, want 0", s.Offset)
	}
	s.Resize(0)
	if s.Height != 1 || s.Offset != 9 {
		t.Fatalf("after Resize(0): %+v", s)
	}
}

func TestStateRandomWalkKeepsInvariant(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		s := New(rapid.IntRange(0, 200).Draw(t, "count"), rapid.IntRange(1, 40).Draw(t, "height"))
		steps := rapid.SliceOf(rapid.IntRange(0, 6)).Draw(t, "steps")
		for _, step := range steps {
			switch step {
			case 0:
				s.Up()
			case 1:
				s.Down()
			case 2:
				s.PageUp()
			case 3:
				s.PageDown()
			case 4:
				s.Home()
			case 5:
				s.End()
			case 6:
				s.SetCount(rapid.IntRange(0, 200).Draw(t, "newCount"))
			}
			if s.Count == 0 {
				if s.Offset != 0 {
					t.Fatalf("empty list offset = %d", s.Offset)
				}
				continue
			}
			if s.Offset > s.Selected || s.Selected >= s.Offset+s.Height {
				t.Fatalf("selection %d outside window at %d (h=%d)", s.Selected, s.Offset, s.Height)
			}
		}
	})
}
