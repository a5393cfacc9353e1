package viewport

import (
	"testing"

	"pgregory.net/rapid"
)

func TestComputeOffsetRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                              string
		selected, count, height, previous int
		want                              int
	}{
		{name: "empty list", selected: 3, count: 0, height: 10, previous: 4, want: 0},
		{name: "inside window unchanged", selected: 5, count: 40, height: 10, previous: 2, want: 2},
		{name: "scroll up", selected: 1, count: 40, height: 10, previous: 5, want: 1},
		{name: "scroll down", selected: 20, count: 40, height: 10, previous: 0, want: 11},
		{name: "clamp past end", selected: 39, count: 40, height: 10, previous: 35, want: 30},
		{name: "short list", selected: 2, count: 3, height: 10, previous: 1, want: 0},
		{name: "zero height floors to one", selected: 4, count: 10, height: 0, previous: 0, want: 4},
		{name: "selection beyond count clamps", selected: 99, count: 12, height: 5, previous: 0, want: 7},
		{name: "negative selection clamps", selected: -3, count: 12, height: 5, previous: 4, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ComputeOffset(tt.selected, tt.count, tt.height, tt.previous); got != tt.want {
				t.Fatalf("ComputeOffset(%d,%d,%d,%d) = %d, want %d", tt.selected, tt.count, tt.height, tt.previous, got, tt.want)
			}
		})
	}
}

func TestComputeOffsetInvariant(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 500).Draw(t, "count")
		height := rapid.IntRange(1, 80).Draw(t, "height")
		selected := rapid.IntRange(0, count-1).Draw(t, "selected")
		previous := rapid.IntRange(-50, 600).Draw(t, "previous")

		offset := ComputeOffset(selected, count, height, previous)

		if offset > selected || selected >= offset+height {
			t.Fatalf("selected %d outside [%d, %d)", selected, offset, offset+height)
		}
		limit := count - height
		if limit < 0 {
			limit = 0
		}
		if offset < 0 || offset > limit {
			t.Fatalf("offset %d outside [0, %d]", offset, limit)
		}
	})
}

func TestAvailableHeightFloorsAtOne(t *testing.T) {
	t.Parallel()

	r := Reservation{Header: 3, Footer: 2, Separators: 2, Margin: 1}
	if got := AvailableHeight(30, r); got != 22 {
		t.Fatalf("AvailableHeight(30) = %d, want 22", got)
	}
	if got := AvailableHeight(5, r); got != 1 {
		t.Fatalf("AvailableHeight(5) = %d, want 1", got)
	}
	if got := (Reservation{Header: -4, Footer: 1}).Total(); got != 1 {
		t.Fatalf("negative reservation fields must be ignored, Total() = %d", got)
	}
}

func TestVisibleRange(t *testing.T) {
	t.Parallel()

	if s, e := VisibleRange(0, 0, 10); s != 0 || e != 0 {
		t.Fatalf("empty range = [%d,%d)", s, e)
	}
	if s, e := VisibleRange(6, 42, 10); s != 6 || e != 16 {
		t.Fatalf("range = [%d,%d), want [6,16)", s, e)
	}
	if s, e := VisibleRange(40, 42, 10); s != 32 || e != 42 {
		t.Fatalf("clamped range = [%d,%d), want [32,42)", s, e)
	}
}
