// Package viewport keeps a selected row inside a fixed-height window over a
// longer list. Everything here is pure: callers own the state and re-derive
// the offset after every mutation.
package viewport

import "relaycode/internal/domain"

// Reservation counts the rows a screen spends on chrome around its list.
type Reservation struct {
	Header     int
	Footer     int
	Separators int
	Margin     int
}

func FromDomain(r domain.Reservation) Reservation {
	return Reservation{Header: r.Header, Footer: r.Footer, Separators: r.Separators, Margin: r.Margin}
}

func (r Reservation) Total() int {
	total := 0
	for _, n := range []int{r.Header, r.Footer, r.Separators, r.Margin} {
		if n > 0 {
			total += n
		}
	}
	return total
}

// AvailableHeight returns the list rows left after the reservation. It never
// returns less than one so a degenerate terminal still shows the selection.
func AvailableHeight(rows int, r Reservation) int {
	h := rows - r.Total()
	if h < 1 {
		return 1
	}
	return h
}

// ComputeOffset returns the first visible index so that selected lies inside
// [offset, offset+height). The result is clamped to [0, max(0, count-height)].
func ComputeOffset(selected, count, height, prevOffset int) int {
	if count <= 0 {
		return 0
	}
	if height < 1 {
		height = 1
	}
	selected = clamp(selected, 0, count-1)

	offset := prevOffset
	if selected < offset {
		offset = selected
	}
	if selected >= offset+height {
		offset = selected - height + 1
	}
	return clamp(offset, 0, maxOffset(count, height))
}

// VisibleRange returns the half-open [start, end) slice bounds for rendering.
func VisibleRange(offset, count, height int) (start, end int) {
	if count <= 0 {
		return 0, 0
	}
	if height < 1 {
		height = 1
	}
	start = clamp(offset, 0, maxOffset(count, height))
	end = start + height
	if end > count {
		end = count
	}
	return start, end
}

func maxOffset(count, height int) int {
	if count-height < 0 {
		return 0
	}
	return count - height
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
