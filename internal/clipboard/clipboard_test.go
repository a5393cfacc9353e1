package clipboard

import (
	"errors"
	"testing"
)

func TestMemoryRecordsWrites(t *testing.T) {
	t.Parallel()

	var m Memory
	if got := m.Last(); got != "" {
		t.Fatalf("Last() = %q on empty clipboard", got)
	}
	_ = m.Write("one")
	_ = m.Write("two")
	if got := m.Last(); got != "two" {
		t.Fatalf("Last() = %q, want two", got)
	}
	if got := len(m.Writes()); got != 2 {
		t.Fatalf("len(Writes()) = %d, want 2", got)
	}
}

func TestMemoryFailure(t *testing.T) {
	t.Parallel()

	m := &Memory{Err: errors.New("no display")}
	if err := m.Write("x"); err == nil {
		t.Fatal("Write() should return the configured error")
	}
	if len(m.Writes()) != 0 {
		t.Fatal("failed write must not be recorded")
	}
}
