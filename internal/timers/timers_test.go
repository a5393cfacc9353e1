package timers

import (
	"testing"
	"time"
)

func fire(t *testing.T, s *Scope, id ID) FiredMsg {
	t.Helper()
	cmd := s.Arm(id, time.Millisecond)
	if cmd == nil {
		t.Fatalf("Arm(%s) returned nil", id)
	}
	msg, ok := cmd().(FiredMsg)
	if !ok {
		t.Fatalf("Arm(%s) cmd produced %T", id, msg)
	}
	return msg
}

func TestArmAndAccept(t *testing.T) {
	t.Parallel()

	s := NewScope("review")
	msg := fire(t, s, "flash")
	if msg.Scope != "review" || msg.ID != "flash" {
		t.Fatalf("msg = %+v", msg)
	}
	if !s.Accept(msg) {
		t.Fatal("Accept() = false for live timer")
	}
	if s.Accept(msg) {
		t.Fatal("a timer fires once")
	}
}

func TestRearmMakesEarlierFireStale(t *testing.T) {
	t.Parallel()

	s := NewScope("dashboard")
	first := fire(t, s, "countdown")
	second := fire(t, s, "countdown")
	if s.Accept(first) {
		t.Fatal("superseded fire accepted")
	}
	if !s.Accept(second) {
		t.Fatal("latest fire rejected")
	}
}

func TestDisarmAndClose(t *testing.T) {
	t.Parallel()

	s := NewScope("debug-log")
	msg := fire(t, s, "simulator")
	s.Disarm("simulator")
	if s.Accept(msg) || s.Armed("simulator") {
		t.Fatal("disarmed timer still live")
	}

	msg = fire(t, s, "simulator")
	s.Close()
	if s.Accept(msg) {
		t.Fatal("fire after Close accepted")
	}
	if s.Arm("simulator", time.Millisecond) != nil {
		t.Fatal("Arm on closed scope should return nil")
	}
	s.Open()
	if s.Accept(msg) {
		t.Fatal("timer armed before Close revived by Open")
	}
	if !s.Accept(fire(t, s, "simulator")) {
		t.Fatal("reopened scope should accept new timers")
	}
}

func TestScopesIgnoreEachOther(t *testing.T) {
	t.Parallel()

	a, b := NewScope("a"), NewScope("b")
	msg := fire(t, a, "x")
	b.Arm("x", time.Millisecond)
	if b.Accept(msg) {
		t.Fatal("scope b accepted a's timer")
	}
}
