// Package timers gives screens cancelable one-shot timers on top of
// bubbletea ticks. A tick cannot be recalled once scheduled, so every arm
// gets a generation and a fire is honoured only if it still matches.
package timers

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ID string

// FiredMsg is delivered when an armed timer elapses.
type FiredMsg struct {
	Scope string
	ID    ID
	Gen   uint64
	At    time.Time
}

// Scope groups the timers a screen registers on enter. Close disarms all of
// them on exit.
type Scope struct {
	name   string
	next   uint64
	armed  map[ID]uint64
	closed bool
}

func NewScope(name string) *Scope {
	return &Scope{name: name, armed: map[ID]uint64{}}
}

func (s *Scope) Name() string { return s.name }

// Arm schedules id to fire after d, superseding any earlier arm of id.
// A closed scope returns nil.
func (s *Scope) Arm(id ID, d time.Duration) tea.Cmd {
	if s.closed {
		return nil
	}
	s.next++
	gen := s.next
	s.armed[id] = gen
	name := s.name
	return tea.Tick(d, func(at time.Time) tea.Msg {
		return FiredMsg{Scope: name, ID: id, Gen: gen, At: at}
	})
}

// Accept reports whether msg is the live fire of one of this scope's
// timers and, if so, disarms it.
func (s *Scope) Accept(msg FiredMsg) bool {
	if s.closed || msg.Scope != s.name {
		return false
	}
	gen, ok := s.armed[msg.ID]
	if !ok || gen != msg.Gen {
		return false
	}
	delete(s.armed, msg.ID)
	return true
}

func (s *Scope) Armed(id ID) bool {
	_, ok := s.armed[id]
	return ok
}

func (s *Scope) Disarm(id ID) {
	delete(s.armed, id)
}

// Close disarms everything and rejects further arms until Open.
func (s *Scope) Close() {
	s.armed = map[ID]uint64{}
	s.closed = true
}

// Open re-enables a closed scope. Timers armed before the close stay dead.
func (s *Scope) Open() {
	s.closed = false
}
