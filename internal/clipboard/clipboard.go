// Package clipboard writes prompts and copied fields to the system
// clipboard.
package clipboard

import (
	"errors"
	"sync"

	"github.com/atotto/clipboard"
)

// Writer is the clipboard collaborator. Failures are reported to the user
// as notifications, never as fatal errors.
type Writer interface {
	Write(text string) error
}

// System writes through to the OS clipboard.
type System struct{}

func (System) Write(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard is not available on this system")
	}
	return clipboard.WriteAll(text)
}

// Memory keeps writes in process. Set Err to simulate a failing clipboard.
type Memory struct {
	mu     sync.Mutex
	Err    error
	writes []string
}

func (m *Memory) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.writes = append(m.writes, text)
	return nil
}

func (m *Memory) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return ""
	}
	return m.writes[len(m.writes)-1]
}

func (m *Memory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}
