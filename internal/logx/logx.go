// Package logx is the leveled logger behind the debug log screen. Lines go
// to an in-memory ring and, when a mirror is set, to a writer such as stderr.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

const DebugEnvVar = "RELAY_DEBUG"

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
}

type Entry struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Level   Level     `json:"-"`
	Name    string    `json:"level"`
	Message string    `json:"message"`
}

type Options struct {
	Capacity int
	Level    Level
	Mirror   io.Writer
	Now      func() time.Time
}

type Logger struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	seq     uint64
	level   Level
	mirror  io.Writer
	now     func() time.Time
}

func New(opts Options) *Logger {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = 500
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	level := opts.Level
	if os.Getenv(DebugEnvVar) != "" {
		level = LevelDebug
	}
	return &Logger{
		entries: make([]Entry, capacity),
		level:   level,
		mirror:  opts.Mirror,
		now:     now,
	}
}

// Discard returns a logger that keeps a small ring and mirrors nowhere.
func Discard() *Logger {
	return New(Options{Capacity: 64, Level: LevelDebug})
}

// SetMirror swaps the mirror writer and returns the previous one so callers
// can restore it with defer.
func (l *Logger) SetMirror(w io.Writer) io.Writer {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.mirror
	l.mirror = w
	return prev
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *Logger) logf(level Level, format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	l.seq++
	entry := Entry{
		Seq:     l.seq,
		Time:    l.now(),
		Level:   level,
		Name:    level.String(),
		Message: fmt.Sprintf(format, args...),
	}
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	if l.mirror != nil {
		fmt.Fprintf(l.mirror, "relay: %s\n", entry.Message)
	}
}

// Entries returns a copy of the ring, oldest first.
func (l *Logger) Entries() []Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append([]Entry(nil), l.entries[:l.next]...)
	}
	out := make([]Entry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

func (l *Logger) Clear() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		l.entries[i] = Entry{}
	}
	l.next = 0
	l.full = false
}

func (l *Logger) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l.Entries()); err != nil {
		return fmt.Errorf("encode log entries: %w", err)
	}
	return nil
}
