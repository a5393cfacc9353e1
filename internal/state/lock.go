package state

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrLocked means another live relay process owns the state directory.
var ErrLocked = errors.New("another relay process holds the lock")

var ErrLockReleased = errors.New("lock already released")

const lockMaxAge = 12 * time.Hour

// Lock guards the fixtures file while a TUI session may write statuses back.
type Lock struct {
	path string
	file *os.File
	meta LockMeta
}

type LockMeta struct {
	PID       int       `yaml:"pid"`
	Hostname  string    `yaml:"hostname"`
	Command   string    `yaml:"command"`
	CreatedAt time.Time `yaml:"created_at"`
}

func AcquireLock(paths Paths, command string) (*Lock, error) {
	if err := EnsureDir(paths.LocalStateRoot()); err != nil {
		return nil, err
	}
	path := paths.LockPath()
	for attempt := 0; attempt < 2; attempt++ {
		lock, err := createLock(path, command)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		if attempt > 0 {
			break
		}
		holder, stale, err := inspectLock(path, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if !stale {
			return nil, fmt.Errorf("%w (pid %d, %s)", ErrLocked, holder.PID, holder.Command)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, ErrLocked
}

func createLock(path, command string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	meta := LockMeta{
		PID:       os.Getpid(),
		Hostname:  hostname,
		Command:   command,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	b, err := yaml.Marshal(meta)
	if err == nil {
		_, err = f.Write(b)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &Lock{path: path, file: f, meta: meta}, nil
}

func (l *Lock) Meta() LockMeta { return l.meta }

// Held reports whether l is still owned by this process.
func (l *Lock) Held() bool { return l != nil && l.file != nil }

func (l *Lock) Release() error {
	if !l.Held() {
		return nil
	}
	_ = l.file.Close()
	l.file = nil
	return os.Remove(l.path)
}

// inspectLock reads the holder and decides whether the lock can be broken:
// it is too old, unreadable and old, or held by a dead process on this host.
func inspectLock(path string, now time.Time) (LockMeta, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return LockMeta{}, true, nil
	}
	if err != nil {
		return LockMeta{}, false, err
	}
	fileAge := max(now.Sub(info.ModTime()), 0)

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return LockMeta{}, true, nil
	}
	if err != nil {
		return LockMeta{}, false, err
	}
	var meta LockMeta
	if err := yaml.Unmarshal(content, &meta); err != nil || meta.PID <= 0 || meta.CreatedAt.IsZero() {
		return meta, fileAge >= lockMaxAge, nil
	}
	if max(now.Sub(meta.CreatedAt), 0) >= lockMaxAge || fileAge >= lockMaxAge {
		return meta, true, nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		return meta, false, err
	}
	if strings.EqualFold(hostname, meta.Hostname) && !processAlive(meta.PID) {
		return meta, true, nil
	}
	return meta, false, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if runtime.GOOS == "windows" {
		// no signal-0 probe on windows; only age breaks the lock there
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true
	case errors.Is(err, os.ErrProcessDone):
		return false
	default:
		return os.IsPermission(err)
	}
}
