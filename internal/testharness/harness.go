package testharness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

var (
	buildOnce sync.Once
	buildPath string
	buildErr  error
)

// Harness runs the relay binary against an isolated home directory.
type Harness struct {
	t          *testing.T
	Root       string
	Home       string
	BinaryPath string
}

func NewHarness(t *testing.T) *Harness {
	t.Helper()

	root := t.TempDir()
	home := filepath.Join(root, "home")
	mustMkdirAll(t, home)

	bin := buildBinary(t)
	return &Harness{t: t, Root: root, Home: home, BinaryPath: bin}
}

func buildBinary(t *testing.T) string {
	t.Helper()

	buildOnce.Do(func() {
		path := filepath.Join(os.TempDir(), fmt.Sprintf("relay-test-%d", time.Now().UnixNano()))
		if runtime.GOOS == "windows" {
			path += ".exe"
		}
		cmd := exec.Command("go", "build", "-o", path, "./cmd/relay")
		cmd.Dir = repoRootFromWD(t)
		cmd.Env = append(os.Environ(), "GOCACHE=/tmp/go-cache", "GOMODCACHE=/tmp/go-mod")
		out, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build relay: %w: %s", err, string(out))
			return
		}
		buildPath = path
	})

	if buildErr != nil {
		t.Fatal(buildErr)
	}
	return buildPath
}

func repoRootFromWD(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			t.Fatalf("could not find go.mod from %q", wd)
		}
		wd = parent
	}
}

func (h *Harness) ConfigPath() string {
	return filepath.Join(h.Home, ".config", "relaycode", "config.yaml")
}

func (h *Harness) LocalStateRoot() string {
	return filepath.Join(h.Home, ".local", "state", "relaycode")
}

func (h *Harness) FixturesPath() string {
	return filepath.Join(h.LocalStateRoot(), "transactions.yaml")
}

// Result is one finished relay invocation.
type Result struct {
	Stdout string
	Stderr string
	Code   int
}

// Run executes relay with stdin detached, so interactive commands see no
// terminal. A non-zero exit is reported in Code, not as an error.
func (h *Harness) Run(now time.Time, args ...string) Result {
	h.t.Helper()

	cmd := exec.Command(h.BinaryPath, args...)
	cmd.Dir = h.Root
	cmd.Env = append(os.Environ(),
		"HOME="+h.Home,
		"RELAY_NOW="+now.UTC().Format(time.RFC3339),
		"RELAY_DEBUG=",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.Code = exitErr.ExitCode()
	default:
		h.t.Fatalf("run relay %v: %v", args, err)
	}
	return res
}

func (h *Harness) MustWriteFile(path, contents string) {
	h.t.Helper()
	mustMkdirAll(h.t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		h.t.Fatalf("write file %s: %v", path, err)
	}
}

func (h *Harness) MustReadFile(path string) string {
	h.t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		h.t.Fatalf("read file %s: %v", path, err)
	}
	return string(b)
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
