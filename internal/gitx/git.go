// Package gitx shells out to git for the commit workflow.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"relaycode/internal/domain"
)

var ErrNothingToCommit = errors.New("nothing to commit")

type Runner struct {
	// Env is appended to the process environment for every git call.
	Env []string
}

type Result struct {
	Stdout string
	Stderr string
}

func (r Runner) run(ctx context.Context, dir string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return Result{Stdout: stdout.String(), Stderr: stderr.String()}, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (r Runner) RunGit(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := r.run(ctx, dir, "git", args...)
	return strings.TrimSpace(res.Stdout), err
}

func (r Runner) IsGitRepo(ctx context.Context, path string) bool {
	_, err := r.RunGit(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

func (r Runner) HeadSHA(ctx context.Context, path string) (string, error) {
	out, err := r.RunGit(ctx, path, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r Runner) Dirty(ctx context.Context, path string) (tracked bool, untracked bool, err error) {
	out, err := r.RunGit(ctx, path, "status", "--porcelain")
	if err != nil {
		return false, false, err
	}
	if strings.TrimSpace(out) == "" {
		return false, false, nil
	}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "??") {
			untracked = true
			continue
		}
		tracked = true
	}
	return tracked, untracked, nil
}

func (r Runner) AddAll(ctx context.Context, path string) error {
	_, err := r.RunGit(ctx, path, "add", "-A")
	return err
}

func (r Runner) Commit(ctx context.Context, path, message string) error {
	_, err := r.RunGit(ctx, path, "commit", "-m", message)
	return err
}

// Service is the commit collaborator used by the git commit screen.
type Service struct {
	Runner Runner
	Dir    string
}

// Commit stages everything under dir and commits it with message. It
// returns the new HEAD.
func (s Service) Commit(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("commit message is empty")
	}
	if !s.Runner.IsGitRepo(ctx, s.Dir) {
		return "", fmt.Errorf("%s is not a git work tree", s.Dir)
	}
	if err := s.Runner.AddAll(ctx, s.Dir); err != nil {
		return "", err
	}
	tracked, untracked, err := s.Runner.Dirty(ctx, s.Dir)
	if err != nil {
		return "", err
	}
	if !tracked && !untracked {
		return "", ErrNothingToCommit
	}
	if err := s.Runner.Commit(ctx, s.Dir, message); err != nil {
		return "", err
	}
	return s.Runner.HeadSHA(ctx, s.Dir)
}

// CommitMessage joins the messages of the transactions being committed.
// A single transaction keeps its message as is.
func CommitMessage(txs []domain.Transaction) string {
	switch len(txs) {
	case 0:
		return ""
	case 1:
		return strings.TrimSpace(txs[0].Message)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Apply %d transactions\n", len(txs))
	for _, tx := range txs {
		subject := strings.TrimSpace(tx.Message)
		if i := strings.IndexByte(subject, '\n'); i >= 0 {
			subject = subject[:i]
		}
		fmt.Fprintf(&b, "\n- %s", subject)
	}
	return b.String()
}
