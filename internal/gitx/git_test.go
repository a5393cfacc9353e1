package gitx

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"relaycode/internal/domain"
)

func testRunner() Runner {
	return Runner{Env: []string{
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=relay",
		"GIT_AUTHOR_EMAIL=relay@example.com",
		"GIT_COMMITTER_NAME=relay",
		"GIT_COMMITTER_EMAIL=relay@example.com",
	}}
}

func newRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	if _, err := testRunner().RunGit(context.Background(), dir, "init", "-b", "main"); err != nil {
		t.Fatalf("git init: %v", err)
	}
	return dir
}

func TestServiceCommit(t *testing.T) {
	t.Parallel()

	dir := newRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	svc := Service{Runner: testRunner(), Dir: dir}
	sha, err := svc.Commit(context.Background(), "feat: first")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(sha) < 7 {
		t.Fatalf("Commit() sha = %q", sha)
	}

	if _, err := svc.Commit(context.Background(), "again"); !errors.Is(err, ErrNothingToCommit) {
		t.Fatalf("second Commit() error = %v, want ErrNothingToCommit", err)
	}
}

func TestServiceCommitOutsideRepo(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	svc := Service{Runner: testRunner(), Dir: t.TempDir()}
	if _, err := svc.Commit(context.Background(), "msg"); err == nil {
		t.Fatal("Commit() outside a work tree should fail")
	}
}

func TestCommitMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		txs  []domain.Transaction
		want string
	}{
		{name: "none", want: ""},
		{name: "single", txs: []domain.Transaction{{Message: " fix: x \n\nbody"}}, want: "fix: x \n\nbody"},
		{
			name: "several",
			txs:  []domain.Transaction{{Message: "fix: a\nmore"}, {Message: "feat: b"}},
			want: "Apply 2 transactions\n\n- fix: a\n- feat: b",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CommitMessage(tt.txs); got != tt.want {
				t.Fatalf("CommitMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
