package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"relaycode/internal/domain"
)

// hookWaitDelay bounds how long a cancelled hook's children may keep its
// output open.
const hookWaitDelay = time.Second

// ShellHooks runs the configured post-command and linter through sh in Dir.
// An empty command counts as success.
type ShellHooks struct {
	PostCommandLine string
	LinterLine      string
	Dir             string
}

func (h ShellHooks) PostCommand(ctx context.Context, tx domain.Transaction) (string, error) {
	if strings.TrimSpace(h.PostCommandLine) == "" {
		return noopHooks{}.PostCommand(ctx, tx)
	}
	return h.run(ctx, tx, h.PostCommandLine)
}

func (h ShellHooks) Lint(ctx context.Context, tx domain.Transaction) (string, error) {
	if strings.TrimSpace(h.LinterLine) == "" {
		return noopHooks{}.Lint(ctx, tx)
	}
	return h.run(ctx, tx, h.LinterLine)
}

func (h ShellHooks) run(ctx context.Context, tx domain.Transaction, line string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Dir = h.Dir
	cmd.Env = append(cmd.Environ(), "RELAY_TX_ID="+tx.ID)
	cmd.WaitDelay = hookWaitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	text := lastLine(out.String())
	if err != nil {
		if text == "" {
			return "", fmt.Errorf("%s: %w", line, err)
		}
		return "", fmt.Errorf("%s: %w: %s", line, err, text)
	}
	if text == "" {
		text = "`" + line + "` exited 0"
	}
	return text, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
