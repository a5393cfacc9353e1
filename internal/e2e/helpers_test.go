package e2e

import (
	"strings"
	"testing"
	"time"

	"relaycode/internal/testharness"
)

var baseNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

const fixturesYAML = `version: 1
transactions:
  - id: tx-e2e
    timestamp: 2026-03-14T09:00:00Z
    status: PENDING
    message: "feat: greet on start"
    files:
      - id: a
        path: cmd/main.go
        type: MOD
        diff: |
          --- a/cmd/main.go
          +++ b/cmd/main.go
          @@ -1,2 +1,3 @@
           package main
          +// hello
           func main() {}
      - id: b
        path: cmd/greet.go
        type: ADD
        diff: |
          --- /dev/null
          +++ b/cmd/greet.go
          @@ -0,0 +1,1 @@
          +package main
`

func setup(t *testing.T) *testharness.Harness {
	t.Helper()
	h := testharness.NewHarness(t)
	h.MustWriteFile(h.FixturesPath(), fixturesYAML)
	return h
}

func mustContain(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, got)
	}
}
