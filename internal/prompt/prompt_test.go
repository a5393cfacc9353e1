package prompt

import (
	"strings"
	"testing"

	"relaycode/internal/domain"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	tx := domain.Transaction{ID: "tx7", Message: "fix: parser\n\nbody", Prompt: "make it faster"}
	items := []domain.FileItem{
		{ID: "a", Path: "src/a.go", Diff: "--- a/src/a.go\n+++ b/src/a.go\n"},
		{ID: "b", Path: "src/b.go"},
	}
	files := FromItems(items, map[string]string{"a": "hunk failed"})

	tests := []struct {
		name string
		kind Kind
		want []string
	}{
		{name: "repair", kind: KindRepair, want: []string{"2 file(s) failed", `"fix: parser"`, "### src/a.go", "Error: hunk failed", "Error: unknown", "```diff"}},
		{name: "instruct", kind: KindInstruct, want: []string{"rejected", "- src/a.go", "- src/b.go"}},
		{name: "handoff", kind: KindHandoff, want: []string{"Hand-off for transaction tx7", "make it faster", "- src/a.go: hunk failed"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Build(tt.kind, tx, files)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Fatalf("Build(%s) missing %q in:\n%s", tt.kind, w, got)
				}
			}
		})
	}
}

func TestBuildUnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := Build("nope", domain.Transaction{}, nil); err == nil {
		t.Fatal("Build() with an unknown kind should fail")
	}
}
