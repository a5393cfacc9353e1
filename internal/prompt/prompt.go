// Package prompt renders the text copied to the clipboard for repair,
// instruct and hand-off requests.
package prompt

import (
	"bytes"
	"strings"
	"text/template"

	"relaycode/internal/domain"
)

type File struct {
	Path  string
	Error string
	Diff  string
}

type Kind string

const (
	KindRepair   Kind = "repair"
	KindInstruct Kind = "instruct"
	KindHandoff  Kind = "handoff"
)

type data struct {
	Tx    domain.Transaction
	Files []File
}

var templates = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"subject": subject,
	"fence":   func(s string) string { return strings.TrimRight(s, "\n") },
}).Parse(`
{{define "repair"}}The following {{len .Files}} file(s) failed to apply for transaction {{.Tx.ID}} ("{{subject .Tx.Message}}").
Produce a corrected patch for each one.
{{range .Files}}
### {{.Path}}
Error: {{if .Error}}{{.Error}}{{else}}unknown{{end}}
{{- if .Diff}}
` + "```diff" + `
{{fence .Diff}}
` + "```" + `
{{- end}}
{{end}}{{end}}

{{define "instruct"}}I rejected the proposed changes to {{len .Files}} file(s) in transaction {{.Tx.ID}} ("{{subject .Tx.Message}}").
Revise them according to these instructions:

<describe what should change>
{{range .Files}}
- {{.Path}}
{{- end}}
{{end}}

{{define "handoff"}}Hand-off for transaction {{.Tx.ID}}: {{subject .Tx.Message}}
{{- if .Tx.Prompt}}

Original request:
{{.Tx.Prompt}}
{{- end}}
{{- if .Tx.Reasoning}}

Reasoning so far:
{{.Tx.Reasoning}}
{{- end}}

Automated processing stopped. These files still need attention:
{{range .Files}}
- {{.Path}}{{if .Error}}: {{.Error}}{{end}}
{{- end}}
{{end}}
`))

// Build renders kind for files of tx.
func Build(kind Kind, tx domain.Transaction, files []File) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(kind), data{Tx: tx, Files: files}); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func Repair(tx domain.Transaction, files []File) (string, error) {
	return Build(KindRepair, tx, files)
}

func Instruct(tx domain.Transaction, files []File) (string, error) {
	return Build(KindInstruct, tx, files)
}

func Handoff(tx domain.Transaction, files []File) (string, error) {
	return Build(KindHandoff, tx, files)
}

// FromItems pairs file items with the review errors recorded for them.
func FromItems(items []domain.FileItem, errs map[string]string) []File {
	out := make([]File, 0, len(items))
	for _, f := range items {
		out = append(out, File{Path: f.Path, Error: errs[f.ID], Diff: f.Diff})
	}
	return out
}

func subject(msg string) string {
	msg = strings.TrimSpace(msg)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
