package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"relaycode/internal/app"
	"relaycode/internal/domain"
	"relaycode/internal/logx"
	"relaycode/internal/patchengine"
	"relaycode/internal/pipeline"
	"relaycode/internal/state"
)

type runDeps struct {
	userHomeDir func() (string, error)
	now         func() time.Time
	isTerminal  func() bool
	runTUI      func(ctx context.Context, a *app.App) error
	// interrupt derives the command context; cancelling it settles a
	// running apply.
	interrupt func(ctx context.Context) (context.Context, context.CancelFunc)
}

type runtimeState struct {
	stdout   io.Writer
	stderr   io.Writer
	quiet    bool
	fixtures string

	deps runDeps
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

func defaultRunDeps() runDeps {
	return runDeps{
		userHomeDir: os.UserHomeDir,
		now:         app.DefaultNow,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		runTUI: app.Run,
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		},
	}
}

func Run(args []string, stdout io.Writer, stderr io.Writer) int {
	return runWithDeps(args, stdout, stderr, defaultRunDeps())
}

func runWithDeps(args []string, stdout io.Writer, stderr io.Writer, deps runDeps) int {
	runtime := &runtimeState{
		stdout: stdout,
		stderr: stderr,
		deps:   deps,
	}

	cmd := newRootCommand(runtime)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	ctx := context.Background()
	if deps.interrupt != nil {
		var stop context.CancelFunc
		ctx, stop = deps.interrupt(ctx)
		defer stop()
	}
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var codedErr *exitError
	if errors.As(err, &codedErr) {
		if codedErr.err != nil {
			fmt.Fprintln(stderr, codedErr.err)
		}
		if codedErr.code == 0 {
			return 2
		}
		return codedErr.code
	}

	fmt.Fprintln(stderr, err)
	return 2
}

// env is everything a command needs after config and fixtures are loaded.
type env struct {
	paths    state.Paths
	config   domain.ConfigFile
	log      *logx.Logger
	fixtures string
	txs      []domain.Transaction
}

func (r *runtimeState) load() (*env, error) {
	home, err := r.deps.userHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home: %w", err)
	}
	paths := state.NewPaths(home)
	cfg, err := state.LoadConfig(paths)
	if err != nil {
		return nil, err
	}

	level, err := logx.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(r.stderr, "relay: %v; using info\n", err)
	}
	var mirror io.Writer
	if !r.quiet {
		mirror = r.stderr
	}
	log := logx.New(logx.Options{Capacity: cfg.Log.Capacity, Level: level, Mirror: mirror, Now: r.deps.now})

	fixtures := strings.TrimSpace(r.fixtures)
	if fixtures == "" {
		fixtures = strings.TrimSpace(cfg.Fixtures.Path)
	}
	if fixtures == "" {
		fixtures = paths.FixturesPath()
	}
	txs, err := state.LoadFixtures(fixtures, r.deps.now())
	if err != nil {
		return nil, err
	}
	log.Debugf("cli: loaded %d transaction(s) from %s", len(txs), fixtures)
	return &env{paths: paths, config: cfg, log: log, fixtures: fixtures, txs: txs}, nil
}

func (e *env) transaction(id string) (domain.Transaction, error) {
	for _, tx := range e.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return domain.Transaction{}, fmt.Errorf("unknown transaction %q", id)
}

// scenario resolves the --scenario flag, falling back to the config.
func (e *env) scenario(flag string) (domain.ApplyScenario, error) {
	if strings.TrimSpace(flag) == "" {
		flag = e.config.Pipeline.Scenario
	}
	return domain.ParseApplyScenario(flag)
}

func newRootCommand(runtime *runtimeState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Review and apply patches file by file.",
		Long:          "relay applies AI-generated patches in a terminal UI where every file is approved, rejected or repaired before it lands.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runtime.runInteractive(cmd.Context(), "dashboard", "", "")
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(2, err)
	})

	cmd.PersistentFlags().BoolVarP(&runtime.quiet, "quiet", "q", false, "Suppress relay logs on stderr.")
	cmd.PersistentFlags().StringVar(&runtime.fixtures, "fixtures", "", "Transactions file (default ~/.local/state/relaycode/transactions.yaml).")

	cmd.AddCommand(
		newDashboardCommand(runtime),
		newReviewCommand(runtime),
		newApplyCommand(runtime),
		newListCommand(runtime),
	)
	cmd.AddCommand(newCompletionCommand(runtime, cmd))

	return cmd
}

func withExitCode(code int, err error) error {
	if err == nil {
		if code == 0 {
			return nil
		}
		return &exitError{code: code}
	}
	if code == 0 {
		code = 2
	}
	return &exitError{code: code, err: err}
}

func newDashboardCommand(runtime *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runtime.runInteractive(cmd.Context(), "dashboard", "", "")
		},
	}
}

func newReviewCommand(runtime *runtimeState) *cobra.Command {
	var scenario string

	cmd := &cobra.Command{
		Use:   "review <tx-id>",
		Short: "Apply a transaction and open its review.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runtime.runInteractive(cmd.Context(), "review", args[0], scenario)
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "", "Patch engine scenario: success or failure.")

	return cmd
}

// runInteractive loads state, takes the lock and hands the terminal to the
// TUI. txID, when set, opens straight into that transaction's apply.
func (r *runtimeState) runInteractive(ctx context.Context, command, txID, scenarioFlag string) error {
	if !r.deps.isTerminal() {
		return withExitCode(2, errors.New("relay needs an interactive terminal; use `relay list` or `relay apply` instead"))
	}
	e, err := r.load()
	if err != nil {
		return withExitCode(2, err)
	}
	sc, err := e.scenario(scenarioFlag)
	if err != nil {
		return withExitCode(2, err)
	}
	start := domain.ScreenSplash
	if txID != "" {
		if _, err := e.transaction(txID); err != nil {
			return withExitCode(2, err)
		}
		start = domain.ScreenDashboard
	}

	lock, err := state.AcquireLock(e.paths, "relay "+command)
	if err != nil {
		return withExitCode(2, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			e.log.Warnf("cli: release lock: %v", err)
		}
	}()

	a := app.New(app.Options{
		Paths:        e.paths,
		Config:       e.config,
		Transactions: e.txs,
		FixturesPath: e.fixtures,
		Lock:         lock,
		Scenario:     sc,
		Start:        start,
		Review:       txID,
		Log:          e.log,
		Now:          r.deps.now,
	})
	return withExitCode(0, r.deps.runTUI(ctx, a))
}

func newApplyCommand(runtime *runtimeState) *cobra.Command {
	var scenario string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "apply <tx-id>",
		Short: "Run the apply pipeline without the TUI and print per-file results.",
		Long:  "apply runs every pipeline step for one transaction and reports each file's review status. It exits 1 when any file failed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runtime.runApply(cmd.Context(), args[0], scenario, jsonOut)
			return withExitCode(code, err)
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "", "Patch engine scenario: success or failure.")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON.")

	return cmd
}

type applyReport struct {
	TxID        string       `json:"tx_id"`
	Scenario    string       `json:"scenario"`
	PatchStatus string       `json:"patch_status"`
	ElapsedMS   int64        `json:"elapsed_ms"`
	Cancelled   bool         `json:"cancelled,omitempty"`
	Error       string       `json:"error,omitempty"`
	Steps       []stepReport `json:"steps"`
	Files       []fileReport `json:"files"`
}

type stepReport struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Details    string `json:"details,omitempty"`
}

type fileReport struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (r *runtimeState) runApply(ctx context.Context, txID, scenarioFlag string, jsonOut bool) (int, error) {
	e, err := r.load()
	if err != nil {
		return 2, err
	}
	tx, err := e.transaction(txID)
	if err != nil {
		return 2, err
	}
	sc, err := e.scenario(scenarioFlag)
	if err != nil {
		return 2, err
	}

	runner := &pipeline.Runner{
		Engine: patchengine.New(sc, e.log),
		Hooks:  pipeline.ShellHooks{PostCommandLine: e.config.Pipeline.PostCommand, LinterLine: e.config.Pipeline.Linter},
		Now:    r.deps.now,
		Log:    e.log,
	}
	var onEvent func(pipeline.Event)
	if !jsonOut {
		fmt.Fprintf(r.stdout, "Applying %s (%s scenario)\n", tx.ID, sc)
		onEvent = func(ev pipeline.Event) { r.printEvent(ev) }
	}
	res := runner.Execute(ctx, tx, onEvent)
	e.log.Infof("cli: apply of %s finished: %s in %s", tx.ID, res.PatchStatus, res.Elapsed.Round(time.Millisecond))
	report := buildReport(tx, sc, res)

	if jsonOut {
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return 2, fmt.Errorf("encode report: %w", err)
		}
		fmt.Fprintln(r.stdout, string(b))
	} else {
		r.printFiles(report)
	}

	switch {
	case res.Err != nil:
		return 2, res.Err
	case res.PatchStatus == domain.PatchPartialFailure:
		return 1, nil
	}
	return 0, nil
}

func buildReport(tx domain.Transaction, sc domain.ApplyScenario, res pipeline.Result) applyReport {
	report := applyReport{
		TxID:        tx.ID,
		Scenario:    string(sc),
		PatchStatus: string(res.PatchStatus),
		ElapsedMS:   res.Elapsed.Milliseconds(),
		Cancelled:   res.Cancelled,
		Steps:       make([]stepReport, 0, len(res.Steps)),
		Files:       make([]fileReport, 0, len(tx.Files)),
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}
	for _, s := range res.Steps {
		report.Steps = append(report.Steps, stepReport{
			ID:         string(s.ID),
			Title:      s.Title,
			Status:     string(s.Status),
			DurationMS: s.Duration.Milliseconds(),
			Details:    s.Details,
		})
	}
	for _, f := range tx.Files {
		out, ok := res.Outcomes[f.ID]
		status := domain.ReviewAwaiting
		if ok {
			status = out.Status
		}
		report.Files = append(report.Files, fileReport{
			ID:      f.ID,
			Path:    f.Path,
			Status:  string(status),
			Details: out.Details,
			Error:   out.Error,
		})
	}
	return report
}

func stepGlyph(s domain.StepStatus) string {
	switch s {
	case domain.StepDone:
		return "✓"
	case domain.StepFailed:
		return "✗"
	case domain.StepSkipped:
		return "-"
	case domain.StepActive:
		return "…"
	default:
		return " "
	}
}

func (r *runtimeState) printEvent(ev pipeline.Event) {
	switch ev := ev.(type) {
	case pipeline.UpdateStep:
		if !ev.Status.Terminal() {
			return
		}
		line := fmt.Sprintf("%s %s (%s)", stepGlyph(ev.Status), domain.StepTitle(ev.ID), ev.Duration.Round(time.Millisecond))
		if ev.Details != "" {
			line += " · " + ev.Details
		}
		fmt.Fprintln(r.stdout, line)
	case pipeline.UpdateSubstep:
		if !ev.Status.Terminal() {
			return
		}
		line := "    " + stepGlyph(ev.Status) + " " + ev.Title
		if ev.Error != "" {
			line += ": " + ev.Error
		}
		fmt.Fprintln(r.stdout, line)
	}
}

func (r *runtimeState) printFiles(report applyReport) {
	fmt.Fprintf(r.stdout, "\n%s in %dms\n", report.PatchStatus, report.ElapsedMS)
	width := 0
	for _, f := range report.Files {
		width = max(width, runewidth.StringWidth(f.Path))
	}
	for _, f := range report.Files {
		status := domain.FileReviewStatus(f.Status)
		line := fmt.Sprintf("%s %s %s", status.Icon(), runewidth.FillRight(f.Path, width), f.Status)
		switch {
		case f.Error != "":
			line += ": " + f.Error
		case f.Details != "":
			line += " · " + f.Details
		}
		fmt.Fprintln(r.stdout, line)
	}
}

func newListCommand(runtime *runtimeState) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print loaded transactions, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			e, err := runtime.load()
			if err != nil {
				return withExitCode(2, err)
			}
			if jsonOut {
				b, err := json.MarshalIndent(e.txs, "", "  ")
				if err != nil {
					return withExitCode(2, fmt.Errorf("encode transactions: %w", err))
				}
				fmt.Fprintln(runtime.stdout, string(b))
				return nil
			}
			runtime.printList(e.txs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print transactions as JSON.")

	return cmd
}

const (
	listIDWidth     = 10
	listStatusWidth = 16
	listStatsWidth  = 12
)

func (r *runtimeState) printList(txs []domain.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(r.stdout, "No transactions.")
		return
	}
	for _, tx := range txs {
		added, removed := tx.LineStats()
		stats := fmt.Sprintf("%d files +%d/-%d", len(tx.Files), added, removed)
		msg := strings.TrimSpace(tx.Message)
		if i := strings.IndexByte(msg, '\n'); i >= 0 {
			msg = msg[:i]
		}
		fmt.Fprintf(r.stdout, "%s %s %s %s\n",
			runewidth.FillRight(runewidth.Truncate(tx.ID, listIDWidth, "…"), listIDWidth),
			runewidth.FillRight(string(tx.Status), listStatusWidth),
			runewidth.FillRight(stats, listStatsWidth),
			msg,
		)
	}
}

func newCompletionCommand(runtime *runtimeState, root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts.",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(_ *cobra.Command, args []string) error {
			var err error
			switch args[0] {
			case "bash":
				err = root.GenBashCompletionV2(runtime.stdout, true)
			case "zsh":
				err = root.GenZshCompletion(runtime.stdout)
			case "fish":
				err = root.GenFishCompletion(runtime.stdout, true)
			case "powershell":
				err = root.GenPowerShellCompletionWithDesc(runtime.stdout)
			default:
				err = fmt.Errorf("unsupported shell %q", args[0])
			}
			return withExitCode(0, err)
		},
	}
}
