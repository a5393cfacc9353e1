package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"relaycode/internal/domain"
)

type scriptedEngine struct {
	snapshotErr error
	outcomes    map[string]domain.FileOutcome
	// block, when set, makes the first ApplyFile for that file wait for
	// cancellation.
	block   string
	started chan struct{}

	mu      sync.Mutex
	blocked bool
}

func (e *scriptedEngine) claimBlock(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != e.block || e.blocked {
		return false
	}
	e.blocked = true
	return true
}

func (e *scriptedEngine) Snapshot(context.Context, domain.Transaction) error {
	return e.snapshotErr
}

func (e *scriptedEngine) ApplyFile(ctx context.Context, _ string, f domain.FileItem) domain.FileOutcome {
	if e.claimBlock(f.ID) {
		close(e.started)
		<-ctx.Done()
		return domain.FileOutcome{Status: domain.ReviewFailed, Error: "interrupted"}
	}
	if out, ok := e.outcomes[f.ID]; ok {
		return out
	}
	return domain.FileOutcome{Status: domain.ReviewApproved}
}

type failingHooks struct{ postErr error }

func (h failingHooks) PostCommand(context.Context, domain.Transaction) (string, error) {
	return "", h.postErr
}

func (failingHooks) Lint(context.Context, domain.Transaction) (string, error) {
	return "clean", nil
}

func threeFiles() domain.Transaction {
	return domain.Transaction{
		ID: "tx1",
		Files: []domain.FileItem{
			{ID: "f0", Path: "src/a.go"},
			{ID: "f1", Path: "src/b.go"},
			{ID: "f2", Path: "src/c.go"},
		},
	}
}

func stepStatuses(steps []Step) map[domain.StepID]domain.StepStatus {
	out := map[domain.StepID]domain.StepStatus{}
	for _, s := range steps {
		out[s.ID] = s.Status
	}
	return out
}

func TestFailureScenarioReportsPartialFailure(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{outcomes: map[string]domain.FileOutcome{
		"f1": {Status: domain.ReviewFailed, Error: "hunk #1 failed at line 14"},
		"f2": {Status: domain.ReviewFailed, Error: "file not found in snapshot"},
	}}
	runner := &Runner{Engine: engine}
	consumer := NewProgress(nil)
	res := runner.Execute(context.Background(), threeFiles(), func(ev Event) {
		if !consumer.Apply(ev) {
			t.Errorf("consumer rejected %#v", ev)
		}
	})

	if res.PatchStatus != domain.PatchPartialFailure {
		t.Fatalf("PatchStatus = %q, want PARTIAL_FAILURE", res.PatchStatus)
	}
	if got := res.Outcomes["f0"].Status; got != domain.ReviewApproved {
		t.Fatalf("f0 = %q, want APPROVED", got)
	}
	e1, e2 := res.Outcomes["f1"], res.Outcomes["f2"]
	if e1.Status != domain.ReviewFailed || e2.Status != domain.ReviewFailed {
		t.Fatalf("f1/f2 = %q/%q, want FAILED", e1.Status, e2.Status)
	}
	if e1.Error == "" || e1.Error == e2.Error {
		t.Fatalf("errors %q and %q should be distinct and non-empty", e1.Error, e2.Error)
	}

	want := map[domain.StepID]domain.StepStatus{
		domain.StepSnapshot:    domain.StepDone,
		domain.StepMemory:      domain.StepFailed,
		domain.StepPostCommand: domain.StepSkipped,
		domain.StepLinter:      domain.StepSkipped,
	}
	if diff := cmp.Diff(want, stepStatuses(res.Steps)); diff != "" {
		t.Fatalf("step statuses mismatch (-want +got):\n%s", diff)
	}
	post, _ := consumer.Step(domain.StepPostCommand)
	if post.Details == "" {
		t.Fatal("skipped post-command should carry a reason")
	}
	if diff := cmp.Diff(res.Steps, consumer.Steps()); diff != "" {
		t.Fatalf("consumer drifted from worker (-worker +consumer):\n%s", diff)
	}
	memory, _ := consumer.Step(domain.StepMemory)
	if len(memory.Substeps) != 3 || memory.FailedSubsteps() != 2 {
		t.Fatalf("memory substeps = %+v", memory.Substeps)
	}
}

func TestSuccessScenarioApprovesEveryFile(t *testing.T) {
	t.Parallel()

	runner := &Runner{Engine: &scriptedEngine{}}
	res := runner.Execute(context.Background(), threeFiles(), nil)
	if res.PatchStatus != domain.PatchSuccess || res.Err != nil {
		t.Fatalf("result = %+v", res)
	}
	for id, out := range res.Outcomes {
		if out.Status != domain.ReviewApproved {
			t.Fatalf("%s = %q, want APPROVED", id, out.Status)
		}
	}
	for _, s := range res.Steps {
		if s.Status != domain.StepDone {
			t.Fatalf("step %s = %s, want done", s.ID, s.Status)
		}
	}
}

func TestSnapshotFailureFailsEveryFile(t *testing.T) {
	t.Parallel()

	runner := &Runner{Engine: &scriptedEngine{snapshotErr: errors.New("worktree unreadable")}}
	res := runner.Execute(context.Background(), threeFiles(), nil)
	if res.PatchStatus != domain.PatchPartialFailure {
		t.Fatalf("PatchStatus = %q", res.PatchStatus)
	}
	for id, out := range res.Outcomes {
		if out.Status != domain.ReviewFailed {
			t.Fatalf("%s = %q, want FAILED", id, out.Status)
		}
	}
	want := map[domain.StepID]domain.StepStatus{
		domain.StepSnapshot:    domain.StepFailed,
		domain.StepMemory:      domain.StepSkipped,
		domain.StepPostCommand: domain.StepSkipped,
		domain.StepLinter:      domain.StepSkipped,
	}
	if diff := cmp.Diff(want, stepStatuses(res.Steps)); diff != "" {
		t.Fatalf("step statuses mismatch (-want +got):\n%s", diff)
	}
}

func TestPostCommandFailureSkipsLinter(t *testing.T) {
	t.Parallel()

	runner := &Runner{Engine: &scriptedEngine{}, Hooks: failingHooks{postErr: errors.New("exit status 1")}}
	res := runner.Execute(context.Background(), threeFiles(), nil)
	got := stepStatuses(res.Steps)
	if got[domain.StepPostCommand] != domain.StepFailed || got[domain.StepLinter] != domain.StepSkipped {
		t.Fatalf("statuses = %v", got)
	}
	if res.PatchStatus != domain.PatchSuccess {
		t.Fatalf("PatchStatus = %q, want SUCCESS", res.PatchStatus)
	}
}

func TestCancelSettlesActiveStep(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{block: "f1", started: make(chan struct{})}
	runner := &Runner{Engine: engine}
	run := runner.Start(context.Background(), threeFiles())

	consumer := NewProgress(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range run.Events() {
			consumer.Apply(ev)
		}
	}()

	select {
	case <-engine.started:
	case <-time.After(5 * time.Second):
		t.Fatal("engine never reached the blocking file")
	}
	run.Cancel()
	res := run.Result()
	wg.Wait()

	if !res.Cancelled || !errors.Is(res.Err, ErrCancelled) {
		t.Fatalf("result = %+v, want cancelled", res)
	}
	for _, s := range res.Steps {
		if s.Status == domain.StepActive || s.Status == domain.StepPending {
			t.Fatalf("step %s left %s after cancel", s.ID, s.Status)
		}
	}
	memory := res.Steps[1]
	if memory.Status != domain.StepFailed || memory.Details != "cancelled" {
		t.Fatalf("memory = %+v, want failed cancelled", memory)
	}
	if res.Steps[2].Status != domain.StepSkipped {
		t.Fatalf("post-command = %s, want skipped", res.Steps[2].Status)
	}
	if res.Outcomes["f0"].Status != domain.ReviewApproved || res.Outcomes["f2"].Status != domain.ReviewFailed {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}

	if _, active := consumer.Active(); active || !consumer.Complete() {
		t.Fatal("closing events should settle the consumer")
	}
	got, want := stepStatuses(consumer.Steps()), stepStatuses(res.Steps)
	for id, st := range want {
		if got[id] != st {
			t.Fatalf("consumer step %s = %s, want %s", id, got[id], st)
		}
	}
	if sub := consumer.Steps()[1].Substeps[1]; sub.Status != domain.StepFailed || sub.Error != "cancelled" {
		t.Fatalf("blocked substep = %+v, want failed cancelled", sub)
	}
	if len(consumer.SettleEvents("cancelled")) != 0 {
		t.Fatal("a settled consumer should need no closing events")
	}

	run.Cancel()
	if again := run.Result(); again.Cancelled != res.Cancelled || again.PatchStatus != res.PatchStatus {
		t.Fatal("cancel after completion changed the result")
	}
}

func TestCancelWithoutReaderStillSettles(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{block: "f1", started: make(chan struct{})}
	runner := &Runner{Engine: engine}
	run := runner.Start(context.Background(), threeFiles())
	run.Cancel()

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not settle with nobody reading events")
	}
	res := run.Result()
	if !res.Cancelled {
		t.Fatalf("result = %+v, want cancelled", res)
	}
	for _, s := range res.Steps {
		if !s.Status.Terminal() {
			t.Fatalf("step %s left %s", s.ID, s.Status)
		}
	}
}

func TestProgressRejectsIllegalTransitions(t *testing.T) {
	t.Parallel()

	p := NewProgress(nil)
	if p.Apply(UpdateStep{ID: domain.StepSnapshot, Status: domain.StepDone}) {
		t.Fatal("done without active must be rejected")
	}
	if p.Apply(UpdateStep{ID: "bogus", Status: domain.StepActive}) {
		t.Fatal("unknown step must be rejected")
	}
	if p.Apply(UpdateSubstep{ParentID: domain.StepMemory, SubstepID: "x", Status: domain.StepActive}) {
		t.Fatal("unknown substep must be rejected")
	}
	p.Apply(AddSubstep{ParentID: domain.StepMemory, Substep: Substep{ID: "x"}})
	if p.Apply(AddSubstep{ParentID: domain.StepMemory, Substep: Substep{ID: "x"}}) {
		t.Fatal("duplicate substep must be rejected")
	}
	if p.Apply(UpdateSubstep{ParentID: domain.StepMemory, SubstepID: "x", Status: domain.StepFailed}) {
		t.Fatal("failed substep without active must be rejected")
	}
	if s, _ := p.Step(domain.StepSnapshot); s.Status != domain.StepPending {
		t.Fatalf("snapshot = %s, want pending", s.Status)
	}
}

func TestSupervisorSupersedesRuns(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{block: "f0", started: make(chan struct{})}
	sup := NewSupervisor(&Runner{Engine: engine})
	first := sup.Start(context.Background(), threeFiles())
	go func() {
		for range first.Events() {
		}
	}()
	<-engine.started

	second := sup.Start(context.Background(), threeFiles())

	if res := first.Result(); !res.Cancelled {
		t.Fatalf("first run = %+v, want cancelled by supersede", res)
	}
	if sup.Accept("tx1", first.Gen) {
		t.Fatal("events from the superseded run must be stale")
	}
	if !sup.Accept("tx1", second.Gen) {
		t.Fatal("current run must be accepted")
	}
	for range second.Events() {
	}
	if res := second.Result(); res.PatchStatus != domain.PatchSuccess {
		t.Fatalf("second run = %+v", res)
	}
	if sup.Cancel("tx1") {
		t.Fatal("Cancel() after completion should report false")
	}
	sup.Finish("tx1", second.Gen)
	if _, ok := sup.Current("tx1"); ok {
		t.Fatal("Finish() should forget the settled run")
	}
}
