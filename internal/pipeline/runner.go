package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relaycode/internal/domain"
	"relaycode/internal/logx"
)

var ErrCancelled = errors.New("apply cancelled")

const settleGrace = 500 * time.Millisecond

// Engine is the patch collaborator.
type Engine interface {
	Snapshot(ctx context.Context, tx domain.Transaction) error
	ApplyFile(ctx context.Context, txID string, file domain.FileItem) domain.FileOutcome
}

// Hooks run after a clean apply. Both return human readable details.
type Hooks interface {
	PostCommand(ctx context.Context, tx domain.Transaction) (string, error)
	Lint(ctx context.Context, tx domain.Transaction) (string, error)
}

type noopHooks struct{}

func (noopHooks) PostCommand(context.Context, domain.Transaction) (string, error) {
	return "No post-command configured", nil
}

func (noopHooks) Lint(context.Context, domain.Transaction) (string, error) {
	return "0 errors, 0 warnings", nil
}

type Result struct {
	TxID        string
	PatchStatus domain.PatchStatus
	Outcomes    map[string]domain.FileOutcome
	Steps       []Step
	Elapsed     time.Duration
	Cancelled   bool
	Err         error
}

// Runner builds runs. Delay is the pause between stages and between file
// operations; it is the window in which a cancel is observed.
type Runner struct {
	Engine Engine
	Hooks  Hooks
	Delay  time.Duration
	Now    func() time.Time
	Log    *logx.Logger
}

type Run struct {
	TxID string
	Gen  uint64

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// Events yields progress in order and is closed once the run settles.
func (r *Run) Events() <-chan Event { return r.events }

func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel asks the worker to stop at its next yield point. Cancelling a
// finished run does nothing.
func (r *Run) Cancel() { r.cancel() }

// Result blocks until the run settles.
func (r *Run) Result() Result {
	<-r.done
	return r.result
}

// Start spawns the worker for tx.
func (rn *Runner) Start(ctx context.Context, tx domain.Transaction) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		TxID:   tx.ID,
		events: make(chan Event, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer cancel()
		w := &worker{runner: rn, run: r, progress: NewProgress(rn.Log), now: rn.now()}
		res := w.execute(ctx, tx)
		r.result = res
		close(r.done)
		close(r.events)
	}()
	return r
}

// Execute runs tx to completion on the calling goroutine, feeding events to
// onEvent. Non-interactive callers use it instead of Start.
func (rn *Runner) Execute(ctx context.Context, tx domain.Transaction, onEvent func(Event)) Result {
	run := rn.Start(ctx, tx)
	for ev := range run.Events() {
		if onEvent != nil {
			onEvent(ev)
		}
	}
	return run.Result()
}

func (rn *Runner) now() func() time.Time {
	if rn.Now != nil {
		return rn.Now
	}
	return time.Now
}

type worker struct {
	runner   *Runner
	run      *Run
	progress *Progress
	now      func() time.Time
}

func (w *worker) emit(ctx context.Context, ev Event) error {
	w.progress.Apply(ev)
	select {
	case w.run.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle streams the closing events of a run that stopped early. A consumer
// that stops reading gets settleGrace before the rest are dropped.
func (w *worker) settle(reason string) {
	grace := time.NewTimer(settleGrace)
	defer grace.Stop()
	for _, ev := range w.progress.SettleEvents(reason) {
		w.progress.Apply(ev)
		select {
		case w.run.events <- ev:
		case <-grace.C:
			w.runner.Log.Debugf("pipeline: %s closing events dropped; nobody is reading", w.run.TxID)
			w.progress.Finalize(reason)
			return
		}
	}
}

func (w *worker) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.runner.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(w.runner.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *worker) hooks() Hooks {
	if w.runner.Hooks != nil {
		return w.runner.Hooks
	}
	return noopHooks{}
}

func (w *worker) execute(ctx context.Context, tx domain.Transaction) Result {
	started := w.now()
	res := Result{TxID: tx.ID, PatchStatus: domain.PatchSuccess, Outcomes: map[string]domain.FileOutcome{}}
	log := w.runner.Log

	err := w.stages(ctx, tx, &res)
	if err != nil {
		reason := err.Error()
		res.Err = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = "cancelled"
			res.Cancelled = true
			res.Err = ErrCancelled
			log.Infof("pipeline: %s cancelled", tx.ID)
		} else {
			log.Errorf("pipeline: %s stopped: %v", tx.ID, err)
		}
		w.settle(reason)
		for _, f := range tx.Files {
			if _, ok := res.Outcomes[f.ID]; !ok {
				res.Outcomes[f.ID] = domain.FileOutcome{Status: domain.ReviewFailed, Error: reason}
			}
		}
		res.PatchStatus = domain.PatchPartialFailure
	}
	res.Steps = w.progress.Steps()
	res.Elapsed = w.now().Sub(started)
	return res
}

func (w *worker) stages(ctx context.Context, tx domain.Transaction, res *Result) error {
	log := w.runner.Log

	// snapshot
	start := w.now()
	if err := w.emit(ctx, UpdateStep{ID: domain.StepSnapshot, Status: domain.StepActive}); err != nil {
		return err
	}
	if err := w.pause(ctx); err != nil {
		return err
	}
	if err := w.runner.Engine.Snapshot(ctx, tx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason := fmt.Sprintf("snapshot failed: %v", err)
		log.Warnf("pipeline: %s %s", tx.ID, reason)
		if err := w.emit(ctx, UpdateStep{ID: domain.StepSnapshot, Status: domain.StepFailed, Duration: w.now().Sub(start), Details: err.Error()}); err != nil {
			return err
		}
		for _, id := range domain.PipelineOrder[1:] {
			if err := w.emit(ctx, UpdateStep{ID: id, Status: domain.StepSkipped, Details: "Skipped: snapshot failed"}); err != nil {
				return err
			}
		}
		for _, f := range tx.Files {
			res.Outcomes[f.ID] = domain.FileOutcome{Status: domain.ReviewFailed, Error: reason}
		}
		res.PatchStatus = domain.PatchPartialFailure
		return nil
	}
	if err := w.emit(ctx, UpdateStep{ID: domain.StepSnapshot, Status: domain.StepDone, Duration: w.now().Sub(start)}); err != nil {
		return err
	}

	// memory
	start = w.now()
	if err := w.emit(ctx, UpdateStep{ID: domain.StepMemory, Status: domain.StepActive}); err != nil {
		return err
	}
	for _, f := range tx.Files {
		if err := w.emit(ctx, AddSubstep{ParentID: domain.StepMemory, Substep: Substep{ID: f.ID, Title: "Patching " + f.Path, Status: domain.StepPending}}); err != nil {
			return err
		}
	}
	failed := 0
	for _, f := range tx.Files {
		if err := w.emit(ctx, UpdateSubstep{ParentID: domain.StepMemory, SubstepID: f.ID, Status: domain.StepActive}); err != nil {
			return err
		}
		if err := w.pause(ctx); err != nil {
			return err
		}
		out := w.runner.Engine.ApplyFile(ctx, tx.ID, f)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if out.Status == domain.ReviewApproved {
			res.Outcomes[f.ID] = out
			if err := w.emit(ctx, UpdateSubstep{ParentID: domain.StepMemory, SubstepID: f.ID, Status: domain.StepDone, Title: "Patched " + f.Path}); err != nil {
				return err
			}
			continue
		}
		failed++
		if out.Error == "" {
			out.Error = "apply failed"
		}
		out.Status = domain.ReviewFailed
		res.Outcomes[f.ID] = out
		log.Debugf("pipeline: %s file %s failed: %s", tx.ID, f.Path, out.Error)
		if err := w.emit(ctx, UpdateSubstep{ParentID: domain.StepMemory, SubstepID: f.ID, Status: domain.StepFailed, Title: "Failed " + f.Path, Error: out.Error}); err != nil {
			return err
		}
	}
	if failed > 0 {
		res.PatchStatus = domain.PatchPartialFailure
		details := fmt.Sprintf("%d of %d operations failed", failed, len(tx.Files))
		if err := w.emit(ctx, UpdateStep{ID: domain.StepMemory, Status: domain.StepFailed, Duration: w.now().Sub(start), Details: details}); err != nil {
			return err
		}
		for _, id := range []domain.StepID{domain.StepPostCommand, domain.StepLinter} {
			if err := w.emit(ctx, UpdateStep{ID: id, Status: domain.StepSkipped, Details: "Skipped due to patch application failures"}); err != nil {
				return err
			}
		}
		return nil
	}
	if err := w.emit(ctx, UpdateStep{ID: domain.StepMemory, Status: domain.StepDone, Duration: w.now().Sub(start)}); err != nil {
		return err
	}

	// post-command
	start = w.now()
	if err := w.emit(ctx, UpdateStep{ID: domain.StepPostCommand, Status: domain.StepActive}); err != nil {
		return err
	}
	if err := w.pause(ctx); err != nil {
		return err
	}
	details, err := w.hooks().PostCommand(ctx, tx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		log.Warnf("pipeline: %s post-command failed: %v", tx.ID, err)
		if err := w.emit(ctx, UpdateStep{ID: domain.StepPostCommand, Status: domain.StepFailed, Duration: w.now().Sub(start), Details: err.Error()}); err != nil {
			return err
		}
		return w.emit(ctx, UpdateStep{ID: domain.StepLinter, Status: domain.StepSkipped, Details: "Skipped: post-command failed"})
	}
	if err := w.emit(ctx, UpdateStep{ID: domain.StepPostCommand, Status: domain.StepDone, Duration: w.now().Sub(start), Details: details}); err != nil {
		return err
	}

	// linter
	start = w.now()
	if err := w.emit(ctx, UpdateStep{ID: domain.StepLinter, Status: domain.StepActive}); err != nil {
		return err
	}
	if err := w.pause(ctx); err != nil {
		return err
	}
	details, err = w.hooks().Lint(ctx, tx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status := domain.StepDone
	if err != nil {
		status = domain.StepFailed
		details = err.Error()
	}
	return w.emit(ctx, UpdateStep{ID: domain.StepLinter, Status: status, Duration: w.now().Sub(start), Details: details})
}
