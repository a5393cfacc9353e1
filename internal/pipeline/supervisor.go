package pipeline

import (
	"context"
	"sync"

	"relaycode/internal/domain"
)

// Supervisor keeps at most one live run per transaction. Each Start bumps
// the transaction's generation; events carrying an older generation are
// stale and must be discarded by the consumer.
type Supervisor struct {
	runner *Runner

	mu   sync.Mutex
	gens map[string]uint64
	runs map[string]*Run
}

func NewSupervisor(runner *Runner) *Supervisor {
	return &Supervisor{
		runner: runner,
		gens:   map[string]uint64{},
		runs:   map[string]*Run{},
	}
}

func (s *Supervisor) Runner() *Runner { return s.runner }

// Start cancels any run already live for tx and starts a new one.
func (s *Supervisor) Start(ctx context.Context, tx domain.Transaction) *Run {
	return s.StartWith(ctx, s.runner, tx)
}

// StartWith is Start with a runner other than the default, for runs that
// need their own engine.
func (s *Supervisor) StartWith(ctx context.Context, rn *Runner, tx domain.Transaction) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.runs[tx.ID]; ok {
		prev.Cancel()
		rn.Log.Debugf("pipeline: run %s#%d superseded", tx.ID, prev.Gen)
	}
	s.gens[tx.ID]++
	run := rn.Start(ctx, tx)
	run.Gen = s.gens[tx.ID]
	s.runs[tx.ID] = run
	return run
}

// Accept reports whether gen is the current run for txID.
func (s *Supervisor) Accept(txID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != 0 && s.gens[txID] == gen
}

func (s *Supervisor) Current(txID string) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[txID]
	return run, ok
}

// Cancel stops the live run for txID. It reports false when there is none
// or the run already finished.
func (s *Supervisor) Cancel(txID string) bool {
	s.mu.Lock()
	run, ok := s.runs[txID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-run.Done():
		return false
	default:
	}
	run.Cancel()
	return true
}

// Finish forgets a settled run if it is still the current one.
func (s *Supervisor) Finish(txID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[txID]; ok && run.Gen == gen {
		delete(s.runs, txID)
	}
}

// CancelAll stops every live run; used on shutdown.
func (s *Supervisor) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, run := range s.runs {
		run.Cancel()
		delete(s.runs, id)
	}
}
