package pipeline

import (
	"relaycode/internal/domain"
	"relaycode/internal/logx"
)

// Progress is the consumer side of a run: the ordered step list the
// processing screen renders, mutated one event at a time.
type Progress struct {
	steps []Step
	log   *logx.Logger
}

func NewProgress(log *logx.Logger) *Progress {
	p := &Progress{log: log}
	p.Reset()
	return p
}

// Reset puts every step back to pending.
func (p *Progress) Reset() {
	p.steps = make([]Step, 0, len(domain.PipelineOrder))
	for _, id := range domain.PipelineOrder {
		p.steps = append(p.steps, Step{ID: id, Title: domain.StepTitle(id), Status: domain.StepPending})
	}
}

func (p *Progress) Steps() []Step {
	out := make([]Step, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.clone()
	}
	return out
}

func (p *Progress) Step(id domain.StepID) (Step, bool) {
	if s := p.find(id); s != nil {
		return s.clone(), true
	}
	return Step{}, false
}

// Active returns the step currently running, if any.
func (p *Progress) Active() (Step, bool) {
	for _, s := range p.steps {
		if s.Status == domain.StepActive {
			return s.clone(), true
		}
	}
	return Step{}, false
}

// Complete reports whether every step reached a terminal status.
func (p *Progress) Complete() bool {
	for _, s := range p.steps {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

func (p *Progress) find(id domain.StepID) *Step {
	for i := range p.steps {
		if p.steps[i].ID == id {
			return &p.steps[i]
		}
	}
	return nil
}

// Apply folds one event into the step list. Illegal transitions are logged
// and dropped; the return value reports whether the event took effect.
func (p *Progress) Apply(ev Event) bool {
	switch ev := ev.(type) {
	case UpdateStep:
		s := p.find(ev.ID)
		if s == nil {
			p.log.Warnf("pipeline: update for unknown step %q dropped", ev.ID)
			return false
		}
		if !s.Status.CanTransition(ev.Status) {
			p.log.Warnf("pipeline: step %s %s -> %s rejected", ev.ID, s.Status, ev.Status)
			return false
		}
		s.Status = ev.Status
		if ev.Duration > 0 {
			s.Duration = ev.Duration
		}
		if ev.Details != "" {
			s.Details = ev.Details
		}
		return true
	case AddSubstep:
		s := p.find(ev.ParentID)
		if s == nil {
			p.log.Warnf("pipeline: substep for unknown step %q dropped", ev.ParentID)
			return false
		}
		for _, sub := range s.Substeps {
			if sub.ID == ev.Substep.ID {
				p.log.Warnf("pipeline: duplicate substep %s/%s dropped", ev.ParentID, ev.Substep.ID)
				return false
			}
		}
		sub := ev.Substep
		if sub.Status == "" {
			sub.Status = domain.StepPending
		}
		s.Substeps = append(s.Substeps, sub)
		return true
	case UpdateSubstep:
		s := p.find(ev.ParentID)
		if s == nil {
			p.log.Warnf("pipeline: substep update for unknown step %q dropped", ev.ParentID)
			return false
		}
		for i := range s.Substeps {
			sub := &s.Substeps[i]
			if sub.ID != ev.SubstepID {
				continue
			}
			if !sub.Status.CanTransition(ev.Status) {
				p.log.Warnf("pipeline: substep %s/%s %s -> %s rejected", ev.ParentID, ev.SubstepID, sub.Status, ev.Status)
				return false
			}
			sub.Status = ev.Status
			if ev.Title != "" {
				sub.Title = ev.Title
			}
			if ev.Error != "" {
				sub.Error = ev.Error
			}
			return true
		}
		p.log.Warnf("pipeline: update for unknown substep %s/%s dropped", ev.ParentID, ev.SubstepID)
		return false
	default:
		p.log.Warnf("pipeline: unknown event %T dropped", ev)
		return false
	}
}

// SettleEvents lists the events that close a run that stopped early: the
// active step and substeps fail with reason, pending ones are skipped.
// A settled list yields nothing.
func (p *Progress) SettleEvents(reason string) []Event {
	var out []Event
	for _, s := range p.steps {
		for _, sub := range s.Substeps {
			switch sub.Status {
			case domain.StepActive:
				out = append(out, UpdateSubstep{ParentID: s.ID, SubstepID: sub.ID, Status: domain.StepFailed, Error: reason})
			case domain.StepPending:
				out = append(out, UpdateSubstep{ParentID: s.ID, SubstepID: sub.ID, Status: domain.StepSkipped})
			}
		}
		switch s.Status {
		case domain.StepActive:
			out = append(out, UpdateStep{ID: s.ID, Status: domain.StepFailed, Details: reason})
		case domain.StepPending:
			out = append(out, UpdateStep{ID: s.ID, Status: domain.StepSkipped, Details: reason})
		}
	}
	return out
}

// Finalize applies SettleEvents, so nothing stays active.
func (p *Progress) Finalize(reason string) {
	for _, ev := range p.SettleEvents(reason) {
		p.Apply(ev)
	}
}
